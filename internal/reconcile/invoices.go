package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/banking"
	"github.com/ledgerline/ledgerline/internal/invoices"
	"github.com/ledgerline/ledgerline/internal/ledger"
)

// invoiceWorkflow settles a caller-supplied ordered list of invoices. The
// matcher accumulates a running total and posts one journal: a destination
// leg per invoice plus a single bank leg, with an optional third leg for the
// exchange gain or loss absorbed by the bank amount.
type invoiceWorkflow struct {
	kind invoices.Kind
}

func (w invoiceWorkflow) plan(ctx context.Context, st Store, txn banking.Transaction, req ExplainRequest) (plan, error) {
	if len(req.Allocations) == 0 {
		return plan{}, fmt.Errorf("%w: invoice allocations required", ErrAmountMismatch)
	}

	destination := ledger.CategoryAccountsReceivable
	settlementKind := invoices.SettlementReceipt
	refType := ledger.RefBankReceipt
	if w.kind == invoices.KindSupplier {
		destination = ledger.CategoryAccountsPayable
		settlementKind = invoices.SettlementPayment
		refType = ledger.RefBankPayment
	}

	explained := decimal.Zero
	totalConverted := decimal.Zero
	var legs []ledger.PostingLineInput
	var specs []lineSpec
	var mutations []mutation
	var notifications []Notification

	for _, alloc := range req.Allocations {
		invoice, err := st.Invoices.GetInvoiceForUpdate(ctx, alloc.DocumentID)
		if err != nil {
			if errors.Is(err, invoices.ErrInvoiceNotFound) {
				return plan{}, fmt.Errorf("%w: invoice %d", ErrDocumentNotFound, alloc.DocumentID)
			}
			return plan{}, err
		}
		if invoice.Kind != w.kind {
			return plan{}, fmt.Errorf("%w: invoice %d", ErrDocumentNotFound, alloc.DocumentID)
		}
		if !alloc.Amount.IsPositive() {
			return plan{}, fmt.Errorf("%w: invoice %d non-positive amount", ErrAmountMismatch, alloc.DocumentID)
		}
		if alloc.Amount.GreaterThan(invoice.DueAmount) {
			return plan{}, fmt.Errorf("%w: invoice %d amount %s exceeds due %s", invoices.ErrOverpayment, invoice.ID, alloc.Amount, invoice.DueAmount)
		}

		rate := rateOrOne(alloc.ExchangeRate)
		converted := alloc.Converted
		if converted.IsZero() {
			converted = alloc.Amount.Mul(rate)
		}

		// The invoice gives up the non-converted amount; the journal carries
		// the converted one.
		newDue := invoice.DueAmount.Sub(alloc.Amount)
		status := invoices.StatusPaid
		if alloc.PartiallyPaid {
			status = invoices.StatusPartiallyPaid
		}
		if status == invoices.StatusPaid && !newDue.IsZero() {
			return plan{}, fmt.Errorf("%w: invoice %d not fully settled by %s", ErrAmountMismatch, invoice.ID, alloc.Amount)
		}

		invoiceID := invoice.ID
		mutations = append(mutations,
			func(ctx context.Context, st Store) error {
				return st.Invoices.UpdateInvoiceDue(ctx, invoiceID, newDue, status)
			},
			func(ctx context.Context, st Store) error {
				_, err := st.Invoices.InsertSettlement(ctx, invoices.Settlement{
					TransactionID: txn.ID,
					DocumentID:    invoiceID,
					Kind:          settlementKind,
					Amount:        alloc.Amount,
				})
				return err
			},
		)
		notifications = append(notifications, Notification{
			Kind:      "payment-confirmation",
			ContactID: invoice.ContactID,
			Amount:    alloc.Amount,
		})

		leg := ledger.PostingLineInput{Category: destination, ExchangeRate: rate}
		if txn.Flag == banking.Debit {
			leg.Debit = converted
		} else {
			leg.Credit = converted
		}
		legs = append(legs, leg)
		specs = append(specs, lineSpec{
			refType:       refType,
			refID:         invoiceID,
			amount:        alloc.Amount,
			converted:     converted,
			rate:          rate,
			partiallyPaid: alloc.PartiallyPaid,
		})

		explained = explained.Add(alloc.Amount)
		totalConverted = totalConverted.Add(converted)
	}

	if explained.GreaterThan(txn.DueAmount) {
		return plan{}, fmt.Errorf("%w: allocations %s exceed remaining %s", ErrAmountMismatch, explained, txn.DueAmount)
	}

	// The bank leg absorbs the exchange gain or loss; a third leg keeps the
	// journal balanced.
	bankAmount := totalConverted.Add(req.ExchangeGainLoss)
	if !bankAmount.IsPositive() {
		return plan{}, fmt.Errorf("%w: exchange gain/loss wipes out bank leg", ErrAmountMismatch)
	}
	bank := ledger.PostingLineInput{Category: ledger.CategoryBank, ExchangeRate: decimal.NewFromInt(1)}
	if txn.Flag == banking.Debit {
		bank.Credit = bankAmount
	} else {
		bank.Debit = bankAmount
	}
	legs = append(legs, bank)

	if !req.ExchangeGainLoss.IsZero() {
		diff := req.ExchangeGainLoss.Abs()
		gain := ledger.PostingLineInput{Category: ledger.CategoryExchangeGainOrLoss, ExchangeRate: decimal.NewFromInt(1)}
		bankDebits := txn.Flag == banking.Credit
		if bankDebits == req.ExchangeGainLoss.IsPositive() {
			gain.Credit = diff
		} else {
			gain.Debit = diff
		}
		legs = append(legs, gain)
	}

	return plan{
		category:      req.Category,
		description:   req.Description,
		explained:     explained,
		gainLoss:      req.ExchangeGainLoss,
		mutations:     mutations,
		notifications: notifications,
		postings: []posting{{
			input: ledger.PostingInput{
				Date:          txn.Date,
				ReferenceType: refType,
				ReferenceID:   txn.ID,
				TransactionID: txn.ID,
				Lines:         legs,
			},
			lines: specs,
		}},
	}, nil
}
