package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/ledgerline/ledgerline/internal/banking"
	"github.com/ledgerline/ledgerline/internal/invoices"
	"github.com/ledgerline/ledgerline/internal/ledger"
)

// genericWorkflow explains the full remaining amount against the category
// itself: no external document, one two-leg TRANSACTION_RECONSILE journal.
// Expense postings optionally split a VAT leg off the category leg.
type genericWorkflow struct{}

func (genericWorkflow) plan(ctx context.Context, st Store, txn banking.Transaction, req ExplainRequest) (plan, error) {
	explained := txn.DueAmount
	rate := rateOrOne(req.ExchangeRate)
	converted := explained.Mul(rate)

	var lines []ledger.PostingLineInput
	if req.Category == ledger.CategoryExpense && req.VatAmount.IsPositive() {
		if req.VatAmount.GreaterThanOrEqual(converted) {
			return plan{}, fmt.Errorf("%w: vat amount exceeds posting amount", ErrAmountMismatch)
		}
		vatCategory := ledger.CategoryInputVat
		if txn.Flag == banking.Credit {
			vatCategory = ledger.CategoryOutputVat
		}
		net := converted.Sub(req.VatAmount)
		category := ledger.PostingLineInput{Category: req.Category, ExchangeRate: rate}
		vat := ledger.PostingLineInput{Category: vatCategory, ExchangeRate: rate}
		bank := ledger.PostingLineInput{Category: ledger.CategoryBank, ExchangeRate: rate}
		if txn.Flag == banking.Debit {
			category.Debit = net
			vat.Debit = req.VatAmount
			bank.Credit = converted
		} else {
			category.Credit = net
			vat.Credit = req.VatAmount
			bank.Debit = converted
		}
		lines = []ledger.PostingLineInput{category, vat, bank}
	} else {
		lines = twoLegs(txn.Flag, req.Category, converted, rate)
	}

	return plan{
		category:    req.Category,
		description: req.Description,
		explained:   explained,
		postings: []posting{{
			input: ledger.PostingInput{
				Date:          txn.Date,
				ReferenceType: ledger.RefTransactionReconsile,
				ReferenceID:   txn.ID,
				TransactionID: txn.ID,
				Lines:         lines,
			},
			lines: []lineSpec{{
				refType:   ledger.RefTransactionReconsile,
				refID:     txn.ID,
				amount:    explained,
				converted: converted,
				rate:      rate,
			}},
		}},
	}, nil
}

// transferWorkflow handles transfers between accounts. When the target
// resolves to one of the firm's own bank or petty-cash accounts the category
// is redirected to Amount In Transit so the movement never double-counts in a
// single ledger bucket.
type transferWorkflow struct{}

func (transferWorkflow) plan(ctx context.Context, st Store, txn banking.Transaction, req ExplainRequest) (plan, error) {
	category := req.Category
	description := req.Description
	if req.TargetAccountName != "" {
		target, err := st.Banking.FindAccountByName(ctx, req.TargetAccountName)
		switch {
		case err == nil:
			category = ledger.CategoryAmountInTransit
			if description == "" {
				description = target.Name
			} else {
				description = description + " / " + target.Name
			}
		case errors.Is(err, banking.ErrAccountNotFound):
			// External target, post against the transfer category itself.
		default:
			return plan{}, err
		}
	}

	explained := txn.DueAmount
	rate := rateOrOne(req.ExchangeRate)
	converted := explained.Mul(rate)

	return plan{
		category:    category,
		description: description,
		explained:   explained,
		postings: []posting{{
			input: ledger.PostingInput{
				Date:          txn.Date,
				ReferenceType: ledger.RefTransactionReconsile,
				ReferenceID:   txn.ID,
				TransactionID: txn.ID,
				Lines:         twoLegs(txn.Flag, category, converted, rate),
			},
			lines: []lineSpec{{
				refType:   ledger.RefTransactionReconsile,
				refID:     txn.ID,
				amount:    explained,
				converted: converted,
				rate:      rate,
			}},
		}},
	}, nil
}

// creditNoteWorkflow settles a refund received against a credit note.
type creditNoteWorkflow struct{}

func (creditNoteWorkflow) plan(ctx context.Context, st Store, txn banking.Transaction, req ExplainRequest) (plan, error) {
	note, err := st.Invoices.GetCreditNoteForUpdate(ctx, *req.CreditNoteID)
	if err != nil {
		if errors.Is(err, invoices.ErrCreditNoteNotFound) {
			return plan{}, fmt.Errorf("%w: credit note %d", ErrDocumentNotFound, *req.CreditNoteID)
		}
		return plan{}, err
	}

	explained := txn.DueAmount
	if explained.GreaterThan(note.DueAmount) {
		return plan{}, fmt.Errorf("%w: refund %s exceeds credit note due %s", invoices.ErrOverpayment, explained, note.DueAmount)
	}
	rate := rateOrOne(req.ExchangeRate)
	converted := explained.Mul(rate)

	destination := ledger.CategoryAccountsReceivable
	if note.Kind == invoices.KindSupplier {
		destination = ledger.CategoryAccountsPayable
	}

	noteID := note.ID
	newDue := note.DueAmount.Sub(explained)
	mutations := []mutation{
		func(ctx context.Context, st Store) error {
			return st.Invoices.UpdateCreditNoteDue(ctx, noteID, newDue, invoices.StatusForDue(newDue, note.TotalAmount))
		},
		func(ctx context.Context, st Store) error {
			_, err := st.Invoices.InsertSettlement(ctx, invoices.Settlement{
				TransactionID: txn.ID,
				DocumentID:    noteID,
				Kind:          invoices.SettlementRefund,
				Amount:        explained,
			})
			return err
		},
	}

	return plan{
		category:    req.Category,
		description: req.Description,
		explained:   explained,
		mutations:   mutations,
		postings: []posting{{
			input: ledger.PostingInput{
				Date:          txn.Date,
				ReferenceType: ledger.RefRefund,
				ReferenceID:   noteID,
				TransactionID: txn.ID,
				Lines:         twoLegs(txn.Flag, destination, converted, rate),
			},
			lines: []lineSpec{{
				refType:   ledger.RefRefund,
				refID:     noteID,
				amount:    explained,
				converted: converted,
				rate:      rate,
			}},
		}},
	}, nil
}
