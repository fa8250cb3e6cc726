package reconcile

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/banking"
	"github.com/ledgerline/ledgerline/internal/invoices"
	"github.com/ledgerline/ledgerline/internal/ledger"
)

// workflow is one variant of the closed category union. Each variant reads
// the documents it needs and returns an immutable plan; a single executor in
// the service applies every pending mutation atomically.
type workflow interface {
	plan(ctx context.Context, st Store, txn banking.Transaction, req ExplainRequest) (plan, error)
}

// plan is the result of matching a workflow against a transaction. Nothing in
// a plan has been written yet.
type plan struct {
	category      ledger.Category
	description   string
	explained     decimal.Decimal
	gainLoss      decimal.Decimal
	postings      []posting
	mutations     []mutation
	notifications []Notification
}

// posting pairs a journal with the explanation lines and payroll allocations
// it gives rise to, so the executor can link them to the inserted journal id.
type posting struct {
	input  ledger.PostingInput
	lines  []lineSpec
	allocs []allocSpec
}

type lineSpec struct {
	refType       ledger.ReferenceType
	refID         int64
	amount        decimal.Decimal
	converted     decimal.Decimal
	rate          decimal.Decimal
	partiallyPaid bool
}

type allocSpec struct {
	payrollID int64
	amount    decimal.Decimal
}

// mutation is one pending document update, applied by the executor inside
// the same unit of work as the journals and the explanation record.
type mutation func(ctx context.Context, st Store) error

// Notification is emitted after commit; delivery failure is non-fatal.
type Notification struct {
	Kind      string
	ContactID int64
	Amount    decimal.Decimal
}

// dispatch selects exactly one workflow for a category. EXPENSE branches on
// the payload: payroll ids select the payroll workflow, invoice allocations
// the supplier-invoice matcher, otherwise the generic expense posting.
func dispatch(req ExplainRequest) (workflow, error) {
	switch req.Category {
	case ledger.CategoryExpense:
		if len(req.PayrollIDs) > 0 {
			return payrollWorkflow{}, nil
		}
		if len(req.Allocations) > 0 {
			return invoiceWorkflow{kind: invoices.KindSupplier}, nil
		}
		return genericWorkflow{}, nil
	case ledger.CategorySales:
		if len(req.Allocations) > 0 {
			return invoiceWorkflow{kind: invoices.KindCustomer}, nil
		}
		return genericWorkflow{}, nil
	case ledger.CategoryVatPayment, ledger.CategoryVatClaim, ledger.CategoryCorporateTaxPayment:
		return taxWorkflow{}, nil
	case ledger.CategoryTransferdTo, ledger.CategoryTransferFrom:
		return transferWorkflow{}, nil
	case ledger.CategoryRefundReceived:
		if req.CreditNoteID != nil {
			return creditNoteWorkflow{}, nil
		}
		return genericWorkflow{}, nil
	case ledger.CategoryMoneyPaidToUser,
		ledger.CategoryMoneySpent,
		ledger.CategoryMoneySpentOthers,
		ledger.CategoryPurchaseOfCapitalAsset,
		ledger.CategoryInterestReceived,
		ledger.CategoryDisposalOfCapitalAsset,
		ledger.CategoryMoneyReceivedFromUser,
		ledger.CategoryMoneyReceivedOthers:
		return genericWorkflow{}, nil
	default:
		return nil, ErrUnrecognizedCategory
	}
}

// rateOrOne defaults a missing exchange rate to 1.
func rateOrOne(rate decimal.Decimal) decimal.Decimal {
	if rate.IsPositive() {
		return rate
	}
	return decimal.NewFromInt(1)
}

// twoLegs builds the standard posting pair: money leaving the bank credits
// the bank leg and debits the destination; money received mirrors it.
func twoLegs(flag banking.DebitCredit, destination ledger.Category, amount, rate decimal.Decimal) []ledger.PostingLineInput {
	bank := ledger.PostingLineInput{Category: ledger.CategoryBank, ExchangeRate: rate}
	dest := ledger.PostingLineInput{Category: destination, ExchangeRate: rate}
	if flag == banking.Debit {
		bank.Credit = amount
		dest.Debit = amount
	} else {
		bank.Debit = amount
		dest.Credit = amount
	}
	return []ledger.PostingLineInput{dest, bank}
}
