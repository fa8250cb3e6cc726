package reconcile

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/ledger"
)

// Explanation is the header written once per explain operation. A partially
// explained transaction accumulates several over its lifetime; reversal
// soft-deletes one header together with all of its lines.
type Explanation struct {
	ID               int64
	TransactionID    int64
	PaidAmount       decimal.Decimal
	BalanceSnapshot  decimal.Decimal
	Category         ledger.Category
	ContactID        *int64
	ExchangeGainLoss decimal.Decimal
	Deleted          bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Lines            []ExplanationLine
}

// ExplanationLine captures one affected document, holding exactly the data
// needed to reverse the operation later. Immutable once created except for
// the delete flag.
type ExplanationLine struct {
	ID            int64
	ExplanationID int64
	ReferenceType ledger.ReferenceType
	ReferenceID   int64
	Amount        decimal.Decimal
	Converted     decimal.Decimal
	ExchangeRate  decimal.Decimal
	PartiallyPaid bool
	JournalID     int64
	Deleted       bool
	CreatedAt     time.Time
}

// InvoiceAllocation is one caller-supplied tuple for the invoice matcher.
type InvoiceAllocation struct {
	DocumentID    int64           `json:"document_id" validate:"required,gt=0"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	Converted     decimal.Decimal `json:"converted_amount"`
	ExchangeRate  decimal.Decimal `json:"exchange_rate"`
	PartiallyPaid bool            `json:"partially_paid"`
}

// ExplainRequest is the category-specific payload of an explain call.
type ExplainRequest struct {
	TransactionID     *int64
	BankAccountID     int64
	Category          ledger.Category
	Amount            decimal.Decimal
	Date              time.Time
	Description       string
	ExchangeRate      decimal.Decimal
	ContactID         *int64
	AttachmentRef     *string
	Flag              string
	Allocations       []InvoiceAllocation
	CreditNoteID      *int64
	PayrollIDs        []int64
	FilingID          *int64
	TargetAccountName string
	VatAmount         decimal.Decimal
	ExchangeGainLoss  decimal.Decimal
}

// UnexplainRequest identifies the explanation to reverse.
type UnexplainRequest struct {
	TransactionID int64
	ExplanationID int64
}

var (
	// ErrUnrecognizedCategory aborts an explain before any write happens.
	ErrUnrecognizedCategory = errors.New("reconcile: unrecognized category")
	// ErrDocumentNotFound rolls back the whole unit of work.
	ErrDocumentNotFound = errors.New("reconcile: document not found")
	// ErrNothingToReverse rejects unexplain on a NOT_EXPLAINED transaction.
	ErrNothingToReverse = errors.New("reconcile: nothing to reverse")
	// ErrAlreadyExplained rejects explain on a FULL transaction.
	ErrAlreadyExplained = errors.New("reconcile: transaction already fully explained")
	// ErrAmountMismatch rejects allocations that do not reconcile with the
	// transaction amount. Never clamped silently.
	ErrAmountMismatch = errors.New("reconcile: explained amounts do not reconcile with transaction amount")
	// ErrExplanationNotFound indicates a missing or deleted explanation.
	ErrExplanationNotFound = errors.New("reconcile: explanation not found")
	// ErrTransactionBusy rejects a second concurrent call on one transaction.
	ErrTransactionBusy = errors.New("reconcile: transaction busy")
)
