package invoices

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Kind separates money owed to the firm from money the firm owes.
type Kind string

const (
	KindCustomer Kind = "CUSTOMER"
	KindSupplier Kind = "SUPPLIER"
)

// Status enumerates invoice payment states.
type Status string

const (
	StatusPending       Status = "PENDING"
	StatusPost          Status = "POST"
	StatusOpen          Status = "OPEN"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	StatusPaid          Status = "PAID"
)

// Invoice carries the due remainder mutated by explain and reversal.
type Invoice struct {
	ID          int64
	Number      string
	Kind        Kind
	ContactID   int64
	Currency    string
	TotalAmount decimal.Decimal
	DueAmount   decimal.Decimal
	Status      Status
	Deleted     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreditNote mirrors Invoice for refunds.
type CreditNote struct {
	ID          int64
	Number      string
	Kind        Kind
	ContactID   int64
	Currency    string
	TotalAmount decimal.Decimal
	DueAmount   decimal.Decimal
	Status      Status
	Deleted     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SettlementKind tags the join row created when a transaction settles a
// document.
type SettlementKind string

const (
	SettlementReceipt SettlementKind = "RECEIPT"
	SettlementPayment SettlementKind = "PAYMENT"
	SettlementRefund  SettlementKind = "REFUND"
)

// Settlement links a bank transaction to the invoice or credit note it paid.
// Reversal soft-deletes the row and hands the amount back to the document.
type Settlement struct {
	ID            int64
	TransactionID int64
	DocumentID    int64
	Kind          SettlementKind
	Amount        decimal.Decimal
	Deleted       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

var (
	// ErrInvoiceNotFound indicates a missing invoice.
	ErrInvoiceNotFound = errors.New("invoices: invoice not found")
	// ErrCreditNoteNotFound indicates a missing credit note.
	ErrCreditNoteNotFound = errors.New("invoices: credit note not found")
	// ErrSettlementNotFound indicates a missing settlement row.
	ErrSettlementNotFound = errors.New("invoices: settlement not found")
	// ErrOverpayment indicates an explained amount larger than the remaining due.
	ErrOverpayment = errors.New("invoices: explained amount exceeds due amount")
)

// StatusForDue derives the document status from its due remainder.
func StatusForDue(due, total decimal.Decimal) Status {
	switch {
	case due.IsZero():
		return StatusPaid
	case due.Equal(total):
		return StatusOpen
	default:
		return StatusPartiallyPaid
	}
}
