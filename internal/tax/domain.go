package tax

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// FilingKind separates VAT filings from corporate tax filings.
type FilingKind string

const (
	KindVat          FilingKind = "VAT"
	KindCorporateTax FilingKind = "CORPORATE_TAX"
)

// FilingStatus enumerates filing settlement states.
type FilingStatus string

const (
	StatusFiled         FilingStatus = "FILED"
	StatusPartiallyPaid FilingStatus = "PARTIALLY_PAID"
	StatusPaid          FilingStatus = "PAID"
	StatusClaimed       FilingStatus = "CLAIMED"
)

// Filing is one VAT or corporate-tax return with an outstanding balance.
// Reclaimable marks VAT filings where the authority owes the firm.
type Filing struct {
	ID          int64
	Kind        FilingKind
	PeriodLabel string
	TotalAmount decimal.Decimal
	BalanceDue  decimal.Decimal
	Status      FilingStatus
	Reclaimable bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Payment records one transaction settling (part of) a filing. Payments and
// their history rows are hard-deleted on reversal, after the filing balance
// has been restored.
type Payment struct {
	ID            int64
	FilingID      int64
	TransactionID int64
	Amount        decimal.Decimal
	CreatedAt     time.Time
}

// PaymentHistory is the audit row written alongside each Payment.
type PaymentHistory struct {
	ID           int64
	PaymentID    int64
	FilingID     int64
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	Status       FilingStatus
	CreatedAt    time.Time
}

var (
	// ErrFilingNotFound indicates a missing filing.
	ErrFilingNotFound = errors.New("tax: filing not found")
	// ErrPaymentNotFound indicates a missing payment.
	ErrPaymentNotFound = errors.New("tax: payment not found")
)

// Settle computes the filing balance and status after a payment. The new
// balance is the absolute difference, so an over-payment flips the remainder
// into an amount owed back. A reclaimable filing settled to zero becomes a
// claim; any other filing settled to zero is paid.
func Settle(f Filing, amount decimal.Decimal) (decimal.Decimal, FilingStatus) {
	balance := f.BalanceDue.Sub(amount).Abs()
	switch {
	case !balance.IsZero():
		return balance, StatusPartiallyPaid
	case f.Reclaimable:
		return balance, StatusClaimed
	default:
		return balance, StatusPaid
	}
}
