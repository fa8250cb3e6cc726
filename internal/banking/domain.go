package banking

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/ledger"
)

// DebitCredit flags which side of the bank account a transaction sits on.
type DebitCredit string

const (
	// Debit means money left the bank account.
	Debit DebitCredit = "D"
	// Credit means money arrived into the bank account.
	Credit DebitCredit = "C"
)

// ExplanationStatus tracks how much of a transaction has been explained.
type ExplanationStatus string

const (
	StatusNotExplained ExplanationStatus = "NOT_EXPLAINED"
	StatusPartial      ExplanationStatus = "PARTIAL"
	StatusFull         ExplanationStatus = "FULL"
)

// StatusFor derives the explanation status from the due remainder. Status is
// a pure function of due vs amount, never stored independently of them.
func StatusFor(due, amount decimal.Decimal) ExplanationStatus {
	switch {
	case due.IsZero():
		return StatusFull
	case due.Equal(amount):
		return StatusNotExplained
	default:
		return StatusPartial
	}
}

// AccountKind distinguishes real bank accounts from petty cash drawers.
type AccountKind string

const (
	AccountKindBank      AccountKind = "BANK"
	AccountKindPettyCash AccountKind = "PETTY_CASH"
)

// BankAccount holds the running balance mutated by every explain and reversal.
type BankAccount struct {
	ID             int64
	Name           string
	AccountNumber  string
	Currency       string
	Kind           AccountKind
	CurrentBalance decimal.Decimal
	Deleted        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Transaction is a bank-feed line. DueAmount is the unexplained remainder and
// always sits inside [0, Amount].
type Transaction struct {
	ID                int64
	BankAccountID     int64
	Amount            decimal.Decimal
	DueAmount         decimal.Decimal
	Flag              DebitCredit
	Status            ExplanationStatus
	Date              time.Time
	Description       string
	ExchangeRate      decimal.Decimal
	ExplainedCategory *ledger.Category
	ContactID         *int64
	AttachmentRef     *string
	Deleted           bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

var (
	// ErrAccountNotFound indicates a missing bank account.
	ErrAccountNotFound = errors.New("banking: bank account not found")
	// ErrTransactionNotFound indicates a missing transaction.
	ErrTransactionNotFound = errors.New("banking: transaction not found")
	// ErrTransactionDeleted indicates the transaction was soft-deleted.
	ErrTransactionDeleted = errors.New("banking: transaction deleted")
	// ErrNegativeAmount indicates a non-positive transaction amount.
	ErrNegativeAmount = errors.New("banking: amount must be positive")
)

// BalanceDelta is the signed effect of a transaction on its bank account:
// debits shrink the balance, credits grow it.
func BalanceDelta(flag DebitCredit, amount decimal.Decimal) decimal.Decimal {
	if flag == Debit {
		return amount.Neg()
	}
	return amount
}

// Validate checks the fields set on import or manual entry.
func (t Transaction) Validate() error {
	if t.BankAccountID == 0 {
		return errors.New("banking: bank account required")
	}
	if !t.Amount.IsPositive() {
		return ErrNegativeAmount
	}
	if t.Flag != Debit && t.Flag != Credit {
		return errors.New("banking: debit/credit flag required")
	}
	if t.Date.IsZero() {
		return errors.New("banking: date required")
	}
	return nil
}
