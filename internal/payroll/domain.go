package payroll

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates payroll settlement states.
type Status string

const (
	StatusApproved      Status = "Approved"
	StatusPartiallyPaid Status = "Partially Paid"
	StatusPaid          Status = "Paid"
)

// Payroll is one approved payroll run awaiting settlement from the bank.
type Payroll struct {
	ID         int64
	EmployeeID int64
	Reference  string
	Amount     decimal.Decimal
	DueAmount  decimal.Decimal
	Status     Status
	Deleted    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Allocation is the one-to-one join row between a transaction and a payroll
// line. Each allocation owns its own journal so reversal can restore every
// payroll independently.
type Allocation struct {
	ID            int64
	TransactionID int64
	PayrollID     int64
	Amount        decimal.Decimal
	JournalID     int64
	Deleted       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

var (
	// ErrPayrollNotFound indicates a missing payroll run.
	ErrPayrollNotFound = errors.New("payroll: payroll not found")
	// ErrAllocationNotFound indicates a missing allocation row.
	ErrAllocationNotFound = errors.New("payroll: allocation not found")
)

// StatusForDue derives the payroll status from its due remainder.
func StatusForDue(due, amount decimal.Decimal) Status {
	switch {
	case due.IsZero():
		return StatusPaid
	case due.Equal(amount):
		return StatusApproved
	default:
		return StatusPartiallyPaid
	}
}
