package reconcile

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/banking"
	"github.com/ledgerline/ledgerline/internal/invoices"
	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/payroll"
	"github.com/ledgerline/ledgerline/internal/platform/db"
	"github.com/ledgerline/ledgerline/internal/tax"
)

// BankingStore is the slice of banking operations an explain touches.
type BankingStore interface {
	GetTransactionForUpdate(ctx context.Context, id int64) (banking.Transaction, error)
	InsertTransaction(ctx context.Context, t banking.Transaction) (banking.Transaction, error)
	UpdateExplained(ctx context.Context, t banking.Transaction) error
	ClearExplanation(ctx context.Context, id int64, due decimal.Decimal, status banking.ExplanationStatus) error
	SoftDeleteTransaction(ctx context.Context, id int64) error
	GetAccountForUpdate(ctx context.Context, id int64) (banking.BankAccount, error)
	UpdateAccountBalance(ctx context.Context, id int64, balance decimal.Decimal) error
	FindAccountByName(ctx context.Context, name string) (banking.BankAccount, error)
}

// LedgerStore posts and reverses journals inside the unit of work.
type LedgerStore interface {
	InsertJournal(ctx context.Context, in ledger.PostingInput) (ledger.Journal, error)
	GetJournalWithLines(ctx context.Context, id int64) (ledger.Journal, error)
	FindByReference(ctx context.Context, transactionID int64, refTypes ...ledger.ReferenceType) (ledger.Journal, error)
	SoftDeleteLines(ctx context.Context, journalID int64) error
}

// InvoiceStore mutates invoices, credit notes, and settlement join rows.
type InvoiceStore interface {
	GetInvoiceForUpdate(ctx context.Context, id int64) (invoices.Invoice, error)
	UpdateInvoiceDue(ctx context.Context, id int64, due decimal.Decimal, status invoices.Status) error
	GetCreditNoteForUpdate(ctx context.Context, id int64) (invoices.CreditNote, error)
	UpdateCreditNoteDue(ctx context.Context, id int64, due decimal.Decimal, status invoices.Status) error
	InsertSettlement(ctx context.Context, in invoices.Settlement) (invoices.Settlement, error)
	FindSettlement(ctx context.Context, transactionID, documentID int64, kind invoices.SettlementKind) (invoices.Settlement, error)
	SoftDeleteSettlement(ctx context.Context, id int64) error
}

// PayrollStore mutates payroll runs and their allocations.
type PayrollStore interface {
	GetPayrollForUpdate(ctx context.Context, id int64) (payroll.Payroll, error)
	ListPayrollsForUpdate(ctx context.Context, ids []int64) ([]payroll.Payroll, error)
	UpdatePayrollDue(ctx context.Context, id int64, due decimal.Decimal, status payroll.Status) error
	InsertAllocation(ctx context.Context, in payroll.Allocation) (payroll.Allocation, error)
	FindAllocation(ctx context.Context, transactionID, payrollID int64) (payroll.Allocation, error)
	SoftDeleteAllocation(ctx context.Context, id int64) error
}

// TaxStore mutates filings and their payments.
type TaxStore interface {
	GetFilingForUpdate(ctx context.Context, id int64) (tax.Filing, error)
	UpdateFilingBalance(ctx context.Context, id int64, balance decimal.Decimal, status tax.FilingStatus) error
	InsertPayment(ctx context.Context, p tax.Payment, balanceAfter decimal.Decimal, status tax.FilingStatus) (tax.Payment, error)
	FindPaymentByTransaction(ctx context.Context, transactionID, filingID int64) (tax.Payment, error)
	HardDeletePayment(ctx context.Context, paymentID int64) error
}

// ExplanationStore persists explanation headers and lines.
type ExplanationStore interface {
	InsertExplanation(ctx context.Context, e Explanation) (Explanation, error)
	GetExplanation(ctx context.Context, id int64) (Explanation, error)
	SoftDeleteExplanation(ctx context.Context, id int64) error
}

// Store is the composite unit-of-work port: every mutation of an explain or
// unexplain call flows through one Store bound to a single transaction.
type Store struct {
	Banking      BankingStore
	Ledger       LedgerStore
	Invoices     InvoiceStore
	Payrolls     PayrollStore
	Tax          TaxStore
	Explanations ExplanationStore
}

// RepositoryPort opens units of work for the reconciliation service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, Store) error) error
	GetTransaction(ctx context.Context, id int64) (banking.Transaction, error)
	ListExplanations(ctx context.Context, transactionID int64) ([]Explanation, error)
}

// Repository composes the per-module transactional stores over one pgx
// transaction, so journal postings, document updates, the explanation record,
// and the bank balance all commit or roll back together.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, Store) error) error {
	if r == nil {
		return errors.New("reconcile repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		store := Store{
			Banking:      banking.NewTxStore(tx),
			Ledger:       ledger.NewTxStore(tx),
			Invoices:     invoices.NewTxStore(tx),
			Payrolls:     payroll.NewTxStore(tx),
			Tax:          tax.NewTxStore(tx),
			Explanations: &explanationTxStore{tx: tx},
		}
		return fn(ctx, store)
	})
}

// GetTransaction loads one transaction outside a unit of work.
func (r *Repository) GetTransaction(ctx context.Context, id int64) (banking.Transaction, error) {
	return banking.NewRepository(r.pool).GetTransaction(ctx, id)
}

// ListExplanations returns all non-deleted explanations with their lines.
func (r *Repository) ListExplanations(ctx context.Context, transactionID int64) ([]Explanation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+explanationColumns+` FROM explanations
WHERE transaction_id=$1 AND NOT deleted ORDER BY id ASC`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Explanation
	for rows.Next() {
		e, err := scanExplanation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		lines, err := queryLines(ctx, r.pool, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Lines = lines
	}
	return out, nil
}
