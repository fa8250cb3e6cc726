package payroll

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const payrollColumns = `id, employee_id, reference, amount, due_amount, status, deleted, created_at, updated_at`

// TxStore runs payroll statements inside a caller-owned transaction.
type TxStore struct {
	tx pgx.Tx
}

// NewTxStore wraps an open transaction.
func NewTxStore(tx pgx.Tx) *TxStore {
	return &TxStore{tx: tx}
}

func (s *TxStore) scanPayroll(row pgx.Row) (Payroll, error) {
	var p Payroll
	err := row.Scan(&p.ID, &p.EmployeeID, &p.Reference, &p.Amount, &p.DueAmount, &p.Status, &p.Deleted, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payroll{}, ErrPayrollNotFound
		}
		return Payroll{}, err
	}
	return p, nil
}

// GetPayrollForUpdate row-locks one payroll run.
func (s *TxStore) GetPayrollForUpdate(ctx context.Context, id int64) (Payroll, error) {
	return s.scanPayroll(s.tx.QueryRow(ctx, `SELECT `+payrollColumns+` FROM payrolls WHERE id=$1 AND NOT deleted FOR UPDATE`, id))
}

// ListPayrollsForUpdate row-locks the requested payrolls in id order so that
// the tie-break loop walks them deterministically.
func (s *TxStore) ListPayrollsForUpdate(ctx context.Context, ids []int64) ([]Payroll, error) {
	rows, err := s.tx.Query(ctx, `SELECT `+payrollColumns+` FROM payrolls WHERE id = ANY($1) AND NOT deleted ORDER BY id ASC FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payroll
	for rows.Next() {
		p, err := s.scanPayroll(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) != len(ids) {
		return nil, ErrPayrollNotFound
	}
	return out, nil
}

// UpdatePayrollDue writes a new due remainder and status.
func (s *TxStore) UpdatePayrollDue(ctx context.Context, id int64, due decimal.Decimal, status Status) error {
	cmd, err := s.tx.Exec(ctx, `UPDATE payrolls SET due_amount=$2, status=$3, updated_at=NOW() WHERE id=$1 AND NOT deleted`, id, due, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPayrollNotFound
	}
	return nil
}

// InsertAllocation creates the transaction↔payroll join row.
func (s *TxStore) InsertAllocation(ctx context.Context, in Allocation) (Allocation, error) {
	err := s.tx.QueryRow(ctx, `INSERT INTO payroll_allocations (transaction_id, payroll_id, amount, journal_id)
VALUES ($1,$2,$3,$4) RETURNING id, created_at, updated_at`,
		in.TransactionID, in.PayrollID, in.Amount, in.JournalID).
		Scan(&in.ID, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		return Allocation{}, err
	}
	return in, nil
}

// FindAllocation locates the live join row for a transaction/payroll pair.
func (s *TxStore) FindAllocation(ctx context.Context, transactionID, payrollID int64) (Allocation, error) {
	var a Allocation
	err := s.tx.QueryRow(ctx, `SELECT id, transaction_id, payroll_id, amount, journal_id, deleted, created_at, updated_at
FROM payroll_allocations WHERE transaction_id=$1 AND payroll_id=$2 AND NOT deleted ORDER BY id DESC LIMIT 1`,
		transactionID, payrollID).
		Scan(&a.ID, &a.TransactionID, &a.PayrollID, &a.Amount, &a.JournalID, &a.Deleted, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Allocation{}, ErrAllocationNotFound
		}
		return Allocation{}, err
	}
	return a, nil
}

// SoftDeleteAllocation marks a join row deleted during reversal.
func (s *TxStore) SoftDeleteAllocation(ctx context.Context, id int64) error {
	cmd, err := s.tx.Exec(ctx, `UPDATE payroll_allocations SET deleted=TRUE, updated_at=NOW() WHERE id=$1 AND NOT deleted`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAllocationNotFound
	}
	return nil
}
