package tax

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TxStore runs tax statements inside a caller-owned transaction.
type TxStore struct {
	tx pgx.Tx
}

// NewTxStore wraps an open transaction.
func NewTxStore(tx pgx.Tx) *TxStore {
	return &TxStore{tx: tx}
}

// GetFilingForUpdate row-locks a filing for a balance mutation.
func (s *TxStore) GetFilingForUpdate(ctx context.Context, id int64) (Filing, error) {
	var f Filing
	err := s.tx.QueryRow(ctx, `SELECT id, kind, period_label, total_amount, balance_due, status, reclaimable, created_at, updated_at
FROM tax_filings WHERE id=$1 FOR UPDATE`, id).
		Scan(&f.ID, &f.Kind, &f.PeriodLabel, &f.TotalAmount, &f.BalanceDue, &f.Status, &f.Reclaimable, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Filing{}, ErrFilingNotFound
		}
		return Filing{}, err
	}
	return f, nil
}

// UpdateFilingBalance writes a new balance and status.
func (s *TxStore) UpdateFilingBalance(ctx context.Context, id int64, balance decimal.Decimal, status FilingStatus) error {
	cmd, err := s.tx.Exec(ctx, `UPDATE tax_filings SET balance_due=$2, status=$3, updated_at=NOW() WHERE id=$1`, id, balance, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrFilingNotFound
	}
	return nil
}

// InsertPayment writes the payment plus its history row.
func (s *TxStore) InsertPayment(ctx context.Context, p Payment, balanceAfter decimal.Decimal, status FilingStatus) (Payment, error) {
	err := s.tx.QueryRow(ctx, `INSERT INTO tax_payments (filing_id, transaction_id, amount)
VALUES ($1,$2,$3) RETURNING id, created_at`, p.FilingID, p.TransactionID, p.Amount).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return Payment{}, err
	}
	_, err = s.tx.Exec(ctx, `INSERT INTO tax_payment_history (payment_id, filing_id, amount, balance_after, status)
VALUES ($1,$2,$3,$4,$5)`, p.ID, p.FilingID, p.Amount, balanceAfter, status)
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}

// FindPaymentByTransaction locates the payment a transaction created for a
// filing.
func (s *TxStore) FindPaymentByTransaction(ctx context.Context, transactionID, filingID int64) (Payment, error) {
	var p Payment
	err := s.tx.QueryRow(ctx, `SELECT id, filing_id, transaction_id, amount, created_at
FROM tax_payments WHERE transaction_id=$1 AND filing_id=$2 ORDER BY id DESC LIMIT 1`, transactionID, filingID).
		Scan(&p.ID, &p.FilingID, &p.TransactionID, &p.Amount, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, ErrPaymentNotFound
		}
		return Payment{}, err
	}
	return p, nil
}

// HardDeletePayment removes the payment and its history rows. These carry no
// further referential need once the filing balance is restored.
func (s *TxStore) HardDeletePayment(ctx context.Context, paymentID int64) error {
	if _, err := s.tx.Exec(ctx, `DELETE FROM tax_payment_history WHERE payment_id=$1`, paymentID); err != nil {
		return err
	}
	cmd, err := s.tx.Exec(ctx, `DELETE FROM tax_payments WHERE id=$1`, paymentID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}
