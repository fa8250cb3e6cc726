package invoices

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const invoiceColumns = `id, number, kind, contact_id, currency, total_amount, due_amount, status, deleted, created_at, updated_at`

// TxStore runs invoice statements inside a caller-owned transaction.
type TxStore struct {
	tx pgx.Tx
}

// NewTxStore wraps an open transaction.
func NewTxStore(tx pgx.Tx) *TxStore {
	return &TxStore{tx: tx}
}

// GetInvoiceForUpdate row-locks an invoice for a due-amount mutation.
func (s *TxStore) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	var inv Invoice
	err := s.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1 AND NOT deleted FOR UPDATE`, id).
		Scan(&inv.ID, &inv.Number, &inv.Kind, &inv.ContactID, &inv.Currency, &inv.TotalAmount, &inv.DueAmount, &inv.Status, &inv.Deleted, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

// UpdateInvoiceDue writes a new due remainder and status.
func (s *TxStore) UpdateInvoiceDue(ctx context.Context, id int64, due decimal.Decimal, status Status) error {
	cmd, err := s.tx.Exec(ctx, `UPDATE invoices SET due_amount=$2, status=$3, updated_at=NOW() WHERE id=$1 AND NOT deleted`, id, due, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// GetCreditNoteForUpdate row-locks a credit note.
func (s *TxStore) GetCreditNoteForUpdate(ctx context.Context, id int64) (CreditNote, error) {
	var cn CreditNote
	err := s.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM credit_notes WHERE id=$1 AND NOT deleted FOR UPDATE`, id).
		Scan(&cn.ID, &cn.Number, &cn.Kind, &cn.ContactID, &cn.Currency, &cn.TotalAmount, &cn.DueAmount, &cn.Status, &cn.Deleted, &cn.CreatedAt, &cn.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CreditNote{}, ErrCreditNoteNotFound
		}
		return CreditNote{}, err
	}
	return cn, nil
}

// UpdateCreditNoteDue writes a new due remainder and status.
func (s *TxStore) UpdateCreditNoteDue(ctx context.Context, id int64, due decimal.Decimal, status Status) error {
	cmd, err := s.tx.Exec(ctx, `UPDATE credit_notes SET due_amount=$2, status=$3, updated_at=NOW() WHERE id=$1 AND NOT deleted`, id, due, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCreditNoteNotFound
	}
	return nil
}

// InsertSettlement creates the transaction↔document join row.
func (s *TxStore) InsertSettlement(ctx context.Context, in Settlement) (Settlement, error) {
	err := s.tx.QueryRow(ctx, `INSERT INTO settlements (transaction_id, document_id, kind, amount)
VALUES ($1,$2,$3,$4) RETURNING id, created_at, updated_at`,
		in.TransactionID, in.DocumentID, in.Kind, in.Amount).
		Scan(&in.ID, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		return Settlement{}, err
	}
	return in, nil
}

// FindSettlement locates the live join row for one transaction/document pair.
func (s *TxStore) FindSettlement(ctx context.Context, transactionID, documentID int64, kind SettlementKind) (Settlement, error) {
	var st Settlement
	err := s.tx.QueryRow(ctx, `SELECT id, transaction_id, document_id, kind, amount, deleted, created_at, updated_at
FROM settlements WHERE transaction_id=$1 AND document_id=$2 AND kind=$3 AND NOT deleted ORDER BY id DESC LIMIT 1`,
		transactionID, documentID, kind).
		Scan(&st.ID, &st.TransactionID, &st.DocumentID, &st.Kind, &st.Amount, &st.Deleted, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Settlement{}, ErrSettlementNotFound
		}
		return Settlement{}, err
	}
	return st, nil
}

// SoftDeleteSettlement marks a join row deleted during reversal.
func (s *TxStore) SoftDeleteSettlement(ctx context.Context, id int64) error {
	cmd, err := s.tx.Exec(ctx, `UPDATE settlements SET deleted=TRUE, updated_at=NOW() WHERE id=$1 AND NOT deleted`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSettlementNotFound
	}
	return nil
}
