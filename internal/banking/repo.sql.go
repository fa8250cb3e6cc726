package banking

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/shared"
)

const transactionColumns = `id, bank_account_id, amount, due_amount, flag, status, date, description,
exchange_rate, explained_category, contact_id, attachment_ref, deleted, created_at, updated_at`

const accountColumns = `id, name, account_number, currency, kind, current_balance, deleted, created_at, updated_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.BankAccountID, &t.Amount, &t.DueAmount, &t.Flag, &t.Status, &t.Date, &t.Description,
		&t.ExchangeRate, &t.ExplainedCategory, &t.ContactID, &t.AttachmentRef, &t.Deleted, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	return t, nil
}

func scanAccount(row pgx.Row) (BankAccount, error) {
	var a BankAccount
	err := row.Scan(&a.ID, &a.Name, &a.AccountNumber, &a.Currency, &a.Kind, &a.CurrentBalance, &a.Deleted, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BankAccount{}, ErrAccountNotFound
		}
		return BankAccount{}, err
	}
	return a, nil
}

// TxStore runs banking statements inside a caller-owned transaction.
type TxStore struct {
	tx pgx.Tx
}

// NewTxStore wraps an open transaction.
func NewTxStore(tx pgx.Tx) *TxStore {
	return &TxStore{tx: tx}
}

// GetTransactionForUpdate row-locks a transaction for the explain/unexplain
// critical section.
func (s *TxStore) GetTransactionForUpdate(ctx context.Context, id int64) (Transaction, error) {
	return scanTransaction(s.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM bank_transactions WHERE id=$1 FOR UPDATE`, id))
}

// InsertTransaction creates a transaction from import or manual entry.
// DueAmount starts equal to Amount and the status at NOT_EXPLAINED.
func (s *TxStore) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	if err := t.Validate(); err != nil {
		return Transaction{}, err
	}
	t.DueAmount = t.Amount
	t.Status = StatusNotExplained
	err := s.tx.QueryRow(ctx, `INSERT INTO bank_transactions
(bank_account_id, amount, due_amount, flag, status, date, description, exchange_rate)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at, updated_at`,
		t.BankAccountID, t.Amount, t.DueAmount, t.Flag, t.Status, t.Date, t.Description, t.ExchangeRate).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// UpdateExplained writes the explanation-derived fields after an explain.
func (s *TxStore) UpdateExplained(ctx context.Context, t Transaction) error {
	cmd, err := s.tx.Exec(ctx, `UPDATE bank_transactions SET amount=$2, due_amount=$3, status=$4, description=$5,
exchange_rate=$6, explained_category=$7, contact_id=$8, attachment_ref=$9, updated_at=NOW() WHERE id=$1 AND NOT deleted`,
		t.ID, t.Amount, t.DueAmount, t.Status, t.Description, t.ExchangeRate, t.ExplainedCategory, t.ContactID, t.AttachmentRef)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// ClearExplanation nulls the explanation-derived fields and restores the due
// remainder after a reversal.
func (s *TxStore) ClearExplanation(ctx context.Context, id int64, due decimal.Decimal, status ExplanationStatus) error {
	cmd, err := s.tx.Exec(ctx, `UPDATE bank_transactions SET due_amount=$2, status=$3, explained_category=NULL,
contact_id=NULL, attachment_ref=NULL, updated_at=NOW() WHERE id=$1 AND NOT deleted`, id, due, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// SoftDeleteTransaction marks a transaction deleted without reversing its
// postings.
func (s *TxStore) SoftDeleteTransaction(ctx context.Context, id int64) error {
	cmd, err := s.tx.Exec(ctx, `UPDATE bank_transactions SET deleted=TRUE, updated_at=NOW() WHERE id=$1 AND NOT deleted`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// GetAccountForUpdate row-locks the bank account so concurrent balance
// updates serialise per account.
func (s *TxStore) GetAccountForUpdate(ctx context.Context, id int64) (BankAccount, error) {
	return scanAccount(s.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM bank_accounts WHERE id=$1 AND NOT deleted FOR UPDATE`, id))
}

// UpdateAccountBalance writes the new running balance.
func (s *TxStore) UpdateAccountBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	cmd, err := s.tx.Exec(ctx, `UPDATE bank_accounts SET current_balance=$2, updated_at=NOW() WHERE id=$1 AND NOT deleted`, id, balance)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// FindAccountByName resolves transfer targets that are the firm's own bank or
// petty-cash accounts.
func (s *TxStore) FindAccountByName(ctx context.Context, name string) (BankAccount, error) {
	return scanAccount(s.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM bank_accounts WHERE name=$1 AND NOT deleted`, name))
}

// Repository serves pool-level banking reads.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetTransaction loads one transaction.
func (r *Repository) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM bank_transactions WHERE id=$1`, id))
}

// GetAccount loads one bank account.
func (r *Repository) GetAccount(ctx context.Context, id int64) (BankAccount, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM bank_accounts WHERE id=$1 AND NOT deleted`, id))
}

// ListFilter narrows transaction listings.
type ListFilter struct {
	BankAccountID int64
	Status        ExplanationStatus
	Pagination    shared.Pagination
}

// ListTransactions returns non-deleted transactions matching the filter,
// newest first.
func (r *Repository) ListTransactions(ctx context.Context, filter ListFilter) ([]Transaction, int, error) {
	where := ` WHERE NOT deleted`
	var args []any
	if filter.BankAccountID != 0 {
		args = append(args, filter.BankAccountID)
		where += fmt.Sprintf(` AND bank_account_id=$%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(` AND status=$%d`, len(args))
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bank_transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page := shared.NewPagination(filter.Pagination.Page, filter.Pagination.PerPage, total)
	query := `SELECT ` + transactionColumns + ` FROM bank_transactions` + where +
		fmt.Sprintf(` ORDER BY date DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, page.PerPage, page.Offset())
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// CountExplained reports how many transactions reached FULL for an account.
func (r *Repository) CountExplained(ctx context.Context, bankAccountID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bank_transactions WHERE bank_account_id=$1 AND status=$2 AND NOT deleted`,
		bankAccountID, StatusFull).Scan(&count)
	return count, err
}
