package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/platform/db"
)

// TxStore runs journal statements inside a caller-owned transaction so that
// postings commit atomically with the document mutations that caused them.
type TxStore struct {
	tx pgx.Tx
}

// NewTxStore wraps an open transaction.
func NewTxStore(tx pgx.Tx) *TxStore {
	return &TxStore{tx: tx}
}

// InsertJournal persists a journal header plus its lines.
func (s *TxStore) InsertJournal(ctx context.Context, in PostingInput) (Journal, error) {
	if err := in.Validate(); err != nil {
		return Journal{}, err
	}
	var journal Journal
	journal.Date = in.Date
	journal.ReferenceType = in.ReferenceType
	journal.ReferenceID = in.ReferenceID
	journal.TransactionID = in.TransactionID
	journal.SourceID = in.SourceID
	journal.Memo = in.Memo
	journal.ReversalOf = in.ReversalOf
	err := s.tx.QueryRow(ctx, `INSERT INTO journals (date, reference_type, reference_id, transaction_id, source_id, memo, reversal_of)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at, updated_at`,
		in.Date, in.ReferenceType, in.ReferenceID, in.TransactionID, in.SourceID, in.Memo, in.ReversalOf).
		Scan(&journal.ID, &journal.CreatedAt, &journal.UpdatedAt)
	if err != nil {
		return Journal{}, err
	}
	for _, line := range in.Lines {
		var inserted JournalLine
		inserted.JournalID = journal.ID
		inserted.Category = line.Category
		inserted.Debit = line.Debit
		inserted.Credit = line.Credit
		inserted.ExchangeRate = line.ExchangeRate
		err := s.tx.QueryRow(ctx, `INSERT INTO journal_lines (journal_id, category, debit, credit, exchange_rate)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`,
			journal.ID, line.Category, line.Debit, line.Credit, line.ExchangeRate).
			Scan(&inserted.ID, &inserted.CreatedAt, &inserted.UpdatedAt)
		if err != nil {
			return Journal{}, err
		}
		journal.Lines = append(journal.Lines, inserted)
	}
	return journal, nil
}

// GetJournalWithLines loads a journal and all of its lines, deleted included.
func (s *TxStore) GetJournalWithLines(ctx context.Context, id int64) (Journal, error) {
	return scanJournalWithLines(ctx, s.tx, id)
}

// FindByReference returns the most recent journal for a transaction matching
// one of the supplied reference types.
func (s *TxStore) FindByReference(ctx context.Context, transactionID int64, refTypes ...ReferenceType) (Journal, error) {
	if len(refTypes) == 0 {
		return Journal{}, errors.New("ledger: reference types required")
	}
	types := make([]string, 0, len(refTypes))
	for _, t := range refTypes {
		types = append(types, string(t))
	}
	var id int64
	err := s.tx.QueryRow(ctx, `SELECT id FROM journals WHERE transaction_id=$1 AND reference_type = ANY($2) ORDER BY id DESC LIMIT 1`,
		transactionID, types).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, ErrJournalNotFound
		}
		return Journal{}, err
	}
	return s.GetJournalWithLines(ctx, id)
}

// SoftDeleteLines marks every live line of a journal deleted.
func (s *TxStore) SoftDeleteLines(ctx context.Context, journalID int64) error {
	cmd, err := s.tx.Exec(ctx, `UPDATE journal_lines SET deleted=TRUE, updated_at=NOW() WHERE journal_id=$1 AND NOT deleted`, journalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyReversed
	}
	return nil
}

// Repository persists journals outside of reconciliation units of work.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn against a TxStore within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, *TxStore) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxStore(tx))
	})
}

// GetJournalWithLines loads a journal without opening a transaction.
func (r *Repository) GetJournalWithLines(ctx context.Context, id int64) (Journal, error) {
	return scanJournalWithLines(ctx, r.pool, id)
}

// ListByTransaction returns every journal posted for a transaction, newest first.
func (r *Repository) ListByTransaction(ctx context.Context, transactionID int64) ([]Journal, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM journals WHERE transaction_id=$1 ORDER BY id DESC`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	journals := make([]Journal, 0, len(ids))
	for _, id := range ids {
		journal, err := r.GetJournalWithLines(ctx, id)
		if err != nil {
			return nil, err
		}
		journals = append(journals, journal)
	}
	return journals, nil
}

// Imbalance reports a journal whose live lines do not balance.
type Imbalance struct {
	JournalID int64
	Delta     decimal.Decimal
}

// ListImbalanced finds journals violating the balance invariant. A correct
// writer can never produce one; any hit is a programming fault.
func (r *Repository) ListImbalanced(ctx context.Context) ([]Imbalance, error) {
	rows, err := r.pool.Query(ctx, `SELECT journal_id, SUM(debit) - SUM(credit) AS delta
FROM journal_lines WHERE NOT deleted GROUP BY journal_id HAVING SUM(debit) <> SUM(credit) ORDER BY journal_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Imbalance
	for rows.Next() {
		var im Imbalance
		if err := rows.Scan(&im.JournalID, &im.Delta); err != nil {
			return nil, err
		}
		out = append(out, im)
	}
	return out, rows.Err()
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanJournalWithLines(ctx context.Context, q queryer, id int64) (Journal, error) {
	var journal Journal
	err := q.QueryRow(ctx, `SELECT id, date, reference_type, reference_id, transaction_id, source_id, memo, reversal_of, created_at, updated_at
FROM journals WHERE id=$1`, id).
		Scan(&journal.ID, &journal.Date, &journal.ReferenceType, &journal.ReferenceID, &journal.TransactionID, &journal.SourceID, &journal.Memo, &journal.ReversalOf, &journal.CreatedAt, &journal.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, ErrJournalNotFound
		}
		return Journal{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, journal_id, category, debit, credit, exchange_rate, deleted, created_at, updated_at
FROM journal_lines WHERE journal_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return Journal{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.JournalID, &line.Category, &line.Debit, &line.Credit, &line.ExchangeRate, &line.Deleted, &line.CreatedAt, &line.UpdatedAt); err != nil {
			return Journal{}, err
		}
		journal.Lines = append(journal.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return Journal{}, err
	}
	return journal, nil
}
