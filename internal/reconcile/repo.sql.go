package reconcile

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

const explanationColumns = `id, transaction_id, paid_amount, balance_snapshot, category, contact_id, exchange_gain_loss, deleted, created_at, updated_at`

type rowQueryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanExplanation(row pgx.Row) (Explanation, error) {
	var e Explanation
	err := row.Scan(&e.ID, &e.TransactionID, &e.PaidAmount, &e.BalanceSnapshot, &e.Category, &e.ContactID, &e.ExchangeGainLoss, &e.Deleted, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Explanation{}, ErrExplanationNotFound
		}
		return Explanation{}, err
	}
	return e, nil
}

func queryLines(ctx context.Context, q rowQueryer, explanationID int64) ([]ExplanationLine, error) {
	rows, err := q.Query(ctx, `SELECT id, explanation_id, reference_type, reference_id, amount, converted, exchange_rate, partially_paid, journal_id, deleted, created_at
FROM explanation_lines WHERE explanation_id=$1 ORDER BY id ASC`, explanationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ExplanationLine
	for rows.Next() {
		var line ExplanationLine
		if err := rows.Scan(&line.ID, &line.ExplanationID, &line.ReferenceType, &line.ReferenceID, &line.Amount, &line.Converted, &line.ExchangeRate, &line.PartiallyPaid, &line.JournalID, &line.Deleted, &line.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

type explanationTxStore struct {
	tx pgx.Tx
}

func (s *explanationTxStore) InsertExplanation(ctx context.Context, e Explanation) (Explanation, error) {
	err := s.tx.QueryRow(ctx, `INSERT INTO explanations (transaction_id, paid_amount, balance_snapshot, category, contact_id, exchange_gain_loss)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, created_at, updated_at`,
		e.TransactionID, e.PaidAmount, e.BalanceSnapshot, e.Category, e.ContactID, e.ExchangeGainLoss).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Explanation{}, err
	}
	for i := range e.Lines {
		line := &e.Lines[i]
		line.ExplanationID = e.ID
		err := s.tx.QueryRow(ctx, `INSERT INTO explanation_lines (explanation_id, reference_type, reference_id, amount, converted, exchange_rate, partially_paid, journal_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at`,
			e.ID, line.ReferenceType, line.ReferenceID, line.Amount, line.Converted, line.ExchangeRate, line.PartiallyPaid, line.JournalID).
			Scan(&line.ID, &line.CreatedAt)
		if err != nil {
			return Explanation{}, err
		}
	}
	return e, nil
}

func (s *explanationTxStore) GetExplanation(ctx context.Context, id int64) (Explanation, error) {
	e, err := scanExplanation(s.tx.QueryRow(ctx, `SELECT `+explanationColumns+` FROM explanations WHERE id=$1 AND NOT deleted FOR UPDATE`, id))
	if err != nil {
		return Explanation{}, err
	}
	lines, err := queryLines(ctx, s.tx, e.ID)
	if err != nil {
		return Explanation{}, err
	}
	e.Lines = lines
	return e, nil
}

// SoftDeleteExplanation marks the header and every line deleted.
func (s *explanationTxStore) SoftDeleteExplanation(ctx context.Context, id int64) error {
	cmd, err := s.tx.Exec(ctx, `UPDATE explanations SET deleted=TRUE, updated_at=NOW() WHERE id=$1 AND NOT deleted`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrExplanationNotFound
	}
	_, err = s.tx.Exec(ctx, `UPDATE explanation_lines SET deleted=TRUE WHERE explanation_id=$1`, id)
	return err
}
