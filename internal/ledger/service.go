package ledger

import (
	"context"
	"log/slog"
)

// Service exposes journal reads and the integrity scan. All journal writes go
// through reconciliation units of work; nothing here mutates the ledger.
type Service struct {
	repo   *Repository
	logger *slog.Logger
}

// NewService constructs the journal service.
func NewService(repo *Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// GetJournal loads one journal with all its lines.
func (s *Service) GetJournal(ctx context.Context, id int64) (Journal, error) {
	return s.repo.GetJournalWithLines(ctx, id)
}

// ListByTransaction returns every journal posted for a transaction.
func (s *Service) ListByTransaction(ctx context.Context, transactionID int64) ([]Journal, error) {
	return s.repo.ListByTransaction(ctx, transactionID)
}

// VerifyIntegrity scans live journal lines for balance violations and logs
// every hit. The caller decides whether to alert.
func (s *Service) VerifyIntegrity(ctx context.Context) ([]Imbalance, error) {
	imbalances, err := s.repo.ListImbalanced(ctx)
	if err != nil {
		return nil, err
	}
	for _, im := range imbalances {
		s.logger.Error("journal imbalance detected",
			slog.Int64("journal_id", im.JournalID),
			slog.String("delta", im.Delta.String()))
	}
	return imbalances, nil
}
