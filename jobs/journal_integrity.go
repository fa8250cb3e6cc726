package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/observability"
)

// NewJournalIntegrityTask constructs the scheduled integrity-scan task. The
// payload is empty; the scan always covers every live journal.
func NewJournalIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskJournalIntegrity, nil)
}

// MakeJournalIntegrityHandler runs the balance scan and counts every hit.
// The scan never fails the task over imbalances alone: they are a data
// problem to alert on, not a job to retry.
func MakeJournalIntegrityHandler(service *ledger.Service, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		imbalances, err := service.VerifyIntegrity(ctx)
		if err != nil {
			return err
		}
		for range imbalances {
			if metrics != nil {
				metrics.CountImbalance()
			}
		}
		logger.Info("journal integrity scan complete",
			slog.Int("imbalances", len(imbalances)))
		return nil
	}
}
