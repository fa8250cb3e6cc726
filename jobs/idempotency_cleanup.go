package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// TaskIdempotencyCleanup purges idempotency keys old enough that no client
// will retry with them.
const TaskIdempotencyCleanup = "reconcile:idempotency-cleanup"

// Keys are only consulted while a retry is plausible.
const idempotencyRetention = 48 * time.Hour

// NewIdempotencyCleanupTask constructs the scheduled cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}

// MakeIdempotencyCleanupHandler deletes expired idempotency keys.
func MakeIdempotencyCleanupHandler(store *shared.IdempotencyStore, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		if err := store.Cleanup(ctx, idempotencyRetention); err != nil {
			return err
		}
		logger.Info("idempotency cleanup complete")
		return nil
	}
}
