package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPaymentNotification confirms a settled invoice or bill to the
	// contact it belongs to.
	TaskPaymentNotification = "notify:payment"
	// TaskJournalIntegrity scans live journals for balance violations.
	TaskJournalIntegrity = "ledger:integrity"
)

// PaymentNotificationPayload carries the post-explain confirmation data.
type PaymentNotificationPayload struct {
	Kind      string `json:"kind"`
	ContactID int64  `json:"contact_id"`
	Amount    string `json:"amount"`
}

// NewPaymentNotificationTask constructs an Asynq task.
func NewPaymentNotificationTask(payload PaymentNotificationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentNotification, data), nil
}

// MakePaymentNotificationHandler processes TaskPaymentNotification tasks.
func MakePaymentNotificationHandler(logger *slog.Logger, sender NotificationSender) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PaymentNotificationPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if err := sender.Send(ctx, payload); err != nil {
			logger.Warn("payment notification delivery failed",
				slog.Int64("contact_id", payload.ContactID),
				slog.Any("error", err))
			return err
		}
		logger.Info("payment notification sent",
			slog.String("kind", payload.Kind),
			slog.Int64("contact_id", payload.ContactID))
		return nil
	}
}

// NotificationSender delivers a payment confirmation to a contact.
type NotificationSender interface {
	Send(ctx context.Context, payload PaymentNotificationPayload) error
}
