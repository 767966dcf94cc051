package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/homeledger/homeledger/internal/checkin"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeDailyCheckin triggers the daily check-in pass.
	TaskTypeDailyCheckin = "checkin:daily"
)

// DailyCheckinPayload carries the logical day of the run; empty means "now".
type DailyCheckinPayload struct {
	Date string `json:"date,omitempty"`
}

// NewDailyCheckinTask constructs an Asynq task.
func NewDailyCheckinTask(payload DailyCheckinPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDailyCheckin, data), nil
}

// NewDailyCheckinHandler builds the handler for TaskTypeDailyCheckin tasks.
// The check-in's own latch makes redelivery harmless.
func NewDailyCheckinHandler(service *checkin.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload DailyCheckinPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		now := time.Now()
		if payload.Date != "" {
			parsed, err := time.Parse("2006-01-02", payload.Date)
			if err != nil {
				return asynq.SkipRetry
			}
			now = parsed
		}
		result, err := service.Run(ctx, now)
		if err != nil {
			return err
		}
		logger.Info("daily check-in task done",
			slog.Bool("ran", result.Ran),
			slog.Int("recurring_posted", result.RecurringPosted),
			slog.Int("reminders", len(result.Reminders)))
		return nil
	}
}
