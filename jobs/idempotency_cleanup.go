package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/impetus-erp/impetus-erp/internal/jobs"
	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// IdempotencyCleanupPayload sets the retention window.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask constructs the key pruning task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	body, err := json.Marshal(IdempotencyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// NewIdempotencyCleanupHandler prunes keys older than the retention
// window.
func NewIdempotencyCleanupHandler(store *shared.IdempotencyStore, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskIdempotencyCleanup)
		var payload IdempotencyCleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		if err := store.Cleanup(ctx, payload.Retention); err != nil {
			return tracker.End(err)
		}
		logger.Info("llaves de idempotencia depuradas",
			slog.Duration("retencion", payload.Retention))
		return tracker.End(nil)
	}
}
