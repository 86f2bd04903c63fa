package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/impetus-erp/impetus-erp/internal/finance"
	jobmetrics "github.com/impetus-erp/impetus-erp/internal/jobs"
)

// PaymentsDuePayload carries scheduling metadata.
type PaymentsDuePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewPaymentsDueTask constructs the daily payments scan task.
func NewPaymentsDueTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(PaymentsDuePayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentsDue, body, asynq.Queue(QueueDefault)), nil
}

// NewPaymentsDueHandler returns the handler that lists unpaid finance
// lines passing the payment gate today. The scan only reports; marking
// lines paid stays a human action.
func NewPaymentsDueHandler(svc *finance.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskPaymentsDue)
		var payload PaymentsDuePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		lines, err := svc.DueToday(ctx)
		if err != nil {
			return tracker.End(err)
		}
		for _, l := range lines {
			logger.Info("pago pendiente hoy",
				slog.Int64("linea", l.ID),
				slog.Int64("pago", l.FinanceID),
				slog.String("descripcion", l.Descripcion),
				slog.String("proveedor", l.Proveedor))
		}
		logger.Info("escaneo de pagos del día",
			slog.Int("lineas", len(lines)),
			slog.Time("programado", payload.ScheduledFor))
		return tracker.End(nil)
	}
}
