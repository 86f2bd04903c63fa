// Package jobs holds the asynq worker and the housekeeping tasks that
// run outside the request path.
package jobs

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPaymentsDue scans for finance lines payable today.
	TaskPaymentsDue = "finanzas:pagos_del_dia"
	// TaskIdempotencyCleanup prunes old idempotency keys.
	TaskIdempotencyCleanup = "mantenimiento:idempotencia"
)
