package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/impetus-erp/impetus-erp/internal/app"
	"github.com/impetus-erp/impetus-erp/internal/bom"
	"github.com/impetus-erp/impetus-erp/internal/finance"
	jobmetrics "github.com/impetus-erp/impetus-erp/internal/jobs"
	"github.com/impetus-erp/impetus-erp/internal/platform/db"
	"github.com/impetus-erp/impetus-erp/internal/purchasing"
	"github.com/impetus-erp/impetus-erp/internal/shared"
	"github.com/impetus-erp/impetus-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	metrics := jobmetrics.NewMetrics(nil)

	purchasingService := purchasing.NewService(purchasing.NewRepository(pool), bom.NewRepository(pool), auditLogger)
	financeService := finance.NewService(finance.NewRepository(pool), purchasingService, auditLogger)

	paymentsTask, err := jobs.NewPaymentsDueTask(time.Now())
	if err != nil {
		logger.Error("build payments task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(30 * 24 * time.Hour)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPaymentsDue, Handler: jobs.NewPaymentsDueHandler(financeService, logger, metrics)},
			{Type: jobs.TaskIdempotencyCleanup, Handler: jobs.NewIdempotencyCleanupHandler(idempotencyStore, logger, metrics)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 6 * * *", Task: paymentsTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 3 * * 0", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
