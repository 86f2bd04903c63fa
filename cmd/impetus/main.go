package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/impetus-erp/impetus-erp/internal/app"
	"github.com/impetus-erp/impetus-erp/internal/approval"
	"github.com/impetus-erp/impetus-erp/internal/authz"
	"github.com/impetus-erp/impetus-erp/internal/billing"
	"github.com/impetus-erp/impetus-erp/internal/bom"
	"github.com/impetus-erp/impetus-erp/internal/catalog"
	"github.com/impetus-erp/impetus-erp/internal/delivery"
	"github.com/impetus-erp/impetus-erp/internal/finance"
	"github.com/impetus-erp/impetus-erp/internal/inventory"
	"github.com/impetus-erp/impetus-erp/internal/observability"
	"github.com/impetus-erp/impetus-erp/internal/paw"
	"github.com/impetus-erp/impetus-erp/internal/platform/cache"
	"github.com/impetus-erp/impetus-erp/internal/platform/db"
	"github.com/impetus-erp/impetus-erp/internal/purchasing"
	"github.com/impetus-erp/impetus-erp/internal/quotes"
	"github.com/impetus-erp/impetus-erp/internal/report"
	"github.com/impetus-erp/impetus-erp/internal/shared"
	"github.com/impetus-erp/impetus-erp/internal/workorders"
	"github.com/impetus-erp/impetus-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, document cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	mw := authz.Middleware{Logger: logger, Policy: authz.Default()}

	quotesRepo := quotes.NewRepository(pool)
	quotesService := quotes.NewService(quotesRepo, auditLogger)
	quotesHandler := quotes.NewHandler(logger, quotesService, mw)

	pawRepo := paw.NewRepository(pool)
	pawService := paw.NewService(pawRepo, quotesService, auditLogger)
	pawHandler := paw.NewHandler(logger, pawService, mw)

	workOrderRepo := workorders.NewRepository(pool)
	workOrderService := workorders.NewService(workOrderRepo, auditLogger)
	workOrderHandler := workorders.NewHandler(logger, workOrderService, mw)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, auditLogger)
	catalogHandler := catalog.NewHandler(logger, catalogService, mw)

	bomRepo := bom.NewRepository(pool)
	purchasingRepo := purchasing.NewRepository(pool)
	purchasingService := purchasing.NewService(purchasingRepo, bomRepo, auditLogger)
	purchasingHandler := purchasing.NewHandler(logger, purchasingService, mw)

	bomService := bom.NewService(bomRepo, purchasingService, auditLogger)
	bomHandler := bom.NewHandler(logger, bomService, mw)

	approvalRepo := approval.NewRepository(pool)
	approvalService := approval.NewService(approvalRepo, purchasingService, auditLogger)
	approvalHandler := approval.NewHandler(logger, approvalService, mw)

	financeRepo := finance.NewRepository(pool)
	financeService := finance.NewService(financeRepo, purchasingService, auditLogger)
	financeHandler := finance.NewHandler(logger, financeService, mw)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, purchasingService, workOrderService, auditLogger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, mw)

	deliveryRepo := delivery.NewRepository(pool)
	deliveryService := delivery.NewService(deliveryRepo, purchasingService, auditLogger)
	deliveryHandler := delivery.NewHandler(logger, deliveryService, mw)

	billingRepo := billing.NewRepository(pool)
	billingService := billing.NewService(billingRepo, pawService, catalogService, auditLogger)
	billingHandler := billing.NewHandler(logger, billingService, mw)

	docCache := cache.NewDocumentCache(redisClient, cfg.DocumentCacheTTL)
	reportClient := report.NewClient(cfg.GotenbergURL)
	reportService := report.NewService(purchasingService, deliveryService, reportClient, docCache)
	reportHandler := report.NewHandler(logger, reportService)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		QuotesHandler:     quotesHandler,
		PawHandler:        pawHandler,
		WorkOrderHandler:  workOrderHandler,
		BomHandler:        bomHandler,
		PurchasingHandler: purchasingHandler,
		ApprovalHandler:   approvalHandler,
		FinanceHandler:    financeHandler,
		InventoryHandler:  inventoryHandler,
		DeliveryHandler:   deliveryHandler,
		BillingHandler:    billingHandler,
		CatalogHandler:    catalogHandler,
		ReportHandler:     reportHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
