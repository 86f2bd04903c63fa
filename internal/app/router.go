package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/impetus-erp/impetus-erp/internal/approval"
	"github.com/impetus-erp/impetus-erp/internal/billing"
	"github.com/impetus-erp/impetus-erp/internal/bom"
	"github.com/impetus-erp/impetus-erp/internal/catalog"
	"github.com/impetus-erp/impetus-erp/internal/delivery"
	"github.com/impetus-erp/impetus-erp/internal/finance"
	"github.com/impetus-erp/impetus-erp/internal/inventory"
	"github.com/impetus-erp/impetus-erp/internal/observability"
	"github.com/impetus-erp/impetus-erp/internal/paw"
	"github.com/impetus-erp/impetus-erp/internal/purchasing"
	"github.com/impetus-erp/impetus-erp/internal/quotes"
	"github.com/impetus-erp/impetus-erp/internal/report"
	"github.com/impetus-erp/impetus-erp/internal/workorders"
	"github.com/impetus-erp/impetus-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	QuotesHandler     *quotes.Handler
	PawHandler        *paw.Handler
	WorkOrderHandler  *workorders.Handler
	BomHandler        *bom.Handler
	PurchasingHandler *purchasing.Handler
	ApprovalHandler   *approval.Handler
	FinanceHandler    *finance.Handler
	InventoryHandler  *inventory.Handler
	DeliveryHandler   *delivery.Handler
	BillingHandler    *billing.Handler
	CatalogHandler    *catalog.Handler
	ReportHandler     *report.Handler
	JobHandler        *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with Impetus defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/cotizaciones", params.QuotesHandler.MountRoutes)
	r.Route("/paw", params.PawHandler.MountRoutes)
	r.Route("/ordenes-trabajo", params.WorkOrderHandler.MountRoutes)
	r.Route("/bom", params.BomHandler.MountRoutes)
	r.Route("/compras", params.PurchasingHandler.MountRoutes)
	r.Route("/aprobaciones", params.ApprovalHandler.MountRoutes)
	r.Route("/finanzas", params.FinanceHandler.MountRoutes)
	r.Route("/inventario", params.InventoryHandler.MountRoutes)
	r.Route("/entregas", params.DeliveryHandler.MountRoutes)
	r.Route("/facturas", params.BillingHandler.MountRoutes)
	r.Route("/items", params.CatalogHandler.MountRoutes)
	r.Route("/reportes", params.ReportHandler.MountRoutes)
	if params.JobHandler != nil {
		r.Route("/trabajos", params.JobHandler.MountRoutes)
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
