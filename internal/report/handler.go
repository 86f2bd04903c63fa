package report

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/impetus-erp/impetus-erp/internal/platform/httpx"
)

// Handler manages report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a report handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.handlePing)
	r.Get("/compras/{solicitudID}", h.handlePurchaseDocument)
	r.Get("/compras/{solicitudID}/pdf", h.handlePurchasePDF)
	r.Get("/compras", h.handlePurchaseBatch)
	r.Get("/entregas/{solicitudID}", h.handleDeliveryDocument)
	r.Get("/entregas/{solicitudID}/pdf", h.handleDeliveryPDF)
}

func (h *Handler) handlePing(w http.ResponseWriter, r *http.Request) {
	if err := h.service.pdf.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "gotenberg no disponible")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handlePurchaseDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "solicitudID")
	if !ok {
		return
	}
	doc, err := h.service.PurchaseDocument(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

// handlePurchaseBatch renders several requests at once via
// ?ids=1,2,3 and returns the grand total over all of them.
func (h *Handler) handlePurchaseBatch(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ids")
	if raw == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "parámetro ids requerido")
		return
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "ids inválidos")
			return
		}
		ids = append(ids, id)
	}
	batch, err := h.service.PurchaseBatch(r.Context(), ids)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) handlePurchasePDF(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "solicitudID")
	if !ok {
		return
	}
	pdf, err := h.service.PurchasePDF(r.Context(), id)
	if err != nil {
		h.logger.Error("render solicitud pdf", slog.Int64("solicitud", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	servePDF(w, "solicitud-"+strconv.FormatInt(id, 10)+".pdf", pdf)
}

func (h *Handler) handleDeliveryDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "solicitudID")
	if !ok {
		return
	}
	doc, err := h.service.DeliveryDocument(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) handleDeliveryPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "solicitudID")
	if !ok {
		return
	}
	pdf, err := h.service.DeliveryPDF(r.Context(), id)
	if err != nil {
		h.logger.Error("render entrega pdf", slog.Int64("solicitud", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	servePDF(w, "entrega-"+strconv.FormatInt(id, 10)+".pdf", pdf)
}

func servePDF(w http.ResponseWriter, filename string, pdf []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", name+" inválido")
		return 0, false
	}
	return id, true
}
