package approval

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/impetus-erp/impetus-erp/internal/authz"
	"github.com/impetus-erp/impetus-erp/internal/platform/httpx"
	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// Handler manages approval endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: mw}
}

// MountRoutes registers approval routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Get("/solicitud/{solicitudID}", h.handleGetBySolicitud)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.RoleCompras))
		r.Post("/solicitud/{solicitudID}/enviar", h.handleSend)
		r.Post("/solicitud/{solicitudID}/sincronizar", h.handleRefresh)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.RoleFinanzas))
		r.Patch("/{id}/lineas/{lineID}", h.handleDecide)
	})
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	solicitudID, ok := pathID(w, r, "solicitudID")
	if !ok {
		return
	}
	a, err := h.service.Send(r.Context(), shared.ActorFromContext(r.Context()), solicitudID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toApprovalDTO(a))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	solicitudID, ok := pathID(w, r, "solicitudID")
	if !ok {
		return
	}
	pendingOnly := r.URL.Query().Get("solo_pendientes") == "true"
	a, err := h.service.Refresh(r.Context(), shared.ActorFromContext(r.Context()), solicitudID, pendingOnly)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toApprovalDTO(a))
}

type decideRequest struct {
	Estado      string  `json:"estado_aprobacion"`
	Observacion *string `json:"observacion_finanzas"`
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	lineID, ok := pathID(w, r, "lineID")
	if !ok {
		return
	}
	var req decideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "cuerpo JSON inválido")
		return
	}
	line, err := h.service.Decide(r.Context(), shared.ActorFromContext(r.Context()), id, lineID, DecideInput{
		Estado:      Decision(req.Estado),
		Observacion: req.Observacion,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLineDTO(line))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	a, lines, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDetailDTO(a, lines))
}

func (h *Handler) handleGetBySolicitud(w http.ResponseWriter, r *http.Request) {
	solicitudID, ok := pathID(w, r, "solicitudID")
	if !ok {
		return
	}
	a, lines, err := h.service.GetBySolicitud(r.Context(), solicitudID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDetailDTO(a, lines))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	items, pagination, err := h.service.List(r.Context(), ListFilter{
		Estado:  r.URL.Query().Get("estado"),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		h.logger.Error("listar aprobaciones", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	dtos := make([]approvalDTO, 0, len(items))
	for _, a := range items {
		dtos = append(dtos, toApprovalDTO(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": dtos, "pagination": pagination})
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", name+" inválido")
		return 0, false
	}
	return id, true
}

type approvalDTO struct {
	ID          int64  `json:"id"`
	SolicitudID int64  `json:"solicitud_id"`
	Estado      string `json:"estado"`
	EnviadoPor  int64  `json:"enviado_por"`
	EnviadoEn   string `json:"enviado_en"`
}

type lineDTO struct {
	ID                  int64  `json:"id"`
	PurchaseLineID      int64  `json:"linea_compra_id"`
	Codigo              string `json:"codigo,omitempty"`
	Descripcion         string `json:"descripcion"`
	Unidad              string `json:"unidad,omitempty"`
	Cantidad            string `json:"cantidad"`
	ValorUnidad         string `json:"valor_unidad,omitempty"`
	ValorTotal          string `json:"valor_total,omitempty"`
	Proveedor           string `json:"proveedor,omitempty"`
	Observaciones       string `json:"observaciones,omitempty"`
	EstadoAprobacion    string `json:"estado_aprobacion"`
	ObservacionFinanzas string `json:"observacion_finanzas,omitempty"`
	DecididoPor         *int64 `json:"decidido_por,omitempty"`
	DecididoEn          string `json:"decidido_en,omitempty"`
}

type detailDTO struct {
	approvalDTO
	Lineas []lineDTO `json:"lineas"`
}

func toApprovalDTO(a Approval) approvalDTO {
	return approvalDTO{
		ID:          a.ID,
		SolicitudID: a.SolicitudID,
		Estado:      string(a.Estado),
		EnviadoPor:  a.EnviadoPor,
		EnviadoEn:   a.EnviadoEn.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toLineDTO(l Line) lineDTO {
	dto := lineDTO{
		ID:                  l.ID,
		PurchaseLineID:      l.PurchaseLineID,
		Codigo:              l.Codigo,
		Descripcion:         l.Descripcion,
		Unidad:              l.Unidad,
		Cantidad:            l.Cantidad.StringFixed(3),
		Proveedor:           l.Proveedor,
		Observaciones:       l.Observaciones,
		EstadoAprobacion:    string(l.EstadoAprobacion),
		ObservacionFinanzas: l.ObservacionFinanzas,
		DecididoPor:         l.DecididoPor,
	}
	if l.ValorUnidad != nil {
		dto.ValorUnidad = l.ValorUnidad.StringFixed(2)
	}
	if l.ValorTotal != nil {
		dto.ValorTotal = l.ValorTotal.StringFixed(2)
	}
	if l.DecididoEn != nil {
		dto.DecididoEn = l.DecididoEn.Format("2006-01-02T15:04:05Z07:00")
	}
	return dto
}

func toDetailDTO(a Approval, lines []Line) detailDTO {
	dtos := make([]lineDTO, 0, len(lines))
	for _, l := range lines {
		dtos = append(dtos, toLineDTO(l))
	}
	return detailDTO{approvalDTO: toApprovalDTO(a), Lineas: dtos}
}
