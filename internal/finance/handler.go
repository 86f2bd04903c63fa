package finance

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/impetus-erp/impetus-erp/internal/authz"
	"github.com/impetus-erp/impetus-erp/internal/platform/httpx"
	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// Handler manages payment round endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: mw}
}

// MountRoutes registers finance routes. Decision fields are reserved
// to administration; the plain finance role only toggles the paid
// mark.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Get("/solicitud/{solicitudID}", h.handleGetBySolicitud)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.RoleCompras))
		r.Post("/solicitud/{solicitudID}/enviar", h.handleSend)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.RoleFinanzas))
		r.Post("/{id}/lineas/{lineID}/pagar", h.handleMarkPaid)
		r.Post("/{id}/lineas/{lineID}/despagar", h.handleUnmarkPaid)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.RoleAdmin))
		r.Patch("/{id}/lineas/{lineID}", h.handleDecision)
		r.Patch("/{id}", h.handleHeader)
	})
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	solicitudID, ok := pathID(w, r, "solicitudID")
	if !ok {
		return
	}
	round, err := h.service.Send(r.Context(), shared.ActorFromContext(r.Context()), solicitudID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoundDTO(round))
}

type decisionRequest struct {
	Estado          string  `json:"estado"`
	FechaProgramada *string `json:"fecha_programada"`
	NotaAdmin       *string `json:"nota_admin"`
}

func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	lineID, ok := pathID(w, r, "lineID")
	if !ok {
		return
	}
	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "cuerpo JSON inválido")
		return
	}
	line, err := h.service.MarkDecision(r.Context(), shared.ActorFromContext(r.Context()), id, lineID, DecisionInput{
		Estado:          Decision(req.Estado),
		FechaProgramada: req.FechaProgramada,
		NotaAdmin:       req.NotaAdmin,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.lineDTO(line))
}

func (h *Handler) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	lineID, ok := pathID(w, r, "lineID")
	if !ok {
		return
	}
	if !h.authz.AllowFields(r, authz.EntityFinanceLine, "pagado") {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "campo no editable para el rol")
		return
	}
	line, err := h.service.MarkPaid(r.Context(), shared.ActorFromContext(r.Context()), id, lineID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.lineDTO(line))
}

func (h *Handler) handleUnmarkPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	lineID, ok := pathID(w, r, "lineID")
	if !ok {
		return
	}
	if !h.authz.AllowFields(r, authz.EntityFinanceLine, "pagado") {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "campo no editable para el rol")
		return
	}
	line, err := h.service.UnmarkPaid(r.Context(), shared.ActorFromContext(r.Context()), id, lineID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.lineDTO(line))
}

type headerRequest struct {
	Estado string `json:"estado"`
}

func (h *Handler) handleHeader(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req headerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "cuerpo JSON inválido")
		return
	}
	round, err := h.service.SetHeaderStatus(r.Context(), shared.ActorFromContext(r.Context()), id, Status(req.Estado))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoundDTO(round))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	round, lines, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.detailDTO(round, lines))
}

func (h *Handler) handleGetBySolicitud(w http.ResponseWriter, r *http.Request) {
	solicitudID, ok := pathID(w, r, "solicitudID")
	if !ok {
		return
	}
	round, lines, err := h.service.GetBySolicitud(r.Context(), solicitudID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.detailDTO(round, lines))
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
		h.logger.Error("listar pagos", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	dtos := make([]roundDTO, 0, len(items))
	for _, f := range items {
		dtos = append(dtos, toRoundDTO(f))
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

type roundDTO struct {
	ID          int64  `json:"id"`
	SolicitudID int64  `json:"solicitud_id"`
	Estado      string `json:"estado"`
	EnviadoPor  int64  `json:"enviado_por"`
	EnviadoEn   string `json:"enviado_en"`
}

type lineDTO struct {
	ID              int64  `json:"id"`
	PurchaseLineID  int64  `json:"linea_compra_id"`
	Codigo          string `json:"codigo,omitempty"`
	Descripcion     string `json:"descripcion"`
	Unidad          string `json:"unidad,omitempty"`
	Cantidad        string `json:"cantidad"`
	ValorUnidad     string `json:"valor_unidad,omitempty"`
	ValorTotal      string `json:"valor_total,omitempty"`
	Proveedor       string `json:"proveedor,omitempty"`
	Estado          string `json:"estado"`
	FechaProgramada string `json:"fecha_programada,omitempty"`
	NotaAdmin       string `json:"nota_admin,omitempty"`
	DecididoPor     *int64 `json:"decidido_por,omitempty"`
	DecididoEn      string `json:"decidido_en,omitempty"`
	Pagado          bool   `json:"pagado"`
	PagadoEn        string `json:"pagado_en,omitempty"`
	PagadoPor       *int64 `json:"pagado_por,omitempty"`
	PuedePagarseHoy bool   `json:"puede_pagarse_hoy"`
}

type detailDTO struct {
	roundDTO
	Lineas []lineDTO `json:"lineas"`
}

func toRoundDTO(f FinanceApproval) roundDTO {
	return roundDTO{
		ID:          f.ID,
		SolicitudID: f.SolicitudID,
		Estado:      string(f.Estado),
		EnviadoPor:  f.EnviadoPor,
		EnviadoEn:   f.EnviadoEn.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *Handler) lineDTO(l Line) lineDTO {
	dto := lineDTO{
		ID:              l.ID,
		PurchaseLineID:  l.PurchaseLineID,
		Codigo:          l.Codigo,
		Descripcion:     l.Descripcion,
		Unidad:          l.Unidad,
		Cantidad:        l.Cantidad.StringFixed(3),
		Proveedor:       l.Proveedor,
		Estado:          string(l.Estado),
		NotaAdmin:       l.NotaAdmin,
		DecididoPor:     l.DecididoPor,
		Pagado:          l.Pagado,
		PagadoPor:       l.PagadoPor,
		PuedePagarseHoy: CanBePaidToday(l, h.service.now()),
	}
	if l.ValorUnidad != nil {
		dto.ValorUnidad = l.ValorUnidad.StringFixed(2)
	}
	if l.ValorTotal != nil {
		dto.ValorTotal = l.ValorTotal.StringFixed(2)
	}
	if l.FechaProgramada != nil {
		dto.FechaProgramada = l.FechaProgramada.Format("2006-01-02")
	}
	if l.DecididoEn != nil {
		dto.DecididoEn = l.DecididoEn.Format("2006-01-02T15:04:05Z07:00")
	}
	if l.PagadoEn != nil {
		dto.PagadoEn = l.PagadoEn.Format("2006-01-02T15:04:05Z07:00")
	}
	return dto
}

func (h *Handler) detailDTO(f FinanceApproval, lines []Line) detailDTO {
	dtos := make([]lineDTO, 0, len(lines))
	for _, l := range lines {
		dtos = append(dtos, h.lineDTO(l))
	}
	return detailDTO{roundDTO: toRoundDTO(f), Lineas: dtos}
}
