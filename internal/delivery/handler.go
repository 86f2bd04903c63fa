package delivery

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/impetus-erp/impetus-erp/internal/authz"
	"github.com/impetus-erp/impetus-erp/internal/platform/httpx"
	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// Handler manages delivery endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: mw}
}

// MountRoutes registers delivery routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.RoleEntregaTaller))
		r.Post("/solicitud/{solicitudID}", h.handleGetOrCreate)
		r.Patch("/{id}", h.handleUpdateComentarios)
		r.Patch("/{id}/lineas/{lineID}", h.handleSetDelivered)
	})
}

func (h *Handler) handleGetOrCreate(w http.ResponseWriter, r *http.Request) {
	solicitudID, ok := pathID(w, r, "solicitudID")
	if !ok {
		return
	}
	d, lines, err := h.service.GetOrCreate(r.Context(), shared.ActorFromContext(r.Context()), solicitudID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDetailDTO(d, lines))
}

type comentariosRequest struct {
	Comentarios string `json:"comentarios"`
}

func (h *Handler) handleUpdateComentarios(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req comentariosRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "cuerpo JSON inválido")
		return
	}
	if !h.authz.AllowFields(r, authz.EntityDelivery, "comentarios") {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "campo no editable para el rol")
		return
	}
	d, err := h.service.UpdateComentarios(r.Context(), shared.ActorFromContext(r.Context()), id, req.Comentarios)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDeliveryDTO(d))
}

type deliveredRequest struct {
	CantidadEntregada *string `json:"cantidad_entregada"`
}

func (h *Handler) handleSetDelivered(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	lineID, ok := pathID(w, r, "lineID")
	if !ok {
		return
	}
	var req deliveredRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "cuerpo JSON inválido")
		return
	}
	if !h.authz.AllowFields(r, authz.EntityDeliveryLine, "cantidad_entregada") {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "campo no editable para el rol")
		return
	}
	line, err := h.service.SetDelivered(r.Context(), shared.ActorFromContext(r.Context()), id, lineID, req.CantidadEntregada)
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
	d, lines, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDetailDTO(d, lines))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	items, pagination, err := h.service.List(r.Context(), ListFilter{Page: page, PerPage: perPage})
	if err != nil {
		h.logger.Error("listar entregas", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	dtos := make([]deliveryDTO, 0, len(items))
	for _, d := range items {
		dtos = append(dtos, toDeliveryDTO(d))
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

type deliveryDTO struct {
	ID          int64  `json:"id"`
	SolicitudID int64  `json:"solicitud_id"`
	Comentarios string `json:"comentarios,omitempty"`
	CreadoPor   int64  `json:"creado_por"`
}

type lineDTO struct {
	ID                int64   `json:"id"`
	PurchaseLineID    int64   `json:"linea_compra_id"`
	Codigo            string  `json:"codigo,omitempty"`
	Descripcion       string  `json:"descripcion"`
	Unidad            string  `json:"unidad,omitempty"`
	CantidadRequerida string  `json:"cantidad_requerida"`
	CantidadEntregada *string `json:"cantidad_entregada"`
}

type detailDTO struct {
	deliveryDTO
	Lineas []lineDTO `json:"lineas"`
}

func toDeliveryDTO(d Delivery) deliveryDTO {
	return deliveryDTO{ID: d.ID, SolicitudID: d.SolicitudID, Comentarios: d.Comentarios, CreadoPor: d.CreadoPor}
}

func toLineDTO(l Line) lineDTO {
	dto := lineDTO{
		ID:                l.ID,
		PurchaseLineID:    l.PurchaseLineID,
		Codigo:            l.Codigo,
		Descripcion:       l.Descripcion,
		Unidad:            l.Unidad,
		CantidadRequerida: l.CantidadRequerida.StringFixed(3),
	}
	if l.CantidadEntregada != nil {
		v := l.CantidadEntregada.StringFixed(3)
		dto.CantidadEntregada = &v
	}
	return dto
}

func toDetailDTO(d Delivery, lines []Line) detailDTO {
	dtos := make([]lineDTO, 0, len(lines))
	for _, l := range lines {
		dtos = append(dtos, toLineDTO(l))
	}
	return detailDTO{deliveryDTO: toDeliveryDTO(d), Lineas: dtos}
}
