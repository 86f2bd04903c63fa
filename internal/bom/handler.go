package bom

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/impetus-erp/impetus-erp/internal/authz"
	"github.com/impetus-erp/impetus-erp/internal/platform/httpx"
	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// Handler manages BOM endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	authz     authz.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: mw, validator: validator.New()}
}

// MountRoutes registers BOM routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.handleGet)
	r.Get("/orden/{workOrderID}", h.handleGetByWorkOrder)
	r.Get("/plantillas", h.handleListTemplates)
	r.Get("/plantillas/{id}", h.handleGetTemplate)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.RoleTaller))
		r.Post("/", h.handleCreate)
		r.Patch("/{id}", h.handleUpdate)
		r.Post("/{id}/plantilla/{templateID}", h.handleLoadTemplate)
		r.Post("/{id}/items", h.handleAddItem)
		r.Patch("/{id}/items/{itemID}", h.handleUpdateItem)
		r.Delete("/{id}/items/{itemID}", h.handleRemoveItem)
		r.Post("/{id}/solicitud", h.handleRequestInventory)
	})
}

type createRequest struct {
	WorkOrderID int64  `json:"orden_id" validate:"required"`
	TemplateID  *int64 `json:"plantilla_id"`
	Comentarios string `json:"comentarios"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "cuerpo JSON inválido")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	b, err := h.service.Create(r.Context(), shared.ActorFromContext(r.Context()), req.WorkOrderID, req.TemplateID, req.Comentarios)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toDTO(b, nil))
}

type updateRequest struct {
	Comentarios string `json:"comentarios"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "cuerpo JSON inválido")
		return
	}
	if err := h.service.UpdateComentarios(r.Context(), shared.ActorFromContext(r.Context()), id, req.Comentarios); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleLoadTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	templateID, ok := h.pathID(w, r, "templateID")
	if !ok {
		return
	}
	if err := h.service.LoadFromTemplate(r.Context(), shared.ActorFromContext(r.Context()), id, templateID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

type itemRequest struct {
	Plano              string `json:"plano"`
	Codigo             string `json:"codigo"`
	Descripcion        string `json:"descripcion" validate:"required"`
	Unidad             string `json:"unidad"`
	CantidadEstandar   string `json:"cantidad_estandar"`
	CantidadSolicitada string `json:"cantidad_solicitada"`
	Observaciones      string `json:"observaciones"`
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "cuerpo JSON inválido")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.AddItem(r.Context(), shared.ActorFromContext(r.Context()), id, itemInput(req))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toItemDTO(item))
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := h.pathID(w, r, "itemID")
	if !ok {
		return
	}
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "cuerpo JSON inválido")
		return
	}
	if err := h.service.UpdateItem(r.Context(), shared.ActorFromContext(r.Context()), id, itemID, itemInput(req)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := h.pathID(w, r, "itemID")
	if !ok {
		return
	}
	if err := h.service.RemoveItem(r.Context(), shared.ActorFromContext(r.Context()), id, itemID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleRequestInventory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	requestID, err := h.service.RequestInventory(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"solicitud_compra_id": requestID})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	b, items, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDTO(b, items))
}

func (h *Handler) handleGetByWorkOrder(w http.ResponseWriter, r *http.Request) {
	workOrderID, ok := h.pathID(w, r, "workOrderID")
	if !ok {
		return
	}
	b, items, err := h.service.GetByWorkOrder(r.Context(), workOrderID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDTO(b, items))
}

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("activas") != "false"
	templates, err := h.service.ListTemplates(r.Context(), activeOnly)
	if err != nil {
		h.logger.Error("listar plantillas", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": templates})
}

func (h *Handler) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	tpl, items, err := h.service.GetTemplate(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"plantilla": tpl, "items": items})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", name+" inválido")
		return 0, false
	}
	return id, true
}

func itemInput(req itemRequest) ItemInput {
	return ItemInput{
		Plano:              req.Plano,
		Codigo:             req.Codigo,
		Descripcion:        req.Descripcion,
		Unidad:             req.Unidad,
		CantidadEstandar:   req.CantidadEstandar,
		CantidadSolicitada: req.CantidadSolicitada,
		Observaciones:      req.Observaciones,
	}
}

type bomDTO struct {
	ID           int64        `json:"id"`
	WorkOrderID  int64        `json:"orden_id"`
	TemplateID   *int64       `json:"plantilla_id,omitempty"`
	Estado       string       `json:"estado"`
	Comentarios  string       `json:"comentarios,omitempty"`
	SolicitadoEn string       `json:"solicitado_en,omitempty"`
	Items        []bomItemDTO `json:"items,omitempty"`
}

type bomItemDTO struct {
	ID                 int64  `json:"id"`
	Plano              string `json:"plano,omitempty"`
	Codigo             string `json:"codigo,omitempty"`
	Descripcion        string `json:"descripcion"`
	Unidad             string `json:"unidad,omitempty"`
	CantidadEstandar   string `json:"cantidad_estandar"`
	CantidadSolicitada string `json:"cantidad_solicitada"`
	Observaciones      string `json:"observaciones,omitempty"`
}

func toDTO(b Bom, items []BomItem) bomDTO {
	dto := bomDTO{
		ID:          b.ID,
		WorkOrderID: b.WorkOrderID,
		TemplateID:  b.TemplateID,
		Estado:      string(b.Estado),
		Comentarios: b.Comentarios,
	}
	if b.SolicitadoEn != nil {
		dto.SolicitadoEn = b.SolicitadoEn.Format("2006-01-02T15:04:05Z07:00")
	}
	for _, it := range items {
		dto.Items = append(dto.Items, toItemDTO(it))
	}
	return dto
}

func toItemDTO(it BomItem) bomItemDTO {
	return bomItemDTO{
		ID:                 it.ID,
		Plano:              it.Plano,
		Codigo:             it.Codigo,
		Descripcion:        it.Descripcion,
		Unidad:             it.Unidad,
		CantidadEstandar:   it.CantidadEstandar.StringFixed(3),
		CantidadSolicitada: it.CantidadSolicitada.StringFixed(3),
		Observaciones:      it.Observaciones,
	}
}
