package catalog

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

// Handler manages catalog endpoints.
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

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{codigo}", h.handleGet)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.RoleCompras, shared.RoleTaller))
		r.Post("/importar", h.handleBulkUpsert)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	filter := ListFilter{
		Search:  r.URL.Query().Get("q"),
		Grupo:   r.URL.Query().Get("grupo"),
		Page:    page,
		PerPage: perPage,
	}
	if raw := r.URL.Query().Get("activo"); raw != "" {
		activo := raw == "true" || raw == "1"
		filter.Activo = &activo
	}
	items, pagination, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("listar items", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      toItemDTOs(items),
		"pagination": pagination,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetByCode(r.Context(), chi.URLParam(r, "codigo"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemDTO(item))
}

type bulkUpsertRequest struct {
	Items []upsertItemDTO `json:"items" validate:"required,min=1,dive"`
}

type upsertItemDTO struct {
	Codigo          string `json:"codigo" validate:"required"`
	Descripcion     string `json:"descripcion" validate:"required"`
	UnidadMedida    string `json:"unidad_medida"`
	Clasificacion   string `json:"clasificacion"`
	GrupoInventario string `json:"grupo_inventario"`
	Activo          bool   `json:"activo"`
}

func (h *Handler) handleBulkUpsert(w http.ResponseWriter, r *http.Request) {
	var req bulkUpsertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "cuerpo JSON inválido")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	inputs := make([]UpsertInput, 0, len(req.Items))
	for _, it := range req.Items {
		inputs = append(inputs, UpsertInput{
			Codigo:          it.Codigo,
			Descripcion:     it.Descripcion,
			UnidadMedida:    it.UnidadMedida,
			Clasificacion:   it.Clasificacion,
			GrupoInventario: it.GrupoInventario,
			Activo:          it.Activo,
		})
	}
	result, err := h.service.BulkUpsert(r.Context(), shared.ActorFromContext(r.Context()), inputs)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type itemDTO struct {
	ID              int64  `json:"id"`
	Codigo          string `json:"codigo"`
	Descripcion     string `json:"descripcion"`
	UnidadMedida    string `json:"unidad_medida"`
	Clasificacion   string `json:"clasificacion"`
	GrupoInventario string `json:"grupo_inventario"`
	Activo          bool   `json:"activo"`
}

func toItemDTO(it Item) itemDTO {
	return itemDTO{
		ID:              it.ID,
		Codigo:          it.Codigo,
		Descripcion:     it.Descripcion,
		UnidadMedida:    it.UnidadMedida,
		Clasificacion:   it.Clasificacion,
		GrupoInventario: it.GrupoInventario,
		Activo:          it.Activo,
	}
}

func toItemDTOs(items []Item) []itemDTO {
	dtos := make([]itemDTO, 0, len(items))
	for _, it := range items {
		dtos = append(dtos, toItemDTO(it))
	}
	return dtos
}
