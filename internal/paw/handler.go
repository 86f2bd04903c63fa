package paw

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

// Handler manages PAW endpoints.
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

// MountRoutes registers PAW routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.RolePaw))
		r.Post("/", h.handleCreate)
		r.Patch("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
	})
}

type createRequest struct {
	Numero       string `json:"numero_paw" validate:"required"`
	Nombre       string `json:"nombre_paw" validate:"required"`
	QuotationID  *int64 `json:"cotizacion_id"`
	Cliente      string `json:"cliente"`
	Campo        string `json:"campo"`
	FechaEntrega string `json:"fecha_entrega"`
	FechaSalida  string `json:"fecha_salida"`
}

type updateRequest struct {
	Nombre       *string `json:"nombre_paw"`
	QuotationID  *int64  `json:"cotizacion_id"`
	Cliente      *string `json:"cliente"`
	Campo        *string `json:"campo"`
	FechaEntrega *string `json:"fecha_entrega"`
	FechaSalida  *string `json:"fecha_salida"`
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
	p, err := h.service.Create(r.Context(), shared.ActorFromContext(r.Context()), CreateInput{
		Numero:       req.Numero,
		Nombre:       req.Nombre,
		QuotationID:  req.QuotationID,
		Cliente:      req.Cliente,
		Campo:        req.Campo,
		FechaEntrega: req.FechaEntrega,
		FechaSalida:  req.FechaSalida,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toDTO(p))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id inválido")
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "cuerpo JSON inválido")
		return
	}
	p, err := h.service.Update(r.Context(), shared.ActorFromContext(r.Context()), id, UpdateInput{
		Nombre:       req.Nombre,
		QuotationID:  req.QuotationID,
		Cliente:      req.Cliente,
		Campo:        req.Campo,
		FechaEntrega: req.FechaEntrega,
		FechaSalida:  req.FechaSalida,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDTO(p))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id inválido")
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDTO(p))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	items, pagination, err := h.service.List(r.Context(), ListFilter{
		Search:  r.URL.Query().Get("q"),
		Cliente: r.URL.Query().Get("cliente"),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		h.logger.Error("listar paws", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	dtos := make([]pawDTO, 0, len(items))
	for _, p := range items {
		dtos = append(dtos, toDTO(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": dtos, "pagination": pagination})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id inválido")
		return
	}
	if err := h.service.Delete(r.Context(), shared.ActorFromContext(r.Context()), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

type pawDTO struct {
	ID           int64  `json:"id"`
	Numero       string `json:"numero_paw"`
	Nombre       string `json:"nombre_paw"`
	QuotationID  *int64 `json:"cotizacion_id,omitempty"`
	Cliente      string `json:"cliente"`
	Campo        string `json:"campo"`
	FechaEntrega string `json:"fecha_entrega,omitempty"`
	FechaSalida  string `json:"fecha_salida,omitempty"`
}

func toDTO(p Paw) pawDTO {
	dto := pawDTO{
		ID:          p.ID,
		Numero:      p.Numero,
		Nombre:      p.Nombre,
		QuotationID: p.QuotationID,
		Cliente:     p.Cliente,
		Campo:       p.Campo,
	}
	if p.FechaEntrega != nil {
		dto.FechaEntrega = p.FechaEntrega.Format("2006-01-02")
	}
	if p.FechaSalida != nil {
		dto.FechaSalida = p.FechaSalida.Format("2006-01-02")
	}
	return dto
}
