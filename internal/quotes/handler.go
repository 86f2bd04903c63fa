package quotes

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

// Handler manages quotation endpoints.
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

// MountRoutes registers quotation routes.
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
	Numero          string `json:"numero_cotizacion" validate:"required"`
	Nombre          string `json:"nombre_cotizacion" validate:"required"`
	Cliente         string `json:"cliente"`
	Campo           string `json:"campo"`
	FechaCotizacion string `json:"fecha_cotizacion"`
	Estado          string `json:"estado"`
	Empresa         string `json:"empresa"`
	Valor           string `json:"valor"`
	Observaciones   string `json:"observaciones"`
}

type updateRequest struct {
	Nombre        *string `json:"nombre_cotizacion"`
	Cliente       *string `json:"cliente"`
	Campo         *string `json:"campo"`
	Estado        *string `json:"estado"`
	Valor         *string `json:"valor"`
	Observaciones *string `json:"observaciones"`
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
	q, err := h.service.Create(r.Context(), shared.ActorFromContext(r.Context()), CreateInput{
		Numero:          req.Numero,
		Nombre:          req.Nombre,
		Cliente:         req.Cliente,
		Campo:           req.Campo,
		FechaCotizacion: req.FechaCotizacion,
		Estado:          Status(req.Estado),
		Empresa:         Empresa(req.Empresa),
		Valor:           req.Valor,
		Observaciones:   req.Observaciones,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toDTO(q))
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
	input := UpdateInput{
		Nombre:        req.Nombre,
		Cliente:       req.Cliente,
		Campo:         req.Campo,
		Valor:         req.Valor,
		Observaciones: req.Observaciones,
	}
	if req.Estado != nil {
		estado := Status(*req.Estado)
		input.Estado = &estado
	}
	q, err := h.service.Update(r.Context(), shared.ActorFromContext(r.Context()), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDTO(q))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id inválido")
		return
	}
	q, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDTO(q))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	items, pagination, err := h.service.List(r.Context(), ListFilter{
		Estado:  r.URL.Query().Get("estado"),
		Empresa: r.URL.Query().Get("empresa"),
		Search:  r.URL.Query().Get("q"),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		h.logger.Error("listar cotizaciones", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	dtos := make([]quotationDTO, 0, len(items))
	for _, q := range items {
		dtos = append(dtos, toDTO(q))
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

type quotationDTO struct {
	ID              int64  `json:"id"`
	Numero          string `json:"numero_cotizacion"`
	Nombre          string `json:"nombre_cotizacion"`
	Cliente         string `json:"cliente"`
	Campo           string `json:"campo"`
	FechaCotizacion string `json:"fecha_cotizacion,omitempty"`
	Estado          string `json:"estado"`
	Empresa         string `json:"empresa"`
	Valor           string `json:"valor"`
	Observaciones   string `json:"observaciones,omitempty"`
}

func toDTO(q Quotation) quotationDTO {
	dto := quotationDTO{
		ID:            q.ID,
		Numero:        q.Numero,
		Nombre:        q.Nombre,
		Cliente:       q.Cliente,
		Campo:         q.Campo,
		Estado:        string(q.Estado),
		Empresa:       string(q.Empresa),
		Valor:         q.Valor.StringFixed(2),
		Observaciones: q.Observaciones,
	}
	if q.FechaCotizacion != nil {
		dto.FechaCotizacion = q.FechaCotizacion.Format("2006-01-02")
	}
	return dto
}
