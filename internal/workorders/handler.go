package workorders

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

// Handler manages work order endpoints.
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

// MountRoutes registers work order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.RolePaw))
		r.Post("/", h.handleCreate)
		r.Patch("/{id}", h.handleUpdate)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.RoleTaller))
		r.Patch("/{id}/taller", h.handleWorkshop)
		r.Patch("/{id}/tareas/{taskID}", h.handleUpdateTask)
	})
}

type taskDTO struct {
	ID          int64  `json:"id,omitempty"`
	Titulo      string `json:"titulo" validate:"required"`
	Estado      string `json:"estado"`
	Responsable string `json:"responsable"`
	Comentario  string `json:"comentario"`
}

type createRequest struct {
	Numero      string    `json:"numero" validate:"required"`
	Titulo      string    `json:"titulo" validate:"required"`
	Descripcion string    `json:"descripcion"`
	Cliente     string    `json:"cliente"`
	Equipo      string    `json:"equipo"`
	Serial      string    `json:"serial"`
	Ubicacion   string    `json:"ubicacion"`
	Prioridad   string    `json:"prioridad"`
	PawID       int64     `json:"paw_id" validate:"required"`
	AsignadoA   *int64    `json:"asignado_a"`
	Visibilidad bool      `json:"visibilidad"`
	Tareas      []taskDTO `json:"tareas" validate:"dive"`
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
	tasks := make([]TaskInput, 0, len(req.Tareas))
	for _, t := range req.Tareas {
		tasks = append(tasks, TaskInput{
			Titulo:      t.Titulo,
			Estado:      TaskStatus(t.Estado),
			Responsable: t.Responsable,
			Comentario:  t.Comentario,
		})
	}
	wo, err := h.service.Create(r.Context(), shared.ActorFromContext(r.Context()), CreateInput{
		Numero:      req.Numero,
		Titulo:      req.Titulo,
		Descripcion: req.Descripcion,
		Cliente:     req.Cliente,
		Equipo:      req.Equipo,
		Serial:      req.Serial,
		Ubicacion:   req.Ubicacion,
		Prioridad:   Prioridad(req.Prioridad),
		PawID:       req.PawID,
		AsignadoA:   req.AsignadoA,
		Visibilidad: req.Visibilidad,
	}, tasks)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toDTO(wo, nil))
}

type updateRequest struct {
	Titulo      *string `json:"titulo"`
	Descripcion *string `json:"descripcion"`
	Equipo      *string `json:"equipo"`
	Serial      *string `json:"serial"`
	Ubicacion   *string `json:"ubicacion"`
	Prioridad   *string `json:"prioridad"`
	AsignadoA   *int64  `json:"asignado_a"`
	Visibilidad *bool   `json:"visibilidad"`
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
	var touched []string
	input := UpdateInput{
		Titulo:      req.Titulo,
		Descripcion: req.Descripcion,
		Equipo:      req.Equipo,
		Serial:      req.Serial,
		Ubicacion:   req.Ubicacion,
		AsignadoA:   req.AsignadoA,
		Visibilidad: req.Visibilidad,
	}
	if req.Titulo != nil {
		touched = append(touched, "titulo")
	}
	if req.Descripcion != nil {
		touched = append(touched, "descripcion")
	}
	if req.Equipo != nil {
		touched = append(touched, "equipo")
	}
	if req.Serial != nil {
		touched = append(touched, "serial")
	}
	if req.Ubicacion != nil {
		touched = append(touched, "ubicacion")
	}
	if req.AsignadoA != nil {
		touched = append(touched, "asignado_a")
	}
	if req.Visibilidad != nil {
		touched = append(touched, "visibilidad")
	}
	if req.Prioridad != nil {
		p := Prioridad(*req.Prioridad)
		input.Prioridad = &p
		touched = append(touched, "prioridad")
	}
	if !h.authz.AllowFields(r, authz.EntityWorkOrder, touched...) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "campo no editable para el rol")
		return
	}
	wo, err := h.service.Update(r.Context(), shared.ActorFromContext(r.Context()), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDTO(wo, nil))
}

type workshopRequest struct {
	Estado           *string `json:"estado"`
	EtapaTaller      *string `json:"etapa_taller"`
	ComentarioTaller *string `json:"comentario_taller"`
}

func (h *Handler) handleWorkshop(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id inválido")
		return
	}
	var req workshopRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "cuerpo JSON inválido")
		return
	}
	var touched []string
	input := WorkshopInput{ComentarioTaller: req.ComentarioTaller}
	if req.ComentarioTaller != nil {
		touched = append(touched, "comentario_taller")
	}
	if req.Estado != nil {
		estado := Status(*req.Estado)
		input.Estado = &estado
		touched = append(touched, "estado")
	}
	if req.EtapaTaller != nil {
		etapa := Etapa(*req.EtapaTaller)
		input.EtapaTaller = &etapa
		touched = append(touched, "etapa_taller")
	}
	if !h.authz.AllowFields(r, authz.EntityWorkOrder, touched...) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "campo no editable para el rol")
		return
	}
	wo, err := h.service.UpdateWorkshop(r.Context(), shared.ActorFromContext(r.Context()), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDTO(wo, nil))
}

func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id inválido")
		return
	}
	taskID, err := strconv.ParseInt(chi.URLParam(r, "taskID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "tarea inválida")
		return
	}
	var req taskDTO
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "cuerpo JSON inválido")
		return
	}
	err = h.service.UpdateTask(r.Context(), shared.ActorFromContext(r.Context()), id, taskID, TaskInput{
		Titulo:      req.Titulo,
		Estado:      TaskStatus(req.Estado),
		Responsable: req.Responsable,
		Comentario:  req.Comentario,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id inválido")
		return
	}
	wo, tasks, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDTO(wo, tasks))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pawID, _ := strconv.ParseInt(r.URL.Query().Get("paw_id"), 10, 64)
	items, pagination, err := h.service.List(r.Context(), ListFilter{
		PawID:   pawID,
		Estado:  r.URL.Query().Get("estado"),
		Search:  r.URL.Query().Get("q"),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		h.logger.Error("listar ordenes", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	dtos := make([]workOrderDTO, 0, len(items))
	for _, wo := range items {
		dtos = append(dtos, toDTO(wo, nil))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": dtos, "pagination": pagination})
}

type workOrderDTO struct {
	ID               int64     `json:"id"`
	Numero           string    `json:"numero"`
	Titulo           string    `json:"titulo"`
	Descripcion      string    `json:"descripcion,omitempty"`
	Cliente          string    `json:"cliente,omitempty"`
	Equipo           string    `json:"equipo,omitempty"`
	Serial           string    `json:"serial,omitempty"`
	Ubicacion        string    `json:"ubicacion,omitempty"`
	Prioridad        string    `json:"prioridad"`
	Estado           string    `json:"estado"`
	EtapaTaller      string    `json:"etapa_taller,omitempty"`
	ComentarioTaller string    `json:"comentario_taller,omitempty"`
	Visibilidad      bool      `json:"visibilidad"`
	PawID            int64     `json:"paw_id"`
	AsignadoA        *int64    `json:"asignado_a,omitempty"`
	Tareas           []taskDTO `json:"tareas,omitempty"`
}

func toDTO(wo WorkOrder, tasks []Task) workOrderDTO {
	dto := workOrderDTO{
		ID:               wo.ID,
		Numero:           wo.Numero,
		Titulo:           wo.Titulo,
		Descripcion:      wo.Descripcion,
		Cliente:          wo.Cliente,
		Equipo:           wo.Equipo,
		Serial:           wo.Serial,
		Ubicacion:        wo.Ubicacion,
		Prioridad:        string(wo.Prioridad),
		Estado:           string(wo.Estado),
		EtapaTaller:      string(wo.EtapaTaller),
		ComentarioTaller: wo.ComentarioTaller,
		Visibilidad:      wo.Visibilidad,
		PawID:            wo.PawID,
		AsignadoA:        wo.AsignadoA,
	}
	for _, t := range tasks {
		dto.Tareas = append(dto.Tareas, taskDTO{
			ID:          t.ID,
			Titulo:      t.Titulo,
			Estado:      string(t.Estado),
			Responsable: t.Responsable,
			Comentario:  t.Comentario,
		})
	}
	return dto
}
