package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/impetus-erp/impetus-erp/internal/authz"
	"github.com/impetus-erp/impetus-erp/internal/platform/httpx"
	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// Handler manages reception endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: mw}
}

// MountRoutes registers reception routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Get("/solicitud/{solicitudID}", h.handleGetBySolicitud)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.RoleCompras))
		r.Post("/solicitud/{solicitudID}/enviar", h.handleSend)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.RoleInventario, shared.RoleCompras))
		r.Patch("/{id}/lineas/{lineID}", h.handleUpdateLine)
		r.Post("/{id}/cerrar", h.handleClose)
	})
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	solicitudID, ok := pathID(w, r, "solicitudID")
	if !ok {
		return
	}
	rc, err := h.service.Send(r.Context(), shared.ActorFromContext(r.Context()), solicitudID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReceptionDTO(rc))
}

type lineRequest struct {
	CantidadRecibida *string `json:"cantidad_recibida"`
	FechaLlegada     *string `json:"fecha_llegada"`
	Estado           *string `json:"estado"`
	Observacion      *string `json:"observacion_inventario"`
}

func (h *Handler) handleUpdateLine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	lineID, ok := pathID(w, r, "lineID")
	if !ok {
		return
	}
	var req lineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "cuerpo JSON inválido")
		return
	}
	var touched []string
	input := LineInput{
		CantidadRecibida: req.CantidadRecibida,
		FechaLlegada:     req.FechaLlegada,
		Observacion:      req.Observacion,
	}
	if req.CantidadRecibida != nil {
		touched = append(touched, "cantidad_recibida")
	}
	if req.FechaLlegada != nil {
		touched = append(touched, "fecha_llegada")
	}
	if req.Observacion != nil {
		touched = append(touched, "observacion_inventario")
	}
	if req.Estado != nil {
		estado := LineStatus(*req.Estado)
		input.Estado = &estado
		touched = append(touched, "estado")
	}
	if !h.authz.AllowFields(r, authz.EntityReceptionLine, touched...) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "campo no editable para el rol")
		return
	}
	line, err := h.service.UpdateLine(r.Context(), shared.ActorFromContext(r.Context()), id, lineID, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLineDTO(line))
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.service.CloseAndFinish(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"solicitud_id":       result.SolicitudID,
		"ordenes_terminadas": result.OrdenesTerminada,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	rc, lines, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDetailDTO(rc, lines))
}

func (h *Handler) handleGetBySolicitud(w http.ResponseWriter, r *http.Request) {
	solicitudID, ok := pathID(w, r, "solicitudID")
	if !ok {
		return
	}
	rc, lines, err := h.service.GetBySolicitud(r.Context(), solicitudID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDetailDTO(rc, lines))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	items, pagination, err := h.service.List(r.Context(), ListFilter{Page: page, PerPage: perPage})
	if err != nil {
		h.logger.Error("listar recepciones", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	dtos := make([]receptionDTO, 0, len(items))
	for _, rc := range items {
		dtos = append(dtos, toReceptionDTO(rc))
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

type receptionDTO struct {
	ID          int64 `json:"id"`
	SolicitudID int64 `json:"solicitud_id"`
	CreadoPor   int64 `json:"creado_por"`
}

type lineDTO struct {
	ID                    int64  `json:"id"`
	PurchaseLineID        int64  `json:"linea_compra_id"`
	Codigo                string `json:"codigo,omitempty"`
	Descripcion           string `json:"descripcion"`
	Unidad                string `json:"unidad,omitempty"`
	CantidadEsperada      string `json:"cantidad_esperada"`
	CantidadRecibida      string `json:"cantidad_recibida"`
	FechaLlegada          string `json:"fecha_llegada,omitempty"`
	Estado                string `json:"estado"`
	ObservacionInventario string `json:"observacion_inventario,omitempty"`
}

type detailDTO struct {
	receptionDTO
	Lineas []lineDTO `json:"lineas"`
}

func toReceptionDTO(rc Reception) receptionDTO {
	return receptionDTO{ID: rc.ID, SolicitudID: rc.SolicitudID, CreadoPor: rc.CreadoPor}
}

func toLineDTO(l Line) lineDTO {
	dto := lineDTO{
		ID:                    l.ID,
		PurchaseLineID:        l.PurchaseLineID,
		Codigo:                l.Codigo,
		Descripcion:           l.Descripcion,
		Unidad:                l.Unidad,
		CantidadEsperada:      l.CantidadEsperada.StringFixed(3),
		CantidadRecibida:      l.CantidadRecibida.StringFixed(3),
		Estado:                string(l.Estado),
		ObservacionInventario: l.ObservacionInventario,
	}
	if l.FechaLlegada != nil {
		dto.FechaLlegada = l.FechaLlegada.Format("2006-01-02")
	}
	return dto
}

func toDetailDTO(rc Reception, lines []Line) detailDTO {
	dtos := make([]lineDTO, 0, len(lines))
	for _, l := range lines {
		dtos = append(dtos, toLineDTO(l))
	}
	return detailDTO{receptionDTO: toReceptionDTO(rc), Lineas: dtos}
}
