package billing

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/impetus-erp/impetus-erp/internal/authz"
	"github.com/impetus-erp/impetus-erp/internal/platform/httpx"
	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// Handler manages invoice endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: mw}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.RolePaw))
		r.Post("/paw/{pawID}", h.handleGetOrCreate)
		r.Patch("/{id}/paw", h.handleUpdatePawSide)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.RoleFinanzas))
		r.Patch("/{id}/finanzas", h.handleUpdateFinanceSide)
	})
}

func (h *Handler) handleGetOrCreate(w http.ResponseWriter, r *http.Request) {
	pawID, ok := pathID(w, r, "pawID")
	if !ok {
		return
	}
	f, header, err := h.service.GetOrCreate(r.Context(), shared.ActorFromContext(r.Context()), pawID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDetailDTO(f, header))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	f, header, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDetailDTO(f, header))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	filter := ListFilter{
		Estado:   Status(r.URL.Query().Get("estado")),
		TipoPago: TipoPago(r.URL.Query().Get("tipo_pago")),
		Page:     page,
		PerPage:  perPage,
	}
	items, pagination, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("listar facturas", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	dtos := make([]facturaDTO, 0, len(items))
	for _, f := range items {
		dtos = append(dtos, toFacturaDTO(f))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": dtos, "pagination": pagination})
}

type pawSideRequest struct {
	LugarEntrega   *string `json:"lugar_entrega"`
	LugarServicio  *string `json:"lugar_servicio"`
	NumeroServicio *string `json:"numero_servicio"`
	ItemFacturaID  *int64  `json:"item_factura_id"`
	Precio         *string `json:"precio"`
}

func (h *Handler) handleUpdatePawSide(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req pawSideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "cuerpo JSON inválido")
		return
	}
	var touched []string
	if req.LugarEntrega != nil {
		touched = append(touched, "lugar_entrega")
	}
	if req.LugarServicio != nil {
		touched = append(touched, "lugar_servicio")
	}
	if req.NumeroServicio != nil {
		touched = append(touched, "numero_servicio")
	}
	if req.ItemFacturaID != nil {
		touched = append(touched, "item_factura")
	}
	if req.Precio != nil {
		touched = append(touched, "precio")
	}
	if !h.authz.AllowFields(r, authz.EntityFactura, touched...) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "campo no editable para el rol")
		return
	}
	f, err := h.service.UpdatePawSide(r.Context(), shared.ActorFromContext(r.Context()), id, PawSideInput{
		LugarEntrega:   req.LugarEntrega,
		LugarServicio:  req.LugarServicio,
		NumeroServicio: req.NumeroServicio,
		ItemFacturaID:  req.ItemFacturaID,
		Precio:         req.Precio,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toFacturaDTO(f))
}

type financeSideRequest struct {
	NumeroFactura    *string `json:"numero_factura"`
	FechaVencimiento *string `json:"fecha_vencimiento"`
	FechaRadicacion  *string `json:"fecha_radicacion"`
	TipoPago         *string `json:"tipo_pago"`
	Estado           *string `json:"estado"`
}

func (h *Handler) handleUpdateFinanceSide(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req financeSideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "cuerpo JSON inválido")
		return
	}
	var touched []string
	input := FinanceSideInput{
		NumeroFactura:    req.NumeroFactura,
		FechaVencimiento: req.FechaVencimiento,
		FechaRadicacion:  req.FechaRadicacion,
	}
	if req.NumeroFactura != nil {
		touched = append(touched, "numero_factura")
	}
	if req.FechaVencimiento != nil {
		touched = append(touched, "fecha_vencimiento")
	}
	if req.FechaRadicacion != nil {
		touched = append(touched, "fecha_radicacion")
	}
	if req.TipoPago != nil {
		tp := TipoPago(*req.TipoPago)
		input.TipoPago = &tp
		touched = append(touched, "tipo_pago")
	}
	if req.Estado != nil {
		st := Status(*req.Estado)
		input.Estado = &st
		touched = append(touched, "estado")
	}
	if !h.authz.AllowFields(r, authz.EntityFactura, touched...) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "campo no editable para el rol")
		return
	}
	f, err := h.service.UpdateFinanceSide(r.Context(), shared.ActorFromContext(r.Context()), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toFacturaDTO(f))
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", name+" inválido")
		return 0, false
	}
	return id, true
}

type facturaDTO struct {
	ID               int64   `json:"id"`
	PawID            int64   `json:"paw_id"`
	Estado           string  `json:"estado"`
	LugarEntrega     string  `json:"lugar_entrega,omitempty"`
	LugarServicio    string  `json:"lugar_servicio,omitempty"`
	NumeroServicio   string  `json:"numero_servicio,omitempty"`
	ItemFacturaID    *int64  `json:"item_factura_id"`
	Precio           *string `json:"precio"`
	NumeroFactura    string  `json:"numero_factura,omitempty"`
	FechaVencimiento *string `json:"fecha_vencimiento"`
	FechaRadicacion  *string `json:"fecha_radicacion"`
	TipoPago         string  `json:"tipo_pago,omitempty"`
}

type pawHeaderDTO struct {
	Numero  string `json:"numero_paw"`
	Nombre  string `json:"nombre_paw"`
	Cliente string `json:"cliente"`
	Campo   string `json:"campo"`
}

type detailDTO struct {
	facturaDTO
	Paw pawHeaderDTO `json:"paw"`
}

func toFacturaDTO(f Factura) facturaDTO {
	dto := facturaDTO{
		ID:             f.ID,
		PawID:          f.PawID,
		Estado:         string(f.Estado),
		LugarEntrega:   f.LugarEntrega,
		LugarServicio:  f.LugarServicio,
		NumeroServicio: f.NumeroServicio,
		ItemFacturaID:  f.ItemFacturaID,
		NumeroFactura:  f.NumeroFactura,
		TipoPago:       string(f.TipoPago),
	}
	if f.Precio != nil {
		v := f.Precio.StringFixed(2)
		dto.Precio = &v
	}
	if f.FechaVencimiento != nil {
		v := f.FechaVencimiento.Format("2006-01-02")
		dto.FechaVencimiento = &v
	}
	if f.FechaRadicacion != nil {
		v := f.FechaRadicacion.Format("2006-01-02")
		dto.FechaRadicacion = &v
	}
	return dto
}

func toDetailDTO(f Factura, header PawHeader) detailDTO {
	return detailDTO{
		facturaDTO: toFacturaDTO(f),
		Paw: pawHeaderDTO{
			Numero:  header.Numero,
			Nombre:  header.Nombre,
			Cliente: header.Cliente,
			Campo:   header.Campo,
		},
	}
}
