package purchasing

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

// Handler manages purchasing endpoints.
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

// MountRoutes registers purchasing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/solicitudes", h.handleList)
	r.Get("/solicitudes/{id}", h.handleGet)
	r.Get("/proveedores", h.handleListSuppliers)
	r.Get("/proveedores/{id}", h.handleGetSupplier)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.RoleCompras))
		r.Patch("/solicitudes/{id}", h.handleUpdateHeader)
		r.Post("/solicitudes/{id}/lineas", h.handleAddLine)
		r.Patch("/solicitudes/{id}/lineas/{lineID}", h.handleUpdateLine)
		r.Post("/proveedores", h.handleCreateSupplier)
		r.Patch("/proveedores/{id}", h.handleUpdateSupplier)
		r.Delete("/proveedores/{id}", h.handleDeleteSupplier)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	items, pagination, err := h.service.List(r.Context(), ListFilter{
		Estado:  r.URL.Query().Get("estado"),
		Search:  r.URL.Query().Get("q"),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		h.logger.Error("listar solicitudes", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	dtos := make([]requestDTO, 0, len(items))
	for _, pr := range items {
		dtos = append(dtos, toRequestDTO(pr))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": dtos, "pagination": pagination})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	pr, lines, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDetailDTO(pr, lines))
}

type headerRequest struct {
	Estado   *string `json:"estado"`
	TipoPago *string `json:"tipo_pago"`
}

func (h *Handler) handleUpdateHeader(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req headerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "cuerpo JSON inválido")
		return
	}
	var touched []string
	input := HeaderInput{}
	if req.Estado != nil {
		estado := Status(*req.Estado)
		input.Estado = &estado
		touched = append(touched, "estado")
	}
	if req.TipoPago != nil {
		tp := TipoPago(*req.TipoPago)
		input.TipoPago = &tp
		touched = append(touched, "tipo_pago")
	}
	if !h.authz.AllowFields(r, authz.EntityPurchaseReq, touched...) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "campo no editable para el rol")
		return
	}
	pr, err := h.service.UpdateHeader(r.Context(), shared.ActorFromContext(r.Context()), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestDTO(pr))
}

type lineRequest struct {
	CantidadDisponible   *string `json:"cantidad_disponible"`
	ProveedorID          *int64  `json:"proveedor_id"`
	PrecioUnitario       *string `json:"precio_unitario"`
	ObservacionesCompras *string `json:"observaciones_compras"`
	TipoPago             *string `json:"tipo_pago"`
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
		CantidadDisponible:   req.CantidadDisponible,
		ProveedorID:          req.ProveedorID,
		PrecioUnitario:       req.PrecioUnitario,
		ObservacionesCompras: req.ObservacionesCompras,
	}
	if req.CantidadDisponible != nil {
		touched = append(touched, "cantidad_disponible")
	}
	if req.ProveedorID != nil {
		touched = append(touched, "proveedor")
	}
	if req.PrecioUnitario != nil {
		touched = append(touched, "precio_unitario")
	}
	if req.ObservacionesCompras != nil {
		touched = append(touched, "observaciones_compras")
	}
	if req.TipoPago != nil {
		tp := TipoPago(*req.TipoPago)
		input.TipoPago = &tp
		touched = append(touched, "tipo_pago")
	}
	if !h.authz.AllowFields(r, authz.EntityPurchaseLine, touched...) {
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

type addLineRequest struct {
	Descripcion       string `json:"descripcion" validate:"required"`
	Codigo            string `json:"codigo"`
	Plano             string `json:"plano"`
	Unidad            string `json:"unidad"`
	CantidadRequerida string `json:"cantidad_requerida"`
}

func (h *Handler) handleAddLine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req addLineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "cuerpo JSON inválido")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	line, err := h.service.AddLine(r.Context(), shared.ActorFromContext(r.Context()), id,
		req.Descripcion, req.Codigo, req.Plano, req.Unidad, req.CantidadRequerida)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toLineDTO(line))
}

type supplierRequest struct {
	Nombre         string `json:"nombre" validate:"required"`
	Contacto       string `json:"contacto"`
	Telefono       string `json:"telefono"`
	Email          string `json:"email"`
	Nit            string `json:"nit"`
	Banco          string `json:"banco"`
	CuentaBancaria string `json:"cuenta_bancaria"`
	TipoCuenta     string `json:"tipo_cuenta"`
}

func (h *Handler) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "cuerpo JSON inválido")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sup, err := h.service.CreateSupplier(r.Context(), shared.ActorFromContext(r.Context()), supplierInput(req))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toSupplierDTO(sup))
}

func (h *Handler) handleUpdateSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req supplierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "cuerpo JSON inválido")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sup, err := h.service.UpdateSupplier(r.Context(), shared.ActorFromContext(r.Context()), id, supplierInput(req))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSupplierDTO(sup))
}

func (h *Handler) handleDeleteSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteSupplier(r.Context(), shared.ActorFromContext(r.Context()), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleGetSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sup, err := h.service.GetSupplier(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSupplierDTO(sup))
}

func (h *Handler) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.service.ListSuppliers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.logger.Error("listar proveedores", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	dtos := make([]supplierDTO, 0, len(suppliers))
	for _, s := range suppliers {
		dtos = append(dtos, toSupplierDTO(s))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": dtos})
}

func supplierInput(req supplierRequest) SupplierInput {
	return SupplierInput{
		Nombre:         req.Nombre,
		Contacto:       req.Contacto,
		Telefono:       req.Telefono,
		Email:          req.Email,
		Nit:            req.Nit,
		Banco:          req.Banco,
		CuentaBancaria: req.CuentaBancaria,
		TipoCuenta:     TipoCuenta(req.TipoCuenta),
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", name+" inválido")
		return 0, false
	}
	return id, true
}

type requestDTO struct {
	ID        int64  `json:"id"`
	BomID     int64  `json:"bom_id"`
	Estado    string `json:"estado"`
	TipoPago  string `json:"tipo_pago,omitempty"`
	PawNumero string `json:"paw_numero"`
	PawNombre string `json:"paw_nombre"`
}

type lineDTO struct {
	ID                   int64  `json:"id"`
	BomItemID            *int64 `json:"bom_item_id,omitempty"`
	Plano                string `json:"plano,omitempty"`
	Codigo               string `json:"codigo,omitempty"`
	Descripcion          string `json:"descripcion"`
	Unidad               string `json:"unidad,omitempty"`
	ObservacionesBom     string `json:"observaciones_bom,omitempty"`
	CantidadRequerida    string `json:"cantidad_requerida"`
	CantidadDisponible   string `json:"cantidad_disponible"`
	CantidadAComprar     string `json:"cantidad_a_comprar"`
	ProveedorID          *int64 `json:"proveedor_id,omitempty"`
	PrecioUnitario       string `json:"precio_unitario,omitempty"`
	ObservacionesCompras string `json:"observaciones_compras,omitempty"`
	TipoPago             string `json:"tipo_pago,omitempty"`
}

type detailDTO struct {
	requestDTO
	Lineas []lineDTO `json:"lineas"`
}

type supplierDTO struct {
	ID             int64  `json:"id"`
	Nombre         string `json:"nombre"`
	Contacto       string `json:"contacto,omitempty"`
	Telefono       string `json:"telefono,omitempty"`
	Email          string `json:"email,omitempty"`
	Nit            string `json:"nit,omitempty"`
	Banco          string `json:"banco,omitempty"`
	CuentaBancaria string `json:"cuenta_bancaria,omitempty"`
	TipoCuenta     string `json:"tipo_cuenta,omitempty"`
}

func toRequestDTO(pr PurchaseRequest) requestDTO {
	return requestDTO{
		ID:        pr.ID,
		BomID:     pr.BomID,
		Estado:    string(pr.Estado),
		TipoPago:  string(pr.TipoPago),
		PawNumero: pr.PawNumero,
		PawNombre: pr.PawNombre,
	}
}

func toLineDTO(l PurchaseLine) lineDTO {
	dto := lineDTO{
		ID:                   l.ID,
		BomItemID:            l.BomItemID,
		Plano:                l.Plano,
		Codigo:               l.Codigo,
		Descripcion:          l.Descripcion,
		Unidad:               l.Unidad,
		ObservacionesBom:     l.ObservacionesBom,
		CantidadRequerida:    l.CantidadRequerida.StringFixed(3),
		CantidadDisponible:   l.CantidadDisponible.StringFixed(3),
		CantidadAComprar:     l.CantidadAComprar.StringFixed(3),
		ProveedorID:          l.ProveedorID,
		ObservacionesCompras: l.ObservacionesCompras,
		TipoPago:             string(l.TipoPago),
	}
	if l.PrecioUnitario != nil {
		dto.PrecioUnitario = l.PrecioUnitario.StringFixed(2)
	}
	return dto
}

func toDetailDTO(pr PurchaseRequest, lines []PurchaseLine) detailDTO {
	dtos := make([]lineDTO, 0, len(lines))
	for _, l := range lines {
		dtos = append(dtos, toLineDTO(l))
	}
	return detailDTO{requestDTO: toRequestDTO(pr), Lineas: dtos}
}

func toSupplierDTO(s Supplier) supplierDTO {
	return supplierDTO{
		ID:             s.ID,
		Nombre:         s.Nombre,
		Contacto:       s.Contacto,
		Telefono:       s.Telefono,
		Email:          s.Email,
		Nit:            s.Nit,
		Banco:          s.Banco,
		CuentaBancaria: s.CuentaBancaria,
		TipoCuenta:     string(s.TipoCuenta),
	}
}
