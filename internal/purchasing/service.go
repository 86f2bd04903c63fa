package purchasing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/impetus-erp/impetus-erp/internal/bom"
	"github.com/impetus-erp/impetus-erp/internal/money"
	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetRequest(ctx context.Context, id int64) (PurchaseRequest, []PurchaseLine, error)
	GetRequestByBom(ctx context.Context, bomID int64) (PurchaseRequest, []PurchaseLine, error)
	ListRequests(ctx context.Context, filter ListFilter) ([]PurchaseRequest, int, error)
	PawHeader(ctx context.Context, workOrderID int64) (numero, nombre string, err error)
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	ListSuppliers(ctx context.Context, search string) ([]Supplier, error)
	CreateSupplier(ctx context.Context, s Supplier) (int64, error)
	UpdateSupplier(ctx context.Context, s Supplier) error
	DeleteSupplier(ctx context.Context, id int64) error
}

// BomReader resolves source BOM items for the empty-only backfill.
type BomReader interface {
	GetItem(ctx context.Context, id int64) (bom.BomItem, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the purchasing flow.
type Service struct {
	repo  RepositoryPort
	boms  BomReader
	audit AuditPort
}

// NewService constructs purchasing service.
func NewService(repo RepositoryPort, boms BomReader, audit AuditPort) *Service {
	return &Service{repo: repo, boms: boms, audit: audit}
}

// ListFilter narrows request listings.
type ListFilter struct {
	Estado  string
	Search  string
	Page    int
	PerPage int
}

// SyncFromBom creates the purchase request for a BOM on first call and
// refreshes its lines afterwards. Lines match by (codigo, descripcion,
// plano); a refresh touches only cantidad_requerida and the BOM
// observations, never purchasing-owned fields.
func (s *Service) SyncFromBom(ctx context.Context, actor shared.Actor, input bom.SyncInput) (int64, error) {
	request, lines, err := s.repo.GetRequestByBom(ctx, input.BomID)
	created := false
	switch {
	case err == nil:
	case isNotFound(err):
		numero, nombre, err := s.repo.PawHeader(ctx, input.WorkOrderID)
		if err != nil {
			return 0, err
		}
		request = PurchaseRequest{
			BomID:     input.BomID,
			Estado:    StatusBorrador,
			PawNumero: numero,
			PawNombre: nombre,
			CreadoPor: actor.ID,
		}
		created = true
	default:
		return 0, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if created {
			id, err := tx.CreateRequest(ctx, request)
			if err != nil {
				return err
			}
			request.ID = id
		}
		for _, item := range input.Items {
			existing := matchLine(lines, item)
			if existing == nil {
				src := bom.BomItem{
					ID:                 item.BomItemID,
					Plano:              item.Plano,
					Codigo:             item.Codigo,
					Descripcion:        item.Descripcion,
					Unidad:             item.Unidad,
					CantidadSolicitada: item.CantidadSolicitada,
					Observaciones:      item.Observaciones,
				}
				line := PurchaseLine{RequestID: request.ID, BomItemID: &src.ID}
				deriveLine(&line, request, &src)
				if _, err := tx.InsertLine(ctx, line); err != nil {
					return err
				}
				continue
			}
			existing.CantidadRequerida = money.Quantity(item.CantidadSolicitada)
			existing.ObservacionesBom = item.Observaciones
			deriveLine(existing, request, nil)
			if err := tx.UpdateLine(ctx, *existing); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	action := "SOLICITUD_ACTUALIZAR"
	if created {
		action = "SOLICITUD_CREAR"
	}
	s.recordAudit(ctx, actor, action, request.ID, map[string]any{"bom": input.BomID, "items": len(input.Items)})
	return request.ID, nil
}

func matchLine(lines []PurchaseLine, item bom.SyncItem) *PurchaseLine {
	for i := range lines {
		if lines[i].Codigo == item.Codigo &&
			lines[i].Descripcion == item.Descripcion &&
			lines[i].Plano == item.Plano {
			return &lines[i]
		}
	}
	return nil
}

// HeaderInput mutates the request header.
type HeaderInput struct {
	Estado   *Status
	TipoPago *TipoPago
}

// UpdateHeader applies header changes. Estado only moves forward.
func (s *Service) UpdateHeader(ctx context.Context, actor shared.Actor, id int64, input HeaderInput) (PurchaseRequest, error) {
	request, _, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return PurchaseRequest{}, err
	}
	if input.TipoPago != nil {
		if request.Estado == StatusCerrada {
			return PurchaseRequest{}, fmt.Errorf("%w: solicitud cerrada", ErrInvalidState)
		}
		if !validTipoPago(*input.TipoPago) {
			return PurchaseRequest{}, fmt.Errorf("%w: tipo_pago %q", ErrValidation, *input.TipoPago)
		}
		request.TipoPago = *input.TipoPago
	}
	if input.Estado != nil && *input.Estado != request.Estado {
		if !canTransition(request.Estado, *input.Estado) {
			return PurchaseRequest{}, fmt.Errorf("%w: %s → %s", ErrInvalidState, request.Estado, *input.Estado)
		}
		request.Estado = *input.Estado
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateRequest(ctx, request)
	})
	if err != nil {
		return PurchaseRequest{}, err
	}
	s.recordAudit(ctx, actor, "SOLICITUD_EDITAR", id, map[string]any{"estado": string(request.Estado)})
	return request, nil
}

// LineInput mutates the purchasing-owned fields of a line. Quantities
// and prices arrive as loose locale text.
type LineInput struct {
	CantidadDisponible   *string
	ProveedorID          *int64
	PrecioUnitario       *string
	ObservacionesCompras *string
	TipoPago             *TipoPago
}

// UpdateLine applies purchasing edits and re-runs the derivation
// inside the same transaction.
func (s *Service) UpdateLine(ctx context.Context, actor shared.Actor, requestID, lineID int64, input LineInput) (PurchaseLine, error) {
	request, lines, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return PurchaseLine{}, err
	}
	if request.Estado == StatusCerrada {
		return PurchaseLine{}, fmt.Errorf("%w: solicitud cerrada", ErrInvalidState)
	}
	var line *PurchaseLine
	for i := range lines {
		if lines[i].ID == lineID {
			line = &lines[i]
			break
		}
	}
	if line == nil {
		return PurchaseLine{}, ErrNotFound
	}
	if input.CantidadDisponible != nil {
		qty, err := parseQuantity(*input.CantidadDisponible)
		if err != nil {
			return PurchaseLine{}, err
		}
		line.CantidadDisponible = qty
	}
	if input.ProveedorID != nil {
		if *input.ProveedorID == 0 {
			line.ProveedorID = nil
		} else {
			if _, err := s.repo.GetSupplier(ctx, *input.ProveedorID); err != nil {
				return PurchaseLine{}, fmt.Errorf("%w: proveedor %d", ErrValidation, *input.ProveedorID)
			}
			line.ProveedorID = input.ProveedorID
		}
	}
	if input.PrecioUnitario != nil {
		if strings.TrimSpace(*input.PrecioUnitario) == "" {
			line.PrecioUnitario = nil
		} else {
			precio, err := money.ParseAmount(*input.PrecioUnitario)
			if err != nil {
				return PurchaseLine{}, err
			}
			line.PrecioUnitario = &precio
		}
	}
	if input.ObservacionesCompras != nil {
		line.ObservacionesCompras = *input.ObservacionesCompras
	}
	if input.TipoPago != nil {
		if !validTipoPago(*input.TipoPago) {
			return PurchaseLine{}, fmt.Errorf("%w: tipo_pago %q", ErrValidation, *input.TipoPago)
		}
		line.TipoPago = *input.TipoPago
	}
	src := s.sourceItem(ctx, line)
	deriveLine(line, request, src)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateLine(ctx, *line)
	})
	if err != nil {
		return PurchaseLine{}, err
	}
	s.recordAudit(ctx, actor, "SOLICITUD_LINEA_EDITAR", requestID, map[string]any{"linea": lineID})
	return *line, nil
}

// AddLine appends a manual line to an open request.
func (s *Service) AddLine(ctx context.Context, actor shared.Actor, requestID int64, descripcion, codigo, plano, unidad string, cantidadRequerida string) (PurchaseLine, error) {
	request, _, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return PurchaseLine{}, err
	}
	if request.Estado == StatusCerrada {
		return PurchaseLine{}, fmt.Errorf("%w: solicitud cerrada", ErrInvalidState)
	}
	if strings.TrimSpace(descripcion) == "" {
		return PurchaseLine{}, fmt.Errorf("%w: descripción requerida", ErrValidation)
	}
	qty, err := parseQuantity(cantidadRequerida)
	if err != nil {
		return PurchaseLine{}, err
	}
	line := PurchaseLine{
		RequestID:         requestID,
		Plano:             strings.TrimSpace(plano),
		Codigo:            strings.TrimSpace(codigo),
		Descripcion:       strings.TrimSpace(descripcion),
		Unidad:            strings.TrimSpace(unidad),
		CantidadRequerida: qty,
	}
	deriveLine(&line, request, nil)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertLine(ctx, line)
		if err != nil {
			return err
		}
		line.ID = id
		return nil
	})
	if err != nil {
		return PurchaseLine{}, err
	}
	s.recordAudit(ctx, actor, "SOLICITUD_LINEA_AGREGAR", requestID, map[string]any{"codigo": line.Codigo})
	return line, nil
}

// sourceItem resolves the line's BOM item when a reader is wired.
func (s *Service) sourceItem(ctx context.Context, line *PurchaseLine) *bom.BomItem {
	if s.boms == nil || line.BomItemID == nil {
		return nil
	}
	item, err := s.boms.GetItem(ctx, *line.BomItemID)
	if err != nil {
		return nil
	}
	return &item
}

// Get returns one request with lines.
func (s *Service) Get(ctx context.Context, id int64) (PurchaseRequest, []PurchaseLine, error) {
	return s.repo.GetRequest(ctx, id)
}

// GetByBom returns the request derived from a BOM.
func (s *Service) GetByBom(ctx context.Context, bomID int64) (PurchaseRequest, []PurchaseLine, error) {
	return s.repo.GetRequestByBom(ctx, bomID)
}

// List returns a filtered page of requests.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]PurchaseRequest, shared.Pagination, error) {
	items, total, err := s.repo.ListRequests(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Close marks the request CERRADA. Used by the inventory close action.
func (s *Service) Close(ctx context.Context, actor shared.Actor, id int64) error {
	request, _, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if request.Estado == StatusCerrada {
		return nil
	}
	request.Estado = StatusCerrada
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateRequest(ctx, request)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "SOLICITUD_CERRAR", id, nil)
	return nil
}

// SupplierInput describes supplier data.
type SupplierInput struct {
	Nombre         string `validate:"required"`
	Contacto       string
	Telefono       string
	Email          string
	Nit            string
	Banco          string
	CuentaBancaria string
	TipoCuenta     TipoCuenta
}

// CreateSupplier registers a supplier.
func (s *Service) CreateSupplier(ctx context.Context, actor shared.Actor, input SupplierInput) (Supplier, error) {
	sup, err := buildSupplier(input)
	if err != nil {
		return Supplier{}, err
	}
	id, err := s.repo.CreateSupplier(ctx, sup)
	if err != nil {
		return Supplier{}, err
	}
	sup.ID = id
	s.recordAudit(ctx, actor, "PROVEEDOR_CREAR", id, map[string]any{"nombre": sup.Nombre})
	return sup, nil
}

// UpdateSupplier edits a supplier.
func (s *Service) UpdateSupplier(ctx context.Context, actor shared.Actor, id int64, input SupplierInput) (Supplier, error) {
	if _, err := s.repo.GetSupplier(ctx, id); err != nil {
		return Supplier{}, err
	}
	sup, err := buildSupplier(input)
	if err != nil {
		return Supplier{}, err
	}
	sup.ID = id
	if err := s.repo.UpdateSupplier(ctx, sup); err != nil {
		return Supplier{}, err
	}
	s.recordAudit(ctx, actor, "PROVEEDOR_EDITAR", id, nil)
	return sup, nil
}

// DeleteSupplier removes a supplier. Refused while referenced by any
// purchase line.
func (s *Service) DeleteSupplier(ctx context.Context, actor shared.Actor, id int64) error {
	if err := s.repo.DeleteSupplier(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "PROVEEDOR_ELIMINAR", id, nil)
	return nil
}

// GetSupplier returns one supplier.
func (s *Service) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

// ListSuppliers returns suppliers matching the search.
func (s *Service) ListSuppliers(ctx context.Context, search string) ([]Supplier, error) {
	return s.repo.ListSuppliers(ctx, search)
}

func buildSupplier(input SupplierInput) (Supplier, error) {
	if strings.TrimSpace(input.Nombre) == "" {
		return Supplier{}, fmt.Errorf("%w: nombre requerido", ErrValidation)
	}
	switch input.TipoCuenta {
	case "", CuentaAhorros, CuentaCorriente:
	default:
		return Supplier{}, fmt.Errorf("%w: tipo_cuenta %q", ErrValidation, input.TipoCuenta)
	}
	return Supplier{
		Nombre:         strings.TrimSpace(input.Nombre),
		Contacto:       strings.TrimSpace(input.Contacto),
		Telefono:       strings.TrimSpace(input.Telefono),
		Email:          strings.TrimSpace(input.Email),
		Nit:            strings.TrimSpace(input.Nit),
		Banco:          strings.TrimSpace(input.Banco),
		CuentaBancaria: strings.TrimSpace(input.CuentaBancaria),
		TipoCuenta:     input.TipoCuenta,
	}, nil
}

func parseQuantity(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero.Round(money.QuantityScale), nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: cantidad %q", ErrValidation, raw)
	}
	if v.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: cantidad negativa %q", ErrValidation, raw)
	}
	return v.Round(money.QuantityScale), nil
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "solicitud_compra",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
