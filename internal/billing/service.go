package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/impetus-erp/impetus-erp/internal/catalog"
	"github.com/impetus-erp/impetus-erp/internal/money"
	"github.com/impetus-erp/impetus-erp/internal/paw"
	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// RepositoryPort is the persistence contract.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	Get(ctx context.Context, id int64) (Factura, error)
	GetByPaw(ctx context.Context, pawID int64) (Factura, error)
	List(ctx context.Context, filter ListFilter) ([]Factura, int, error)
}

// TxRepository runs inside a transaction.
type TxRepository interface {
	Create(ctx context.Context, f Factura) (int64, error)
	Update(ctx context.Context, f Factura) error
}

// PawPort exposes the PAW the invoice belongs to.
type PawPort interface {
	Get(ctx context.Context, id int64) (paw.Paw, error)
}

// CatalogPort validates the billed item reference.
type CatalogPort interface {
	Get(ctx context.Context, id int64) (catalog.Item, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service holds billing use cases.
type Service struct {
	repo  RepositoryPort
	paws  PawPort
	items CatalogPort
	audit AuditPort
}

func NewService(repo RepositoryPort, paws PawPort, items CatalogPort, audit AuditPort) *Service {
	return &Service{repo: repo, paws: paws, items: items, audit: audit}
}

// ListFilter narrows List results.
type ListFilter struct {
	Estado   Status
	TipoPago TipoPago
	Page     int
	PerPage  int
}

// GetOrCreate returns the PAW's invoice, creating an empty one in
// estado radicacion the first time it is requested.
func (s *Service) GetOrCreate(ctx context.Context, actor shared.Actor, pawID int64) (Factura, PawHeader, error) {
	p, err := s.paws.Get(ctx, pawID)
	if err != nil {
		return Factura{}, PawHeader{}, err
	}
	header := PawHeader{Numero: p.Numero, Nombre: p.Nombre, Cliente: p.Cliente, Campo: p.Campo}

	f, err := s.repo.GetByPaw(ctx, pawID)
	if err == nil {
		return f, header, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Factura{}, PawHeader{}, err
	}

	f = Factura{PawID: pawID, Estado: StatusRadicacion}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.Create(ctx, f)
		if err != nil {
			return err
		}
		f.ID = id
		return nil
	})
	if err != nil {
		// another request created it first
		if errors.Is(err, shared.ErrDuplicate) {
			f, err = s.repo.GetByPaw(ctx, pawID)
			return f, header, err
		}
		return Factura{}, PawHeader{}, err
	}
	s.recordAudit(ctx, actor, "FACTURA_CREAR", f.ID, map[string]any{"paw": pawID})
	return f, header, nil
}

// Get returns one invoice with its PAW header.
func (s *Service) Get(ctx context.Context, id int64) (Factura, PawHeader, error) {
	f, err := s.repo.Get(ctx, id)
	if err != nil {
		return Factura{}, PawHeader{}, err
	}
	p, err := s.paws.Get(ctx, f.PawID)
	if err != nil {
		return Factura{}, PawHeader{}, err
	}
	return f, PawHeader{Numero: p.Numero, Nombre: p.Nombre, Cliente: p.Cliente, Campo: p.Campo}, nil
}

// List pages invoices.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Factura, shared.Pagination, error) {
	if filter.Estado != "" && !validStatus(filter.Estado) {
		return nil, shared.Pagination{}, fmt.Errorf("%w: estado %q", ErrValidation, filter.Estado)
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// PawSideInput carries the fields the workshop side maintains.
type PawSideInput struct {
	LugarEntrega   *string
	LugarServicio  *string
	NumeroServicio *string
	ItemFacturaID  *int64
	Precio         *string
}

// UpdatePawSide applies the workshop edits. ItemFacturaID zero clears
// the reference, an empty precio clears the amount.
func (s *Service) UpdatePawSide(ctx context.Context, actor shared.Actor, id int64, input PawSideInput) (Factura, error) {
	f, err := s.repo.Get(ctx, id)
	if err != nil {
		return Factura{}, err
	}
	if input.LugarEntrega != nil {
		f.LugarEntrega = *input.LugarEntrega
	}
	if input.LugarServicio != nil {
		f.LugarServicio = *input.LugarServicio
	}
	if input.NumeroServicio != nil {
		f.NumeroServicio = *input.NumeroServicio
	}
	if input.ItemFacturaID != nil {
		if *input.ItemFacturaID == 0 {
			f.ItemFacturaID = nil
		} else {
			if _, err := s.items.Get(ctx, *input.ItemFacturaID); err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return Factura{}, fmt.Errorf("%w: item %d", ErrValidation, *input.ItemFacturaID)
				}
				return Factura{}, err
			}
			itemID := *input.ItemFacturaID
			f.ItemFacturaID = &itemID
		}
	}
	if input.Precio != nil {
		if *input.Precio == "" {
			f.Precio = nil
		} else {
			precio, err := money.ParseAmount(*input.Precio)
			if err != nil {
				return Factura{}, fmt.Errorf("%w: precio %q", ErrValidation, *input.Precio)
			}
			f.Precio = &precio
		}
	}
	if err := s.save(ctx, f); err != nil {
		return Factura{}, err
	}
	s.recordAudit(ctx, actor, "FACTURA_EDITAR_PAW", id, nil)
	return f, nil
}

// FinanceSideInput carries the fields finance maintains.
type FinanceSideInput struct {
	NumeroFactura    *string
	FechaVencimiento *string
	FechaRadicacion  *string
	TipoPago         *TipoPago
	Estado           *Status
}

// UpdateFinanceSide applies the finance edits. Dates use 2006-01-02,
// empty clears.
func (s *Service) UpdateFinanceSide(ctx context.Context, actor shared.Actor, id int64, input FinanceSideInput) (Factura, error) {
	f, err := s.repo.Get(ctx, id)
	if err != nil {
		return Factura{}, err
	}
	if input.NumeroFactura != nil {
		f.NumeroFactura = *input.NumeroFactura
	}
	if input.FechaVencimiento != nil {
		d, err := parseDate(*input.FechaVencimiento, "fecha_vencimiento")
		if err != nil {
			return Factura{}, err
		}
		f.FechaVencimiento = d
	}
	if input.FechaRadicacion != nil {
		d, err := parseDate(*input.FechaRadicacion, "fecha_radicacion")
		if err != nil {
			return Factura{}, err
		}
		f.FechaRadicacion = d
	}
	if input.TipoPago != nil {
		if !validTipoPago(*input.TipoPago) {
			return Factura{}, fmt.Errorf("%w: tipo_pago %q", ErrValidation, *input.TipoPago)
		}
		f.TipoPago = *input.TipoPago
	}
	if input.Estado != nil {
		if !validStatus(*input.Estado) {
			return Factura{}, fmt.Errorf("%w: estado %q", ErrValidation, *input.Estado)
		}
		f.Estado = *input.Estado
	}
	if err := s.save(ctx, f); err != nil {
		return Factura{}, err
	}
	s.recordAudit(ctx, actor, "FACTURA_EDITAR_FINANZAS", id, map[string]any{"estado": string(f.Estado)})
	return f, nil
}

func (s *Service) save(ctx context.Context, f Factura) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Update(ctx, f)
	})
}

func parseDate(raw, field string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q", ErrValidation, field, raw)
	}
	return &parsed, nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "factura",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
