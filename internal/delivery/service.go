package delivery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/impetus-erp/impetus-erp/internal/money"
	"github.com/impetus-erp/impetus-erp/internal/purchasing"
	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Delivery, []Line, error)
	GetBySolicitud(ctx context.Context, solicitudID int64) (Delivery, []Line, error)
	List(ctx context.Context, filter ListFilter) ([]Delivery, int, error)
}

// PurchasingPort reads the purchase request behind a delivery.
type PurchasingPort interface {
	Get(ctx context.Context, id int64) (purchasing.PurchaseRequest, []purchasing.PurchaseLine, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates workshop deliveries.
type Service struct {
	repo  RepositoryPort
	buys  PurchasingPort
	audit AuditPort
}

// NewService constructs delivery service.
func NewService(repo RepositoryPort, buys PurchasingPort, audit AuditPort) *Service {
	return &Service{repo: repo, buys: buys, audit: audit}
}

// ListFilter narrows delivery listings.
type ListFilter struct {
	Page    int
	PerPage int
}

// GetOrCreate returns the delivery for a purchase request, creating it
// with snapshot lines on first call. New qualifying purchase lines are
// adopted on later calls; existing snapshots stay untouched.
func (s *Service) GetOrCreate(ctx context.Context, actor shared.Actor, solicitudID int64) (Delivery, []Line, error) {
	_, purchaseLines, err := s.buys.Get(ctx, solicitudID)
	if err != nil {
		return Delivery{}, nil, err
	}

	d, lines, err := s.repo.GetBySolicitud(ctx, solicitudID)
	created := false
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrNotFound):
		d = Delivery{SolicitudID: solicitudID, CreadoPor: actor.ID}
		created = true
	default:
		return Delivery{}, nil, err
	}

	tracked := make(map[int64]bool, len(lines))
	for _, l := range lines {
		tracked[l.PurchaseLineID] = true
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if created {
			id, err := tx.CreateDelivery(ctx, d)
			if err != nil {
				return err
			}
			d.ID = id
		}
		for _, pl := range purchaseLines {
			if tracked[pl.ID] {
				continue
			}
			line := Line{
				DeliveryID:        d.ID,
				PurchaseLineID:    pl.ID,
				Codigo:            pl.Codigo,
				Descripcion:       pl.Descripcion,
				Unidad:            pl.Unidad,
				CantidadRequerida: money.Quantity(pl.CantidadRequerida),
			}
			if _, err := tx.InsertLine(ctx, line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Delivery{}, nil, err
	}
	if created {
		s.recordAudit(ctx, actor, "ENTREGA_CREAR", d.ID, map[string]any{"solicitud": solicitudID})
	}
	return s.repo.GetBySolicitud(ctx, solicitudID)
}

// UpdateComentarios edits the act's comments.
func (s *Service) UpdateComentarios(ctx context.Context, actor shared.Actor, id int64, comentarios string) (Delivery, error) {
	d, _, err := s.repo.Get(ctx, id)
	if err != nil {
		return Delivery{}, err
	}
	d.Comentarios = comentarios
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateDelivery(ctx, d)
	})
	if err != nil {
		return Delivery{}, err
	}
	s.recordAudit(ctx, actor, "ENTREGA_EDITAR", id, nil)
	return d, nil
}

// SetDelivered fills in the delivered quantity of one line. An empty
// value clears it back to pending.
func (s *Service) SetDelivered(ctx context.Context, actor shared.Actor, deliveryID, lineID int64, cantidad *string) (Line, error) {
	_, lines, err := s.repo.Get(ctx, deliveryID)
	if err != nil {
		return Line{}, err
	}
	var line *Line
	for i := range lines {
		if lines[i].ID == lineID {
			line = &lines[i]
			break
		}
	}
	if line == nil {
		return Line{}, ErrNotFound
	}

	if cantidad == nil || strings.TrimSpace(*cantidad) == "" {
		line.CantidadEntregada = nil
	} else {
		v, err := decimal.NewFromString(strings.TrimSpace(*cantidad))
		if err != nil {
			return Line{}, fmt.Errorf("%w: cantidad %q", ErrValidation, *cantidad)
		}
		if v.IsNegative() {
			return Line{}, fmt.Errorf("%w: cantidad negativa %q", ErrValidation, *cantidad)
		}
		qty := v.Round(money.QuantityScale)
		line.CantidadEntregada = &qty
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateLine(ctx, *line)
	})
	if err != nil {
		return Line{}, err
	}
	s.recordAudit(ctx, actor, "ENTREGA_LINEA_EDITAR", deliveryID, map[string]any{"linea": lineID})
	return *line, nil
}

// Get returns one delivery with lines.
func (s *Service) Get(ctx context.Context, id int64) (Delivery, []Line, error) {
	return s.repo.Get(ctx, id)
}

// GetBySolicitud returns the delivery attached to a purchase request
// without creating one.
func (s *Service) GetBySolicitud(ctx context.Context, solicitudID int64) (Delivery, []Line, error) {
	return s.repo.GetBySolicitud(ctx, solicitudID)
}

// List returns a page of deliveries.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Delivery, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "entrega",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
