package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/impetus-erp/impetus-erp/internal/money"
	"github.com/impetus-erp/impetus-erp/internal/purchasing"
	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Reception, []Line, error)
	GetBySolicitud(ctx context.Context, solicitudID int64) (Reception, []Line, error)
	List(ctx context.Context, filter ListFilter) ([]Reception, int, error)
	PawIDForSolicitud(ctx context.Context, solicitudID int64) (int64, error)
}

// PurchasingPort reads and closes the purchase request behind a
// reception.
type PurchasingPort interface {
	Get(ctx context.Context, id int64) (purchasing.PurchaseRequest, []purchasing.PurchaseLine, error)
	Close(ctx context.Context, actor shared.Actor, id int64) error
}

// WorkOrderPort finishes the PAW's work orders on close.
type WorkOrderPort interface {
	MarkTerminadaByPaw(ctx context.Context, actor shared.Actor, pawID int64) (int, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates receptions.
type Service struct {
	repo   RepositoryPort
	buys   PurchasingPort
	orders WorkOrderPort
	audit  AuditPort
}

// NewService constructs inventory service.
func NewService(repo RepositoryPort, buys PurchasingPort, orders WorkOrderPort, audit AuditPort) *Service {
	return &Service{repo: repo, buys: buys, orders: orders, audit: audit}
}

// ListFilter narrows reception listings.
type ListFilter struct {
	Page    int
	PerPage int
}

// Send creates the reception for a purchase request, one line per
// buyable purchase line. Get-or-create: a second call only adds lines
// for purchase lines that joined since, never refreshes frozen
// expectations.
func (s *Service) Send(ctx context.Context, actor shared.Actor, solicitudID int64) (Reception, error) {
	_, purchaseLines, err := s.buys.Get(ctx, solicitudID)
	if err != nil {
		return Reception{}, err
	}

	reception, lines, err := s.repo.GetBySolicitud(ctx, solicitudID)
	created := false
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrNotFound):
		reception = Reception{SolicitudID: solicitudID, CreadoPor: actor.ID}
		created = true
	default:
		return Reception{}, err
	}

	tracked := make(map[int64]bool, len(lines))
	for _, l := range lines {
		tracked[l.PurchaseLineID] = true
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if created {
			id, err := tx.CreateReception(ctx, reception)
			if err != nil {
				return err
			}
			reception.ID = id
		}
		for _, pl := range purchaseLines {
			if !pl.CantidadAComprar.IsPositive() || tracked[pl.ID] {
				continue
			}
			line := Line{
				ReceptionID:      reception.ID,
				PurchaseLineID:   pl.ID,
				Codigo:           pl.Codigo,
				Descripcion:      pl.Descripcion,
				Unidad:           pl.Unidad,
				CantidadEsperada: money.Quantity(pl.CantidadAComprar),
				Estado:           LinePendiente,
			}
			if _, err := tx.InsertLine(ctx, line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Reception{}, err
	}
	action := "RECEPCION_ACTUALIZAR"
	if created {
		action = "RECEPCION_CREAR"
	}
	s.recordAudit(ctx, actor, action, reception.ID, map[string]any{"solicitud": solicitudID})
	return reception, nil
}

// LineInput mutates one reception line.
type LineInput struct {
	CantidadRecibida *string
	FechaLlegada     *string
	Estado           *LineStatus
	Observacion      *string
}

// UpdateLine applies reception edits on one line.
func (s *Service) UpdateLine(ctx context.Context, actor shared.Actor, receptionID, lineID int64, input LineInput) (Line, error) {
	_, lines, err := s.repo.Get(ctx, receptionID)
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

	if input.CantidadRecibida != nil {
		qty, err := parseQuantity(*input.CantidadRecibida)
		if err != nil {
			return Line{}, err
		}
		line.CantidadRecibida = qty
	}
	if input.FechaLlegada != nil {
		if *input.FechaLlegada == "" {
			line.FechaLlegada = nil
		} else {
			fecha, err := time.Parse("2006-01-02", *input.FechaLlegada)
			if err != nil {
				return Line{}, fmt.Errorf("%w: fecha %q", ErrValidation, *input.FechaLlegada)
			}
			line.FechaLlegada = &fecha
		}
	}
	if input.Estado != nil {
		if !validLineStatus(*input.Estado) {
			return Line{}, fmt.Errorf("%w: estado %q", ErrValidation, *input.Estado)
		}
		line.Estado = *input.Estado
	}
	if input.Observacion != nil {
		line.ObservacionInventario = *input.Observacion
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateLine(ctx, *line)
	})
	if err != nil {
		return Line{}, err
	}
	s.recordAudit(ctx, actor, "RECEPCION_LINEA_EDITAR", receptionID, map[string]any{"linea": lineID})
	return *line, nil
}

// CloseResult reports what the close touched.
type CloseResult struct {
	SolicitudID      int64
	OrdenesTerminada int
}

// CloseAndFinish closes the purchase request and marks the PAW's work
// orders finished. Refused while any reception line is still
// PENDIENTE. Always an explicit action, never automatic.
func (s *Service) CloseAndFinish(ctx context.Context, actor shared.Actor, receptionID int64) (CloseResult, error) {
	reception, lines, err := s.repo.Get(ctx, receptionID)
	if err != nil {
		return CloseResult{}, err
	}
	for _, l := range lines {
		if l.Estado == LinePendiente {
			return CloseResult{}, fmt.Errorf("%w: recepción con líneas pendientes", ErrPrecondition)
		}
	}

	if err := s.buys.Close(ctx, actor, reception.SolicitudID); err != nil {
		return CloseResult{}, err
	}

	result := CloseResult{SolicitudID: reception.SolicitudID}
	pawID, err := s.repo.PawIDForSolicitud(ctx, reception.SolicitudID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return CloseResult{}, err
	}
	if err == nil {
		count, err := s.orders.MarkTerminadaByPaw(ctx, actor, pawID)
		if err != nil {
			return CloseResult{}, err
		}
		result.OrdenesTerminada = count
	}

	s.recordAudit(ctx, actor, "RECEPCION_CERRAR", receptionID, map[string]any{
		"solicitud": reception.SolicitudID, "ordenes": result.OrdenesTerminada,
	})
	return result, nil
}

// Get returns one reception with lines.
func (s *Service) Get(ctx context.Context, id int64) (Reception, []Line, error) {
	return s.repo.Get(ctx, id)
}

// GetBySolicitud returns the reception for a purchase request.
func (s *Service) GetBySolicitud(ctx context.Context, solicitudID int64) (Reception, []Line, error) {
	return s.repo.GetBySolicitud(ctx, solicitudID)
}

// List returns a page of receptions.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Reception, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
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

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "recepcion",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
