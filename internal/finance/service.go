package finance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/impetus-erp/impetus-erp/internal/money"
	"github.com/impetus-erp/impetus-erp/internal/purchasing"
	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (FinanceApproval, []Line, error)
	GetBySolicitud(ctx context.Context, solicitudID int64) (FinanceApproval, []Line, error)
	List(ctx context.Context, filter ListFilter) ([]FinanceApproval, int, error)
	DueLines(ctx context.Context, today time.Time) ([]Line, error)
}

// PurchasingPort reads the purchase request behind a payment round.
type PurchasingPort interface {
	Get(ctx context.Context, id int64) (purchasing.PurchaseRequest, []purchasing.PurchaseLine, error)
	GetSupplier(ctx context.Context, id int64) (purchasing.Supplier, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates payment rounds.
type Service struct {
	repo  RepositoryPort
	buys  PurchasingPort
	audit AuditPort
	now   func() time.Time
}

// NewService constructs finance service.
func NewService(repo RepositoryPort, buys PurchasingPort, audit AuditPort) *Service {
	return &Service{repo: repo, buys: buys, audit: audit, now: time.Now}
}

// ListFilter narrows round listings.
type ListFilter struct {
	Estado  string
	Page    int
	PerPage int
}

// Send opens or refreshes the payment round for a purchase request.
// Only CONTADO lines with something to buy make it to the board;
// decided or paid lines keep their state across refreshes.
func (s *Service) Send(ctx context.Context, actor shared.Actor, solicitudID int64) (FinanceApproval, error) {
	round, _, err := s.repo.GetBySolicitud(ctx, solicitudID)
	created := false
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrNotFound):
		round = FinanceApproval{SolicitudID: solicitudID, Estado: StatusPendiente}
		created = true
	default:
		return FinanceApproval{}, err
	}
	round.EnviadoPor = actor.ID
	round.EnviadoEn = s.now()

	request, purchaseLines, err := s.buys.Get(ctx, solicitudID)
	if err != nil {
		return FinanceApproval{}, err
	}
	payable := make([]purchasing.PurchaseLine, 0, len(purchaseLines))
	for _, pl := range purchaseLines {
		if !pl.CantidadAComprar.IsPositive() {
			continue
		}
		tipo := pl.TipoPago
		if tipo == "" {
			tipo = request.TipoPago
		}
		if tipo == purchasing.TipoPagoContado {
			payable = append(payable, pl)
		}
	}
	if created && len(payable) == 0 {
		return FinanceApproval{}, fmt.Errorf("%w: la solicitud no tiene líneas de contado", ErrPrecondition)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if created {
			id, err := tx.CreateRound(ctx, round)
			if err != nil {
				return err
			}
			round.ID = id
		} else if err := tx.UpdateRound(ctx, round); err != nil {
			return err
		}

		existing, err := tx.Lines(ctx, round.ID)
		if err != nil {
			return err
		}
		byPurchaseLine := make(map[int64]*Line, len(existing))
		for i := range existing {
			byPurchaseLine[existing[i].PurchaseLineID] = &existing[i]
		}

		kept := make(map[int64]bool, len(payable))
		for _, pl := range payable {
			kept[pl.ID] = true
			snapshot := s.snapshotLine(ctx, round.ID, pl)
			current, ok := byPurchaseLine[pl.ID]
			if !ok {
				if _, err := tx.InsertLine(ctx, snapshot); err != nil {
					return err
				}
				continue
			}
			if current.Estado != DecisionPendiente || current.Pagado {
				continue
			}
			snapshot.ID = current.ID
			if err := tx.UpdateLine(ctx, snapshot); err != nil {
				return err
			}
		}
		for _, l := range existing {
			if kept[l.PurchaseLineID] || l.Estado != DecisionPendiente || l.Pagado {
				continue
			}
			if err := tx.DeleteLine(ctx, l.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return FinanceApproval{}, err
	}
	action := "PAGO_REENVIAR"
	if created {
		action = "PAGO_ENVIAR"
	}
	s.recordAudit(ctx, actor, action, round.ID, map[string]any{"solicitud": solicitudID})
	return round, nil
}

func (s *Service) snapshotLine(ctx context.Context, roundID int64, pl purchasing.PurchaseLine) Line {
	line := Line{
		FinanceID:      roundID,
		PurchaseLineID: pl.ID,
		Codigo:         pl.Codigo,
		Descripcion:    pl.Descripcion,
		Unidad:         pl.Unidad,
		Cantidad:       money.Quantity(pl.CantidadAComprar),
		Estado:         DecisionPendiente,
	}
	if pl.PrecioUnitario != nil {
		unit := pl.PrecioUnitario.Round(money.PriceScale)
		total := line.Cantidad.Mul(unit).Round(money.PriceScale)
		line.ValorUnidad = &unit
		line.ValorTotal = &total
	}
	if pl.ProveedorID != nil {
		if sup, err := s.buys.GetSupplier(ctx, *pl.ProveedorID); err == nil {
			line.Proveedor = sup.Nombre
		}
	}
	return line
}

// DecisionInput carries one scheduling verdict.
type DecisionInput struct {
	Estado          Decision
	FechaProgramada *string
	NotaAdmin       *string
}

// MarkDecision records a scheduling verdict on one line. The decision
// stamp is set when leaving PENDIENTE and cleared when returning.
func (s *Service) MarkDecision(ctx context.Context, actor shared.Actor, roundID, lineID int64, input DecisionInput) (Line, error) {
	if !validDecision(input.Estado) {
		return Line{}, fmt.Errorf("%w: estado %q", ErrValidation, input.Estado)
	}
	line, err := s.findLine(ctx, roundID, lineID)
	if err != nil {
		return Line{}, err
	}
	if line.Pagado {
		return Line{}, fmt.Errorf("%w: línea ya pagada", ErrPrecondition)
	}

	previous := line.Estado
	line.Estado = input.Estado
	if input.NotaAdmin != nil {
		line.NotaAdmin = *input.NotaAdmin
	}
	if input.FechaProgramada != nil {
		if *input.FechaProgramada == "" {
			line.FechaProgramada = nil
		} else {
			fecha, err := time.Parse("2006-01-02", *input.FechaProgramada)
			if err != nil {
				return Line{}, fmt.Errorf("%w: fecha %q", ErrValidation, *input.FechaProgramada)
			}
			line.FechaProgramada = &fecha
		}
	}
	if input.Estado == DecisionProgramado && line.FechaProgramada == nil {
		return Line{}, fmt.Errorf("%w: PROGRAMADO requiere fecha", ErrValidation)
	}
	switch {
	case input.Estado == DecisionPendiente:
		line.DecididoPor = nil
		line.DecididoEn = nil
	case previous == DecisionPendiente || previous == "":
		when := s.now()
		line.DecididoPor = &actor.ID
		line.DecididoEn = &when
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateLine(ctx, line)
	})
	if err != nil {
		return Line{}, err
	}
	s.recordAudit(ctx, actor, "PAGO_DECIDIR", roundID, map[string]any{
		"linea": lineID, "estado": string(input.Estado),
	})
	return line, nil
}

// MarkPaid stamps a line as paid. Refused when the gate fails.
func (s *Service) MarkPaid(ctx context.Context, actor shared.Actor, roundID, lineID int64) (Line, error) {
	line, err := s.findLine(ctx, roundID, lineID)
	if err != nil {
		return Line{}, err
	}
	if !CanBePaidToday(line, s.now()) {
		return Line{}, fmt.Errorf("%w: la línea no está habilitada para pago hoy", ErrPrecondition)
	}
	when := s.now()
	line.Pagado = true
	line.PagadoEn = &when
	line.PagadoPor = &actor.ID

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateLine(ctx, line)
	})
	if err != nil {
		return Line{}, err
	}
	s.recordAudit(ctx, actor, "PAGO_MARCAR", roundID, map[string]any{"linea": lineID})
	return line, nil
}

// UnmarkPaid reverts a paid mark.
func (s *Service) UnmarkPaid(ctx context.Context, actor shared.Actor, roundID, lineID int64) (Line, error) {
	line, err := s.findLine(ctx, roundID, lineID)
	if err != nil {
		return Line{}, err
	}
	line.Pagado = false
	line.PagadoEn = nil
	line.PagadoPor = nil

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateLine(ctx, line)
	})
	if err != nil {
		return Line{}, err
	}
	s.recordAudit(ctx, actor, "PAGO_DESMARCAR", roundID, map[string]any{"linea": lineID})
	return line, nil
}

// SetHeaderStatus moves the header verdict. Independent of lines.
func (s *Service) SetHeaderStatus(ctx context.Context, actor shared.Actor, roundID int64, estado Status) (FinanceApproval, error) {
	if !validStatus(estado) {
		return FinanceApproval{}, fmt.Errorf("%w: estado %q", ErrValidation, estado)
	}
	round, _, err := s.repo.Get(ctx, roundID)
	if err != nil {
		return FinanceApproval{}, err
	}
	round.Estado = estado
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateRound(ctx, round)
	})
	if err != nil {
		return FinanceApproval{}, err
	}
	s.recordAudit(ctx, actor, "PAGO_ENCABEZADO", roundID, map[string]any{"estado": string(estado)})
	return round, nil
}

func (s *Service) findLine(ctx context.Context, roundID, lineID int64) (Line, error) {
	_, lines, err := s.repo.Get(ctx, roundID)
	if err != nil {
		return Line{}, err
	}
	for _, l := range lines {
		if l.ID == lineID {
			return l, nil
		}
	}
	return Line{}, ErrNotFound
}

// Get returns one round with lines.
func (s *Service) Get(ctx context.Context, id int64) (FinanceApproval, []Line, error) {
	return s.repo.Get(ctx, id)
}

// GetBySolicitud returns the round for a purchase request.
func (s *Service) GetBySolicitud(ctx context.Context, solicitudID int64) (FinanceApproval, []Line, error) {
	return s.repo.GetBySolicitud(ctx, solicitudID)
}

// List returns a filtered page of rounds.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]FinanceApproval, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// DueToday lists unpaid lines passing the gate today. Used by the
// worker scan.
func (s *Service) DueToday(ctx context.Context) ([]Line, error) {
	return s.repo.DueLines(ctx, s.now())
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "pago",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
