package approval

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
	Get(ctx context.Context, id int64) (Approval, []Line, error)
	GetBySolicitud(ctx context.Context, solicitudID int64) (Approval, []Line, error)
	List(ctx context.Context, filter ListFilter) ([]Approval, int, error)
}

// PurchasingPort reads the purchase request this round snapshots.
type PurchasingPort interface {
	Get(ctx context.Context, id int64) (purchasing.PurchaseRequest, []purchasing.PurchaseLine, error)
	GetSupplier(ctx context.Context, id int64) (purchasing.Supplier, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates approval rounds.
type Service struct {
	repo  RepositoryPort
	buys  PurchasingPort
	audit AuditPort
	now   func() time.Time
}

// NewService constructs approval service.
func NewService(repo RepositoryPort, buys PurchasingPort, audit AuditPort) *Service {
	return &Service{repo: repo, buys: buys, audit: audit, now: time.Now}
}

// ListFilter narrows approval listings.
type ListFilter struct {
	Estado  string
	Page    int
	PerPage int
}

// Send opens or refreshes the approval round for a purchase request.
// Only lines with a positive quantity to buy are snapshotted; on a
// re-send, decided lines keep their frozen snapshot.
func (s *Service) Send(ctx context.Context, actor shared.Actor, solicitudID int64) (Approval, error) {
	approval, _, err := s.repo.GetBySolicitud(ctx, solicitudID)
	created := false
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrNotFound):
		approval = Approval{SolicitudID: solicitudID, Estado: StatusPendiente}
		created = true
	default:
		return Approval{}, err
	}
	approval.EnviadoPor = actor.ID
	approval.EnviadoEn = s.now()

	if err := s.syncLines(ctx, &approval, created, true); err != nil {
		return Approval{}, err
	}
	action := "APROBACION_REENVIAR"
	if created {
		action = "APROBACION_ENVIAR"
	}
	s.recordAudit(ctx, actor, action, approval.ID, map[string]any{"solicitud": solicitudID})
	return approval, nil
}

// Refresh re-snapshots the round from the current purchase lines.
// With pendingOnly, decided lines keep their frozen snapshot.
func (s *Service) Refresh(ctx context.Context, actor shared.Actor, solicitudID int64, pendingOnly bool) (Approval, error) {
	approval, _, err := s.repo.GetBySolicitud(ctx, solicitudID)
	if err != nil {
		return Approval{}, err
	}
	if err := s.syncLines(ctx, &approval, false, pendingOnly); err != nil {
		return Approval{}, err
	}
	s.recordAudit(ctx, actor, "APROBACION_SINCRONIZAR", approval.ID, map[string]any{"solo_pendientes": pendingOnly})
	return approval, nil
}

func (s *Service) syncLines(ctx context.Context, approval *Approval, created, pendingOnly bool) error {
	_, purchaseLines, err := s.buys.Get(ctx, approval.SolicitudID)
	if err != nil {
		return err
	}
	buyable := make([]purchasing.PurchaseLine, 0, len(purchaseLines))
	for _, pl := range purchaseLines {
		if pl.CantidadAComprar.IsPositive() {
			buyable = append(buyable, pl)
		}
	}
	if created && len(buyable) == 0 {
		return fmt.Errorf("%w: la solicitud no tiene líneas por comprar", ErrPrecondition)
	}

	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if created {
			id, err := tx.CreateApproval(ctx, *approval)
			if err != nil {
				return err
			}
			approval.ID = id
		} else if err := tx.UpdateApproval(ctx, *approval); err != nil {
			return err
		}

		var existing []Line
		if !created {
			lines, err := tx.Lines(ctx, approval.ID)
			if err != nil {
				return err
			}
			existing = lines
		}
		byPurchaseLine := make(map[int64]*Line, len(existing))
		for i := range existing {
			byPurchaseLine[existing[i].PurchaseLineID] = &existing[i]
		}

		kept := make(map[int64]bool, len(buyable))
		for _, pl := range buyable {
			kept[pl.ID] = true
			snapshot := s.snapshotLine(ctx, approval.ID, pl)
			current, ok := byPurchaseLine[pl.ID]
			if !ok {
				if _, err := tx.InsertLine(ctx, snapshot); err != nil {
					return err
				}
				continue
			}
			if pendingOnly && current.EstadoAprobacion != DecisionPendiente {
				continue
			}
			snapshot.ID = current.ID
			snapshot.EstadoAprobacion = current.EstadoAprobacion
			snapshot.ObservacionFinanzas = current.ObservacionFinanzas
			snapshot.DecididoPor = current.DecididoPor
			snapshot.DecididoEn = current.DecididoEn
			if err := tx.UpdateLine(ctx, snapshot); err != nil {
				return err
			}
		}
		// líneas que dejaron de ser comprables salen del tablero
		// mientras nadie las haya decidido
		for _, l := range existing {
			if kept[l.PurchaseLineID] || l.EstadoAprobacion != DecisionPendiente {
				continue
			}
			if err := tx.DeleteLine(ctx, l.ID); err != nil {
				return err
			}
		}
		return s.recompute(ctx, tx, approval)
	})
}

func (s *Service) snapshotLine(ctx context.Context, approvalID int64, pl purchasing.PurchaseLine) Line {
	line := Line{
		ApprovalID:       approvalID,
		PurchaseLineID:   pl.ID,
		Codigo:           pl.Codigo,
		Descripcion:      pl.Descripcion,
		Unidad:           pl.Unidad,
		Cantidad:         money.Quantity(pl.CantidadAComprar),
		Observaciones:    mergeObservaciones(pl.ObservacionesBom, pl.ObservacionesCompras),
		EstadoAprobacion: DecisionPendiente,
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

// DecideInput carries one finance verdict.
type DecideInput struct {
	Estado      Decision
	Observacion *string
}

// Decide records a finance verdict on one line and re-aggregates the
// header. Verdicts move freely among the three states; the decision
// stamp is set when leaving PENDIENTE and cleared when returning.
func (s *Service) Decide(ctx context.Context, actor shared.Actor, approvalID, lineID int64, input DecideInput) (Line, error) {
	if !validDecision(input.Estado) {
		return Line{}, fmt.Errorf("%w: estado %q", ErrValidation, input.Estado)
	}
	approval, lines, err := s.repo.Get(ctx, approvalID)
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

	previous := line.EstadoAprobacion
	line.EstadoAprobacion = input.Estado
	if input.Observacion != nil {
		line.ObservacionFinanzas = *input.Observacion
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
		if err := tx.UpdateLine(ctx, *line); err != nil {
			return err
		}
		return s.recompute(ctx, tx, &approval)
	})
	if err != nil {
		return Line{}, err
	}
	s.recordAudit(ctx, actor, "APROBACION_DECIDIR", approvalID, map[string]any{
		"linea": lineID, "estado": string(input.Estado),
	})
	return *line, nil
}

func (s *Service) recompute(ctx context.Context, tx TxRepository, approval *Approval) error {
	lines, err := tx.Lines(ctx, approval.ID)
	if err != nil {
		return err
	}
	estado := computeStatus(lines)
	if estado == approval.Estado {
		return nil
	}
	approval.Estado = estado
	return tx.UpdateApproval(ctx, *approval)
}

// Get returns one round with lines.
func (s *Service) Get(ctx context.Context, id int64) (Approval, []Line, error) {
	return s.repo.Get(ctx, id)
}

// GetBySolicitud returns the round for a purchase request.
func (s *Service) GetBySolicitud(ctx context.Context, solicitudID int64) (Approval, []Line, error) {
	return s.repo.GetBySolicitud(ctx, solicitudID)
}

// List returns a filtered page of rounds.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Approval, shared.Pagination, error) {
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
		Entity:   "aprobacion",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
