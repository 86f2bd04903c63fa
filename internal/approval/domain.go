// Package approval manages the purchasing approval round. A purchase
// request is sent to approval as a snapshot of its buyable lines;
// finance decides line by line and the header aggregates the verdict.
package approval

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// Line decision states.
type Decision string

const (
	DecisionPendiente Decision = "PENDIENTE"
	DecisionAprobado  Decision = "APROBADO"
	DecisionRechazado Decision = "RECHAZADO"
)

// Aggregate header states derived from line decisions.
type Status string

const (
	StatusPendiente Status = "PENDIENTE"
	StatusParcial   Status = "PARCIAL"
	StatusAprobado  Status = "APROBADO"
	StatusRechazado Status = "RECHAZADO"
)

// Approval is the header, one per purchase request round.
type Approval struct {
	ID          int64
	SolicitudID int64
	Estado      Status
	EnviadoPor  int64
	EnviadoEn   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Line is a frozen snapshot of a buyable purchase line plus the
// finance decision over it.
type Line struct {
	ID                  int64
	ApprovalID          int64
	PurchaseLineID      int64
	Codigo              string
	Descripcion         string
	Unidad              string
	Cantidad            decimal.Decimal
	ValorUnidad         *decimal.Decimal
	ValorTotal          *decimal.Decimal
	Proveedor           string
	Observaciones       string
	EstadoAprobacion    Decision
	ObservacionFinanzas string
	DecididoPor         *int64
	DecididoEn          *time.Time
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("aprobaciones: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("aprobaciones: %w", shared.ErrValidation)
	// ErrPrecondition occurs when a request has nothing to approve.
	ErrPrecondition = fmt.Errorf("aprobaciones: %w", shared.ErrPrecondition)
)

func validDecision(d Decision) bool {
	switch d {
	case DecisionPendiente, DecisionAprobado, DecisionRechazado:
		return true
	}
	return false
}

// computeStatus aggregates line decisions into the header state.
func computeStatus(lines []Line) Status {
	if len(lines) == 0 {
		return StatusPendiente
	}
	var pendientes, aprobados, rechazados int
	for _, l := range lines {
		switch l.EstadoAprobacion {
		case DecisionAprobado:
			aprobados++
		case DecisionRechazado:
			rechazados++
		default:
			pendientes++
		}
	}
	switch {
	case pendientes == len(lines):
		return StatusPendiente
	case aprobados == len(lines):
		return StatusAprobado
	case rechazados == len(lines):
		return StatusRechazado
	default:
		return StatusParcial
	}
}

// mergeObservaciones joins the BOM note and the purchasing note into
// the snapshot text shown to finance.
func mergeObservaciones(bomObs, comprasObs string) string {
	switch {
	case bomObs != "" && comprasObs != "":
		return "BOM: " + bomObs + "\nCOMPRAS: " + comprasObs
	case bomObs != "":
		return "BOM: " + bomObs
	case comprasObs != "":
		return "COMPRAS: " + comprasObs
	}
	return ""
}
