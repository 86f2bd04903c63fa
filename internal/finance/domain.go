// Package finance manages the payment round over CONTADO purchase
// lines: scheduling, the payable-today gate and the paid mark.
package finance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// Line decision states. Transitions are free, finance corrects itself
// all the time.
type Decision string

const (
	DecisionPendiente  Decision = "PENDIENTE"
	DecisionAprobado   Decision = "APROBADO"
	DecisionProgramado Decision = "PROGRAMADO"
	DecisionEnEspera   Decision = "EN_ESPERA"
	DecisionRechazado  Decision = "RECHAZADO"
)

// Header states, coarse and independent of line decisions.
type Status string

const (
	StatusPendiente Status = "PENDIENTE"
	StatusAprobado  Status = "APROBADO"
	StatusRechazado Status = "RECHAZADO"
)

// FinanceApproval is the payment round header, one per purchase
// request.
type FinanceApproval struct {
	ID          int64
	SolicitudID int64
	Estado      Status
	EnviadoPor  int64
	EnviadoEn   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Line is one CONTADO purchase line under payment control.
type Line struct {
	ID              int64
	FinanceID       int64
	PurchaseLineID  int64
	Codigo          string
	Descripcion     string
	Unidad          string
	Cantidad        decimal.Decimal
	ValorUnidad     *decimal.Decimal
	ValorTotal      *decimal.Decimal
	Proveedor       string
	Estado          Decision
	FechaProgramada *time.Time
	NotaAdmin       string
	DecididoPor     *int64
	DecididoEn      *time.Time
	Pagado          bool
	PagadoEn        *time.Time
	PagadoPor       *int64
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("finanzas: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("finanzas: %w", shared.ErrValidation)
	// ErrPrecondition occurs when a line fails the payable-today gate.
	ErrPrecondition = fmt.Errorf("finanzas: %w", shared.ErrPrecondition)
)

func validDecision(d Decision) bool {
	switch d {
	case DecisionPendiente, DecisionAprobado, DecisionProgramado, DecisionEnEspera, DecisionRechazado:
		return true
	}
	return false
}

func validStatus(s Status) bool {
	switch s {
	case StatusPendiente, StatusAprobado, StatusRechazado:
		return true
	}
	return false
}

// CanBePaidToday decides whether a line passes the payment gate on a
// given day. A paid line never passes again.
func CanBePaidToday(l Line, today time.Time) bool {
	if l.Pagado {
		return false
	}
	switch l.Estado {
	case DecisionAprobado:
		return true
	case DecisionProgramado:
		if l.FechaProgramada == nil {
			return false
		}
		y1, m1, d1 := l.FechaProgramada.Date()
		y2, m2, d2 := today.Date()
		scheduled := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
		day := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
		return !scheduled.After(day)
	}
	return false
}
