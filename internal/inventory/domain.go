// Package inventory manages the reception of purchased material and
// the close that finishes the purchase-to-pay cycle.
package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// Reception line states.
type LineStatus string

const (
	LinePendiente LineStatus = "PENDIENTE"
	LineListo     LineStatus = "LISTO"
)

// Reception is the header, one per purchase request.
type Reception struct {
	ID          int64
	SolicitudID int64
	CreadoPor   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Line tracks arrival of one purchase line. CantidadEsperada freezes
// at creation and never refreshes.
type Line struct {
	ID                    int64
	ReceptionID           int64
	PurchaseLineID        int64
	Codigo                string
	Descripcion           string
	Unidad                string
	CantidadEsperada      decimal.Decimal
	CantidadRecibida      decimal.Decimal
	FechaLlegada          *time.Time
	Estado                LineStatus
	ObservacionInventario string
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("inventario: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("inventario: %w", shared.ErrValidation)
	// ErrPrecondition occurs when closing with pending receptions.
	ErrPrecondition = fmt.Errorf("inventario: %w", shared.ErrPrecondition)
)

func validLineStatus(s LineStatus) bool {
	return s == LinePendiente || s == LineListo
}
