// Package delivery manages the handover of received material to the
// workshop. The printable act leaves cantidad_entregada empty for
// manual completion.
package delivery

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// Delivery is the handover act, one per purchase request.
type Delivery struct {
	ID          int64
	SolicitudID int64
	Comentarios string
	CreadoPor   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Line is a snapshot of one purchase line. CantidadEntregada stays
// nil until someone fills it in.
type Line struct {
	ID                int64
	DeliveryID        int64
	PurchaseLineID    int64
	Codigo            string
	Descripcion       string
	Unidad            string
	CantidadRequerida decimal.Decimal
	CantidadEntregada *decimal.Decimal
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("entregas: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("entregas: %w", shared.ErrValidation)
)
