// Package bom manages bills of materials for work orders. A BOM is
// captured by the workshop, optionally seeded from a template, and
// once sent to inventory (SOLICITUD) it freezes and drives the
// purchase request.
package bom

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// BOM lifecycle statuses. The transition is one way.
type Status string

const (
	StatusBorrador  Status = "BORRADOR"
	StatusSolicitud Status = "SOLICITUD"
)

// Bom domain model, one per work order.
type Bom struct {
	ID           int64
	WorkOrderID  int64
	TemplateID   *int64
	Estado       Status
	Comentarios  string
	SolicitadoEn *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BomItem is one material row.
type BomItem struct {
	ID                 int64
	BomID              int64
	Plano              string
	Codigo             string
	Descripcion        string
	Unidad             string
	CantidadEstandar   decimal.Decimal
	CantidadSolicitada decimal.Decimal
	Observaciones      string
}

// Template is a reusable BOM seed.
type Template struct {
	ID     int64
	Nombre string
	Activo bool
}

// TemplateItem is one row of a template.
type TemplateItem struct {
	ID               int64
	TemplateID       int64
	Plano            string
	Codigo           string
	Descripcion      string
	Unidad           string
	CantidadEstandar decimal.Decimal
	Observaciones    string
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("bom: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("bom: %w", shared.ErrValidation)
	// ErrInvalidState occurs when editing a BOM already in SOLICITUD.
	ErrInvalidState = fmt.Errorf("bom: %w", shared.ErrInvalidState)
	// ErrDuplicate indicates the work order already has a BOM.
	ErrDuplicate = fmt.Errorf("bom: %w", shared.ErrDuplicate)
)
