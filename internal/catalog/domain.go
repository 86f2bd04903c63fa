// Package catalog maintains the purchasable item master. Rows come in
// through bulk imports keyed by the natural code and feed BOM capture.
package catalog

import (
	"fmt"
	"time"

	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// Item is a catalog row identified by its natural code.
type Item struct {
	ID              int64
	Codigo          string
	Descripcion     string
	UnidadMedida    string
	Clasificacion   string
	GrupoInventario string
	Activo          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("catalogo: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("catalogo: %w", shared.ErrValidation)
)
