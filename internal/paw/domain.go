// Package paw manages work authorizations, the project header linking
// a quotation with its work orders, purchasing and invoicing.
package paw

import (
	"fmt"
	"time"

	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// Paw domain model.
type Paw struct {
	ID           int64
	Numero       string
	Nombre       string
	QuotationID  *int64
	Cliente      string
	Campo        string
	FechaEntrega *time.Time
	FechaSalida  *time.Time
	CreadoPor    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("paw: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("paw: %w", shared.ErrValidation)
	// ErrProtected refuses deletion while work orders or an invoice
	// reference the PAW.
	ErrProtected = fmt.Errorf("paw: %w", shared.ErrProtected)
)
