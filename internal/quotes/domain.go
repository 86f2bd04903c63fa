// Package quotes manages commercial quotations, the entry point of the
// purchase-to-pay chain. An awarded quotation backs a PAW.
package quotes

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// Quotation lifecycle statuses.
type Status string

const (
	StatusEvaluacion Status = "EVALUACION"
	StatusAdjudicada Status = "ADJUDICADA"
	StatusCerrada    Status = "CERRADA"
)

// Issuing company.
type Empresa string

const (
	EmpresaImpetus Empresa = "IMPETUS"
	EmpresaOilGas  Empresa = "OIL_GAS"
)

// Quotation domain model.
type Quotation struct {
	ID              int64
	Numero          string
	Nombre          string
	Cliente         string
	Campo           string
	FechaCotizacion *time.Time
	Estado          Status
	Empresa         Empresa
	Valor           decimal.Decimal
	Observaciones   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("cotizaciones: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("cotizaciones: %w", shared.ErrValidation)
	// ErrProtected refuses deletion while a PAW references the quotation.
	ErrProtected = fmt.Errorf("cotizaciones: %w", shared.ErrProtected)
)

func validStatus(s Status) bool {
	switch s {
	case StatusEvaluacion, StatusAdjudicada, StatusCerrada:
		return true
	}
	return false
}

func validEmpresa(e Empresa) bool {
	switch e {
	case EmpresaImpetus, EmpresaOilGas:
		return true
	}
	return false
}
