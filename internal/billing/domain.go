// Package billing manages the factura attached to each PAW. The PAW
// side fills service and pricing data; finance fills filing dates and
// the invoice number.
package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// Invoice lifecycle states.
type Status string

const (
	StatusRadicacion Status = "radicacion"
	StatusFacturado  Status = "facturado"
	StatusVencida    Status = "vencida"
)

// Collection modes.
type TipoPago string

const (
	PagoDirecto TipoPago = "directo"
	PagoEndoso  TipoPago = "endoso"
)

// Factura is the invoice, one per PAW.
type Factura struct {
	ID     int64
	PawID  int64
	Estado Status

	// PAW side
	LugarEntrega   string
	LugarServicio  string
	NumeroServicio string
	ItemFacturaID  *int64
	Precio         *decimal.Decimal

	// finance side
	NumeroFactura    string
	FechaVencimiento *time.Time
	FechaRadicacion  *time.Time
	TipoPago         TipoPago

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PawHeader carries the read-only PAW context shown with the invoice.
type PawHeader struct {
	Numero  string
	Nombre  string
	Cliente string
	Campo   string
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("facturas: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("facturas: %w", shared.ErrValidation)
	// ErrDuplicate occurs on a repeated numero_factura.
	ErrDuplicate = fmt.Errorf("facturas: %w", shared.ErrDuplicate)
)

func validStatus(s Status) bool {
	switch s {
	case StatusRadicacion, StatusFacturado, StatusVencida:
		return true
	}
	return false
}

func validTipoPago(tp TipoPago) bool {
	switch tp {
	case "", PagoDirecto, PagoEndoso:
		return true
	}
	return false
}
