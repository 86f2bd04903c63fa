// Package purchasing manages purchase requests and their lines,
// derived from a submitted BOM. It owns the quantity shortfall
// derivation and the supplier master.
package purchasing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// Purchase request lifecycle statuses. Transitions are forward only.
type Status string

const (
	StatusBorrador   Status = "BORRADOR"
	StatusEnRevision Status = "EN_REVISION"
	StatusCerrada    Status = "CERRADA"
)

// Payment classification. Empty means not yet decided.
type TipoPago string

const (
	TipoPagoCredito TipoPago = "CREDITO"
	TipoPagoContado TipoPago = "CONTADO"
)

// Bank account kinds for suppliers.
type TipoCuenta string

const (
	CuentaAhorros   TipoCuenta = "AHORROS"
	CuentaCorriente TipoCuenta = "CORRIENTE"
)

// PurchaseRequest domain model, one per BOM.
type PurchaseRequest struct {
	ID        int64
	BomID     int64
	Estado    Status
	TipoPago  TipoPago
	PawNumero string
	PawNombre string
	CreadoPor int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PurchaseLine is one material to buy. CantidadAComprar is always
// derived, never set directly.
type PurchaseLine struct {
	ID                   int64
	RequestID            int64
	BomItemID            *int64
	Plano                string
	Codigo               string
	Descripcion          string
	Unidad               string
	ObservacionesBom     string
	CantidadRequerida    decimal.Decimal
	CantidadDisponible   decimal.Decimal
	CantidadAComprar     decimal.Decimal
	ProveedorID          *int64
	PrecioUnitario       *decimal.Decimal
	ObservacionesCompras string
	TipoPago             TipoPago
}

// Supplier domain model.
type Supplier struct {
	ID             int64
	Nombre         string
	Contacto       string
	Telefono       string
	Email          string
	Nit            string
	Banco          string
	CuentaBancaria string
	TipoCuenta     TipoCuenta
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("compras: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("compras: %w", shared.ErrValidation)
	// ErrInvalidState occurs when action violates the status workflow.
	ErrInvalidState = fmt.Errorf("compras: %w", shared.ErrInvalidState)
	// ErrProtected refuses deleting a supplier still referenced by a
	// purchase line.
	ErrProtected = fmt.Errorf("compras: %w", shared.ErrProtected)
)

func validTipoPago(tp TipoPago) bool {
	switch tp {
	case "", TipoPagoCredito, TipoPagoContado:
		return true
	}
	return false
}

// canTransition enforces the forward-only header machine.
func canTransition(from, to Status) bool {
	switch from {
	case StatusBorrador:
		return to == StatusEnRevision || to == StatusCerrada
	case StatusEnRevision:
		return to == StatusCerrada
	default:
		return false
	}
}
