package purchasing

import (
	"github.com/impetus-erp/impetus-erp/internal/bom"
	"github.com/impetus-erp/impetus-erp/internal/money"
)

// deriveLine applies the persist-time rules to a purchase line. It is
// re-entrant: repeated application with unchanged inputs changes
// nothing.
//
// 1. A new line with no tipo_pago inherits the request header's value,
//    once. Later saves never overwrite the line's own value.
// 2. When the line references its source BOM item, descriptive fields
//    are backfilled only while empty; cantidad_requerida only while
//    not positive, so a manually adjusted quantity survives.
// 3. cantidad_a_comprar is recomputed as max(requerida - disponible, 0)
//    at the fixed quantity scale.
func deriveLine(line *PurchaseLine, header PurchaseRequest, src *bom.BomItem) {
	if line.ID == 0 && line.TipoPago == "" && header.TipoPago != "" {
		line.TipoPago = header.TipoPago
	}
	if src != nil {
		if line.Plano == "" {
			line.Plano = src.Plano
		}
		if line.Codigo == "" {
			line.Codigo = src.Codigo
		}
		if line.Descripcion == "" {
			line.Descripcion = src.Descripcion
		}
		if line.Unidad == "" {
			line.Unidad = src.Unidad
		}
		if line.ObservacionesBom == "" {
			line.ObservacionesBom = src.Observaciones
		}
		if !line.CantidadRequerida.IsPositive() {
			line.CantidadRequerida = money.Quantity(src.CantidadSolicitada)
		}
	}
	line.CantidadRequerida = money.Quantity(line.CantidadRequerida)
	line.CantidadDisponible = money.Quantity(line.CantidadDisponible)
	line.CantidadAComprar = money.Quantity(line.CantidadRequerida.Sub(line.CantidadDisponible))
}
