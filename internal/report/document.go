// Package report assembles read-only documents over the purchasing
// pipeline: the purchase request sheet with per-line subtotals and the
// workshop delivery act. Rendering to PDF goes through Gotenberg.
package report

import (
	"github.com/shopspring/decimal"

	"github.com/impetus-erp/impetus-erp/internal/delivery"
	"github.com/impetus-erp/impetus-erp/internal/money"
	"github.com/impetus-erp/impetus-erp/internal/purchasing"
)

// PurchaseDocLine is one row of the purchase request sheet.
type PurchaseDocLine struct {
	Plano            string           `json:"plano,omitempty"`
	Codigo           string           `json:"codigo,omitempty"`
	Descripcion      string           `json:"descripcion"`
	Unidad           string           `json:"unidad,omitempty"`
	CantidadAComprar decimal.Decimal  `json:"cantidad_a_comprar"`
	PrecioUnitario   *decimal.Decimal `json:"precio_unitario"`
	Subtotal         decimal.Decimal  `json:"subtotal"`

	CantidadDisplay string `json:"cantidad_texto"`
	PrecioDisplay   string `json:"precio_texto"`
	SubtotalDisplay string `json:"subtotal_texto"`
}

// PurchaseDocument is the full purchase request sheet.
type PurchaseDocument struct {
	SolicitudID int64             `json:"solicitud_id"`
	PawNumero   string            `json:"paw_numero"`
	PawNombre   string            `json:"paw_nombre"`
	Estado      string            `json:"estado"`
	TipoPago    string            `json:"tipo_pago,omitempty"`
	Lineas      []PurchaseDocLine `json:"lineas"`
	Total       decimal.Decimal   `json:"total"`

	TotalDisplay string `json:"total_texto"`
}

// BatchDocument groups several purchase request sheets under one
// grand total.
type BatchDocument struct {
	Documentos []PurchaseDocument `json:"documentos"`
	GranTotal  decimal.Decimal    `json:"gran_total"`

	GranTotalDisplay string `json:"gran_total_texto"`
}

// DeliveryDocLine is one row of the delivery act. Entregada stays
// empty until the workshop fills it.
type DeliveryDocLine struct {
	Codigo            string          `json:"codigo,omitempty"`
	Descripcion       string          `json:"descripcion"`
	Unidad            string          `json:"unidad,omitempty"`
	CantidadRequerida decimal.Decimal `json:"cantidad_requerida"`

	CantidadDisplay  string `json:"cantidad_texto"`
	EntregadaDisplay string `json:"cantidad_entregada_texto"`
}

// DeliveryDocument is the printable workshop delivery act.
type DeliveryDocument struct {
	SolicitudID int64             `json:"solicitud_id"`
	Comentarios string            `json:"comentarios,omitempty"`
	Lineas      []DeliveryDocLine `json:"lineas"`
}

// buildPurchaseDocument computes subtotal = cantidad_a_comprar by
// precio_unitario per line and the request total. Lines without a
// price count as zero.
func buildPurchaseDocument(request purchasing.PurchaseRequest, lines []purchasing.PurchaseLine) PurchaseDocument {
	doc := PurchaseDocument{
		SolicitudID: request.ID,
		PawNumero:   request.PawNumero,
		PawNombre:   request.PawNombre,
		Estado:      string(request.Estado),
		TipoPago:    string(request.TipoPago),
	}
	total := decimal.Zero
	for _, l := range lines {
		row := PurchaseDocLine{
			Plano:            l.Plano,
			Codigo:           l.Codigo,
			Descripcion:      l.Descripcion,
			Unidad:           l.Unidad,
			CantidadAComprar: l.CantidadAComprar,
			PrecioUnitario:   l.PrecioUnitario,
			CantidadDisplay:  formatQuantity(l.CantidadAComprar),
		}
		if l.PrecioUnitario != nil {
			row.Subtotal = l.CantidadAComprar.Mul(*l.PrecioUnitario).Round(money.PriceScale)
			row.PrecioDisplay = formatAmount(*l.PrecioUnitario)
		}
		row.SubtotalDisplay = formatAmount(row.Subtotal)
		total = total.Add(row.Subtotal)
		doc.Lineas = append(doc.Lineas, row)
	}
	doc.Total = total.Round(money.PriceScale)
	doc.TotalDisplay = formatAmount(doc.Total)
	return doc
}

func buildBatchDocument(docs []PurchaseDocument) BatchDocument {
	batch := BatchDocument{Documentos: docs}
	total := decimal.Zero
	for _, d := range docs {
		total = total.Add(d.Total)
	}
	batch.GranTotal = total.Round(money.PriceScale)
	batch.GranTotalDisplay = formatAmount(batch.GranTotal)
	return batch
}

func buildDeliveryDocument(d delivery.Delivery, lines []delivery.Line) DeliveryDocument {
	doc := DeliveryDocument{SolicitudID: d.SolicitudID, Comentarios: d.Comentarios}
	for _, l := range lines {
		row := DeliveryDocLine{
			Codigo:            l.Codigo,
			Descripcion:       l.Descripcion,
			Unidad:            l.Unidad,
			CantidadRequerida: l.CantidadRequerida,
			CantidadDisplay:   formatQuantity(l.CantidadRequerida),
		}
		if l.CantidadEntregada != nil {
			row.EntregadaDisplay = formatQuantity(*l.CantidadEntregada)
		}
		doc.Lineas = append(doc.Lineas, row)
	}
	return doc
}
