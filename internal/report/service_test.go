package report

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/impetus-erp/impetus-erp/internal/delivery"
	"github.com/impetus-erp/impetus-erp/internal/purchasing"
)

type stubBuys struct {
	requests map[int64]purchasing.PurchaseRequest
	lines    map[int64][]purchasing.PurchaseLine
}

func (s *stubBuys) Get(ctx context.Context, id int64) (purchasing.PurchaseRequest, []purchasing.PurchaseLine, error) {
	r, ok := s.requests[id]
	if !ok {
		return purchasing.PurchaseRequest{}, nil, purchasing.ErrNotFound
	}
	return r, s.lines[id], nil
}

type stubDeliveries struct {
	delivery delivery.Delivery
	lines    []delivery.Line
}

func (s *stubDeliveries) GetBySolicitud(ctx context.Context, solicitudID int64) (delivery.Delivery, []delivery.Line, error) {
	return s.delivery, s.lines, nil
}

func dec(v string) decimal.Decimal {
	d, _ := decimal.NewFromString(v)
	return d
}

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

func newReportService(buys *stubBuys, dels *stubDeliveries) *Service {
	return NewService(buys, dels, NewClient("http://gotenberg:3000"), nil)
}

func TestPurchaseDocumentSubtotalsAndTotal(t *testing.T) {
	buys := &stubBuys{
		requests: map[int64]purchasing.PurchaseRequest{
			1: {ID: 1, PawNumero: "PAW-0010", PawNombre: "Reparación separador", Estado: "SOLICITADA"},
		},
		lines: map[int64][]purchasing.PurchaseLine{
			1: {
				{Descripcion: "Lámina A36", Unidad: "und", CantidadAComprar: dec("4"), PrecioUnitario: decPtr("125000.50")},
				{Descripcion: "Electrodo 6013", Unidad: "kg", CantidadAComprar: dec("2.5"), PrecioUnitario: decPtr("18000")},
				{Descripcion: "Sin precio todavía", CantidadAComprar: dec("10")},
			},
		},
	}
	svc := newReportService(buys, &stubDeliveries{})

	doc, err := svc.PurchaseDocument(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, doc.Lineas, 3)
	require.Equal(t, "500002.00", doc.Lineas[0].Subtotal.StringFixed(2))
	require.Equal(t, "45000.00", doc.Lineas[1].Subtotal.StringFixed(2))
	require.True(t, doc.Lineas[2].Subtotal.IsZero())
	require.Equal(t, "545002.00", doc.Total.StringFixed(2))
}

func TestPurchaseBatchGrandTotal(t *testing.T) {
	buys := &stubBuys{
		requests: map[int64]purchasing.PurchaseRequest{
			1: {ID: 1},
			2: {ID: 2},
		},
		lines: map[int64][]purchasing.PurchaseLine{
			1: {{Descripcion: "a", CantidadAComprar: dec("2"), PrecioUnitario: decPtr("100")}},
			2: {{Descripcion: "b", CantidadAComprar: dec("3"), PrecioUnitario: decPtr("50.50")}},
		},
	}
	svc := newReportService(buys, &stubDeliveries{})

	batch, err := svc.PurchaseBatch(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, batch.Documentos, 2)
	require.Equal(t, "351.50", batch.GranTotal.StringFixed(2))
}

func TestPurchaseBatchUnknownRequestFails(t *testing.T) {
	svc := newReportService(&stubBuys{requests: map[int64]purchasing.PurchaseRequest{}}, &stubDeliveries{})
	_, err := svc.PurchaseBatch(context.Background(), []int64{99})
	require.ErrorIs(t, err, purchasing.ErrNotFound)
}

func TestDeliveryDocumentLeavesEntregadaEmpty(t *testing.T) {
	dels := &stubDeliveries{
		delivery: delivery.Delivery{ID: 5, SolicitudID: 3, Comentarios: "entregar en bodega"},
		lines: []delivery.Line{
			{Descripcion: "Lámina A36", CantidadRequerida: dec("4")},
			{Descripcion: "Electrodo", CantidadRequerida: dec("2.5"), CantidadEntregada: decPtr("2.5")},
		},
	}
	svc := newReportService(&stubBuys{}, dels)

	doc, err := svc.DeliveryDocument(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, int64(3), doc.SolicitudID)
	require.Empty(t, doc.Lineas[0].EntregadaDisplay)
	require.NotEmpty(t, doc.Lineas[1].EntregadaDisplay)
}

func TestEsCOAmountFormatting(t *testing.T) {
	require.Equal(t, "1.250.000,50", formatAmount(dec("1250000.50")))
	require.Equal(t, "18.000,00", formatAmount(dec("18000")))
	require.Equal(t, "2,5", formatQuantity(dec("2.5")))
	require.Equal(t, "4", formatQuantity(dec("4")))
}

func TestPurchaseTemplateRendersTotals(t *testing.T) {
	doc := buildPurchaseDocument(
		purchasing.PurchaseRequest{ID: 9, PawNumero: "PAW-0001"},
		[]purchasing.PurchaseLine{
			{Descripcion: "Lámina", CantidadAComprar: dec("4"), PrecioUnitario: decPtr("125000.50")},
		},
	)
	html, err := renderTemplate(purchaseTemplate, doc)
	require.NoError(t, err)
	require.True(t, strings.Contains(html, "Solicitud de compra #9"))
	require.True(t, strings.Contains(html, doc.TotalDisplay))
}
