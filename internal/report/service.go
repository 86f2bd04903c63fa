package report

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/impetus-erp/impetus-erp/internal/delivery"
	"github.com/impetus-erp/impetus-erp/internal/platform/cache"
	"github.com/impetus-erp/impetus-erp/internal/purchasing"
)

// PurchasingPort reads purchase requests.
type PurchasingPort interface {
	Get(ctx context.Context, id int64) (purchasing.PurchaseRequest, []purchasing.PurchaseLine, error)
}

// DeliveryPort reads delivery acts.
type DeliveryPort interface {
	GetBySolicitud(ctx context.Context, solicitudID int64) (delivery.Delivery, []delivery.Line, error)
}

// Service assembles documents and renders them through Gotenberg.
// Renders are collapsed per key and cached so repeated downloads do
// not hammer the converter.
type Service struct {
	buys       PurchasingPort
	deliveries DeliveryPort
	pdf        *Client
	cache      *cache.DocumentCache
	group      singleflight.Group
}

func NewService(buys PurchasingPort, deliveries DeliveryPort, pdf *Client, docCache *cache.DocumentCache) *Service {
	return &Service{buys: buys, deliveries: deliveries, pdf: pdf, cache: docCache}
}

// PurchaseDocument assembles the purchase request sheet.
func (s *Service) PurchaseDocument(ctx context.Context, solicitudID int64) (PurchaseDocument, error) {
	request, lines, err := s.buys.Get(ctx, solicitudID)
	if err != nil {
		return PurchaseDocument{}, err
	}
	return buildPurchaseDocument(request, lines), nil
}

// PurchaseBatch assembles several sheets under one grand total.
func (s *Service) PurchaseBatch(ctx context.Context, solicitudIDs []int64) (BatchDocument, error) {
	docs := make([]PurchaseDocument, 0, len(solicitudIDs))
	for _, id := range solicitudIDs {
		doc, err := s.PurchaseDocument(ctx, id)
		if err != nil {
			return BatchDocument{}, err
		}
		docs = append(docs, doc)
	}
	return buildBatchDocument(docs), nil
}

// DeliveryDocument assembles the workshop delivery act.
func (s *Service) DeliveryDocument(ctx context.Context, solicitudID int64) (DeliveryDocument, error) {
	d, lines, err := s.deliveries.GetBySolicitud(ctx, solicitudID)
	if err != nil {
		return DeliveryDocument{}, err
	}
	return buildDeliveryDocument(d, lines), nil
}

// PurchasePDF renders the purchase request sheet as PDF.
func (s *Service) PurchasePDF(ctx context.Context, solicitudID int64) ([]byte, error) {
	key := fmt.Sprintf("reporte:compra:%d", solicitudID)
	return s.renderCached(ctx, key, func(ctx context.Context) (string, error) {
		doc, err := s.PurchaseDocument(ctx, solicitudID)
		if err != nil {
			return "", err
		}
		return renderTemplate(purchaseTemplate, doc)
	})
}

// DeliveryPDF renders the delivery act as PDF.
func (s *Service) DeliveryPDF(ctx context.Context, solicitudID int64) ([]byte, error) {
	key := fmt.Sprintf("reporte:entrega:%d", solicitudID)
	return s.renderCached(ctx, key, func(ctx context.Context) (string, error) {
		doc, err := s.DeliveryDocument(ctx, solicitudID)
		if err != nil {
			return "", err
		}
		return renderTemplate(deliveryTemplate, doc)
	})
}

func (s *Service) renderCached(ctx context.Context, key string, build func(context.Context) (string, error)) ([]byte, error) {
	if data, ok := s.cache.Get(ctx, key); ok {
		return data, nil
	}
	result, err, _ := s.group.Do(key, func() (any, error) {
		html, err := build(ctx)
		if err != nil {
			return nil, err
		}
		pdf, err := s.pdf.RenderHTML(ctx, html)
		if err != nil {
			return nil, err
		}
		s.cache.Set(ctx, key, pdf)
		return pdf, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// Invalidate drops cached renders for a purchase request, called after
// any write touching its lines.
func (s *Service) Invalidate(ctx context.Context, solicitudID int64) {
	s.cache.Invalidate(ctx, fmt.Sprintf("reporte:compra:%d", solicitudID))
	s.cache.Invalidate(ctx, fmt.Sprintf("reporte:entrega:%d", solicitudID))
}

func renderTemplate(t *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

var purchaseTemplate = template.Must(template.New("compra").Parse(`<html><head><meta charset="utf-8"><title>Solicitud de compra {{.SolicitudID}}</title></head><body>
<h1>Solicitud de compra #{{.SolicitudID}}</h1>
<p>PAW {{.PawNumero}} {{.PawNombre}} | Estado: {{.Estado}} | Tipo de pago: {{.TipoPago}}</p>
<table border="1" cellspacing="0">
<tr><th>Plano</th><th>Código</th><th>Descripción</th><th>Unidad</th><th>Cantidad a comprar</th><th>Precio unitario</th><th>Subtotal</th></tr>
{{range .Lineas}}<tr><td>{{.Plano}}</td><td>{{.Codigo}}</td><td>{{.Descripcion}}</td><td>{{.Unidad}}</td><td>{{.CantidadDisplay}}</td><td>{{.PrecioDisplay}}</td><td>{{.SubtotalDisplay}}</td></tr>
{{end}}</table>
<p>Total: {{.TotalDisplay}}</p>
</body></html>`))

var deliveryTemplate = template.Must(template.New("entrega").Parse(`<html><head><meta charset="utf-8"><title>Entrega a taller {{.SolicitudID}}</title></head><body>
<h1>Acta de entrega, solicitud #{{.SolicitudID}}</h1>
{{if .Comentarios}}<p>{{.Comentarios}}</p>{{end}}
<table border="1" cellspacing="0">
<tr><th>Código</th><th>Descripción</th><th>Unidad</th><th>Cantidad requerida</th><th>Cantidad entregada</th></tr>
{{range .Lineas}}<tr><td>{{.Codigo}}</td><td>{{.Descripcion}}</td><td>{{.Unidad}}</td><td>{{.CantidadDisplay}}</td><td>{{.EntregadaDisplay}}</td></tr>
{{end}}</table>
</body></html>`))
