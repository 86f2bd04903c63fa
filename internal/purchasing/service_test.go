package purchasing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/impetus-erp/impetus-erp/internal/bom"
	"github.com/impetus-erp/impetus-erp/internal/shared"
)

type memoryPurchasingRepo struct {
	requests   map[int64]PurchaseRequest
	lines      map[int64][]PurchaseLine
	suppliers  map[int64]Supplier
	referenced map[int64]bool
	pawNumero  string
	pawNombre  string
	nextID     int64
}

type memoryPurchasingTx struct {
	repo *memoryPurchasingRepo
}

func newMemoryPurchasingRepo() *memoryPurchasingRepo {
	return &memoryPurchasingRepo{
		requests:   make(map[int64]PurchaseRequest),
		lines:      make(map[int64][]PurchaseLine),
		suppliers:  make(map[int64]Supplier),
		referenced: make(map[int64]bool),
		pawNumero:  "PAW-001",
		pawNombre:  "Overhaul bomba triplex",
	}
}

func (r *memoryPurchasingRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryPurchasingTx{repo: r})
}

func (r *memoryPurchasingRepo) GetRequest(ctx context.Context, id int64) (PurchaseRequest, []PurchaseLine, error) {
	pr, ok := r.requests[id]
	if !ok {
		return PurchaseRequest{}, nil, ErrNotFound
	}
	return pr, append([]PurchaseLine(nil), r.lines[id]...), nil
}

func (r *memoryPurchasingRepo) GetRequestByBom(ctx context.Context, bomID int64) (PurchaseRequest, []PurchaseLine, error) {
	for _, pr := range r.requests {
		if pr.BomID == bomID {
			return pr, append([]PurchaseLine(nil), r.lines[pr.ID]...), nil
		}
	}
	return PurchaseRequest{}, nil, ErrNotFound
}

func (r *memoryPurchasingRepo) ListRequests(ctx context.Context, filter ListFilter) ([]PurchaseRequest, int, error) {
	var items []PurchaseRequest
	for _, pr := range r.requests {
		if filter.Estado != "" && string(pr.Estado) != filter.Estado {
			continue
		}
		items = append(items, pr)
	}
	return items, len(items), nil
}

func (r *memoryPurchasingRepo) PawHeader(ctx context.Context, workOrderID int64) (string, string, error) {
	return r.pawNumero, r.pawNombre, nil
}

func (r *memoryPurchasingRepo) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	s, ok := r.suppliers[id]
	if !ok {
		return Supplier{}, ErrNotFound
	}
	return s, nil
}

func (r *memoryPurchasingRepo) ListSuppliers(ctx context.Context, search string) ([]Supplier, error) {
	var suppliers []Supplier
	for _, s := range r.suppliers {
		suppliers = append(suppliers, s)
	}
	return suppliers, nil
}

func (r *memoryPurchasingRepo) CreateSupplier(ctx context.Context, s Supplier) (int64, error) {
	r.nextID++
	s.ID = r.nextID
	r.suppliers[s.ID] = s
	return s.ID, nil
}

func (r *memoryPurchasingRepo) UpdateSupplier(ctx context.Context, s Supplier) error {
	if _, ok := r.suppliers[s.ID]; !ok {
		return ErrNotFound
	}
	r.suppliers[s.ID] = s
	return nil
}

func (r *memoryPurchasingRepo) DeleteSupplier(ctx context.Context, id int64) error {
	if _, ok := r.suppliers[id]; !ok {
		return ErrNotFound
	}
	if r.referenced[id] {
		return fmt.Errorf("%w: proveedor referenciado", ErrProtected)
	}
	delete(r.suppliers, id)
	return nil
}

func (tx *memoryPurchasingTx) CreateRequest(ctx context.Context, pr PurchaseRequest) (int64, error) {
	tx.repo.nextID++
	pr.ID = tx.repo.nextID
	tx.repo.requests[pr.ID] = pr
	return pr.ID, nil
}

func (tx *memoryPurchasingTx) UpdateRequest(ctx context.Context, pr PurchaseRequest) error {
	if _, ok := tx.repo.requests[pr.ID]; !ok {
		return ErrNotFound
	}
	tx.repo.requests[pr.ID] = pr
	return nil
}

func (tx *memoryPurchasingTx) InsertLine(ctx context.Context, l PurchaseLine) (int64, error) {
	tx.repo.nextID++
	l.ID = tx.repo.nextID
	tx.repo.lines[l.RequestID] = append(tx.repo.lines[l.RequestID], l)
	return l.ID, nil
}

func (tx *memoryPurchasingTx) UpdateLine(ctx context.Context, l PurchaseLine) error {
	lines := tx.repo.lines[l.RequestID]
	for i := range lines {
		if lines[i].ID == l.ID {
			lines[i] = l
			return nil
		}
	}
	return ErrNotFound
}

type stubBomReader struct {
	items map[int64]bom.BomItem
}

func (s *stubBomReader) GetItem(ctx context.Context, id int64) (bom.BomItem, error) {
	item, ok := s.items[id]
	if !ok {
		return bom.BomItem{}, bom.ErrNotFound
	}
	return item, nil
}

func comprasActor() shared.Actor {
	return shared.Actor{ID: 7, Name: "Marcela", Roles: []string{shared.RoleCompras}}
}

func syncInput() bom.SyncInput {
	return bom.SyncInput{
		BomID:       10,
		WorkOrderID: 4,
		Items: []bom.SyncItem{
			{BomItemID: 100, Plano: "PL-01", Codigo: "SELLO-45", Descripcion: "Sello mecánico 45mm", Unidad: "UN", CantidadSolicitada: decimal.NewFromInt(10)},
			{BomItemID: 101, Codigo: "ROD-6204", Descripcion: "Rodamiento 6204", Unidad: "UN", CantidadSolicitada: decimal.NewFromInt(5), Observaciones: "urgente"},
		},
	}
}

func TestSyncFromBomCreatesRequestWithShortfall(t *testing.T) {
	repo := newMemoryPurchasingRepo()
	svc := NewService(repo, nil, nil)

	id, err := svc.SyncFromBom(context.Background(), comprasActor(), syncInput())
	require.NoError(t, err)

	pr, lines, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, StatusBorrador, pr.Estado)
	require.Equal(t, "PAW-001", pr.PawNumero)
	require.Equal(t, "Overhaul bomba triplex", pr.PawNombre)
	require.Len(t, lines, 2)

	require.Equal(t, "10.000", lines[0].CantidadRequerida.StringFixed(3))
	require.Equal(t, "0.000", lines[0].CantidadDisponible.StringFixed(3))
	require.Equal(t, "10.000", lines[0].CantidadAComprar.StringFixed(3))
	require.Equal(t, "5.000", lines[1].CantidadAComprar.StringFixed(3))
	require.Equal(t, "urgente", lines[1].ObservacionesBom)
}

func TestSyncFromBomRefreshKeepsPurchasingFields(t *testing.T) {
	repo := newMemoryPurchasingRepo()
	svc := NewService(repo, nil, nil)
	actor := comprasActor()

	id, err := svc.SyncFromBom(context.Background(), actor, syncInput())
	require.NoError(t, err)

	_, lines, err := svc.Get(context.Background(), id)
	require.NoError(t, err)

	disponible := "4"
	precio := "12.500,50"
	obs := "cotizado con dos proveedores"
	_, err = svc.UpdateLine(context.Background(), actor, id, lines[0].ID, LineInput{
		CantidadDisponible:   &disponible,
		PrecioUnitario:       &precio,
		ObservacionesCompras: &obs,
	})
	require.NoError(t, err)

	input := syncInput()
	input.Items[0].CantidadSolicitada = decimal.NewFromInt(12)
	again, err := svc.SyncFromBom(context.Background(), actor, input)
	require.NoError(t, err)
	require.Equal(t, id, again)

	_, lines, err = svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, "12.000", lines[0].CantidadRequerida.StringFixed(3))
	require.Equal(t, "4.000", lines[0].CantidadDisponible.StringFixed(3))
	require.Equal(t, "8.000", lines[0].CantidadAComprar.StringFixed(3))
	require.Equal(t, "12500.50", lines[0].PrecioUnitario.StringFixed(2))
	require.Equal(t, "cotizado con dos proveedores", lines[0].ObservacionesCompras)
}

func TestShortfallNeverNegative(t *testing.T) {
	repo := newMemoryPurchasingRepo()
	svc := NewService(repo, nil, nil)
	actor := comprasActor()

	id, err := svc.SyncFromBom(context.Background(), actor, syncInput())
	require.NoError(t, err)
	_, lines, err := svc.Get(context.Background(), id)
	require.NoError(t, err)

	disponible := "25"
	line, err := svc.UpdateLine(context.Background(), actor, id, lines[0].ID, LineInput{CantidadDisponible: &disponible})
	require.NoError(t, err)
	require.True(t, line.CantidadAComprar.IsZero())
}

func TestDeriveLineIsIdempotent(t *testing.T) {
	header := PurchaseRequest{ID: 20, TipoPago: TipoPagoContado}
	src := bom.BomItem{
		Plano: "PL-7", Codigo: "SELLO-45", Descripcion: "Sello mecánico 45mm",
		Unidad: "UN", CantidadSolicitada: decimal.NewFromInt(10),
		Observaciones: "tomado del plano",
	}
	line := PurchaseLine{
		ID:                 301,
		RequestID:          20,
		Codigo:             "SELLO-45",
		Descripcion:        "Sello mecánico 45mm",
		CantidadRequerida:  decimal.NewFromInt(10),
		CantidadDisponible: decimal.NewFromInt(3),
		TipoPago:           TipoPagoCredito,
	}

	deriveLine(&line, header, &src)
	once := line
	deriveLine(&line, header, &src)

	require.Equal(t, once, line)
	require.Equal(t, "7.000", line.CantidadAComprar.StringFixed(3))
	require.Equal(t, TipoPagoCredito, line.TipoPago)
}

func TestHeaderTipoPagoInheritedOnceByNewLines(t *testing.T) {
	repo := newMemoryPurchasingRepo()
	svc := NewService(repo, nil, nil)
	actor := comprasActor()

	id, err := svc.SyncFromBom(context.Background(), actor, syncInput())
	require.NoError(t, err)

	tp := TipoPagoContado
	_, err = svc.UpdateHeader(context.Background(), actor, id, HeaderInput{TipoPago: &tp})
	require.NoError(t, err)

	line, err := svc.AddLine(context.Background(), actor, id, "Empaque viton", "EMP-V", "", "UN", "2")
	require.NoError(t, err)
	require.Equal(t, TipoPagoContado, line.TipoPago)

	credito := TipoPagoCredito
	line, err = svc.UpdateLine(context.Background(), actor, id, line.ID, LineInput{TipoPago: &credito})
	require.NoError(t, err)
	require.Equal(t, TipoPagoCredito, line.TipoPago)

	// un cambio posterior del encabezado no pisa la línea
	contado := TipoPagoContado
	_, err = svc.UpdateHeader(context.Background(), actor, id, HeaderInput{TipoPago: &contado})
	require.NoError(t, err)
	_, lines, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	for _, l := range lines {
		if l.ID == line.ID {
			require.Equal(t, TipoPagoCredito, l.TipoPago)
		}
	}
}

func TestHeaderEstadoOnlyMovesForward(t *testing.T) {
	repo := newMemoryPurchasingRepo()
	svc := NewService(repo, nil, nil)
	actor := comprasActor()

	id, err := svc.SyncFromBom(context.Background(), actor, syncInput())
	require.NoError(t, err)

	revision := StatusEnRevision
	_, err = svc.UpdateHeader(context.Background(), actor, id, HeaderInput{Estado: &revision})
	require.NoError(t, err)

	borrador := StatusBorrador
	_, err = svc.UpdateHeader(context.Background(), actor, id, HeaderInput{Estado: &borrador})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestClosedRequestRejectsLineEdits(t *testing.T) {
	repo := newMemoryPurchasingRepo()
	svc := NewService(repo, nil, nil)
	actor := comprasActor()

	id, err := svc.SyncFromBom(context.Background(), actor, syncInput())
	require.NoError(t, err)
	_, lines, err := svc.Get(context.Background(), id)
	require.NoError(t, err)

	require.NoError(t, svc.Close(context.Background(), actor, id))

	disponible := "1"
	_, err = svc.UpdateLine(context.Background(), actor, id, lines[0].ID, LineInput{CantidadDisponible: &disponible})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = svc.AddLine(context.Background(), actor, id, "extra", "", "", "UN", "1")
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestUpdateLineBackfillsFromBomItemOnlyWhenEmpty(t *testing.T) {
	repo := newMemoryPurchasingRepo()
	boms := &stubBomReader{items: map[int64]bom.BomItem{
		100: {ID: 100, Plano: "PL-01", Codigo: "SELLO-45", Descripcion: "Sello mecánico 45mm", Unidad: "UN", CantidadSolicitada: decimal.NewFromInt(10), Observaciones: "tomado del plano"},
	}}
	svc := NewService(repo, boms, nil)
	actor := comprasActor()

	input := syncInput()
	input.Items = input.Items[:1]
	input.Items[0].Observaciones = ""
	id, err := svc.SyncFromBom(context.Background(), actor, input)
	require.NoError(t, err)
	_, lines, err := svc.Get(context.Background(), id)
	require.NoError(t, err)

	obs := "verificar stock bodega"
	line, err := svc.UpdateLine(context.Background(), actor, id, lines[0].ID, LineInput{ObservacionesCompras: &obs})
	require.NoError(t, err)
	require.Equal(t, "tomado del plano", line.ObservacionesBom)
	require.Equal(t, "Sello mecánico 45mm", line.Descripcion)
}

func TestUpdateLineRejectsUnknownSupplier(t *testing.T) {
	repo := newMemoryPurchasingRepo()
	svc := NewService(repo, nil, nil)
	actor := comprasActor()

	id, err := svc.SyncFromBom(context.Background(), actor, syncInput())
	require.NoError(t, err)
	_, lines, err := svc.Get(context.Background(), id)
	require.NoError(t, err)

	proveedor := int64(99)
	_, err = svc.UpdateLine(context.Background(), actor, id, lines[0].ID, LineInput{ProveedorID: &proveedor})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteSupplierRefusedWhileReferenced(t *testing.T) {
	repo := newMemoryPurchasingRepo()
	svc := NewService(repo, nil, nil)
	actor := comprasActor()

	sup, err := svc.CreateSupplier(context.Background(), actor, SupplierInput{Nombre: "Rodamientos del Caribe", Nit: "900123456-1"})
	require.NoError(t, err)

	repo.referenced[sup.ID] = true
	err = svc.DeleteSupplier(context.Background(), actor, sup.ID)
	require.True(t, errors.Is(err, shared.ErrProtected))

	repo.referenced[sup.ID] = false
	require.NoError(t, svc.DeleteSupplier(context.Background(), actor, sup.ID))
}
