package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/impetus-erp/impetus-erp/internal/catalog"
	"github.com/impetus-erp/impetus-erp/internal/paw"
	"github.com/impetus-erp/impetus-erp/internal/shared"
)

type memoryBillingRepo struct {
	facturas map[int64]Factura
	nextID   int64
}

type memoryBillingTx struct {
	repo *memoryBillingRepo
}

func newMemoryBillingRepo() *memoryBillingRepo {
	return &memoryBillingRepo{facturas: make(map[int64]Factura)}
}

func (r *memoryBillingRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryBillingTx{repo: r})
}

func (r *memoryBillingRepo) Get(ctx context.Context, id int64) (Factura, error) {
	f, ok := r.facturas[id]
	if !ok {
		return Factura{}, ErrNotFound
	}
	return f, nil
}

func (r *memoryBillingRepo) GetByPaw(ctx context.Context, pawID int64) (Factura, error) {
	for _, f := range r.facturas {
		if f.PawID == pawID {
			return f, nil
		}
	}
	return Factura{}, ErrNotFound
}

func (r *memoryBillingRepo) List(ctx context.Context, filter ListFilter) ([]Factura, int, error) {
	var items []Factura
	for _, f := range r.facturas {
		if filter.Estado != "" && f.Estado != filter.Estado {
			continue
		}
		items = append(items, f)
	}
	return items, len(items), nil
}

func (tx *memoryBillingTx) Create(ctx context.Context, f Factura) (int64, error) {
	for _, existing := range tx.repo.facturas {
		if existing.PawID == f.PawID {
			return 0, ErrDuplicate
		}
	}
	tx.repo.nextID++
	f.ID = tx.repo.nextID
	tx.repo.facturas[f.ID] = f
	return f.ID, nil
}

func (tx *memoryBillingTx) Update(ctx context.Context, f Factura) error {
	if _, ok := tx.repo.facturas[f.ID]; !ok {
		return ErrNotFound
	}
	for _, existing := range tx.repo.facturas {
		if existing.ID != f.ID && f.NumeroFactura != "" && existing.NumeroFactura == f.NumeroFactura {
			return ErrDuplicate
		}
	}
	tx.repo.facturas[f.ID] = f
	return nil
}

type stubPaws struct {
	paws map[int64]paw.Paw
}

func (s *stubPaws) Get(ctx context.Context, id int64) (paw.Paw, error) {
	p, ok := s.paws[id]
	if !ok {
		return paw.Paw{}, paw.ErrNotFound
	}
	return p, nil
}

type stubItems struct {
	items map[int64]catalog.Item
}

func (s *stubItems) Get(ctx context.Context, id int64) (catalog.Item, error) {
	it, ok := s.items[id]
	if !ok {
		return catalog.Item{}, catalog.ErrNotFound
	}
	return it, nil
}

func newBillingService(repo *memoryBillingRepo) *Service {
	paws := &stubPaws{paws: map[int64]paw.Paw{
		7: {ID: 7, Numero: "PAW-0007", Nombre: "Overhaul bomba triplex", Cliente: "Petrolera Andina", Campo: "Campo Rubiales"},
	}}
	items := &stubItems{items: map[int64]catalog.Item{
		30: {ID: 30, Codigo: "SRV-001", Descripcion: "Servicio de mantenimiento"},
	}}
	return NewService(repo, paws, items, nil)
}

func strPtr(s string) *string    { return &s }
func i64Ptr(v int64) *int64      { return &v }
func tpPtr(v TipoPago) *TipoPago { return &v }
func stPtr(v Status) *Status     { return &v }

func TestGetOrCreateStartsInRadicacion(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newBillingService(repo)
	actor := shared.Actor{ID: 1, Roles: []string{shared.RolePaw}}

	f, header, err := svc.GetOrCreate(context.Background(), actor, 7)
	require.NoError(t, err)
	require.Equal(t, StatusRadicacion, f.Estado)
	require.Equal(t, int64(7), f.PawID)
	require.Equal(t, "PAW-0007", header.Numero)
	require.Equal(t, "Petrolera Andina", header.Cliente)

	again, _, err := svc.GetOrCreate(context.Background(), actor, 7)
	require.NoError(t, err)
	require.Equal(t, f.ID, again.ID)
	require.Len(t, repo.facturas, 1)
}

func TestGetOrCreateUnknownPawFails(t *testing.T) {
	svc := newBillingService(newMemoryBillingRepo())
	_, _, err := svc.GetOrCreate(context.Background(), shared.Actor{ID: 1}, 99)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdatePawSideFields(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newBillingService(repo)
	actor := shared.Actor{ID: 1, Roles: []string{shared.RolePaw}}
	f, _, err := svc.GetOrCreate(context.Background(), actor, 7)
	require.NoError(t, err)

	updated, err := svc.UpdatePawSide(context.Background(), actor, f.ID, PawSideInput{
		LugarEntrega:   strPtr("Bodega Cota"),
		LugarServicio:  strPtr("Campo Rubiales"),
		NumeroServicio: strPtr("SRV-2026-014"),
		ItemFacturaID:  i64Ptr(30),
		Precio:         strPtr("1.250.000,50"),
	})
	require.NoError(t, err)
	require.Equal(t, "Bodega Cota", updated.LugarEntrega)
	require.NotNil(t, updated.ItemFacturaID)
	require.Equal(t, int64(30), *updated.ItemFacturaID)
	require.NotNil(t, updated.Precio)
	require.Equal(t, "1250000.50", updated.Precio.StringFixed(2))
}

func TestUpdatePawSideRejectsUnknownItem(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newBillingService(repo)
	actor := shared.Actor{ID: 1}
	f, _, err := svc.GetOrCreate(context.Background(), actor, 7)
	require.NoError(t, err)

	_, err = svc.UpdatePawSide(context.Background(), actor, f.ID, PawSideInput{ItemFacturaID: i64Ptr(99)})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdatePawSideClearsItemAndPrecio(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newBillingService(repo)
	actor := shared.Actor{ID: 1}
	f, _, err := svc.GetOrCreate(context.Background(), actor, 7)
	require.NoError(t, err)
	_, err = svc.UpdatePawSide(context.Background(), actor, f.ID, PawSideInput{
		ItemFacturaID: i64Ptr(30),
		Precio:        strPtr("500000"),
	})
	require.NoError(t, err)

	updated, err := svc.UpdatePawSide(context.Background(), actor, f.ID, PawSideInput{
		ItemFacturaID: i64Ptr(0),
		Precio:        strPtr(""),
	})
	require.NoError(t, err)
	require.Nil(t, updated.ItemFacturaID)
	require.Nil(t, updated.Precio)
}

func TestUpdateFinanceSideFields(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newBillingService(repo)
	actor := shared.Actor{ID: 2, Roles: []string{shared.RoleFinanzas}}
	f, _, err := svc.GetOrCreate(context.Background(), actor, 7)
	require.NoError(t, err)

	updated, err := svc.UpdateFinanceSide(context.Background(), actor, f.ID, FinanceSideInput{
		NumeroFactura:    strPtr("FE-1042"),
		FechaVencimiento: strPtr("2026-10-15"),
		FechaRadicacion:  strPtr("2026-09-01"),
		TipoPago:         tpPtr(PagoEndoso),
		Estado:           stPtr(StatusFacturado),
	})
	require.NoError(t, err)
	require.Equal(t, "FE-1042", updated.NumeroFactura)
	require.Equal(t, PagoEndoso, updated.TipoPago)
	require.Equal(t, StatusFacturado, updated.Estado)
	require.Equal(t, "2026-10-15", updated.FechaVencimiento.Format("2006-01-02"))
}

func TestUpdateFinanceSideRejectsBadValues(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newBillingService(repo)
	actor := shared.Actor{ID: 2}
	f, _, err := svc.GetOrCreate(context.Background(), actor, 7)
	require.NoError(t, err)

	_, err = svc.UpdateFinanceSide(context.Background(), actor, f.ID, FinanceSideInput{
		FechaVencimiento: strPtr("15/10/2026"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	bad := TipoPago("cheque")
	_, err = svc.UpdateFinanceSide(context.Background(), actor, f.ID, FinanceSideInput{TipoPago: &bad})
	require.ErrorIs(t, err, shared.ErrValidation)

	vencido := Status("pagada")
	_, err = svc.UpdateFinanceSide(context.Background(), actor, f.ID, FinanceSideInput{Estado: &vencido})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDuplicateNumeroFacturaRefused(t *testing.T) {
	repo := newMemoryBillingRepo()
	paws := &stubPaws{paws: map[int64]paw.Paw{
		7: {ID: 7, Numero: "PAW-0007"},
		8: {ID: 8, Numero: "PAW-0008"},
	}}
	svc := NewService(repo, paws, &stubItems{}, nil)
	actor := shared.Actor{ID: 2}

	a, _, err := svc.GetOrCreate(context.Background(), actor, 7)
	require.NoError(t, err)
	b, _, err := svc.GetOrCreate(context.Background(), actor, 8)
	require.NoError(t, err)

	_, err = svc.UpdateFinanceSide(context.Background(), actor, a.ID, FinanceSideInput{NumeroFactura: strPtr("FE-1042")})
	require.NoError(t, err)
	_, err = svc.UpdateFinanceSide(context.Background(), actor, b.ID, FinanceSideInput{NumeroFactura: strPtr("FE-1042")})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}
