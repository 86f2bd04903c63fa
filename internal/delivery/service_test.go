package delivery

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/impetus-erp/impetus-erp/internal/purchasing"
	"github.com/impetus-erp/impetus-erp/internal/shared"
)

type memoryDeliveryRepo struct {
	deliveries map[int64]Delivery
	lines      map[int64][]Line
	nextID     int64
}

type memoryDeliveryTx struct {
	repo *memoryDeliveryRepo
}

func newMemoryDeliveryRepo() *memoryDeliveryRepo {
	return &memoryDeliveryRepo{
		deliveries: make(map[int64]Delivery),
		lines:      make(map[int64][]Line),
	}
}

func (r *memoryDeliveryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryDeliveryTx{repo: r})
}

func (r *memoryDeliveryRepo) Get(ctx context.Context, id int64) (Delivery, []Line, error) {
	d, ok := r.deliveries[id]
	if !ok {
		return Delivery{}, nil, ErrNotFound
	}
	return d, append([]Line(nil), r.lines[id]...), nil
}

func (r *memoryDeliveryRepo) GetBySolicitud(ctx context.Context, solicitudID int64) (Delivery, []Line, error) {
	for _, d := range r.deliveries {
		if d.SolicitudID == solicitudID {
			return d, append([]Line(nil), r.lines[d.ID]...), nil
		}
	}
	return Delivery{}, nil, ErrNotFound
}

func (r *memoryDeliveryRepo) List(ctx context.Context, filter ListFilter) ([]Delivery, int, error) {
	var items []Delivery
	for _, d := range r.deliveries {
		items = append(items, d)
	}
	return items, len(items), nil
}

func (tx *memoryDeliveryTx) CreateDelivery(ctx context.Context, d Delivery) (int64, error) {
	tx.repo.nextID++
	d.ID = tx.repo.nextID
	tx.repo.deliveries[d.ID] = d
	return d.ID, nil
}

func (tx *memoryDeliveryTx) UpdateDelivery(ctx context.Context, d Delivery) error {
	if _, ok := tx.repo.deliveries[d.ID]; !ok {
		return ErrNotFound
	}
	tx.repo.deliveries[d.ID] = d
	return nil
}

func (tx *memoryDeliveryTx) InsertLine(ctx context.Context, l Line) (int64, error) {
	tx.repo.nextID++
	l.ID = tx.repo.nextID
	tx.repo.lines[l.DeliveryID] = append(tx.repo.lines[l.DeliveryID], l)
	return l.ID, nil
}

func (tx *memoryDeliveryTx) UpdateLine(ctx context.Context, l Line) error {
	lines := tx.repo.lines[l.DeliveryID]
	for i := range lines {
		if lines[i].ID == l.ID {
			lines[i] = l
			return nil
		}
	}
	return ErrNotFound
}

type stubPurchasing struct {
	lines []purchasing.PurchaseLine
}

func (s *stubPurchasing) Get(ctx context.Context, id int64) (purchasing.PurchaseRequest, []purchasing.PurchaseLine, error) {
	return purchasing.PurchaseRequest{ID: id}, append([]purchasing.PurchaseLine(nil), s.lines...), nil
}

func entregaActor() shared.Actor {
	return shared.Actor{ID: 11, Name: "Rosa", Roles: []string{shared.RoleEntregaTaller}}
}

func buildStub() *stubPurchasing {
	return &stubPurchasing{
		lines: []purchasing.PurchaseLine{
			{ID: 201, Codigo: "SELLO-45", Descripcion: "Sello mecánico 45mm", Unidad: "UN", CantidadRequerida: decimal.NewFromInt(10)},
			{ID: 202, Codigo: "ROD-6204", Descripcion: "Rodamiento 6204", Unidad: "UN", CantidadRequerida: decimal.NewFromInt(5)},
		},
	}
}

func TestGetOrCreateSnapshotsLinesEmpty(t *testing.T) {
	repo := newMemoryDeliveryRepo()
	svc := NewService(repo, buildStub(), nil)

	d, lines, err := svc.GetOrCreate(context.Background(), entregaActor(), 20)
	require.NoError(t, err)
	require.Equal(t, int64(20), d.SolicitudID)
	require.Len(t, lines, 2)
	require.Equal(t, "10.000", lines[0].CantidadRequerida.StringFixed(3))
	require.Nil(t, lines[0].CantidadEntregada)

	again, lines, err := svc.GetOrCreate(context.Background(), entregaActor(), 20)
	require.NoError(t, err)
	require.Equal(t, d.ID, again.ID)
	require.Len(t, lines, 2)
}

func TestSetDeliveredFillsAndClears(t *testing.T) {
	repo := newMemoryDeliveryRepo()
	svc := NewService(repo, buildStub(), nil)
	actor := entregaActor()

	d, lines, err := svc.GetOrCreate(context.Background(), actor, 20)
	require.NoError(t, err)

	cantidad := "8.5"
	line, err := svc.SetDelivered(context.Background(), actor, d.ID, lines[0].ID, &cantidad)
	require.NoError(t, err)
	require.Equal(t, "8.500", line.CantidadEntregada.StringFixed(3))

	vacia := ""
	line, err = svc.SetDelivered(context.Background(), actor, d.ID, lines[0].ID, &vacia)
	require.NoError(t, err)
	require.Nil(t, line.CantidadEntregada)
}

func TestSetDeliveredRejectsNegative(t *testing.T) {
	repo := newMemoryDeliveryRepo()
	svc := NewService(repo, buildStub(), nil)
	actor := entregaActor()

	d, lines, err := svc.GetOrCreate(context.Background(), actor, 20)
	require.NoError(t, err)

	negativa := "-1"
	_, err = svc.SetDelivered(context.Background(), actor, d.ID, lines[0].ID, &negativa)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestNewPurchaseLinesAdoptedOnNextCall(t *testing.T) {
	repo := newMemoryDeliveryRepo()
	stub := buildStub()
	svc := NewService(repo, stub, nil)
	actor := entregaActor()

	d, lines, err := svc.GetOrCreate(context.Background(), actor, 20)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	cantidad := "10"
	_, err = svc.SetDelivered(context.Background(), actor, d.ID, lines[0].ID, &cantidad)
	require.NoError(t, err)

	stub.lines = append(stub.lines, purchasing.PurchaseLine{
		ID: 203, Codigo: "EMP-V", Descripcion: "Empaque viton", Unidad: "UN", CantidadRequerida: decimal.NewFromInt(2),
	})
	_, lines, err = svc.GetOrCreate(context.Background(), actor, 20)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	// la línea ya diligenciada no se toca
	require.Equal(t, "10.000", lines[0].CantidadEntregada.StringFixed(3))
}
