package inventory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/impetus-erp/impetus-erp/internal/purchasing"
	"github.com/impetus-erp/impetus-erp/internal/shared"
)

type memoryReceptionRepo struct {
	receptions map[int64]Reception
	lines      map[int64][]Line
	pawID      int64
	nextID     int64
}

type memoryReceptionTx struct {
	repo *memoryReceptionRepo
}

func newMemoryReceptionRepo() *memoryReceptionRepo {
	return &memoryReceptionRepo{
		receptions: make(map[int64]Reception),
		lines:      make(map[int64][]Line),
		pawID:      5,
	}
}

func (r *memoryReceptionRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryReceptionTx{repo: r})
}

func (r *memoryReceptionRepo) Get(ctx context.Context, id int64) (Reception, []Line, error) {
	rc, ok := r.receptions[id]
	if !ok {
		return Reception{}, nil, ErrNotFound
	}
	return rc, append([]Line(nil), r.lines[id]...), nil
}

func (r *memoryReceptionRepo) GetBySolicitud(ctx context.Context, solicitudID int64) (Reception, []Line, error) {
	for _, rc := range r.receptions {
		if rc.SolicitudID == solicitudID {
			return rc, append([]Line(nil), r.lines[rc.ID]...), nil
		}
	}
	return Reception{}, nil, ErrNotFound
}

func (r *memoryReceptionRepo) List(ctx context.Context, filter ListFilter) ([]Reception, int, error) {
	var items []Reception
	for _, rc := range r.receptions {
		items = append(items, rc)
	}
	return items, len(items), nil
}

func (r *memoryReceptionRepo) PawIDForSolicitud(ctx context.Context, solicitudID int64) (int64, error) {
	return r.pawID, nil
}

func (tx *memoryReceptionTx) CreateReception(ctx context.Context, rc Reception) (int64, error) {
	tx.repo.nextID++
	rc.ID = tx.repo.nextID
	tx.repo.receptions[rc.ID] = rc
	return rc.ID, nil
}

func (tx *memoryReceptionTx) InsertLine(ctx context.Context, l Line) (int64, error) {
	tx.repo.nextID++
	l.ID = tx.repo.nextID
	tx.repo.lines[l.ReceptionID] = append(tx.repo.lines[l.ReceptionID], l)
	return l.ID, nil
}

func (tx *memoryReceptionTx) UpdateLine(ctx context.Context, l Line) error {
	lines := tx.repo.lines[l.ReceptionID]
	for i := range lines {
		if lines[i].ID == l.ID {
			lines[i] = l
			return nil
		}
	}
	return ErrNotFound
}

type stubPurchasing struct {
	lines  []purchasing.PurchaseLine
	closed []int64
}

func (s *stubPurchasing) Get(ctx context.Context, id int64) (purchasing.PurchaseRequest, []purchasing.PurchaseLine, error) {
	return purchasing.PurchaseRequest{ID: id}, append([]purchasing.PurchaseLine(nil), s.lines...), nil
}

func (s *stubPurchasing) Close(ctx context.Context, actor shared.Actor, id int64) error {
	s.closed = append(s.closed, id)
	return nil
}

type stubWorkOrders struct {
	finished []int64
}

func (s *stubWorkOrders) MarkTerminadaByPaw(ctx context.Context, actor shared.Actor, pawID int64) (int, error) {
	s.finished = append(s.finished, pawID)
	return 3, nil
}

func buildStub() *stubPurchasing {
	return &stubPurchasing{
		lines: []purchasing.PurchaseLine{
			{ID: 201, Codigo: "SELLO-45", Descripcion: "Sello mecánico 45mm", Unidad: "UN", CantidadAComprar: decimal.NewFromInt(10)},
			{ID: 202, Codigo: "ROD-6204", Descripcion: "Rodamiento 6204", Unidad: "UN", CantidadAComprar: decimal.NewFromInt(5)},
			{ID: 203, Codigo: "EMP-V", Descripcion: "Empaque viton", Unidad: "UN", CantidadAComprar: decimal.Zero},
		},
	}
}

func inventarioActor() shared.Actor {
	return shared.Actor{ID: 9, Name: "Efraín", Roles: []string{shared.RoleInventario}}
}

func TestSendFreezesExpectedQuantities(t *testing.T) {
	repo := newMemoryReceptionRepo()
	stub := buildStub()
	svc := NewService(repo, stub, &stubWorkOrders{}, nil)

	rc, err := svc.Send(context.Background(), inventarioActor(), 20)
	require.NoError(t, err)

	_, lines, err := svc.Get(context.Background(), rc.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, "10.000", lines[0].CantidadEsperada.StringFixed(3))
	require.Equal(t, LinePendiente, lines[0].Estado)

	// refresco posterior no toca la expectativa congelada
	stub.lines[0].CantidadAComprar = decimal.NewFromInt(99)
	_, err = svc.Send(context.Background(), inventarioActor(), 20)
	require.NoError(t, err)
	_, lines, err = svc.Get(context.Background(), rc.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, "10.000", lines[0].CantidadEsperada.StringFixed(3))
}

func TestSendIsIdempotentButAdoptsNewLines(t *testing.T) {
	repo := newMemoryReceptionRepo()
	stub := buildStub()
	svc := NewService(repo, stub, &stubWorkOrders{}, nil)
	actor := inventarioActor()

	rc, err := svc.Send(context.Background(), actor, 20)
	require.NoError(t, err)
	again, err := svc.Send(context.Background(), actor, 20)
	require.NoError(t, err)
	require.Equal(t, rc.ID, again.ID)

	_, lines, err := svc.Get(context.Background(), rc.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	stub.lines = append(stub.lines, purchasing.PurchaseLine{
		ID: 204, Codigo: "TUERCA-M8", Descripcion: "Tuerca M8", Unidad: "UN", CantidadAComprar: decimal.NewFromInt(40),
	})
	_, err = svc.Send(context.Background(), actor, 20)
	require.NoError(t, err)
	_, lines, err = svc.Get(context.Background(), rc.ID)
	require.NoError(t, err)
	require.Len(t, lines, 3)
}

func TestCloseRefusedWhilePending(t *testing.T) {
	repo := newMemoryReceptionRepo()
	stub := buildStub()
	orders := &stubWorkOrders{}
	svc := NewService(repo, stub, orders, nil)
	actor := inventarioActor()

	rc, err := svc.Send(context.Background(), actor, 20)
	require.NoError(t, err)

	_, err = svc.CloseAndFinish(context.Background(), actor, rc.ID)
	require.ErrorIs(t, err, shared.ErrPrecondition)
	require.Empty(t, stub.closed)
	require.Empty(t, orders.finished)
}

func TestCloseFinishesRequestAndWorkOrders(t *testing.T) {
	repo := newMemoryReceptionRepo()
	stub := buildStub()
	orders := &stubWorkOrders{}
	svc := NewService(repo, stub, orders, nil)
	actor := inventarioActor()

	rc, err := svc.Send(context.Background(), actor, 20)
	require.NoError(t, err)
	_, lines, err := svc.Get(context.Background(), rc.ID)
	require.NoError(t, err)

	listo := LineListo
	for _, l := range lines {
		recibida := l.CantidadEsperada.StringFixed(3)
		fecha := "2026-08-30"
		_, err := svc.UpdateLine(context.Background(), actor, rc.ID, l.ID, LineInput{
			CantidadRecibida: &recibida,
			FechaLlegada:     &fecha,
			Estado:           &listo,
		})
		require.NoError(t, err)
	}

	result, err := svc.CloseAndFinish(context.Background(), actor, rc.ID)
	require.NoError(t, err)
	require.Equal(t, int64(20), result.SolicitudID)
	require.Equal(t, 3, result.OrdenesTerminada)
	require.Equal(t, []int64{20}, stub.closed)
	require.Equal(t, []int64{5}, orders.finished)
}

func TestUpdateLineRejectsBadInput(t *testing.T) {
	repo := newMemoryReceptionRepo()
	svc := NewService(repo, buildStub(), &stubWorkOrders{}, nil)
	actor := inventarioActor()

	rc, err := svc.Send(context.Background(), actor, 20)
	require.NoError(t, err)
	_, lines, err := svc.Get(context.Background(), rc.ID)
	require.NoError(t, err)

	negativa := "-3"
	_, err = svc.UpdateLine(context.Background(), actor, rc.ID, lines[0].ID, LineInput{CantidadRecibida: &negativa})
	require.ErrorIs(t, err, shared.ErrValidation)

	fecha := "30/08/2026"
	_, err = svc.UpdateLine(context.Background(), actor, rc.ID, lines[0].ID, LineInput{FechaLlegada: &fecha})
	require.ErrorIs(t, err, shared.ErrValidation)

	otro := LineStatus("DEVUELTO")
	_, err = svc.UpdateLine(context.Background(), actor, rc.ID, lines[0].ID, LineInput{Estado: &otro})
	require.ErrorIs(t, err, shared.ErrValidation)
}
