package workorders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/impetus-erp/impetus-erp/internal/shared"
)

type memoryWORepo struct {
	orders map[int64]WorkOrder
	tasks  map[int64][]Task
	nextID int64
}

type memoryWOTx struct {
	repo *memoryWORepo
}

func newMemoryWORepo() *memoryWORepo {
	return &memoryWORepo{
		orders: make(map[int64]WorkOrder),
		tasks:  make(map[int64][]Task),
	}
}

func (r *memoryWORepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryWOTx{repo: r})
}

func (r *memoryWORepo) Get(ctx context.Context, id int64) (WorkOrder, []Task, error) {
	wo, ok := r.orders[id]
	if !ok {
		return WorkOrder{}, nil, ErrNotFound
	}
	return wo, append([]Task(nil), r.tasks[id]...), nil
}

func (r *memoryWORepo) ListByPaw(ctx context.Context, pawID int64) ([]WorkOrder, error) {
	var orders []WorkOrder
	for _, wo := range r.orders {
		if wo.PawID == pawID {
			orders = append(orders, wo)
		}
	}
	return orders, nil
}

func (r *memoryWORepo) List(ctx context.Context, filter ListFilter) ([]WorkOrder, int, error) {
	var orders []WorkOrder
	for _, wo := range r.orders {
		orders = append(orders, wo)
	}
	return orders, len(orders), nil
}

func (tx *memoryWOTx) CreateWorkOrder(ctx context.Context, wo WorkOrder) (int64, error) {
	tx.repo.nextID++
	wo.ID = tx.repo.nextID
	tx.repo.orders[wo.ID] = wo
	return wo.ID, nil
}

func (tx *memoryWOTx) UpdateWorkOrder(ctx context.Context, wo WorkOrder) error {
	if _, ok := tx.repo.orders[wo.ID]; !ok {
		return ErrNotFound
	}
	tx.repo.orders[wo.ID] = wo
	return nil
}

func (tx *memoryWOTx) InsertTask(ctx context.Context, task Task) error {
	tx.repo.nextID++
	task.ID = tx.repo.nextID
	tx.repo.tasks[task.WorkOrderID] = append(tx.repo.tasks[task.WorkOrderID], task)
	return nil
}

func (tx *memoryWOTx) UpdateTask(ctx context.Context, task Task) error {
	tasks := tx.repo.tasks[task.WorkOrderID]
	for i := range tasks {
		if tasks[i].ID == task.ID {
			tasks[i] = task
			return nil
		}
	}
	return ErrNotFound
}

func TestCreateWorkOrderWithTasks(t *testing.T) {
	repo := newMemoryWORepo()
	svc := NewService(repo, nil)
	actor := shared.Actor{ID: 5, Roles: []string{shared.RolePaw}}

	wo, err := svc.Create(context.Background(), actor, CreateInput{
		Numero: "OT-551",
		Titulo: "Overhaul bomba triplex",
		Equipo: "Bomba EMSCO FB-1300",
		PawID:  3,
	}, []TaskInput{
		{Titulo: "Desarme y lavado"},
		{Titulo: "Inspección dimensional", Responsable: "jperez"},
	})
	require.NoError(t, err)
	require.Equal(t, StatusNueva, wo.Estado)

	_, tasks, err := svc.Get(context.Background(), wo.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, TaskPendiente, tasks[0].Estado)
}

func TestCreateAssignedStartsAsignada(t *testing.T) {
	svc := NewService(newMemoryWORepo(), nil)
	asignado := int64(9)

	wo, err := svc.Create(context.Background(), shared.Actor{ID: 5}, CreateInput{
		Numero: "OT-552", Titulo: "x", PawID: 3, AsignadoA: &asignado,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, StatusAsignada, wo.Estado)
}

func TestWorkshopUpdateValidatesStage(t *testing.T) {
	repo := newMemoryWORepo()
	svc := NewService(repo, nil)
	actor := shared.Actor{ID: 6, Roles: []string{shared.RoleTaller}}

	wo, err := svc.Create(context.Background(), actor, CreateInput{Numero: "OT-553", Titulo: "x", PawID: 3}, nil)
	require.NoError(t, err)

	etapa := EtapaEnsamblando
	estado := StatusEnProceso
	updated, err := svc.UpdateWorkshop(context.Background(), actor, wo.ID, WorkshopInput{
		Estado: &estado, EtapaTaller: &etapa,
	})
	require.NoError(t, err)
	require.Equal(t, EtapaEnsamblando, updated.EtapaTaller)

	mala := Etapa("PINTURA")
	_, err = svc.UpdateWorkshop(context.Background(), actor, wo.ID, WorkshopInput{EtapaTaller: &mala})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestClosedOrderRejectsReopen(t *testing.T) {
	repo := newMemoryWORepo()
	svc := NewService(repo, nil)
	actor := shared.Actor{ID: 6}

	wo, err := svc.Create(context.Background(), actor, CreateInput{Numero: "OT-554", Titulo: "x", PawID: 3}, nil)
	require.NoError(t, err)

	cerrada := StatusCerrada
	_, err = svc.UpdateWorkshop(context.Background(), actor, wo.ID, WorkshopInput{Estado: &cerrada})
	require.NoError(t, err)

	nueva := StatusNueva
	_, err = svc.UpdateWorkshop(context.Background(), actor, wo.ID, WorkshopInput{Estado: &nueva})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestMarkTerminadaByPawSkipsClosed(t *testing.T) {
	repo := newMemoryWORepo()
	svc := NewService(repo, nil)
	actor := shared.Actor{ID: 6}

	a, err := svc.Create(context.Background(), actor, CreateInput{Numero: "OT-1", Titulo: "a", PawID: 7}, nil)
	require.NoError(t, err)
	b, err := svc.Create(context.Background(), actor, CreateInput{Numero: "OT-2", Titulo: "b", PawID: 7}, nil)
	require.NoError(t, err)
	cerrada := StatusCerrada
	_, err = svc.UpdateWorkshop(context.Background(), actor, b.ID, WorkshopInput{Estado: &cerrada})
	require.NoError(t, err)

	marked, err := svc.MarkTerminadaByPaw(context.Background(), actor, 7)
	require.NoError(t, err)
	require.Equal(t, 1, marked)

	got, _, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, StatusTerminada, got.Estado)
	got, _, err = svc.Get(context.Background(), b.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCerrada, got.Estado)
}
