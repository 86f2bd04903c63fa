package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/impetus-erp/impetus-erp/internal/shared"
)

type memoryCatalogRepo struct {
	items  map[string]Item
	nextID int64
}

type memoryCatalogTx struct {
	repo *memoryCatalogRepo
}

func newMemoryCatalogRepo() *memoryCatalogRepo {
	return &memoryCatalogRepo{items: make(map[string]Item)}
}

func (r *memoryCatalogRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryCatalogTx{repo: r})
}

func (r *memoryCatalogRepo) Get(ctx context.Context, id int64) (Item, error) {
	for _, it := range r.items {
		if it.ID == id {
			return it, nil
		}
	}
	return Item{}, ErrNotFound
}

func (r *memoryCatalogRepo) GetByCode(ctx context.Context, codigo string) (Item, error) {
	it, ok := r.items[codigo]
	if !ok {
		return Item{}, ErrNotFound
	}
	return it, nil
}

func (r *memoryCatalogRepo) List(ctx context.Context, filter ListFilter) ([]Item, int, error) {
	var items []Item
	for _, it := range r.items {
		items = append(items, it)
	}
	return items, len(items), nil
}

func (tx *memoryCatalogTx) Upsert(ctx context.Context, item Item) (bool, error) {
	existing, ok := tx.repo.items[item.Codigo]
	if ok {
		item.ID = existing.ID
		tx.repo.items[item.Codigo] = item
		return false, nil
	}
	tx.repo.nextID++
	item.ID = tx.repo.nextID
	tx.repo.items[item.Codigo] = item
	return true, nil
}

func TestBulkUpsertUpdatesExistingCode(t *testing.T) {
	repo := newMemoryCatalogRepo()
	svc := NewService(repo, nil)
	actor := shared.Actor{ID: 1, Roles: []string{shared.RoleCompras}}

	result, err := svc.BulkUpsert(context.Background(), actor, []UpsertInput{
		{Codigo: "VAL-001", Descripcion: "Válvula 2in", UnidadMedida: "UN", Activo: true},
		{Codigo: "EMP-034", Descripcion: "Empaque NBR", UnidadMedida: "UN", Activo: true},
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Created)
	require.Equal(t, 0, result.Updated)

	result, err = svc.BulkUpsert(context.Background(), actor, []UpsertInput{
		{Codigo: "VAL-001", Descripcion: "Válvula 2in acero", UnidadMedida: "UN", Activo: true},
	})
	require.NoError(t, err)
	require.Equal(t, 0, result.Created)
	require.Equal(t, 1, result.Updated)

	item, err := svc.GetByCode(context.Background(), "VAL-001")
	require.NoError(t, err)
	require.Equal(t, "Válvula 2in acero", item.Descripcion)
	require.Len(t, repo.items, 2)
}

func TestBulkUpsertRejectsEmptyCode(t *testing.T) {
	repo := newMemoryCatalogRepo()
	svc := NewService(repo, nil)

	_, err := svc.BulkUpsert(context.Background(), shared.Actor{ID: 1}, []UpsertInput{
		{Codigo: "  ", Descripcion: "sin código"},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.items)
}

func TestBulkUpsertRejectsEmptyBatch(t *testing.T) {
	svc := NewService(newMemoryCatalogRepo(), nil)
	_, err := svc.BulkUpsert(context.Background(), shared.Actor{ID: 1}, nil)
	require.ErrorIs(t, err, shared.ErrValidation)
}
