package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	Upsert(ctx context.Context, item Item) (created bool, err error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// GetByCode returns one item by natural code.
func (r *Repository) GetByCode(ctx context.Context, codigo string) (Item, error) {
	const query = `
		SELECT id, codigo, descripcion, unidad_medida, clasificacion, grupo_inventario, activo, created_at, updated_at
		FROM items
		WHERE codigo = $1
	`
	var it Item
	err := r.pool.QueryRow(ctx, query, codigo).Scan(
		&it.ID, &it.Codigo, &it.Descripcion, &it.UnidadMedida,
		&it.Clasificacion, &it.GrupoInventario, &it.Activo,
		&it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return it, nil
}

// Get returns one item by id.
func (r *Repository) Get(ctx context.Context, id int64) (Item, error) {
	const query = `
		SELECT id, codigo, descripcion, unidad_medida, clasificacion, grupo_inventario, activo, created_at, updated_at
		FROM items
		WHERE id = $1
	`
	var it Item
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&it.ID, &it.Codigo, &it.Descripcion, &it.UnidadMedida,
		&it.Clasificacion, &it.GrupoInventario, &it.Activo,
		&it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return it, nil
}

// List returns items matching the filter plus the unpaged count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Item, int, error) {
	conditions := []string{"1=1"}
	args := []any{}
	idx := 1
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(codigo ILIKE $%d OR descripcion ILIKE $%d)", idx, idx))
		args = append(args, "%"+filter.Search+"%")
		idx++
	}
	if filter.Grupo != "" {
		conditions = append(conditions, fmt.Sprintf("grupo_inventario = $%d", idx))
		args = append(args, filter.Grupo)
		idx++
	}
	if filter.Activo != nil {
		conditions = append(conditions, fmt.Sprintf("activo = $%d", idx))
		args = append(args, *filter.Activo)
		idx++
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM items WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	query := fmt.Sprintf(`
		SELECT id, codigo, descripcion, unidad_medida, clasificacion, grupo_inventario, activo, created_at, updated_at
		FROM items
		WHERE %s
		ORDER BY codigo
		LIMIT $%d OFFSET $%d
	`, where, idx, idx+1)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(
			&it.ID, &it.Codigo, &it.Descripcion, &it.UnidadMedida,
			&it.Clasificacion, &it.GrupoInventario, &it.Activo,
			&it.CreatedAt, &it.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

// Upsert inserts or updates one row keyed by codigo.
func (tx *txRepo) Upsert(ctx context.Context, item Item) (bool, error) {
	const query = `
		INSERT INTO items (codigo, descripcion, unidad_medida, clasificacion, grupo_inventario, activo, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (codigo) DO UPDATE SET
			descripcion = EXCLUDED.descripcion,
			unidad_medida = EXCLUDED.unidad_medida,
			clasificacion = EXCLUDED.clasificacion,
			grupo_inventario = EXCLUDED.grupo_inventario,
			activo = EXCLUDED.activo,
			updated_at = NOW()
		RETURNING (xmax = 0)
	`
	var created bool
	err := tx.tx.QueryRow(ctx, query,
		item.Codigo, item.Descripcion, item.UnidadMedida,
		item.Clasificacion, item.GrupoInventario, item.Activo,
	).Scan(&created)
	return created, err
}
