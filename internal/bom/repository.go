package bom

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/impetus-erp/impetus-erp/internal/shared"
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
	CreateBom(ctx context.Context, b Bom) (int64, error)
	UpdateBom(ctx context.Context, b Bom) error
	InsertItem(ctx context.Context, item BomItem) error
	UpdateItem(ctx context.Context, item BomItem) error
	DeleteItem(ctx context.Context, itemID int64) error
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

const bomColumns = `id, orden_id, plantilla_id, estado, comentarios, solicitado_en, created_at, updated_at`

func scanBom(row pgx.Row) (Bom, error) {
	var b Bom
	err := row.Scan(&b.ID, &b.WorkOrderID, &b.TemplateID, &b.Estado, &b.Comentarios,
		&b.SolicitadoEn, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// Get returns one BOM with items.
func (r *Repository) Get(ctx context.Context, id int64) (Bom, []BomItem, error) {
	b, err := scanBom(r.pool.QueryRow(ctx, "SELECT "+bomColumns+" FROM boms WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bom{}, nil, ErrNotFound
		}
		return Bom{}, nil, err
	}
	items, err := r.items(ctx, id)
	if err != nil {
		return Bom{}, nil, err
	}
	return b, items, nil
}

// GetByWorkOrder returns the BOM of a work order.
func (r *Repository) GetByWorkOrder(ctx context.Context, workOrderID int64) (Bom, []BomItem, error) {
	b, err := scanBom(r.pool.QueryRow(ctx, "SELECT "+bomColumns+" FROM boms WHERE orden_id = $1", workOrderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bom{}, nil, ErrNotFound
		}
		return Bom{}, nil, err
	}
	items, err := r.items(ctx, b.ID)
	if err != nil {
		return Bom{}, nil, err
	}
	return b, items, nil
}

func (r *Repository) items(ctx context.Context, bomID int64) ([]BomItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, bom_id, plano, codigo, descripcion, unidad, cantidad_estandar, cantidad_solicitada, observaciones
		FROM bom_items
		WHERE bom_id = $1
		ORDER BY id
	`, bomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []BomItem
	for rows.Next() {
		var it BomItem
		if err := rows.Scan(&it.ID, &it.BomID, &it.Plano, &it.Codigo, &it.Descripcion,
			&it.Unidad, &it.CantidadEstandar, &it.CantidadSolicitada, &it.Observaciones); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetItem returns one BOM item by id.
func (r *Repository) GetItem(ctx context.Context, id int64) (BomItem, error) {
	var it BomItem
	err := r.pool.QueryRow(ctx, `
		SELECT id, bom_id, plano, codigo, descripcion, unidad, cantidad_estandar, cantidad_solicitada, observaciones
		FROM bom_items
		WHERE id = $1
	`, id).Scan(&it.ID, &it.BomID, &it.Plano, &it.Codigo, &it.Descripcion,
		&it.Unidad, &it.CantidadEstandar, &it.CantidadSolicitada, &it.Observaciones)
	if errors.Is(err, pgx.ErrNoRows) {
		return BomItem{}, ErrNotFound
	}
	return it, err
}

// GetTemplate returns one template with items.
func (r *Repository) GetTemplate(ctx context.Context, id int64) (Template, []TemplateItem, error) {
	var tpl Template
	err := r.pool.QueryRow(ctx, "SELECT id, nombre, activo FROM bom_plantillas WHERE id = $1", id).
		Scan(&tpl.ID, &tpl.Nombre, &tpl.Activo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Template{}, nil, ErrNotFound
		}
		return Template{}, nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, plantilla_id, plano, codigo, descripcion, unidad, cantidad_estandar, observaciones
		FROM bom_plantilla_items
		WHERE plantilla_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return Template{}, nil, err
	}
	defer rows.Close()

	var items []TemplateItem
	for rows.Next() {
		var it TemplateItem
		if err := rows.Scan(&it.ID, &it.TemplateID, &it.Plano, &it.Codigo, &it.Descripcion,
			&it.Unidad, &it.CantidadEstandar, &it.Observaciones); err != nil {
			return Template{}, nil, err
		}
		items = append(items, it)
	}
	return tpl, items, rows.Err()
}

// ListTemplates returns templates, optionally only active ones.
func (r *Repository) ListTemplates(ctx context.Context, activeOnly bool) ([]Template, error) {
	query := "SELECT id, nombre, activo FROM bom_plantillas"
	if activeOnly {
		query += " WHERE activo"
	}
	query += " ORDER BY nombre"
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		var tpl Template
		if err := rows.Scan(&tpl.ID, &tpl.Nombre, &tpl.Activo); err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

// CreateBom inserts a BOM and returns its id. One per work order.
func (tx *txRepo) CreateBom(ctx context.Context, b Bom) (int64, error) {
	const query = `
		INSERT INTO boms (orden_id, plantilla_id, estado, comentarios, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id
	`
	var id int64
	err := tx.tx.QueryRow(ctx, query, b.WorkOrderID, b.TemplateID, b.Estado, b.Comentarios).Scan(&id)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return 0, fmt.Errorf("bom: orden %d: %w", b.WorkOrderID, shared.ErrDuplicate)
		}
		return 0, err
	}
	return id, nil
}

// UpdateBom persists header changes.
func (tx *txRepo) UpdateBom(ctx context.Context, b Bom) error {
	tag, err := tx.tx.Exec(ctx, `
		UPDATE boms SET estado = $2, comentarios = $3, solicitado_en = $4, updated_at = NOW()
		WHERE id = $1
	`, b.ID, b.Estado, b.Comentarios, b.SolicitadoEn)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertItem adds a material row.
func (tx *txRepo) InsertItem(ctx context.Context, item BomItem) error {
	_, err := tx.tx.Exec(ctx, `
		INSERT INTO bom_items (bom_id, plano, codigo, descripcion, unidad, cantidad_estandar, cantidad_solicitada, observaciones)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.BomID, item.Plano, item.Codigo, item.Descripcion, item.Unidad,
		item.CantidadEstandar, item.CantidadSolicitada, item.Observaciones)
	return err
}

// UpdateItem persists material row changes.
func (tx *txRepo) UpdateItem(ctx context.Context, item BomItem) error {
	tag, err := tx.tx.Exec(ctx, `
		UPDATE bom_items SET plano = $2, codigo = $3, descripcion = $4, unidad = $5,
			cantidad_estandar = $6, cantidad_solicitada = $7, observaciones = $8
		WHERE id = $1
	`, item.ID, item.Plano, item.Codigo, item.Descripcion, item.Unidad,
		item.CantidadEstandar, item.CantidadSolicitada, item.Observaciones)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteItem removes a material row.
func (tx *txRepo) DeleteItem(ctx context.Context, itemID int64) error {
	tag, err := tx.tx.Exec(ctx, "DELETE FROM bom_items WHERE id = $1", itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
