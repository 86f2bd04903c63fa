package delivery

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
	CreateDelivery(ctx context.Context, d Delivery) (int64, error)
	UpdateDelivery(ctx context.Context, d Delivery) error
	InsertLine(ctx context.Context, l Line) (int64, error)
	UpdateLine(ctx context.Context, l Line) error
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

const deliveryColumns = `id, solicitud_id, comentarios, creado_por, created_at, updated_at`

func scanDelivery(row pgx.Row) (Delivery, error) {
	var d Delivery
	err := row.Scan(&d.ID, &d.SolicitudID, &d.Comentarios, &d.CreadoPor, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

// Get returns one delivery with lines.
func (r *Repository) Get(ctx context.Context, id int64) (Delivery, []Line, error) {
	d, err := scanDelivery(r.pool.QueryRow(ctx,
		"SELECT "+deliveryColumns+" FROM entregas WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Delivery{}, nil, ErrNotFound
		}
		return Delivery{}, nil, err
	}
	lines, err := r.lines(ctx, id)
	if err != nil {
		return Delivery{}, nil, err
	}
	return d, lines, nil
}

// GetBySolicitud returns the delivery of a purchase request.
func (r *Repository) GetBySolicitud(ctx context.Context, solicitudID int64) (Delivery, []Line, error) {
	d, err := scanDelivery(r.pool.QueryRow(ctx,
		"SELECT "+deliveryColumns+" FROM entregas WHERE solicitud_id = $1", solicitudID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Delivery{}, nil, ErrNotFound
		}
		return Delivery{}, nil, err
	}
	lines, err := r.lines(ctx, d.ID)
	if err != nil {
		return Delivery{}, nil, err
	}
	return d, lines, nil
}

func (r *Repository) lines(ctx context.Context, deliveryID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, entrega_id, linea_compra_id, codigo, descripcion, unidad,
			cantidad_requerida, cantidad_entregada
		FROM entrega_lineas
		WHERE entrega_id = $1
		ORDER BY id
	`, deliveryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.DeliveryID, &l.PurchaseLineID, &l.Codigo, &l.Descripcion,
			&l.Unidad, &l.CantidadRequerida, &l.CantidadEntregada); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// List pages deliveries newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Delivery, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM entregas").Scan(&total); err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = 20
	}
	rows, err := r.pool.Query(ctx,
		"SELECT "+deliveryColumns+" FROM entregas ORDER BY id DESC LIMIT $1 OFFSET $2",
		perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (t *txRepo) CreateDelivery(ctx context.Context, d Delivery) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO entregas (solicitud_id, comentarios, creado_por)
		VALUES ($1, $2, $3)
		RETURNING id
	`, d.SolicitudID, d.Comentarios, d.CreadoPor).Scan(&id)
	if shared.IsUniqueViolation(err) {
		return 0, fmt.Errorf("%w: entrega para solicitud %d", shared.ErrDuplicate, d.SolicitudID)
	}
	return id, err
}

func (t *txRepo) UpdateDelivery(ctx context.Context, d Delivery) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE entregas
		SET comentarios = $2, updated_at = now()
		WHERE id = $1
	`, d.ID, d.Comentarios)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertLine(ctx context.Context, l Line) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO entrega_lineas
			(entrega_id, linea_compra_id, codigo, descripcion, unidad, cantidad_requerida, cantidad_entregada)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, l.DeliveryID, l.PurchaseLineID, l.Codigo, l.Descripcion, l.Unidad,
		l.CantidadRequerida, l.CantidadEntregada).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateLine(ctx context.Context, l Line) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE entrega_lineas
		SET cantidad_entregada = $2
		WHERE id = $1
	`, l.ID, l.CantidadEntregada)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
