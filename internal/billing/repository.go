package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

const facturaColumns = `id, paw_id, estado, lugar_entrega, lugar_servicio, numero_servicio,
	item_factura_id, precio, COALESCE(numero_factura, ''), fecha_vencimiento, fecha_radicacion, tipo_pago,
	created_at, updated_at`

func scanFactura(row pgx.Row) (Factura, error) {
	var f Factura
	err := row.Scan(&f.ID, &f.PawID, &f.Estado, &f.LugarEntrega, &f.LugarServicio,
		&f.NumeroServicio, &f.ItemFacturaID, &f.Precio, &f.NumeroFactura,
		&f.FechaVencimiento, &f.FechaRadicacion, &f.TipoPago, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

// Get returns one invoice.
func (r *Repository) Get(ctx context.Context, id int64) (Factura, error) {
	f, err := scanFactura(r.pool.QueryRow(ctx,
		"SELECT "+facturaColumns+" FROM facturas WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Factura{}, ErrNotFound
	}
	return f, err
}

// GetByPaw returns the invoice attached to a PAW.
func (r *Repository) GetByPaw(ctx context.Context, pawID int64) (Factura, error) {
	f, err := scanFactura(r.pool.QueryRow(ctx,
		"SELECT "+facturaColumns+" FROM facturas WHERE paw_id = $1", pawID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Factura{}, ErrNotFound
	}
	return f, err
}

// List pages invoices with optional estado and tipo_pago filters.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Factura, int, error) {
	where := []string{"1=1"}
	args := []any{}
	n := 1
	if filter.Estado != "" {
		where = append(where, fmt.Sprintf("estado = $%d", n))
		args = append(args, filter.Estado)
		n++
	}
	if filter.TipoPago != "" {
		where = append(where, fmt.Sprintf("tipo_pago = $%d", n))
		args = append(args, filter.TipoPago)
		n++
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM facturas WHERE "+cond, args...).Scan(&total); err != nil {
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
	args = append(args, perPage, (page-1)*perPage)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		"SELECT %s FROM facturas WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d",
		facturaColumns, cond, n, n+1), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Factura
	for rows.Next() {
		f, err := scanFactura(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, f)
	}
	return items, total, rows.Err()
}

// Create inserts an invoice.
func (t *txRepo) Create(ctx context.Context, f Factura) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO facturas (paw_id, estado, lugar_entrega, lugar_servicio, numero_servicio,
			item_factura_id, precio, numero_factura, fecha_vencimiento, fecha_radicacion, tipo_pago)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11)
		RETURNING id`,
		f.PawID, f.Estado, f.LugarEntrega, f.LugarServicio, f.NumeroServicio,
		f.ItemFacturaID, f.Precio, f.NumeroFactura, f.FechaVencimiento,
		f.FechaRadicacion, f.TipoPago).Scan(&id)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	return id, nil
}

// Update rewrites an invoice.
func (t *txRepo) Update(ctx context.Context, f Factura) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE facturas SET estado = $2, lugar_entrega = $3, lugar_servicio = $4,
			numero_servicio = $5, item_factura_id = $6, precio = $7,
			numero_factura = NULLIF($8, ''), fecha_vencimiento = $9, fecha_radicacion = $10,
			tipo_pago = $11, updated_at = now()
		WHERE id = $1`,
		f.ID, f.Estado, f.LugarEntrega, f.LugarServicio, f.NumeroServicio,
		f.ItemFacturaID, f.Precio, f.NumeroFactura, f.FechaVencimiento,
		f.FechaRadicacion, f.TipoPago)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
