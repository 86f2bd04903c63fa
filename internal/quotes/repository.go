package quotes

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

const quotationColumns = `id, numero_cotizacion, nombre_cotizacion, cliente, campo, fecha_cotizacion,
	estado, empresa, valor, observaciones, created_at, updated_at`

func scanQuotation(row pgx.Row) (Quotation, error) {
	var q Quotation
	err := row.Scan(
		&q.ID, &q.Numero, &q.Nombre, &q.Cliente, &q.Campo, &q.FechaCotizacion,
		&q.Estado, &q.Empresa, &q.Valor, &q.Observaciones, &q.CreatedAt, &q.UpdatedAt,
	)
	return q, err
}

// Get returns one quotation by id.
func (r *Repository) Get(ctx context.Context, id int64) (Quotation, error) {
	q, err := scanQuotation(r.pool.QueryRow(ctx,
		"SELECT "+quotationColumns+" FROM cotizaciones WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quotation{}, ErrNotFound
		}
		return Quotation{}, err
	}
	return q, nil
}

// GetByNumero returns one quotation by its unique number.
func (r *Repository) GetByNumero(ctx context.Context, numero string) (Quotation, error) {
	q, err := scanQuotation(r.pool.QueryRow(ctx,
		"SELECT "+quotationColumns+" FROM cotizaciones WHERE numero_cotizacion = $1", numero))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quotation{}, ErrNotFound
		}
		return Quotation{}, err
	}
	return q, nil
}

// List returns quotations matching the filter plus the unpaged count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Quotation, int, error) {
	conditions := []string{"1=1"}
	args := []any{}
	idx := 1
	if filter.Estado != "" {
		conditions = append(conditions, fmt.Sprintf("estado = $%d", idx))
		args = append(args, filter.Estado)
		idx++
	}
	if filter.Empresa != "" {
		conditions = append(conditions, fmt.Sprintf("empresa = $%d", idx))
		args = append(args, filter.Empresa)
		idx++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(numero_cotizacion ILIKE $%d OR nombre_cotizacion ILIKE $%d OR cliente ILIKE $%d)", idx, idx, idx))
		args = append(args, "%"+filter.Search+"%")
		idx++
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM cotizaciones WHERE "+where, args...).Scan(&total); err != nil {
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
	query := fmt.Sprintf("SELECT %s FROM cotizaciones WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		quotationColumns, where, idx, idx+1)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, q)
	}
	return items, total, rows.Err()
}

// Create inserts a quotation and returns its id.
func (r *Repository) Create(ctx context.Context, q Quotation) (int64, error) {
	const query = `
		INSERT INTO cotizaciones (numero_cotizacion, nombre_cotizacion, cliente, campo, fecha_cotizacion,
			estado, empresa, valor, observaciones, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		q.Numero, q.Nombre, q.Cliente, q.Campo, q.FechaCotizacion,
		q.Estado, q.Empresa, q.Valor, q.Observaciones,
	).Scan(&id)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return 0, fmt.Errorf("cotizaciones: numero %s: %w", q.Numero, shared.ErrDuplicate)
		}
		return 0, err
	}
	return id, nil
}

// Update persists header changes.
func (r *Repository) Update(ctx context.Context, q Quotation) error {
	const query = `
		UPDATE cotizaciones SET
			nombre_cotizacion = $2, cliente = $3, campo = $4, fecha_cotizacion = $5,
			estado = $6, empresa = $7, valor = $8, observaciones = $9, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		q.ID, q.Nombre, q.Cliente, q.Campo, q.FechaCotizacion,
		q.Estado, q.Empresa, q.Valor, q.Observaciones,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a quotation. A PAW referencing it blocks the delete.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM cotizaciones WHERE id = $1", id)
	if err != nil {
		if shared.IsForeignKeyViolation(err) {
			return ErrProtected
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
