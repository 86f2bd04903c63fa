package paw

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

const pawColumns = `id, numero_paw, nombre_paw, cotizacion_id, cliente, campo,
	fecha_entrega, fecha_salida, creado_por, created_at, updated_at`

func scanPaw(row pgx.Row) (Paw, error) {
	var p Paw
	err := row.Scan(
		&p.ID, &p.Numero, &p.Nombre, &p.QuotationID, &p.Cliente, &p.Campo,
		&p.FechaEntrega, &p.FechaSalida, &p.CreadoPor, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

// Get returns one PAW by id.
func (r *Repository) Get(ctx context.Context, id int64) (Paw, error) {
	p, err := scanPaw(r.pool.QueryRow(ctx, "SELECT "+pawColumns+" FROM paws WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Paw{}, ErrNotFound
		}
		return Paw{}, err
	}
	return p, nil
}

// GetByNumero returns one PAW by its unique number.
func (r *Repository) GetByNumero(ctx context.Context, numero string) (Paw, error) {
	p, err := scanPaw(r.pool.QueryRow(ctx, "SELECT "+pawColumns+" FROM paws WHERE numero_paw = $1", numero))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Paw{}, ErrNotFound
		}
		return Paw{}, err
	}
	return p, nil
}

// List returns PAWs matching the filter plus the unpaged count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Paw, int, error) {
	conditions := []string{"1=1"}
	args := []any{}
	idx := 1
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(numero_paw ILIKE $%d OR nombre_paw ILIKE $%d)", idx, idx))
		args = append(args, "%"+filter.Search+"%")
		idx++
	}
	if filter.Cliente != "" {
		conditions = append(conditions, fmt.Sprintf("cliente ILIKE $%d", idx))
		args = append(args, "%"+filter.Cliente+"%")
		idx++
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM paws WHERE "+where, args...).Scan(&total); err != nil {
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
	query := fmt.Sprintf("SELECT %s FROM paws WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		pawColumns, where, idx, idx+1)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Paw
	for rows.Next() {
		p, err := scanPaw(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// Create inserts a PAW and returns its id.
func (r *Repository) Create(ctx context.Context, p Paw) (int64, error) {
	const query = `
		INSERT INTO paws (numero_paw, nombre_paw, cotizacion_id, cliente, campo,
			fecha_entrega, fecha_salida, creado_por, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		p.Numero, p.Nombre, p.QuotationID, p.Cliente, p.Campo,
		p.FechaEntrega, p.FechaSalida, p.CreadoPor,
	).Scan(&id)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return 0, fmt.Errorf("paw: numero %s: %w", p.Numero, shared.ErrDuplicate)
		}
		return 0, err
	}
	return id, nil
}

// Update persists header changes.
func (r *Repository) Update(ctx context.Context, p Paw) error {
	const query = `
		UPDATE paws SET
			nombre_paw = $2, cotizacion_id = $3, cliente = $4, campo = $5,
			fecha_entrega = $6, fecha_salida = $7, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		p.ID, p.Nombre, p.QuotationID, p.Cliente, p.Campo,
		p.FechaEntrega, p.FechaSalida,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a PAW. Work orders or an invoice referencing it
// block the delete.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM paws WHERE id = $1", id)
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
