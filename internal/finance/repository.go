package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

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
	CreateRound(ctx context.Context, f FinanceApproval) (int64, error)
	UpdateRound(ctx context.Context, f FinanceApproval) error
	InsertLine(ctx context.Context, l Line) (int64, error)
	UpdateLine(ctx context.Context, l Line) error
	DeleteLine(ctx context.Context, lineID int64) error
	Lines(ctx context.Context, roundID int64) ([]Line, error)
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

const roundColumns = `id, solicitud_id, estado, enviado_por, enviado_en, created_at, updated_at`

func scanRound(row pgx.Row) (FinanceApproval, error) {
	var f FinanceApproval
	err := row.Scan(&f.ID, &f.SolicitudID, &f.Estado, &f.EnviadoPor, &f.EnviadoEn,
		&f.CreatedAt, &f.UpdatedAt)
	return f, err
}

// Get returns one round with lines.
func (r *Repository) Get(ctx context.Context, id int64) (FinanceApproval, []Line, error) {
	f, err := scanRound(r.pool.QueryRow(ctx,
		"SELECT "+roundColumns+" FROM pagos WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FinanceApproval{}, nil, ErrNotFound
		}
		return FinanceApproval{}, nil, err
	}
	lines, err := queryLines(ctx, r.pool, "f.pago_id = $1", id)
	if err != nil {
		return FinanceApproval{}, nil, err
	}
	return f, lines, nil
}

// GetBySolicitud returns the round of a purchase request.
func (r *Repository) GetBySolicitud(ctx context.Context, solicitudID int64) (FinanceApproval, []Line, error) {
	f, err := scanRound(r.pool.QueryRow(ctx,
		"SELECT "+roundColumns+" FROM pagos WHERE solicitud_id = $1", solicitudID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FinanceApproval{}, nil, ErrNotFound
		}
		return FinanceApproval{}, nil, err
	}
	lines, err := queryLines(ctx, r.pool, "f.pago_id = $1", f.ID)
	if err != nil {
		return FinanceApproval{}, nil, err
	}
	return f, lines, nil
}

// List pages rounds newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]FinanceApproval, int, error) {
	cond := "1=1"
	args := []any{}
	n := 1
	if filter.Estado != "" {
		cond = fmt.Sprintf("estado = $%d", n)
		args = append(args, filter.Estado)
		n++
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM pagos WHERE "+cond, args...).Scan(&total); err != nil {
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
		"SELECT %s FROM pagos WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d",
		roundColumns, cond, n, n+1), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []FinanceApproval
	for rows.Next() {
		f, err := scanRound(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, f)
	}
	return items, total, rows.Err()
}

// DueLines returns unpaid lines passing the gate on a given day.
func (r *Repository) DueLines(ctx context.Context, today time.Time) ([]Line, error) {
	day := today.Format("2006-01-02")
	return queryLines(ctx, r.pool,
		"f.pagado = false AND (f.estado = 'APROBADO' OR (f.estado = 'PROGRAMADO' AND f.fecha_programada <= $1))",
		day)
}

const lineColumns = `f.id, f.pago_id, f.linea_compra_id, f.codigo, f.descripcion, f.unidad, f.cantidad,
	f.valor_unidad, f.valor_total, f.proveedor, f.estado, f.fecha_programada, f.nota_admin,
	f.decidido_por, f.decidido_en, f.pagado, f.pagado_en, f.pagado_por`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryLines(ctx context.Context, q querier, cond string, args ...any) ([]Line, error) {
	rows, err := q.Query(ctx,
		"SELECT "+lineColumns+" FROM pago_lineas f WHERE "+cond+" ORDER BY f.id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.FinanceID, &l.PurchaseLineID, &l.Codigo, &l.Descripcion,
			&l.Unidad, &l.Cantidad, &l.ValorUnidad, &l.ValorTotal, &l.Proveedor, &l.Estado,
			&l.FechaProgramada, &l.NotaAdmin, &l.DecididoPor, &l.DecididoEn,
			&l.Pagado, &l.PagadoEn, &l.PagadoPor); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (t *txRepo) CreateRound(ctx context.Context, f FinanceApproval) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO pagos (solicitud_id, estado, enviado_por, enviado_en)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, f.SolicitudID, f.Estado, f.EnviadoPor, f.EnviadoEn).Scan(&id)
	if shared.IsUniqueViolation(err) {
		return 0, fmt.Errorf("%w: pago para solicitud %d", shared.ErrDuplicate, f.SolicitudID)
	}
	return id, err
}

func (t *txRepo) UpdateRound(ctx context.Context, f FinanceApproval) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE pagos
		SET estado = $2, enviado_por = $3, enviado_en = $4, updated_at = now()
		WHERE id = $1
	`, f.ID, f.Estado, f.EnviadoPor, f.EnviadoEn)
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
		INSERT INTO pago_lineas
			(pago_id, linea_compra_id, codigo, descripcion, unidad, cantidad,
			 valor_unidad, valor_total, proveedor, estado, fecha_programada, nota_admin,
			 decidido_por, decidido_en, pagado, pagado_en, pagado_por)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id
	`, l.FinanceID, l.PurchaseLineID, l.Codigo, l.Descripcion, l.Unidad, l.Cantidad,
		l.ValorUnidad, l.ValorTotal, l.Proveedor, l.Estado, l.FechaProgramada, l.NotaAdmin,
		l.DecididoPor, l.DecididoEn, l.Pagado, l.PagadoEn, l.PagadoPor).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateLine(ctx context.Context, l Line) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE pago_lineas
		SET codigo = $2, descripcion = $3, unidad = $4, cantidad = $5,
			valor_unidad = $6, valor_total = $7, proveedor = $8, estado = $9,
			fecha_programada = $10, nota_admin = $11, decidido_por = $12, decidido_en = $13,
			pagado = $14, pagado_en = $15, pagado_por = $16
		WHERE id = $1
	`, l.ID, l.Codigo, l.Descripcion, l.Unidad, l.Cantidad,
		l.ValorUnidad, l.ValorTotal, l.Proveedor, l.Estado,
		l.FechaProgramada, l.NotaAdmin, l.DecididoPor, l.DecididoEn,
		l.Pagado, l.PagadoEn, l.PagadoPor)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) DeleteLine(ctx context.Context, lineID int64) error {
	_, err := t.tx.Exec(ctx, "DELETE FROM pago_lineas WHERE id = $1", lineID)
	return err
}

func (t *txRepo) Lines(ctx context.Context, roundID int64) ([]Line, error) {
	return queryLines(ctx, t.tx, "f.pago_id = $1", roundID)
}
