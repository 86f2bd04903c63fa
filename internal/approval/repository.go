package approval

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
	CreateApproval(ctx context.Context, a Approval) (int64, error)
	UpdateApproval(ctx context.Context, a Approval) error
	InsertLine(ctx context.Context, l Line) (int64, error)
	UpdateLine(ctx context.Context, l Line) error
	DeleteLine(ctx context.Context, lineID int64) error
	Lines(ctx context.Context, approvalID int64) ([]Line, error)
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

const approvalColumns = `id, solicitud_id, estado, enviado_por, enviado_en, created_at, updated_at`

func scanApproval(row pgx.Row) (Approval, error) {
	var a Approval
	err := row.Scan(&a.ID, &a.SolicitudID, &a.Estado, &a.EnviadoPor, &a.EnviadoEn,
		&a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// Get returns one round with lines.
func (r *Repository) Get(ctx context.Context, id int64) (Approval, []Line, error) {
	a, err := scanApproval(r.pool.QueryRow(ctx,
		"SELECT "+approvalColumns+" FROM aprobaciones WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Approval{}, nil, ErrNotFound
		}
		return Approval{}, nil, err
	}
	lines, err := queryLines(ctx, r.pool, id)
	if err != nil {
		return Approval{}, nil, err
	}
	return a, lines, nil
}

// GetBySolicitud returns the round of a purchase request.
func (r *Repository) GetBySolicitud(ctx context.Context, solicitudID int64) (Approval, []Line, error) {
	a, err := scanApproval(r.pool.QueryRow(ctx,
		"SELECT "+approvalColumns+" FROM aprobaciones WHERE solicitud_id = $1", solicitudID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Approval{}, nil, ErrNotFound
		}
		return Approval{}, nil, err
	}
	lines, err := queryLines(ctx, r.pool, a.ID)
	if err != nil {
		return Approval{}, nil, err
	}
	return a, lines, nil
}

// List pages rounds newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Approval, int, error) {
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
		"SELECT COUNT(*) FROM aprobaciones WHERE "+cond, args...).Scan(&total); err != nil {
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
		"SELECT %s FROM aprobaciones WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d",
		approvalColumns, cond, n, n+1), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

const lineColumns = `id, aprobacion_id, linea_compra_id, codigo, descripcion, unidad, cantidad,
	valor_unidad, valor_total, proveedor, observaciones, estado_aprobacion,
	observacion_finanzas, decidido_por, decidido_en`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryLines(ctx context.Context, q querier, approvalID int64) ([]Line, error) {
	rows, err := q.Query(ctx,
		"SELECT "+lineColumns+" FROM aprobacion_lineas WHERE aprobacion_id = $1 ORDER BY id", approvalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.ApprovalID, &l.PurchaseLineID, &l.Codigo, &l.Descripcion,
			&l.Unidad, &l.Cantidad, &l.ValorUnidad, &l.ValorTotal, &l.Proveedor, &l.Observaciones,
			&l.EstadoAprobacion, &l.ObservacionFinanzas, &l.DecididoPor, &l.DecididoEn); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (t *txRepo) CreateApproval(ctx context.Context, a Approval) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO aprobaciones (solicitud_id, estado, enviado_por, enviado_en)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, a.SolicitudID, a.Estado, a.EnviadoPor, a.EnviadoEn).Scan(&id)
	if shared.IsUniqueViolation(err) {
		return 0, fmt.Errorf("%w: aprobación para solicitud %d", shared.ErrDuplicate, a.SolicitudID)
	}
	return id, err
}

func (t *txRepo) UpdateApproval(ctx context.Context, a Approval) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE aprobaciones
		SET estado = $2, enviado_por = $3, enviado_en = $4, updated_at = now()
		WHERE id = $1
	`, a.ID, a.Estado, a.EnviadoPor, a.EnviadoEn)
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
		INSERT INTO aprobacion_lineas
			(aprobacion_id, linea_compra_id, codigo, descripcion, unidad, cantidad,
			 valor_unidad, valor_total, proveedor, observaciones, estado_aprobacion,
			 observacion_finanzas, decidido_por, decidido_en)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`, l.ApprovalID, l.PurchaseLineID, l.Codigo, l.Descripcion, l.Unidad, l.Cantidad,
		l.ValorUnidad, l.ValorTotal, l.Proveedor, l.Observaciones, l.EstadoAprobacion,
		l.ObservacionFinanzas, l.DecididoPor, l.DecididoEn).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateLine(ctx context.Context, l Line) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE aprobacion_lineas
		SET codigo = $2, descripcion = $3, unidad = $4, cantidad = $5,
			valor_unidad = $6, valor_total = $7, proveedor = $8, observaciones = $9,
			estado_aprobacion = $10, observacion_finanzas = $11, decidido_por = $12, decidido_en = $13
		WHERE id = $1
	`, l.ID, l.Codigo, l.Descripcion, l.Unidad, l.Cantidad,
		l.ValorUnidad, l.ValorTotal, l.Proveedor, l.Observaciones,
		l.EstadoAprobacion, l.ObservacionFinanzas, l.DecididoPor, l.DecididoEn)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) DeleteLine(ctx context.Context, lineID int64) error {
	_, err := t.tx.Exec(ctx, "DELETE FROM aprobacion_lineas WHERE id = $1", lineID)
	return err
}

func (t *txRepo) Lines(ctx context.Context, approvalID int64) ([]Line, error) {
	return queryLines(ctx, t.tx, approvalID)
}
