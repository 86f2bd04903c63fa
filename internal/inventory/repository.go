package inventory

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
	CreateReception(ctx context.Context, rc Reception) (int64, error)
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

const receptionColumns = `id, solicitud_id, creado_por, created_at, updated_at`

func scanReception(row pgx.Row) (Reception, error) {
	var rc Reception
	err := row.Scan(&rc.ID, &rc.SolicitudID, &rc.CreadoPor, &rc.CreatedAt, &rc.UpdatedAt)
	return rc, err
}

// Get returns one reception with lines.
func (r *Repository) Get(ctx context.Context, id int64) (Reception, []Line, error) {
	rc, err := scanReception(r.pool.QueryRow(ctx,
		"SELECT "+receptionColumns+" FROM recepciones WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reception{}, nil, ErrNotFound
		}
		return Reception{}, nil, err
	}
	lines, err := r.lines(ctx, id)
	if err != nil {
		return Reception{}, nil, err
	}
	return rc, lines, nil
}

// GetBySolicitud returns the reception of a purchase request.
func (r *Repository) GetBySolicitud(ctx context.Context, solicitudID int64) (Reception, []Line, error) {
	rc, err := scanReception(r.pool.QueryRow(ctx,
		"SELECT "+receptionColumns+" FROM recepciones WHERE solicitud_id = $1", solicitudID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reception{}, nil, ErrNotFound
		}
		return Reception{}, nil, err
	}
	lines, err := r.lines(ctx, rc.ID)
	if err != nil {
		return Reception{}, nil, err
	}
	return rc, lines, nil
}

func (r *Repository) lines(ctx context.Context, receptionID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, recepcion_id, linea_compra_id, codigo, descripcion, unidad,
			cantidad_esperada, cantidad_recibida, fecha_llegada, estado, observacion_inventario
		FROM recepcion_lineas
		WHERE recepcion_id = $1
		ORDER BY id
	`, receptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.ReceptionID, &l.PurchaseLineID, &l.Codigo, &l.Descripcion,
			&l.Unidad, &l.CantidadEsperada, &l.CantidadRecibida, &l.FechaLlegada,
			&l.Estado, &l.ObservacionInventario); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// List pages receptions newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Reception, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM recepciones").Scan(&total); err != nil {
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
		"SELECT "+receptionColumns+" FROM recepciones ORDER BY id DESC LIMIT $1 OFFSET $2",
		perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Reception
	for rows.Next() {
		rc, err := scanReception(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rc)
	}
	return items, total, rows.Err()
}

// PawIDForSolicitud walks solicitud → bom → orden → paw.
func (r *Repository) PawIDForSolicitud(ctx context.Context, solicitudID int64) (int64, error) {
	var pawID int64
	err := r.pool.QueryRow(ctx, `
		SELECT ot.paw_id
		FROM solicitudes_compra sc
		JOIN boms b ON b.id = sc.bom_id
		JOIN ordenes_trabajo ot ON ot.id = b.orden_id
		WHERE sc.id = $1
	`, solicitudID).Scan(&pawID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return pawID, err
}

func (t *txRepo) CreateReception(ctx context.Context, rc Reception) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO recepciones (solicitud_id, creado_por)
		VALUES ($1, $2)
		RETURNING id
	`, rc.SolicitudID, rc.CreadoPor).Scan(&id)
	if shared.IsUniqueViolation(err) {
		return 0, fmt.Errorf("%w: recepción para solicitud %d", shared.ErrDuplicate, rc.SolicitudID)
	}
	return id, err
}

func (t *txRepo) InsertLine(ctx context.Context, l Line) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO recepcion_lineas
			(recepcion_id, linea_compra_id, codigo, descripcion, unidad,
			 cantidad_esperada, cantidad_recibida, fecha_llegada, estado, observacion_inventario)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, l.ReceptionID, l.PurchaseLineID, l.Codigo, l.Descripcion, l.Unidad,
		l.CantidadEsperada, l.CantidadRecibida, l.FechaLlegada, l.Estado, l.ObservacionInventario).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateLine(ctx context.Context, l Line) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE recepcion_lineas
		SET cantidad_recibida = $2, fecha_llegada = $3, estado = $4, observacion_inventario = $5
		WHERE id = $1
	`, l.ID, l.CantidadRecibida, l.FechaLlegada, l.Estado, l.ObservacionInventario)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
