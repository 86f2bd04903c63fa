package workorders

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
	CreateWorkOrder(ctx context.Context, wo WorkOrder) (int64, error)
	UpdateWorkOrder(ctx context.Context, wo WorkOrder) error
	InsertTask(ctx context.Context, task Task) error
	UpdateTask(ctx context.Context, task Task) error
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

const workOrderColumns = `id, numero, titulo, descripcion, cliente, equipo, serial, ubicacion,
	prioridad, estado, etapa_taller, comentario_taller, visibilidad, paw_id, asignado_a,
	created_at, updated_at`

func scanWorkOrder(row pgx.Row) (WorkOrder, error) {
	var wo WorkOrder
	err := row.Scan(
		&wo.ID, &wo.Numero, &wo.Titulo, &wo.Descripcion, &wo.Cliente, &wo.Equipo,
		&wo.Serial, &wo.Ubicacion, &wo.Prioridad, &wo.Estado, &wo.EtapaTaller,
		&wo.ComentarioTaller, &wo.Visibilidad, &wo.PawID, &wo.AsignadoA,
		&wo.CreatedAt, &wo.UpdatedAt,
	)
	return wo, err
}

// Get returns one work order with its tasks.
func (r *Repository) Get(ctx context.Context, id int64) (WorkOrder, []Task, error) {
	wo, err := scanWorkOrder(r.pool.QueryRow(ctx,
		"SELECT "+workOrderColumns+" FROM ordenes_trabajo WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WorkOrder{}, nil, ErrNotFound
		}
		return WorkOrder{}, nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, orden_id, titulo, estado, responsable, comentario
		FROM ordenes_trabajo_tareas
		WHERE orden_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return WorkOrder{}, nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.WorkOrderID, &t.Titulo, &t.Estado, &t.Responsable, &t.Comentario); err != nil {
			return WorkOrder{}, nil, err
		}
		tasks = append(tasks, t)
	}
	return wo, tasks, rows.Err()
}

// ListByPaw returns every work order under the PAW.
func (r *Repository) ListByPaw(ctx context.Context, pawID int64) ([]WorkOrder, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+workOrderColumns+" FROM ordenes_trabajo WHERE paw_id = $1 ORDER BY id", pawID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []WorkOrder
	for rows.Next() {
		wo, err := scanWorkOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, wo)
	}
	return orders, rows.Err()
}

// List returns work orders matching the filter plus the unpaged count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]WorkOrder, int, error) {
	conditions := []string{"1=1"}
	args := []any{}
	idx := 1
	if filter.PawID != 0 {
		conditions = append(conditions, fmt.Sprintf("paw_id = $%d", idx))
		args = append(args, filter.PawID)
		idx++
	}
	if filter.Estado != "" {
		conditions = append(conditions, fmt.Sprintf("estado = $%d", idx))
		args = append(args, filter.Estado)
		idx++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(numero ILIKE $%d OR titulo ILIKE $%d OR equipo ILIKE $%d)", idx, idx, idx))
		args = append(args, "%"+filter.Search+"%")
		idx++
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM ordenes_trabajo WHERE "+where, args...).Scan(&total); err != nil {
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
	query := fmt.Sprintf("SELECT %s FROM ordenes_trabajo WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		workOrderColumns, where, idx, idx+1)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []WorkOrder
	for rows.Next() {
		wo, err := scanWorkOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, wo)
	}
	return orders, total, rows.Err()
}

// CreateWorkOrder inserts a work order and returns its id.
func (tx *txRepo) CreateWorkOrder(ctx context.Context, wo WorkOrder) (int64, error) {
	const query = `
		INSERT INTO ordenes_trabajo (numero, titulo, descripcion, cliente, equipo, serial, ubicacion,
			prioridad, estado, etapa_taller, comentario_taller, visibilidad, paw_id, asignado_a,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
		RETURNING id
	`
	var id int64
	err := tx.tx.QueryRow(ctx, query,
		wo.Numero, wo.Titulo, wo.Descripcion, wo.Cliente, wo.Equipo, wo.Serial, wo.Ubicacion,
		wo.Prioridad, wo.Estado, wo.EtapaTaller, wo.ComentarioTaller, wo.Visibilidad,
		wo.PawID, wo.AsignadoA,
	).Scan(&id)
	return id, err
}

// UpdateWorkOrder persists header changes.
func (tx *txRepo) UpdateWorkOrder(ctx context.Context, wo WorkOrder) error {
	const query = `
		UPDATE ordenes_trabajo SET
			titulo = $2, descripcion = $3, cliente = $4, equipo = $5, serial = $6,
			ubicacion = $7, prioridad = $8, estado = $9, etapa_taller = $10,
			comentario_taller = $11, visibilidad = $12, asignado_a = $13, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := tx.tx.Exec(ctx, query,
		wo.ID, wo.Titulo, wo.Descripcion, wo.Cliente, wo.Equipo, wo.Serial,
		wo.Ubicacion, wo.Prioridad, wo.Estado, wo.EtapaTaller,
		wo.ComentarioTaller, wo.Visibilidad, wo.AsignadoA,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertTask adds one checklist entry.
func (tx *txRepo) InsertTask(ctx context.Context, task Task) error {
	_, err := tx.tx.Exec(ctx, `
		INSERT INTO ordenes_trabajo_tareas (orden_id, titulo, estado, responsable, comentario)
		VALUES ($1, $2, $3, $4, $5)
	`, task.WorkOrderID, task.Titulo, task.Estado, task.Responsable, task.Comentario)
	return err
}

// UpdateTask persists checklist entry changes.
func (tx *txRepo) UpdateTask(ctx context.Context, task Task) error {
	tag, err := tx.tx.Exec(ctx, `
		UPDATE ordenes_trabajo_tareas SET titulo = $2, estado = $3, responsable = $4, comentario = $5
		WHERE id = $1
	`, task.ID, task.Titulo, task.Estado, task.Responsable, task.Comentario)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
