package purchasing

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

// TxRepository exposes transactional operations.
type TxRepository interface {
	CreateRequest(ctx context.Context, r PurchaseRequest) (int64, error)
	UpdateRequest(ctx context.Context, r PurchaseRequest) error
	InsertLine(ctx context.Context, line PurchaseLine) (int64, error)
	UpdateLine(ctx context.Context, line PurchaseLine) error
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

const requestColumns = `id, bom_id, estado, tipo_pago, paw_numero, paw_nombre, creado_por, created_at, updated_at`

func scanRequest(row pgx.Row) (PurchaseRequest, error) {
	var pr PurchaseRequest
	err := row.Scan(&pr.ID, &pr.BomID, &pr.Estado, &pr.TipoPago, &pr.PawNumero, &pr.PawNombre,
		&pr.CreadoPor, &pr.CreatedAt, &pr.UpdatedAt)
	return pr, err
}

// GetRequest returns one request with its lines.
func (r *Repository) GetRequest(ctx context.Context, id int64) (PurchaseRequest, []PurchaseLine, error) {
	pr, err := scanRequest(r.pool.QueryRow(ctx,
		"SELECT "+requestColumns+" FROM solicitudes_compra WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRequest{}, nil, ErrNotFound
		}
		return PurchaseRequest{}, nil, err
	}
	lines, err := r.lines(ctx, id)
	if err != nil {
		return PurchaseRequest{}, nil, err
	}
	return pr, lines, nil
}

// GetRequestByBom returns the request derived from a BOM.
func (r *Repository) GetRequestByBom(ctx context.Context, bomID int64) (PurchaseRequest, []PurchaseLine, error) {
	pr, err := scanRequest(r.pool.QueryRow(ctx,
		"SELECT "+requestColumns+" FROM solicitudes_compra WHERE bom_id = $1", bomID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRequest{}, nil, ErrNotFound
		}
		return PurchaseRequest{}, nil, err
	}
	lines, err := r.lines(ctx, pr.ID)
	if err != nil {
		return PurchaseRequest{}, nil, err
	}
	return pr, lines, nil
}

const lineColumns = `id, solicitud_id, bom_item_id, plano, codigo, descripcion, unidad,
	observaciones_bom, cantidad_requerida, cantidad_disponible, cantidad_a_comprar,
	proveedor_id, precio_unitario, observaciones_compras, tipo_pago`

func scanLine(row pgx.Row) (PurchaseLine, error) {
	var l PurchaseLine
	err := row.Scan(&l.ID, &l.RequestID, &l.BomItemID, &l.Plano, &l.Codigo, &l.Descripcion,
		&l.Unidad, &l.ObservacionesBom, &l.CantidadRequerida, &l.CantidadDisponible,
		&l.CantidadAComprar, &l.ProveedorID, &l.PrecioUnitario, &l.ObservacionesCompras, &l.TipoPago)
	return l, err
}

func (r *Repository) lines(ctx context.Context, requestID int64) ([]PurchaseLine, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+lineColumns+" FROM solicitud_compra_lineas WHERE solicitud_id = $1 ORDER BY id", requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []PurchaseLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// ListRequests pages requests with optional estado and search filters.
func (r *Repository) ListRequests(ctx context.Context, filter ListFilter) ([]PurchaseRequest, int, error) {
	where := []string{"1=1"}
	args := []any{}
	n := 1
	if filter.Estado != "" {
		where = append(where, fmt.Sprintf("estado = $%d", n))
		args = append(args, filter.Estado)
		n++
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(paw_numero ILIKE $%d OR paw_nombre ILIKE $%d)", n, n))
		args = append(args, "%"+filter.Search+"%")
		n++
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM solicitudes_compra WHERE "+cond, args...).Scan(&total); err != nil {
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
		"SELECT %s FROM solicitudes_compra WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d",
		requestColumns, cond, n, n+1), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []PurchaseRequest
	for rows.Next() {
		pr, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, pr)
	}
	return items, total, rows.Err()
}

// PawHeader resolves the PAW number and name for a work order. Snapshot
// source for the request header.
func (r *Repository) PawHeader(ctx context.Context, workOrderID int64) (string, string, error) {
	var numero, nombre string
	err := r.pool.QueryRow(ctx, `
		SELECT p.numero_paw, p.nombre_paw
		FROM ordenes_trabajo ot
		JOIN paws p ON p.id = ot.paw_id
		WHERE ot.id = $1
	`, workOrderID).Scan(&numero, &nombre)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", ErrNotFound
	}
	return numero, nombre, err
}

func (t *txRepo) CreateRequest(ctx context.Context, pr PurchaseRequest) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO solicitudes_compra (bom_id, estado, tipo_pago, paw_numero, paw_nombre, creado_por)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, pr.BomID, pr.Estado, pr.TipoPago, pr.PawNumero, pr.PawNombre, pr.CreadoPor).Scan(&id)
	if shared.IsUniqueViolation(err) {
		return 0, fmt.Errorf("%w: solicitud para bom %d", shared.ErrDuplicate, pr.BomID)
	}
	return id, err
}

func (t *txRepo) UpdateRequest(ctx context.Context, pr PurchaseRequest) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE solicitudes_compra
		SET estado = $2, tipo_pago = $3, updated_at = now()
		WHERE id = $1
	`, pr.ID, pr.Estado, pr.TipoPago)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertLine(ctx context.Context, l PurchaseLine) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO solicitud_compra_lineas
			(solicitud_id, bom_item_id, plano, codigo, descripcion, unidad, observaciones_bom,
			 cantidad_requerida, cantidad_disponible, cantidad_a_comprar,
			 proveedor_id, precio_unitario, observaciones_compras, tipo_pago)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`, l.RequestID, l.BomItemID, l.Plano, l.Codigo, l.Descripcion, l.Unidad, l.ObservacionesBom,
		l.CantidadRequerida, l.CantidadDisponible, l.CantidadAComprar,
		l.ProveedorID, l.PrecioUnitario, l.ObservacionesCompras, l.TipoPago).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateLine(ctx context.Context, l PurchaseLine) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE solicitud_compra_lineas
		SET observaciones_bom = $2, cantidad_requerida = $3, cantidad_disponible = $4,
			cantidad_a_comprar = $5, proveedor_id = $6, precio_unitario = $7,
			observaciones_compras = $8, tipo_pago = $9
		WHERE id = $1
	`, l.ID, l.ObservacionesBom, l.CantidadRequerida, l.CantidadDisponible,
		l.CantidadAComprar, l.ProveedorID, l.PrecioUnitario, l.ObservacionesCompras, l.TipoPago)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const supplierColumns = `id, nombre, contacto, telefono, email, nit, banco, cuenta_bancaria, tipo_cuenta`

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Nombre, &s.Contacto, &s.Telefono, &s.Email,
		&s.Nit, &s.Banco, &s.CuentaBancaria, &s.TipoCuenta)
	return s, err
}

// GetSupplier returns one supplier.
func (r *Repository) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	s, err := scanSupplier(r.pool.QueryRow(ctx,
		"SELECT "+supplierColumns+" FROM proveedores WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrNotFound
	}
	return s, err
}

// ListSuppliers returns suppliers matching nombre or NIT.
func (r *Repository) ListSuppliers(ctx context.Context, search string) ([]Supplier, error) {
	query := "SELECT " + supplierColumns + " FROM proveedores"
	args := []any{}
	if search != "" {
		query += " WHERE nombre ILIKE $1 OR nit ILIKE $1"
		args = append(args, "%"+search+"%")
	}
	query += " ORDER BY nombre"
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, rows.Err()
}

// CreateSupplier inserts a supplier.
func (r *Repository) CreateSupplier(ctx context.Context, s Supplier) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO proveedores (nombre, contacto, telefono, email, nit, banco, cuenta_bancaria, tipo_cuenta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, s.Nombre, s.Contacto, s.Telefono, s.Email, s.Nit, s.Banco, s.CuentaBancaria, s.TipoCuenta).Scan(&id)
	if shared.IsUniqueViolation(err) {
		return 0, fmt.Errorf("%w: proveedor %q", shared.ErrDuplicate, s.Nombre)
	}
	return id, err
}

// UpdateSupplier edits a supplier.
func (r *Repository) UpdateSupplier(ctx context.Context, s Supplier) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE proveedores
		SET nombre = $2, contacto = $3, telefono = $4, email = $5,
			nit = $6, banco = $7, cuenta_bancaria = $8, tipo_cuenta = $9
		WHERE id = $1
	`, s.ID, s.Nombre, s.Contacto, s.Telefono, s.Email, s.Nit, s.Banco, s.CuentaBancaria, s.TipoCuenta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSupplier removes a supplier. Refused while referenced.
func (r *Repository) DeleteSupplier(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM proveedores WHERE id = $1", id)
	if err != nil {
		if shared.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: proveedor referenciado por líneas de compra", ErrProtected)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
