package approval

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/impetus-erp/impetus-erp/internal/purchasing"
	"github.com/impetus-erp/impetus-erp/internal/shared"
)

type memoryApprovalRepo struct {
	approvals map[int64]Approval
	lines     map[int64][]Line
	nextID    int64
}

type memoryApprovalTx struct {
	repo *memoryApprovalRepo
}

func newMemoryApprovalRepo() *memoryApprovalRepo {
	return &memoryApprovalRepo{
		approvals: make(map[int64]Approval),
		lines:     make(map[int64][]Line),
	}
}

func (r *memoryApprovalRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryApprovalTx{repo: r})
}

func (r *memoryApprovalRepo) Get(ctx context.Context, id int64) (Approval, []Line, error) {
	a, ok := r.approvals[id]
	if !ok {
		return Approval{}, nil, ErrNotFound
	}
	return a, append([]Line(nil), r.lines[id]...), nil
}

func (r *memoryApprovalRepo) GetBySolicitud(ctx context.Context, solicitudID int64) (Approval, []Line, error) {
	for _, a := range r.approvals {
		if a.SolicitudID == solicitudID {
			return a, append([]Line(nil), r.lines[a.ID]...), nil
		}
	}
	return Approval{}, nil, ErrNotFound
}

func (r *memoryApprovalRepo) List(ctx context.Context, filter ListFilter) ([]Approval, int, error) {
	var items []Approval
	for _, a := range r.approvals {
		items = append(items, a)
	}
	return items, len(items), nil
}

func (tx *memoryApprovalTx) CreateApproval(ctx context.Context, a Approval) (int64, error) {
	tx.repo.nextID++
	a.ID = tx.repo.nextID
	tx.repo.approvals[a.ID] = a
	return a.ID, nil
}

func (tx *memoryApprovalTx) UpdateApproval(ctx context.Context, a Approval) error {
	if _, ok := tx.repo.approvals[a.ID]; !ok {
		return ErrNotFound
	}
	tx.repo.approvals[a.ID] = a
	return nil
}

func (tx *memoryApprovalTx) InsertLine(ctx context.Context, l Line) (int64, error) {
	tx.repo.nextID++
	l.ID = tx.repo.nextID
	tx.repo.lines[l.ApprovalID] = append(tx.repo.lines[l.ApprovalID], l)
	return l.ID, nil
}

func (tx *memoryApprovalTx) UpdateLine(ctx context.Context, l Line) error {
	lines := tx.repo.lines[l.ApprovalID]
	for i := range lines {
		if lines[i].ID == l.ID {
			lines[i] = l
			return nil
		}
	}
	return ErrNotFound
}

func (tx *memoryApprovalTx) DeleteLine(ctx context.Context, lineID int64) error {
	for id, lines := range tx.repo.lines {
		for i := range lines {
			if lines[i].ID == lineID {
				tx.repo.lines[id] = append(lines[:i], lines[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (tx *memoryApprovalTx) Lines(ctx context.Context, approvalID int64) ([]Line, error) {
	return append([]Line(nil), tx.repo.lines[approvalID]...), nil
}

type stubPurchasing struct {
	request   purchasing.PurchaseRequest
	lines     []purchasing.PurchaseLine
	suppliers map[int64]purchasing.Supplier
}

func (s *stubPurchasing) Get(ctx context.Context, id int64) (purchasing.PurchaseRequest, []purchasing.PurchaseLine, error) {
	return s.request, append([]purchasing.PurchaseLine(nil), s.lines...), nil
}

func (s *stubPurchasing) GetSupplier(ctx context.Context, id int64) (purchasing.Supplier, error) {
	sup, ok := s.suppliers[id]
	if !ok {
		return purchasing.Supplier{}, purchasing.ErrNotFound
	}
	return sup, nil
}

func finanzasActor() shared.Actor {
	return shared.Actor{ID: 3, Name: "Julián", Roles: []string{shared.RoleFinanzas}}
}

func decimalPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func buildStub() *stubPurchasing {
	supID := int64(8)
	return &stubPurchasing{
		request: purchasing.PurchaseRequest{ID: 20, BomID: 10},
		lines: []purchasing.PurchaseLine{
			{
				ID: 201, RequestID: 20, Codigo: "SELLO-45", Descripcion: "Sello mecánico 45mm", Unidad: "UN",
				CantidadRequerida:    decimal.NewFromInt(10),
				CantidadAComprar:     decimal.NewFromInt(10),
				PrecioUnitario:       decimalPtr("12500.50"),
				ProveedorID:          &supID,
				ObservacionesBom:     "tomado del plano",
				ObservacionesCompras: "cotizado con dos proveedores",
			},
			{
				ID: 202, RequestID: 20, Codigo: "ROD-6204", Descripcion: "Rodamiento 6204", Unidad: "UN",
				CantidadRequerida: decimal.NewFromInt(5),
				CantidadAComprar:  decimal.NewFromInt(5),
			},
			{
				ID: 203, RequestID: 20, Codigo: "EMP-V", Descripcion: "Empaque viton", Unidad: "UN",
				CantidadRequerida:  decimal.NewFromInt(2),
				CantidadDisponible: decimal.NewFromInt(2),
				CantidadAComprar:   decimal.Zero,
			},
		},
		suppliers: map[int64]purchasing.Supplier{
			supID: {ID: supID, Nombre: "Rodamientos del Caribe"},
		},
	}
}

func TestSendSnapshotsOnlyBuyableLines(t *testing.T) {
	repo := newMemoryApprovalRepo()
	svc := NewService(repo, buildStub(), nil)

	a, err := svc.Send(context.Background(), finanzasActor(), 20)
	require.NoError(t, err)
	require.Equal(t, StatusPendiente, a.Estado)

	_, lines, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	require.Equal(t, "10.000", lines[0].Cantidad.StringFixed(3))
	require.Equal(t, "12500.50", lines[0].ValorUnidad.StringFixed(2))
	require.Equal(t, "125005.00", lines[0].ValorTotal.StringFixed(2))
	require.Equal(t, "Rodamientos del Caribe", lines[0].Proveedor)
	require.Equal(t, "BOM: tomado del plano\nCOMPRAS: cotizado con dos proveedores", lines[0].Observaciones)
	require.Nil(t, lines[1].ValorUnidad)
}

func TestSendWithNothingToBuyFails(t *testing.T) {
	repo := newMemoryApprovalRepo()
	stub := buildStub()
	stub.lines = stub.lines[2:3]
	svc := NewService(repo, stub, nil)

	_, err := svc.Send(context.Background(), finanzasActor(), 20)
	require.ErrorIs(t, err, shared.ErrPrecondition)
}

func TestDecideAggregatesHeaderStatus(t *testing.T) {
	repo := newMemoryApprovalRepo()
	svc := NewService(repo, buildStub(), nil)
	actor := finanzasActor()

	a, err := svc.Send(context.Background(), actor, 20)
	require.NoError(t, err)
	_, lines, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), actor, a.ID, lines[0].ID, DecideInput{Estado: DecisionAprobado})
	require.NoError(t, err)
	current, _, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, StatusParcial, current.Estado)

	_, err = svc.Decide(context.Background(), actor, a.ID, lines[1].ID, DecideInput{Estado: DecisionAprobado})
	require.NoError(t, err)
	current, _, err = svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAprobado, current.Estado)

	_, err = svc.Decide(context.Background(), actor, a.ID, lines[1].ID, DecideInput{Estado: DecisionRechazado})
	require.NoError(t, err)
	current, _, err = svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, StatusParcial, current.Estado)
}

func TestDecisionStampSetOnceAndClearedOnReturn(t *testing.T) {
	repo := newMemoryApprovalRepo()
	svc := NewService(repo, buildStub(), nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	actor := finanzasActor()

	a, err := svc.Send(context.Background(), actor, 20)
	require.NoError(t, err)
	_, lines, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)

	line, err := svc.Decide(context.Background(), actor, a.ID, lines[0].ID, DecideInput{Estado: DecisionAprobado})
	require.NoError(t, err)
	require.NotNil(t, line.DecididoPor)
	require.Equal(t, actor.ID, *line.DecididoPor)
	firstStamp := *line.DecididoEn

	// cambiar de veredicto no renueva la estampa
	svc.now = func() time.Time { return time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC) }
	line, err = svc.Decide(context.Background(), actor, a.ID, lines[0].ID, DecideInput{Estado: DecisionRechazado})
	require.NoError(t, err)
	require.Equal(t, firstStamp, *line.DecididoEn)

	line, err = svc.Decide(context.Background(), actor, a.ID, lines[0].ID, DecideInput{Estado: DecisionPendiente})
	require.NoError(t, err)
	require.Nil(t, line.DecididoPor)
	require.Nil(t, line.DecididoEn)
}

func TestRefreshPendingOnlyKeepsDecidedSnapshots(t *testing.T) {
	repo := newMemoryApprovalRepo()
	stub := buildStub()
	svc := NewService(repo, stub, nil)
	actor := finanzasActor()

	a, err := svc.Send(context.Background(), actor, 20)
	require.NoError(t, err)
	_, lines, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), actor, a.ID, lines[0].ID, DecideInput{Estado: DecisionAprobado})
	require.NoError(t, err)

	stub.lines[0].CantidadAComprar = decimal.NewFromInt(20)
	stub.lines[1].CantidadAComprar = decimal.NewFromInt(7)

	_, err = svc.Refresh(context.Background(), actor, 20, true)
	require.NoError(t, err)

	_, lines, err = svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, "10.000", lines[0].Cantidad.StringFixed(3))
	require.Equal(t, "7.000", lines[1].Cantidad.StringFixed(3))
	require.Equal(t, DecisionAprobado, lines[0].EstadoAprobacion)
}

func TestResendKeepsDecidedSnapshots(t *testing.T) {
	repo := newMemoryApprovalRepo()
	stub := buildStub()
	svc := NewService(repo, stub, nil)
	actor := finanzasActor()

	a, err := svc.Send(context.Background(), actor, 20)
	require.NoError(t, err)
	_, lines, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), actor, a.ID, lines[0].ID, DecideInput{Estado: DecisionAprobado})
	require.NoError(t, err)

	stub.lines[0].Descripcion = "Sello mecánico 45mm REEMPLAZADO"
	stub.lines[0].CantidadAComprar = decimal.NewFromInt(20)
	stub.lines[1].Descripcion = "Rodamiento 6204 ZZ"

	_, err = svc.Send(context.Background(), actor, 20)
	require.NoError(t, err)

	_, lines, err = svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, "Sello mecánico 45mm", lines[0].Descripcion)
	require.Equal(t, "10.000", lines[0].Cantidad.StringFixed(3))
	require.Equal(t, DecisionAprobado, lines[0].EstadoAprobacion)
	require.Equal(t, "Rodamiento 6204 ZZ", lines[1].Descripcion)
}

func TestRefreshUnchangedLinesIsIdempotent(t *testing.T) {
	repo := newMemoryApprovalRepo()
	svc := NewService(repo, buildStub(), nil)
	actor := finanzasActor()

	a, err := svc.Send(context.Background(), actor, 20)
	require.NoError(t, err)
	_, first, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), actor, 20, true)
	require.NoError(t, err)
	_, err = svc.Refresh(context.Background(), actor, 20, true)
	require.NoError(t, err)

	current, second, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPendiente, current.Estado)
	require.Equal(t, first, second)
}

func TestRefreshDropsPendingLineNoLongerBuyable(t *testing.T) {
	repo := newMemoryApprovalRepo()
	stub := buildStub()
	svc := NewService(repo, stub, nil)
	actor := finanzasActor()

	a, err := svc.Send(context.Background(), actor, 20)
	require.NoError(t, err)

	stub.lines[1].CantidadDisponible = decimal.NewFromInt(5)
	stub.lines[1].CantidadAComprar = decimal.Zero

	_, err = svc.Refresh(context.Background(), actor, 20, false)
	require.NoError(t, err)

	_, lines, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, int64(201), lines[0].PurchaseLineID)
}

func TestDecideRejectsUnknownVerdict(t *testing.T) {
	repo := newMemoryApprovalRepo()
	svc := NewService(repo, buildStub(), nil)
	actor := finanzasActor()

	a, err := svc.Send(context.Background(), actor, 20)
	require.NoError(t, err)
	_, lines, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), actor, a.ID, lines[0].ID, DecideInput{Estado: "TAL_VEZ"})
	require.ErrorIs(t, err, shared.ErrValidation)
}
