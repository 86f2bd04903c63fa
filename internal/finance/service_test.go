package finance

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/impetus-erp/impetus-erp/internal/purchasing"
	"github.com/impetus-erp/impetus-erp/internal/shared"
)

type memoryFinanceRepo struct {
	rounds map[int64]FinanceApproval
	lines  map[int64][]Line
	nextID int64
}

type memoryFinanceTx struct {
	repo *memoryFinanceRepo
}

func newMemoryFinanceRepo() *memoryFinanceRepo {
	return &memoryFinanceRepo{
		rounds: make(map[int64]FinanceApproval),
		lines:  make(map[int64][]Line),
	}
}

func (r *memoryFinanceRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryFinanceTx{repo: r})
}

func (r *memoryFinanceRepo) Get(ctx context.Context, id int64) (FinanceApproval, []Line, error) {
	f, ok := r.rounds[id]
	if !ok {
		return FinanceApproval{}, nil, ErrNotFound
	}
	return f, append([]Line(nil), r.lines[id]...), nil
}

func (r *memoryFinanceRepo) GetBySolicitud(ctx context.Context, solicitudID int64) (FinanceApproval, []Line, error) {
	for _, f := range r.rounds {
		if f.SolicitudID == solicitudID {
			return f, append([]Line(nil), r.lines[f.ID]...), nil
		}
	}
	return FinanceApproval{}, nil, ErrNotFound
}

func (r *memoryFinanceRepo) List(ctx context.Context, filter ListFilter) ([]FinanceApproval, int, error) {
	var items []FinanceApproval
	for _, f := range r.rounds {
		items = append(items, f)
	}
	return items, len(items), nil
}

func (r *memoryFinanceRepo) DueLines(ctx context.Context, today time.Time) ([]Line, error) {
	var due []Line
	for _, lines := range r.lines {
		for _, l := range lines {
			if CanBePaidToday(l, today) {
				due = append(due, l)
			}
		}
	}
	return due, nil
}

func (tx *memoryFinanceTx) CreateRound(ctx context.Context, f FinanceApproval) (int64, error) {
	tx.repo.nextID++
	f.ID = tx.repo.nextID
	tx.repo.rounds[f.ID] = f
	return f.ID, nil
}

func (tx *memoryFinanceTx) UpdateRound(ctx context.Context, f FinanceApproval) error {
	if _, ok := tx.repo.rounds[f.ID]; !ok {
		return ErrNotFound
	}
	tx.repo.rounds[f.ID] = f
	return nil
}

func (tx *memoryFinanceTx) InsertLine(ctx context.Context, l Line) (int64, error) {
	tx.repo.nextID++
	l.ID = tx.repo.nextID
	tx.repo.lines[l.FinanceID] = append(tx.repo.lines[l.FinanceID], l)
	return l.ID, nil
}

func (tx *memoryFinanceTx) UpdateLine(ctx context.Context, l Line) error {
	lines := tx.repo.lines[l.FinanceID]
	for i := range lines {
		if lines[i].ID == l.ID {
			lines[i] = l
			return nil
		}
	}
	return ErrNotFound
}

func (tx *memoryFinanceTx) DeleteLine(ctx context.Context, lineID int64) error {
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

func (tx *memoryFinanceTx) Lines(ctx context.Context, roundID int64) ([]Line, error) {
	return append([]Line(nil), tx.repo.lines[roundID]...), nil
}

type stubPurchasing struct {
	request purchasing.PurchaseRequest
	lines   []purchasing.PurchaseLine
}

func (s *stubPurchasing) Get(ctx context.Context, id int64) (purchasing.PurchaseRequest, []purchasing.PurchaseLine, error) {
	return s.request, append([]purchasing.PurchaseLine(nil), s.lines...), nil
}

func (s *stubPurchasing) GetSupplier(ctx context.Context, id int64) (purchasing.Supplier, error) {
	return purchasing.Supplier{ID: id, Nombre: "Importadora Andina"}, nil
}

func buildStub() *stubPurchasing {
	return &stubPurchasing{
		request: purchasing.PurchaseRequest{ID: 20, TipoPago: purchasing.TipoPagoContado},
		lines: []purchasing.PurchaseLine{
			{ID: 201, Descripcion: "Sello mecánico 45mm", CantidadAComprar: decimal.NewFromInt(10), TipoPago: purchasing.TipoPagoContado},
			{ID: 202, Descripcion: "Rodamiento 6204", CantidadAComprar: decimal.NewFromInt(5), TipoPago: purchasing.TipoPagoCredito},
			{ID: 203, Descripcion: "Empaque viton", CantidadAComprar: decimal.NewFromInt(2)},
		},
	}
}

func adminActor() shared.Actor {
	return shared.Actor{ID: 1, Name: "Sandra", Roles: []string{shared.RoleAdmin}}
}

func fixedDay(svc *Service, day time.Time) {
	svc.now = func() time.Time { return day }
}

func TestSendTakesOnlyContadoLines(t *testing.T) {
	repo := newMemoryFinanceRepo()
	svc := NewService(repo, buildStub(), nil)

	round, err := svc.Send(context.Background(), adminActor(), 20)
	require.NoError(t, err)

	_, lines, err := svc.Get(context.Background(), round.ID)
	require.NoError(t, err)
	// la línea a crédito queda fuera; la línea sin tipo hereda el
	// contado del encabezado
	require.Len(t, lines, 2)
	require.Equal(t, int64(201), lines[0].PurchaseLineID)
	require.Equal(t, int64(203), lines[1].PurchaseLineID)
}

func TestSendWithoutContadoFails(t *testing.T) {
	repo := newMemoryFinanceRepo()
	stub := buildStub()
	stub.request.TipoPago = purchasing.TipoPagoCredito
	stub.lines = stub.lines[1:2]
	svc := NewService(repo, stub, nil)

	_, err := svc.Send(context.Background(), adminActor(), 20)
	require.ErrorIs(t, err, shared.ErrPrecondition)
}

func TestPaymentGate(t *testing.T) {
	today := time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC)
	tomorrow := today.AddDate(0, 0, 1)
	yesterday := today.AddDate(0, 0, -1)

	require.False(t, CanBePaidToday(Line{Estado: DecisionPendiente}, today))
	require.True(t, CanBePaidToday(Line{Estado: DecisionAprobado}, today))
	require.False(t, CanBePaidToday(Line{Estado: DecisionAprobado, Pagado: true}, today))
	require.True(t, CanBePaidToday(Line{Estado: DecisionProgramado, FechaProgramada: &yesterday}, today))
	require.True(t, CanBePaidToday(Line{Estado: DecisionProgramado, FechaProgramada: &today}, today))
	require.False(t, CanBePaidToday(Line{Estado: DecisionProgramado, FechaProgramada: &tomorrow}, today))
	require.False(t, CanBePaidToday(Line{Estado: DecisionEnEspera}, today))
	require.False(t, CanBePaidToday(Line{Estado: DecisionRechazado}, today))
}

func TestMarkPaidRequiresGate(t *testing.T) {
	repo := newMemoryFinanceRepo()
	svc := NewService(repo, buildStub(), nil)
	actor := adminActor()
	fixedDay(svc, time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))

	round, err := svc.Send(context.Background(), actor, 20)
	require.NoError(t, err)
	_, lines, err := svc.Get(context.Background(), round.ID)
	require.NoError(t, err)

	_, err = svc.MarkPaid(context.Background(), actor, round.ID, lines[0].ID)
	require.ErrorIs(t, err, shared.ErrPrecondition)

	_, err = svc.MarkDecision(context.Background(), actor, round.ID, lines[0].ID, DecisionInput{Estado: DecisionAprobado})
	require.NoError(t, err)

	line, err := svc.MarkPaid(context.Background(), actor, round.ID, lines[0].ID)
	require.NoError(t, err)
	require.True(t, line.Pagado)
	require.Equal(t, actor.ID, *line.PagadoPor)

	// pagar dos veces no pasa la compuerta
	_, err = svc.MarkPaid(context.Background(), actor, round.ID, lines[0].ID)
	require.ErrorIs(t, err, shared.ErrPrecondition)
}

func TestScheduledPaymentWaitsForDate(t *testing.T) {
	repo := newMemoryFinanceRepo()
	svc := NewService(repo, buildStub(), nil)
	actor := adminActor()
	fixedDay(svc, time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))

	round, err := svc.Send(context.Background(), actor, 20)
	require.NoError(t, err)
	_, lines, err := svc.Get(context.Background(), round.ID)
	require.NoError(t, err)

	fecha := "2026-09-02"
	_, err = svc.MarkDecision(context.Background(), actor, round.ID, lines[0].ID, DecisionInput{
		Estado:          DecisionProgramado,
		FechaProgramada: &fecha,
	})
	require.NoError(t, err)

	_, err = svc.MarkPaid(context.Background(), actor, round.ID, lines[0].ID)
	require.ErrorIs(t, err, shared.ErrPrecondition)

	fixedDay(svc, time.Date(2026, 9, 2, 8, 0, 0, 0, time.UTC))
	line, err := svc.MarkPaid(context.Background(), actor, round.ID, lines[0].ID)
	require.NoError(t, err)
	require.True(t, line.Pagado)
}

func TestProgramadoRequiresDate(t *testing.T) {
	repo := newMemoryFinanceRepo()
	svc := NewService(repo, buildStub(), nil)
	actor := adminActor()

	round, err := svc.Send(context.Background(), actor, 20)
	require.NoError(t, err)
	_, lines, err := svc.Get(context.Background(), round.ID)
	require.NoError(t, err)

	_, err = svc.MarkDecision(context.Background(), actor, round.ID, lines[0].ID, DecisionInput{Estado: DecisionProgramado})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestHeaderStatusIndependentOfLines(t *testing.T) {
	repo := newMemoryFinanceRepo()
	svc := NewService(repo, buildStub(), nil)
	actor := adminActor()

	round, err := svc.Send(context.Background(), actor, 20)
	require.NoError(t, err)

	round, err = svc.SetHeaderStatus(context.Background(), actor, round.ID, StatusAprobado)
	require.NoError(t, err)
	require.Equal(t, StatusAprobado, round.Estado)

	_, lines, err := svc.Get(context.Background(), round.ID)
	require.NoError(t, err)
	for _, l := range lines {
		require.Equal(t, DecisionPendiente, l.Estado)
	}
}

func TestRefreshKeepsDecidedAndPaidLines(t *testing.T) {
	repo := newMemoryFinanceRepo()
	stub := buildStub()
	svc := NewService(repo, stub, nil)
	actor := adminActor()

	round, err := svc.Send(context.Background(), actor, 20)
	require.NoError(t, err)
	_, lines, err := svc.Get(context.Background(), round.ID)
	require.NoError(t, err)

	_, err = svc.MarkDecision(context.Background(), actor, round.ID, lines[0].ID, DecisionInput{Estado: DecisionAprobado})
	require.NoError(t, err)

	// la línea decidida ya no es comprable pero no desaparece
	stub.lines[0].CantidadAComprar = decimal.Zero
	stub.lines[2].CantidadAComprar = decimal.NewFromInt(4)

	_, err = svc.Send(context.Background(), actor, 20)
	require.NoError(t, err)

	_, lines, err = svc.Get(context.Background(), round.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, DecisionAprobado, lines[0].Estado)
	require.Equal(t, "4.000", lines[1].Cantidad.StringFixed(3))
}
