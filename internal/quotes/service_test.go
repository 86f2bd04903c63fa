package quotes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/impetus-erp/impetus-erp/internal/shared"
)

type memoryQuotesRepo struct {
	quotations map[int64]Quotation
	referenced map[int64]bool
	nextID     int64
}

func newMemoryQuotesRepo() *memoryQuotesRepo {
	return &memoryQuotesRepo{
		quotations: make(map[int64]Quotation),
		referenced: make(map[int64]bool),
	}
}

func (r *memoryQuotesRepo) Get(ctx context.Context, id int64) (Quotation, error) {
	q, ok := r.quotations[id]
	if !ok {
		return Quotation{}, ErrNotFound
	}
	return q, nil
}

func (r *memoryQuotesRepo) GetByNumero(ctx context.Context, numero string) (Quotation, error) {
	for _, q := range r.quotations {
		if q.Numero == numero {
			return q, nil
		}
	}
	return Quotation{}, ErrNotFound
}

func (r *memoryQuotesRepo) List(ctx context.Context, filter ListFilter) ([]Quotation, int, error) {
	var items []Quotation
	for _, q := range r.quotations {
		items = append(items, q)
	}
	return items, len(items), nil
}

func (r *memoryQuotesRepo) Create(ctx context.Context, q Quotation) (int64, error) {
	for _, existing := range r.quotations {
		if existing.Numero == q.Numero {
			return 0, shared.ErrDuplicate
		}
	}
	r.nextID++
	q.ID = r.nextID
	r.quotations[q.ID] = q
	return q.ID, nil
}

func (r *memoryQuotesRepo) Update(ctx context.Context, q Quotation) error {
	if _, ok := r.quotations[q.ID]; !ok {
		return ErrNotFound
	}
	r.quotations[q.ID] = q
	return nil
}

func (r *memoryQuotesRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.quotations[id]; !ok {
		return ErrNotFound
	}
	if r.referenced[id] {
		return ErrProtected
	}
	delete(r.quotations, id)
	return nil
}

func TestCreateQuotationParsesLooseValor(t *testing.T) {
	repo := newMemoryQuotesRepo()
	svc := NewService(repo, nil)
	actor := shared.Actor{ID: 4, Roles: []string{shared.RolePaw}}

	q, err := svc.Create(context.Background(), actor, CreateInput{
		Numero:  "COT-2026-014",
		Nombre:  "Overhaul bomba triplex",
		Cliente: "Perforaciones Andinas",
		Valor:   "$ 45.800.000",
	})
	require.NoError(t, err)
	require.Equal(t, "45800000.00", q.Valor.StringFixed(2))
	require.Equal(t, StatusEvaluacion, q.Estado)
	require.Equal(t, EmpresaImpetus, q.Empresa)
}

func TestCreateQuotationRejectsBadInput(t *testing.T) {
	svc := NewService(newMemoryQuotesRepo(), nil)
	actor := shared.Actor{ID: 4}

	_, err := svc.Create(context.Background(), actor, CreateInput{Numero: " ", Nombre: "x"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(context.Background(), actor, CreateInput{
		Numero: "COT-1", Nombre: "x", Estado: Status("INVENTADA"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(context.Background(), actor, CreateInput{
		Numero: "COT-2", Nombre: "x", Valor: "abc",
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteQuotationRefusedWhileReferenced(t *testing.T) {
	repo := newMemoryQuotesRepo()
	svc := NewService(repo, nil)
	actor := shared.Actor{ID: 4}

	q, err := svc.Create(context.Background(), actor, CreateInput{Numero: "COT-9", Nombre: "x"})
	require.NoError(t, err)
	repo.referenced[q.ID] = true

	err = svc.Delete(context.Background(), actor, q.ID)
	require.ErrorIs(t, err, shared.ErrProtected)
	_, err = svc.Get(context.Background(), q.ID)
	require.NoError(t, err)
}

func TestUpdateQuotationPartial(t *testing.T) {
	repo := newMemoryQuotesRepo()
	svc := NewService(repo, nil)
	actor := shared.Actor{ID: 4}

	q, err := svc.Create(context.Background(), actor, CreateInput{
		Numero: "COT-3", Nombre: "Reparación swivel", Cliente: "Oleoducto Central",
	})
	require.NoError(t, err)

	estado := StatusAdjudicada
	valor := "12.500.000,75"
	updated, err := svc.Update(context.Background(), actor, q.ID, UpdateInput{
		Estado: &estado,
		Valor:  &valor,
	})
	require.NoError(t, err)
	require.Equal(t, StatusAdjudicada, updated.Estado)
	require.Equal(t, "12500000.75", updated.Valor.StringFixed(2))
	require.Equal(t, "Oleoducto Central", updated.Cliente)
}
