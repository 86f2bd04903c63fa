package paw

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/impetus-erp/impetus-erp/internal/quotes"
	"github.com/impetus-erp/impetus-erp/internal/shared"
)

type memoryPawRepo struct {
	paws   map[int64]Paw
	nextID int64
}

func newMemoryPawRepo() *memoryPawRepo {
	return &memoryPawRepo{paws: make(map[int64]Paw)}
}

func (r *memoryPawRepo) Get(ctx context.Context, id int64) (Paw, error) {
	p, ok := r.paws[id]
	if !ok {
		return Paw{}, ErrNotFound
	}
	return p, nil
}

func (r *memoryPawRepo) GetByNumero(ctx context.Context, numero string) (Paw, error) {
	for _, p := range r.paws {
		if p.Numero == numero {
			return p, nil
		}
	}
	return Paw{}, ErrNotFound
}

func (r *memoryPawRepo) List(ctx context.Context, filter ListFilter) ([]Paw, int, error) {
	var items []Paw
	for _, p := range r.paws {
		items = append(items, p)
	}
	return items, len(items), nil
}

func (r *memoryPawRepo) Create(ctx context.Context, p Paw) (int64, error) {
	r.nextID++
	p.ID = r.nextID
	r.paws[p.ID] = p
	return p.ID, nil
}

func (r *memoryPawRepo) Update(ctx context.Context, p Paw) error {
	if _, ok := r.paws[p.ID]; !ok {
		return ErrNotFound
	}
	r.paws[p.ID] = p
	return nil
}

func (r *memoryPawRepo) Delete(ctx context.Context, id int64) error {
	delete(r.paws, id)
	return nil
}

type stubQuotations struct {
	byID map[int64]quotes.Quotation
}

func (s *stubQuotations) Get(ctx context.Context, id int64) (quotes.Quotation, error) {
	q, ok := s.byID[id]
	if !ok {
		return quotes.Quotation{}, quotes.ErrNotFound
	}
	return q, nil
}

func TestCreatePawBackfillsFromQuotation(t *testing.T) {
	quotations := &stubQuotations{byID: map[int64]quotes.Quotation{
		10: {ID: 10, Cliente: "Perforaciones Andinas", Campo: "Castilla"},
	}}
	svc := NewService(newMemoryPawRepo(), quotations, nil)
	actor := shared.Actor{ID: 2, Roles: []string{shared.RolePaw}}

	quotationID := int64(10)
	p, err := svc.Create(context.Background(), actor, CreateInput{
		Numero:      "PAW-118",
		Nombre:      "Overhaul bomba triplex",
		QuotationID: &quotationID,
	})
	require.NoError(t, err)
	require.Equal(t, "Perforaciones Andinas", p.Cliente)
	require.Equal(t, "Castilla", p.Campo)
}

func TestCreatePawKeepsExplicitValuesOverQuotation(t *testing.T) {
	quotations := &stubQuotations{byID: map[int64]quotes.Quotation{
		10: {ID: 10, Cliente: "Perforaciones Andinas", Campo: "Castilla"},
	}}
	svc := NewService(newMemoryPawRepo(), quotations, nil)

	quotationID := int64(10)
	p, err := svc.Create(context.Background(), shared.Actor{ID: 2}, CreateInput{
		Numero:      "PAW-119",
		Nombre:      "Swivel",
		QuotationID: &quotationID,
		Cliente:     "Otro Cliente",
	})
	require.NoError(t, err)
	require.Equal(t, "Otro Cliente", p.Cliente)
	require.Equal(t, "Castilla", p.Campo)
}

func TestCreatePawRejectsUnknownQuotation(t *testing.T) {
	svc := NewService(newMemoryPawRepo(), &stubQuotations{byID: map[int64]quotes.Quotation{}}, nil)

	quotationID := int64(99)
	_, err := svc.Create(context.Background(), shared.Actor{ID: 2}, CreateInput{
		Numero: "PAW-120", Nombre: "x", QuotationID: &quotationID,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdatePawParsesDates(t *testing.T) {
	repo := newMemoryPawRepo()
	svc := NewService(repo, nil, nil)
	actor := shared.Actor{ID: 2}

	p, err := svc.Create(context.Background(), actor, CreateInput{Numero: "PAW-121", Nombre: "x"})
	require.NoError(t, err)

	entrega := "2026-09-15"
	updated, err := svc.Update(context.Background(), actor, p.ID, UpdateInput{FechaEntrega: &entrega})
	require.NoError(t, err)
	require.NotNil(t, updated.FechaEntrega)
	require.Equal(t, "2026-09-15", updated.FechaEntrega.Format("2006-01-02"))

	bad := "15/09/2026"
	_, err = svc.Update(context.Background(), actor, p.ID, UpdateInput{FechaSalida: &bad})
	require.ErrorIs(t, err, shared.ErrValidation)
}
