package paw

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/impetus-erp/impetus-erp/internal/quotes"
	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Paw, error)
	GetByNumero(ctx context.Context, numero string) (Paw, error)
	List(ctx context.Context, filter ListFilter) ([]Paw, int, error)
	Create(ctx context.Context, p Paw) (int64, error)
	Update(ctx context.Context, p Paw) error
	Delete(ctx context.Context, id int64) error
}

// QuotationPort reads quotations for header backfill.
type QuotationPort interface {
	Get(ctx context.Context, id int64) (quotes.Quotation, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages work authorizations.
type Service struct {
	repo       RepositoryPort
	quotations QuotationPort
	audit      AuditPort
}

// NewService constructs paw service.
func NewService(repo RepositoryPort, quotations QuotationPort, audit AuditPort) *Service {
	return &Service{repo: repo, quotations: quotations, audit: audit}
}

// ListFilter narrows PAW listings.
type ListFilter struct {
	Search  string
	Cliente string
	Page    int
	PerPage int
}

// CreateInput describes a new PAW.
type CreateInput struct {
	Numero       string `validate:"required"`
	Nombre       string `validate:"required"`
	QuotationID  *int64
	Cliente      string
	Campo        string
	FechaEntrega string
	FechaSalida  string
}

// UpdateInput mutates an existing PAW.
type UpdateInput struct {
	Nombre       *string
	QuotationID  *int64
	Cliente      *string
	Campo        *string
	FechaEntrega *string
	FechaSalida  *string
}

// Create persists a PAW. Cliente and campo left empty are backfilled
// from the referenced quotation, never the reverse.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput) (Paw, error) {
	numero := strings.TrimSpace(input.Numero)
	if numero == "" {
		return Paw{}, fmt.Errorf("%w: numero_paw requerido", ErrValidation)
	}
	p := Paw{
		Numero:      numero,
		Nombre:      strings.TrimSpace(input.Nombre),
		QuotationID: input.QuotationID,
		Cliente:     strings.TrimSpace(input.Cliente),
		Campo:       strings.TrimSpace(input.Campo),
		CreadoPor:   actor.ID,
	}
	var err error
	if p.FechaEntrega, err = parseDate(input.FechaEntrega, "fecha_entrega"); err != nil {
		return Paw{}, err
	}
	if p.FechaSalida, err = parseDate(input.FechaSalida, "fecha_salida"); err != nil {
		return Paw{}, err
	}
	if err := s.backfillFromQuotation(ctx, &p); err != nil {
		return Paw{}, err
	}
	id, err := s.repo.Create(ctx, p)
	if err != nil {
		return Paw{}, err
	}
	p.ID = id
	s.recordAudit(ctx, actor, "PAW_CREAR", id, map[string]any{"numero": p.Numero})
	return p, nil
}

// Update applies partial changes and re-runs the quotation backfill
// on fields left empty.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, input UpdateInput) (Paw, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Paw{}, err
	}
	if input.Nombre != nil {
		p.Nombre = strings.TrimSpace(*input.Nombre)
	}
	if input.QuotationID != nil {
		p.QuotationID = input.QuotationID
	}
	if input.Cliente != nil {
		p.Cliente = strings.TrimSpace(*input.Cliente)
	}
	if input.Campo != nil {
		p.Campo = strings.TrimSpace(*input.Campo)
	}
	if input.FechaEntrega != nil {
		if p.FechaEntrega, err = parseDate(*input.FechaEntrega, "fecha_entrega"); err != nil {
			return Paw{}, err
		}
	}
	if input.FechaSalida != nil {
		if p.FechaSalida, err = parseDate(*input.FechaSalida, "fecha_salida"); err != nil {
			return Paw{}, err
		}
	}
	if err := s.backfillFromQuotation(ctx, &p); err != nil {
		return Paw{}, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return Paw{}, err
	}
	s.recordAudit(ctx, actor, "PAW_EDITAR", id, map[string]any{"numero": p.Numero})
	return p, nil
}

// backfillFromQuotation fills cliente/campo from the quotation only
// when the PAW value is empty.
func (s *Service) backfillFromQuotation(ctx context.Context, p *Paw) error {
	if p.QuotationID == nil || s.quotations == nil {
		return nil
	}
	if p.Cliente != "" && p.Campo != "" {
		return nil
	}
	q, err := s.quotations.Get(ctx, *p.QuotationID)
	if err != nil {
		return fmt.Errorf("%w: cotización %d", ErrValidation, *p.QuotationID)
	}
	if p.Cliente == "" {
		p.Cliente = q.Cliente
	}
	if p.Campo == "" {
		p.Campo = q.Campo
	}
	return nil
}

// Get returns one PAW.
func (s *Service) Get(ctx context.Context, id int64) (Paw, error) {
	return s.repo.Get(ctx, id)
}

// GetByNumero returns one PAW by its unique number.
func (s *Service) GetByNumero(ctx context.Context, numero string) (Paw, error) {
	return s.repo.GetByNumero(ctx, strings.TrimSpace(numero))
}

// List returns a filtered page of PAWs.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Paw, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Delete removes a PAW, refused while referenced downstream.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "PAW_ELIMINAR", id, nil)
	return nil
}

func parseDate(raw, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q", ErrValidation, field, raw)
	}
	return &parsed, nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "paw",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
