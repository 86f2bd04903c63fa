package quotes

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/impetus-erp/impetus-erp/internal/money"
	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Quotation, error)
	GetByNumero(ctx context.Context, numero string) (Quotation, error)
	List(ctx context.Context, filter ListFilter) ([]Quotation, int, error)
	Create(ctx context.Context, q Quotation) (int64, error)
	Update(ctx context.Context, q Quotation) error
	Delete(ctx context.Context, id int64) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages quotations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs quotes service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// ListFilter narrows quotation listings.
type ListFilter struct {
	Estado  string
	Empresa string
	Search  string
	Page    int
	PerPage int
}

// CreateInput describes a new quotation. Valor arrives as loose
// locale-formatted text the way sales enters it.
type CreateInput struct {
	Numero          string `validate:"required"`
	Nombre          string `validate:"required"`
	Cliente         string
	Campo           string
	FechaCotizacion string
	Estado          Status
	Empresa         Empresa
	Valor           string
	Observaciones   string
}

// UpdateInput mutates an existing quotation.
type UpdateInput struct {
	Nombre          *string
	Cliente         *string
	Campo           *string
	Estado          *Status
	Valor           *string
	Observaciones   *string
}

// Create persists a quotation.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput) (Quotation, error) {
	numero := strings.TrimSpace(input.Numero)
	if numero == "" {
		return Quotation{}, fmt.Errorf("%w: numero_cotizacion requerido", ErrValidation)
	}
	estado := input.Estado
	if estado == "" {
		estado = StatusEvaluacion
	}
	if !validStatus(estado) {
		return Quotation{}, fmt.Errorf("%w: estado %q", ErrValidation, estado)
	}
	empresa := input.Empresa
	if empresa == "" {
		empresa = EmpresaImpetus
	}
	if !validEmpresa(empresa) {
		return Quotation{}, fmt.Errorf("%w: empresa %q", ErrValidation, empresa)
	}
	valor, err := money.ParseAmount(input.Valor)
	if err != nil {
		return Quotation{}, err
	}
	var fecha *time.Time
	if raw := strings.TrimSpace(input.FechaCotizacion); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return Quotation{}, fmt.Errorf("%w: fecha_cotizacion %q", ErrValidation, raw)
		}
		fecha = &parsed
	}
	q := Quotation{
		Numero:          numero,
		Nombre:          strings.TrimSpace(input.Nombre),
		Cliente:         strings.TrimSpace(input.Cliente),
		Campo:           strings.TrimSpace(input.Campo),
		FechaCotizacion: fecha,
		Estado:          estado,
		Empresa:         empresa,
		Valor:           valor,
		Observaciones:   input.Observaciones,
	}
	id, err := s.repo.Create(ctx, q)
	if err != nil {
		return Quotation{}, err
	}
	q.ID = id
	s.recordAudit(ctx, actor, "COTIZACION_CREAR", id, map[string]any{"numero": q.Numero})
	return q, nil
}

// Update applies partial changes to a quotation.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, input UpdateInput) (Quotation, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	if input.Nombre != nil {
		q.Nombre = strings.TrimSpace(*input.Nombre)
	}
	if input.Cliente != nil {
		q.Cliente = strings.TrimSpace(*input.Cliente)
	}
	if input.Campo != nil {
		q.Campo = strings.TrimSpace(*input.Campo)
	}
	if input.Estado != nil {
		if !validStatus(*input.Estado) {
			return Quotation{}, fmt.Errorf("%w: estado %q", ErrValidation, *input.Estado)
		}
		q.Estado = *input.Estado
	}
	if input.Valor != nil {
		valor, err := money.ParseAmount(*input.Valor)
		if err != nil {
			return Quotation{}, err
		}
		q.Valor = valor
	}
	if input.Observaciones != nil {
		q.Observaciones = *input.Observaciones
	}
	if err := s.repo.Update(ctx, q); err != nil {
		return Quotation{}, err
	}
	s.recordAudit(ctx, actor, "COTIZACION_EDITAR", id, map[string]any{"numero": q.Numero})
	return q, nil
}

// Get returns one quotation.
func (s *Service) Get(ctx context.Context, id int64) (Quotation, error) {
	return s.repo.Get(ctx, id)
}

// List returns a filtered page of quotations.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Quotation, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Delete removes a quotation. Refused while a PAW references it.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "COTIZACION_ELIMINAR", id, nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "cotizacion",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
