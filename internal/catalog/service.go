package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Item, error)
	GetByCode(ctx context.Context, codigo string) (Item, error)
	List(ctx context.Context, filter ListFilter) ([]Item, int, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service maintains the item master.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs catalog service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// ListFilter narrows catalog listings.
type ListFilter struct {
	Search  string
	Grupo   string
	Activo  *bool
	Page    int
	PerPage int
}

// UpsertInput is one imported catalog row.
type UpsertInput struct {
	Codigo          string `validate:"required"`
	Descripcion     string `validate:"required"`
	UnidadMedida    string
	Clasificacion   string
	GrupoInventario string
	Activo          bool
}

// UpsertResult summarises a bulk import.
type UpsertResult struct {
	Created int `json:"creados"`
	Updated int `json:"actualizados"`
}

// BulkUpsert inserts or updates rows keyed by codigo, all inside one
// transaction. A row with an empty code rejects the whole batch.
func (s *Service) BulkUpsert(ctx context.Context, actor shared.Actor, inputs []UpsertInput) (UpsertResult, error) {
	if len(inputs) == 0 {
		return UpsertResult{}, fmt.Errorf("%w: lote vacío", ErrValidation)
	}
	var result UpsertResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, in := range inputs {
			codigo := strings.TrimSpace(in.Codigo)
			if codigo == "" {
				return fmt.Errorf("%w: código requerido", ErrValidation)
			}
			item := Item{
				Codigo:          codigo,
				Descripcion:     strings.TrimSpace(in.Descripcion),
				UnidadMedida:    strings.TrimSpace(in.UnidadMedida),
				Clasificacion:   strings.TrimSpace(in.Clasificacion),
				GrupoInventario: strings.TrimSpace(in.GrupoInventario),
				Activo:          in.Activo,
			}
			created, err := tx.Upsert(ctx, item)
			if err != nil {
				return err
			}
			if created {
				result.Created++
			} else {
				result.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return UpsertResult{}, err
	}
	s.recordAudit(ctx, actor, "ITEM_BULK_UPSERT", map[string]any{"creados": result.Created, "actualizados": result.Updated})
	return result, nil
}

// Get returns one item by id.
func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	return s.repo.Get(ctx, id)
}

// GetByCode returns one item by natural code.
func (s *Service) GetByCode(ctx context.Context, codigo string) (Item, error) {
	return s.repo.GetByCode(ctx, strings.TrimSpace(codigo))
}

// List returns a catalog page plus total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Item, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "item",
		EntityID: "batch",
		Meta:     meta,
	})
}
