package workorders

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (WorkOrder, []Task, error)
	ListByPaw(ctx context.Context, pawID int64) ([]WorkOrder, error)
	List(ctx context.Context, filter ListFilter) ([]WorkOrder, int, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages work orders.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs workorders service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// ListFilter narrows work order listings.
type ListFilter struct {
	PawID   int64
	Estado  string
	Search  string
	Page    int
	PerPage int
}

// CreateInput describes a new work order.
type CreateInput struct {
	Numero      string `validate:"required"`
	Titulo      string `validate:"required"`
	Descripcion string
	Cliente     string
	Equipo      string
	Serial      string
	Ubicacion   string
	Prioridad   Prioridad
	PawID       int64 `validate:"required"`
	AsignadoA   *int64
	Visibilidad bool
}

// UpdateInput mutates PAW-owned header fields.
type UpdateInput struct {
	Titulo      *string
	Descripcion *string
	Equipo      *string
	Serial      *string
	Ubicacion   *string
	Prioridad   *Prioridad
	AsignadoA   *int64
	Visibilidad *bool
}

// WorkshopInput mutates the fields the shop floor owns.
type WorkshopInput struct {
	Estado           *Status
	EtapaTaller      *Etapa
	ComentarioTaller *string
}

// TaskInput describes one checklist entry.
type TaskInput struct {
	Titulo      string `validate:"required"`
	Estado      TaskStatus
	Responsable string
	Comentario  string
}

// Create persists a work order with its initial checklist.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput, tasks []TaskInput) (WorkOrder, error) {
	if strings.TrimSpace(input.Numero) == "" || strings.TrimSpace(input.Titulo) == "" {
		return WorkOrder{}, fmt.Errorf("%w: numero y titulo requeridos", ErrValidation)
	}
	if input.PawID == 0 {
		return WorkOrder{}, fmt.Errorf("%w: paw requerido", ErrValidation)
	}
	prioridad := input.Prioridad
	if prioridad == "" {
		prioridad = PrioridadMedia
	}
	if !validPrioridad(prioridad) {
		return WorkOrder{}, fmt.Errorf("%w: prioridad %q", ErrValidation, prioridad)
	}
	wo := WorkOrder{
		Numero:      strings.TrimSpace(input.Numero),
		Titulo:      strings.TrimSpace(input.Titulo),
		Descripcion: input.Descripcion,
		Cliente:     strings.TrimSpace(input.Cliente),
		Equipo:      strings.TrimSpace(input.Equipo),
		Serial:      strings.TrimSpace(input.Serial),
		Ubicacion:   strings.TrimSpace(input.Ubicacion),
		Prioridad:   prioridad,
		Estado:      StatusNueva,
		Visibilidad: input.Visibilidad,
		PawID:       input.PawID,
		AsignadoA:   input.AsignadoA,
	}
	if wo.AsignadoA != nil {
		wo.Estado = StatusAsignada
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateWorkOrder(ctx, wo)
		if err != nil {
			return err
		}
		wo.ID = id
		for _, t := range tasks {
			if strings.TrimSpace(t.Titulo) == "" {
				return fmt.Errorf("%w: tarea sin título", ErrValidation)
			}
			estado := t.Estado
			if estado == "" {
				estado = TaskPendiente
			}
			if !validTaskStatus(estado) {
				return fmt.Errorf("%w: estado de tarea %q", ErrValidation, estado)
			}
			if err := tx.InsertTask(ctx, Task{
				WorkOrderID: id,
				Titulo:      strings.TrimSpace(t.Titulo),
				Estado:      estado,
				Responsable: t.Responsable,
				Comentario:  t.Comentario,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return WorkOrder{}, err
	}
	s.recordAudit(ctx, actor, "OT_CREAR", wo.ID, map[string]any{"numero": wo.Numero})
	return wo, nil
}

// Update applies PAW-owned header changes.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, input UpdateInput) (WorkOrder, error) {
	wo, _, err := s.repo.Get(ctx, id)
	if err != nil {
		return WorkOrder{}, err
	}
	if input.Titulo != nil {
		wo.Titulo = strings.TrimSpace(*input.Titulo)
	}
	if input.Descripcion != nil {
		wo.Descripcion = *input.Descripcion
	}
	if input.Equipo != nil {
		wo.Equipo = strings.TrimSpace(*input.Equipo)
	}
	if input.Serial != nil {
		wo.Serial = strings.TrimSpace(*input.Serial)
	}
	if input.Ubicacion != nil {
		wo.Ubicacion = strings.TrimSpace(*input.Ubicacion)
	}
	if input.Prioridad != nil {
		if !validPrioridad(*input.Prioridad) {
			return WorkOrder{}, fmt.Errorf("%w: prioridad %q", ErrValidation, *input.Prioridad)
		}
		wo.Prioridad = *input.Prioridad
	}
	if input.AsignadoA != nil {
		wo.AsignadoA = input.AsignadoA
		if wo.Estado == StatusNueva {
			wo.Estado = StatusAsignada
		}
	}
	if input.Visibilidad != nil {
		wo.Visibilidad = *input.Visibilidad
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateWorkOrder(ctx, wo)
	})
	if err != nil {
		return WorkOrder{}, err
	}
	s.recordAudit(ctx, actor, "OT_EDITAR", id, map[string]any{"numero": wo.Numero})
	return wo, nil
}

// UpdateWorkshop applies the shop-floor fields: estado, stage and the
// workshop comment.
func (s *Service) UpdateWorkshop(ctx context.Context, actor shared.Actor, id int64, input WorkshopInput) (WorkOrder, error) {
	wo, _, err := s.repo.Get(ctx, id)
	if err != nil {
		return WorkOrder{}, err
	}
	if input.Estado != nil {
		if !validStatus(*input.Estado) {
			return WorkOrder{}, fmt.Errorf("%w: estado %q", ErrValidation, *input.Estado)
		}
		if wo.Estado == StatusCerrada && *input.Estado != StatusCerrada {
			return WorkOrder{}, fmt.Errorf("%w: la orden está cerrada", ErrInvalidState)
		}
		wo.Estado = *input.Estado
	}
	if input.EtapaTaller != nil {
		if !validEtapa(*input.EtapaTaller) {
			return WorkOrder{}, fmt.Errorf("%w: etapa %q", ErrValidation, *input.EtapaTaller)
		}
		wo.EtapaTaller = *input.EtapaTaller
	}
	if input.ComentarioTaller != nil {
		wo.ComentarioTaller = *input.ComentarioTaller
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateWorkOrder(ctx, wo)
	})
	if err != nil {
		return WorkOrder{}, err
	}
	s.recordAudit(ctx, actor, "OT_TALLER", id, map[string]any{
		"estado": string(wo.Estado), "etapa": string(wo.EtapaTaller),
	})
	return wo, nil
}

// UpdateTask mutates one checklist entry.
func (s *Service) UpdateTask(ctx context.Context, actor shared.Actor, workOrderID, taskID int64, input TaskInput) error {
	_, tasks, err := s.repo.Get(ctx, workOrderID)
	if err != nil {
		return err
	}
	var task *Task
	for i := range tasks {
		if tasks[i].ID == taskID {
			task = &tasks[i]
			break
		}
	}
	if task == nil {
		return ErrNotFound
	}
	if input.Titulo != "" {
		task.Titulo = strings.TrimSpace(input.Titulo)
	}
	if input.Estado != "" {
		if !validTaskStatus(input.Estado) {
			return fmt.Errorf("%w: estado de tarea %q", ErrValidation, input.Estado)
		}
		task.Estado = input.Estado
	}
	if input.Responsable != "" {
		task.Responsable = input.Responsable
	}
	if input.Comentario != "" {
		task.Comentario = input.Comentario
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateTask(ctx, *task)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "OT_TAREA", workOrderID, map[string]any{"tarea": taskID, "estado": string(task.Estado)})
	return nil
}

// MarkTerminadaByPaw sets every open work order under the PAW to
// TERMINADA. Used by the inventory close action.
func (s *Service) MarkTerminadaByPaw(ctx context.Context, actor shared.Actor, pawID int64) (int, error) {
	orders, err := s.repo.ListByPaw(ctx, pawID)
	if err != nil {
		return 0, err
	}
	var marked int
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, wo := range orders {
			if wo.Estado == StatusTerminada || wo.Estado == StatusCerrada {
				continue
			}
			wo.Estado = StatusTerminada
			if err := tx.UpdateWorkOrder(ctx, wo); err != nil {
				return err
			}
			marked++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, actor, "OT_TERMINAR_PAW", pawID, map[string]any{"ordenes": marked})
	return marked, nil
}

// Get returns one work order with its tasks.
func (s *Service) Get(ctx context.Context, id int64) (WorkOrder, []Task, error) {
	return s.repo.Get(ctx, id)
}

// List returns a filtered page of work orders.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]WorkOrder, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "orden_trabajo",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
