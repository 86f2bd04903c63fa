// Package workorders manages shop jobs under a PAW, including the
// workshop stage tracking and per-job task checklists.
package workorders

import (
	"fmt"
	"time"

	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// Work order lifecycle statuses.
type Status string

const (
	StatusNueva     Status = "NUEVA"
	StatusAsignada  Status = "ASIGNADA"
	StatusEnProceso Status = "EN_PROCESO"
	StatusEnEspera  Status = "EN_ESPERA"
	StatusTerminada Status = "TERMINADA"
	StatusCerrada   Status = "CERRADA"
)

// Workshop stages.
type Etapa string

const (
	EtapaDesarme      Etapa = "DESARME"
	EtapaAlistamiento Etapa = "ALISTAMIENTO"
	EtapaEnsamblando  Etapa = "ENSAMBLANDO"
	EtapaPrueba       Etapa = "PRUEBA"
)

// Priorities.
type Prioridad string

const (
	PrioridadBaja    Prioridad = "BAJA"
	PrioridadMedia   Prioridad = "MEDIA"
	PrioridadAlta    Prioridad = "ALTA"
	PrioridadCritica Prioridad = "CRITICA"
)

// Task statuses.
type TaskStatus string

const (
	TaskPendiente TaskStatus = "PENDIENTE"
	TaskEnProceso TaskStatus = "EN_PROCESO"
	TaskHecha     TaskStatus = "HECHA"
)

// WorkOrder domain model.
type WorkOrder struct {
	ID               int64
	Numero           string
	Titulo           string
	Descripcion      string
	Cliente          string
	Equipo           string
	Serial           string
	Ubicacion        string
	Prioridad        Prioridad
	Estado           Status
	EtapaTaller      Etapa
	ComentarioTaller string
	Visibilidad      bool
	PawID            int64
	AsignadoA        *int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Task is one checklist entry under a work order.
type Task struct {
	ID          int64
	WorkOrderID int64
	Titulo      string
	Estado      TaskStatus
	Responsable string
	Comentario  string
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("ordenes: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("ordenes: %w", shared.ErrValidation)
	// ErrInvalidState occurs when action violates status workflow.
	ErrInvalidState = fmt.Errorf("ordenes: %w", shared.ErrInvalidState)
)

func validStatus(s Status) bool {
	switch s {
	case StatusNueva, StatusAsignada, StatusEnProceso, StatusEnEspera, StatusTerminada, StatusCerrada:
		return true
	}
	return false
}

func validEtapa(e Etapa) bool {
	switch e {
	case "", EtapaDesarme, EtapaAlistamiento, EtapaEnsamblando, EtapaPrueba:
		return true
	}
	return false
}

func validPrioridad(p Prioridad) bool {
	switch p {
	case PrioridadBaja, PrioridadMedia, PrioridadAlta, PrioridadCritica:
		return true
	}
	return false
}

func validTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskPendiente, TaskEnProceso, TaskHecha:
		return true
	}
	return false
}
