package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or rejected input; the triggering write is discarded whole.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState occurs when an action violates a status workflow.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrPrecondition signals a business-rule conflict; callers must not retry.
	ErrPrecondition = errors.New("precondition failed")
	// ErrProtected refuses deletion of a record still referenced downstream.
	ErrProtected = errors.New("record is protected by downstream references")
	// ErrDuplicate indicates a unique-key conflict.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrForbidden indicates the actor lacks the required role.
	ErrForbidden = errors.New("forbidden")
)

// UserSafeMessage returns a message suitable for end users.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "El registro no existe."
	case errors.Is(err, ErrValidation):
		return "Datos inválidos. Verifique los campos e intente de nuevo."
	case errors.Is(err, ErrInvalidState):
		return "La operación no es válida para el estado actual."
	case errors.Is(err, ErrPrecondition):
		return "La operación no está autorizada en este momento."
	case errors.Is(err, ErrProtected):
		return "No se puede eliminar: el registro tiene movimientos asociados."
	case errors.Is(err, ErrForbidden):
		return "No tienes permisos para esta acción."
	default:
		return "Ocurrió un error inesperado."
	}
}
