package shared

import "context"

// Role names match the operating departments of the workshop.
const (
	RoleCompras       = "COMPRAS_OIL"
	RoleFinanzas      = "FINANZAS"
	RoleInventario    = "INVENTARIO"
	RoleEntregaTaller = "ENTREGA_TALLER"
	RoleTaller        = "TALLER"
	RolePaw           = "PAW"
	RoleAdmin         = "ADMIN"
)

// Actor describes the authenticated user performing an operation.
// It is resolved once at the HTTP boundary and passed down explicitly;
// services never reach back into the request.
type Actor struct {
	ID    int64
	Name  string
	Roles []string
}

// HasRole reports whether the actor carries the given role. ADMIN
// implies every role.
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role || r == RoleAdmin {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the actor is a superuser.
func (a Actor) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context. The zero Actor is
// returned when none was resolved.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}
