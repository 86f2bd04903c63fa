package authz

import (
	"log/slog"
	"net/http"

	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// Middleware wires role and field-level checks for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
	Policy *Policy
}

// RequireAny ensures the request actor carries at least one of the
// given roles. ADMIN passes every check.
func (m Middleware) RequireAny(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(roles) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actor := shared.ActorFromContext(r.Context())
			if actor.ID == 0 {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			for _, role := range roles {
				if actor.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			if m.Logger != nil {
				m.Logger.Warn("acceso denegado",
					slog.Int64("actor_id", actor.ID),
					slog.String("path", r.URL.Path))
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// AllowFields reports whether the request actor may edit every named
// field of the entity. Handlers call it with the fields actually
// present in a partial update body.
func (m Middleware) AllowFields(r *http.Request, entity Entity, fields ...string) bool {
	policy := m.Policy
	if policy == nil {
		policy = defaultPolicy
	}
	actor := shared.ActorFromContext(r.Context())
	for _, field := range fields {
		if !policy.CanEdit(actor, entity, field) {
			if m.Logger != nil {
				m.Logger.Warn("campo no editable",
					slog.Int64("actor_id", actor.ID),
					slog.String("entidad", string(entity)),
					slog.String("campo", field))
			}
			return false
		}
	}
	return true
}

var defaultPolicy = Default()
