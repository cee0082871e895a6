package auth

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/transport"
)

// RoleAuthorization gates route groups by the actor's role.
type RoleAuthorization struct {
	*transport.BaseHandler
}

func NewRoleAuthorization(logger *slog.Logger) *RoleAuthorization {
	return &RoleAuthorization{BaseHandler: transport.NewBaseHandler(logger)}
}

// RequireRoles lets the request through when the actor holds any of roles.
func (ra *RoleAuthorization) RequireRoles(roles ...internal.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := internal.ActorFromContext(r.Context())
			if !ok {
				ra.Logger.Warn("authorization check failed: actor not found in context")
				ra.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if !actor.HasRole(roles...) {
				ra.Logger.WarnContext(r.Context(), "access denied: role not allowed",
					"user_id", actor.ID,
					"role", actor.Role,
					"required_roles", roles)
				ra.HandleServiceError(w, internal.ErrNotAuthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
