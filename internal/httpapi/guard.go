package httpapi

import (
	"errors"
	"net/http"

	"zapchasti.org/internal/auth"
)

// guard is the admission pipeline for back-office handlers: authenticate,
// check the role allow-list, check the permission table, resolve the
// department scope, then hand over. The handler is never invoked unless
// every step passed. An empty roles list means the back-office roles.
func (a *API) guard(h http.HandlerFunc, perm auth.Permission, roles ...auth.Role) http.HandlerFunc {
	if len(roles) == 0 {
		roles = auth.AdminRoles
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := a.authenticate(r)
		if err != nil {
			writeAuthError(w, r, err)
			return
		}
		if !roleAllowed(id.Role, roles) {
			writeError(w, r, http.StatusForbidden, "forbidden")
			return
		}
		if !auth.RoleHasPermission(id.Role, perm) {
			writeError(w, r, http.StatusForbidden, "forbidden")
			return
		}
		ctx := auth.ContextWithIdentity(r.Context(), id)
		ctx = auth.ContextWithScope(ctx, auth.ScopeFor(id))
		h(w, r.WithContext(ctx))
	}
}

// writeAuthError answers an authentication failure. Credential problems
// are 401; anything else came from the identity store and is a server
// fault, not the caller's.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrNoToken):
		writeError(w, r, http.StatusUnauthorized, "missing token")
	case errors.Is(err, auth.ErrTokenExpired):
		writeError(w, r, http.StatusUnauthorized, "token expired")
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "invalid token")
	default:
		handleDomainError(w, r, err)
	}
}

func roleAllowed(role auth.Role, roles []auth.Role) bool {
	for _, r := range roles {
		if role == r {
			return true
		}
	}
	return false
}

// actorAndScope recovers what guard stashed. Handlers behind guard can
// rely on both being present.
func actorAndScope(r *http.Request) (auth.Identity, auth.Scope) {
	id, _ := auth.IdentityFromContext(r.Context())
	scope, ok := auth.ScopeFromContext(r.Context())
	if !ok {
		scope = auth.ScopeFor(id)
	}
	return id, scope
}
