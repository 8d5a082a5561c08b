/*
auth.go - Principal resolution middleware

PURPOSE:
  The engine trusts an upstream authentication layer to resolve the
  caller into a {userID, role} principal. This middleware reads the
  resolved identity from the X-User-ID / X-User-Role headers set by
  that layer and attaches it to the request context. Requests without
  an identity are rejected with 401 before reaching any handler.

  Role checks (admin-only review endpoints, owner-only mutations)
  happen in the engine services, not here.
*/
package api

import (
	"context"
	"net/http"

	"github.com/waygrade/travel-engine/engine"
)

type contextKey int

const principalKey contextKey = iota

// RequirePrincipal resolves the principal headers or rejects with 401.
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing user identity", nil)
			return
		}

		role := engine.RoleUser
		if r.Header.Get("X-User-Role") == string(engine.RoleAdmin) {
			role = engine.RoleAdmin
		}

		p := engine.Principal{UserID: userID, Role: role}
		ctx := context.WithValue(r.Context(), principalKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// principal returns the principal attached by RequirePrincipal.
func principal(r *http.Request) engine.Principal {
	p, _ := r.Context().Value(principalKey).(engine.Principal)
	return p
}
