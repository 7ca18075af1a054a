package httpx

import (
	"context"
	"net/http"
)

// Roles issued by the upstream authentication service.
const (
	RoleMember    = "MEMBER"
	RoleLibrarian = "LIBRARIAN"
	RoleAdmin     = "ADMIN"
)

type contextKey string

const (
	callerEmailKey contextKey = "callerEmail"
	callerRoleKey  contextKey = "callerRole"
)

// Identity extracts the caller identity forwarded by the gateway in
// X-User-Email / X-User-Role headers and stores it on the request
// context. The ledger trusts these values; authentication happens
// upstream. Requests without an identity are rejected.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := r.Header.Get("X-User-Email")
		role := r.Header.Get("X-User-Role")
		if email == "" || role == "" {
			Error(w, http.StatusUnauthorized, "Unauthorized", "missing caller identity")
			return
		}

		ctx := context.WithValue(r.Context(), callerEmailKey, email)
		ctx = context.WithValue(ctx, callerRoleKey, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects requests whose caller role is not in the allowed set.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allowed[CallerRole(r.Context())]; !ok {
				Error(w, http.StatusForbidden, "Forbidden", "role not permitted for this operation")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CallerEmail returns the authenticated caller's email, or "".
func CallerEmail(ctx context.Context) string {
	if v, ok := ctx.Value(callerEmailKey).(string); ok {
		return v
	}
	return ""
}

// CallerRole returns the authenticated caller's role, or "".
func CallerRole(ctx context.Context) string {
	if v, ok := ctx.Value(callerRoleKey).(string); ok {
		return v
	}
	return ""
}
