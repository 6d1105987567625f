package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type ctxKey struct{}

// Identity is the authenticated caller.
type Identity struct {
	UserID int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(t *Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				deny(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			c, err := t.Verify(strings.TrimSpace(raw))
			if err != nil {
				deny(w, http.StatusUnauthorized, ErrInvalidToken.Error())
				return
			}
			id := Identity{UserID: c.UserID, Name: c.Name, Email: c.Subject, Role: c.Role}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole lets through callers holding one of roles. It must run after
// RequireAuth.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromContext(r.Context())
			if !ok {
				deny(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			deny(w, http.StatusForbidden, "role "+string(id.Role)+" may not do this")
		})
	}
}

func deny(w http.ResponseWriter, status int, msg string) {
	kind := "unauthorized"
	if status == http.StatusForbidden {
		kind = "forbidden"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": kind, "message": msg})
}
