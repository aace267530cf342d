package middleware

import (
	"context"
	"net/http"
	"strings"

	"evalportal/internal/identity"
	"evalportal/internal/transport/http/api"
)

type ctxKey string

const ctxKeyCaller ctxKey = "caller"

// Caller is the request-scoped view of the bearer credential's claims. The
// reporting line is trusted straight from the token, no directory re-query.
type Caller struct {
	EmployeeID string
	FullName   string
	ReportsTo  string
	IsManager  bool
	IsHR       bool
}

// Auth parses the bearer credential when present. Requests without one pass
// through anonymously; RequireAuth draws the line for protected routes.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := identity.ParseToken(secret, parts[1])
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyCaller, Caller{
				EmployeeID: claims.EmployeeID,
				FullName:   claims.FullName,
				ReportsTo:  claims.ReportsTo,
				IsManager:  claims.IsManager,
				IsHR:       claims.IsHR,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetCaller(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(ctxKeyCaller).(Caller)
	return caller, ok
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetCaller(r.Context()); !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}
