package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/redmonkez12/usergate/internal/httputil"
	"github.com/redmonkez12/usergate/internal/logging"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const (
	IdentityContextKey ContextKey = "identity"
)

// Authorizer decides whether a bearer token may proceed.
type Authorizer interface {
	Authorize(ctx context.Context, token string) (*Identity, error)
}

// Middleware guards protected routes with the account gate.
type Middleware struct {
	gate Authorizer
}

func NewMiddleware(gate Authorizer) *Middleware {
	return &Middleware{gate: gate}
}

// RequireAuth admits requests carrying a valid bearer token whose account
// is still usable.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			httputil.RespondErrorWithCode(w, "invalid authorization header format", httputil.CodeInvalidAuthHeader, http.StatusUnauthorized)
			return
		}

		identity, err := m.gate.Authorize(r.Context(), parts[1])
		if err != nil {
			switch {
			case errors.Is(err, ErrUnauthenticated):
				httputil.RespondErrorWithCode(w, "invalid token", httputil.CodeInvalidToken, http.StatusUnauthorized)
			case errors.Is(err, ErrForbidden):
				httputil.RespondErrorWithCode(w, "user is blocked or deleted", httputil.CodeForbidden, http.StatusForbidden)
			default:
				logging.GetLoggerFromContext(r.Context()).Error("gate check failed", "error", err.Error())
				httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
			}
			return
		}

		ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetIdentityFromContext returns the identity set by RequireAuth.
func GetIdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(IdentityContextKey).(*Identity)
	return identity, ok
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	identity, ok := GetIdentityFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return identity.UserID, true
}
