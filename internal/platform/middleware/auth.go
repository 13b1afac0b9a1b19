package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// TokenValidator validates the session-scoped bearer tokens handed to UI
// applications at bootstrap.
type TokenValidator interface {
	ValidateToken(tokenString string) (*TokenClaims, error)
}

// TokenClaims are the claims the transport layer needs from a validated
// session token.
type TokenClaims struct {
	SessionID string
	Scope     string
}

type contextKeySessionID struct{}
type contextKeyScope struct{}

var (
	ContextKeySessionID = contextKeySessionID{}
	ContextKeyScope     = contextKeyScope{}
)

// GetSessionID retrieves the authenticated session ID from the context.
func GetSessionID(ctx context.Context) string {
	id, ok := ctx.Value(ContextKeySessionID).(string)
	if !ok {
		return ""
	}
	return id
}

// GetScope retrieves the token scope ("primary" or "handoff") from the context.
func GetScope(ctx context.Context) string {
	scope, ok := ctx.Value(ContextKeyScope).(string)
	if !ok {
		return ""
	}
	return scope
}

// RequireSession authenticates requests via the Authorization bearer header
// and stores the session identity in the request context.
func RequireSession(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				unauthorized(w, r, logger, "missing or malformed Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				unauthorized(w, r, logger, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySessionID, claims.SessionID)
			ctx = context.WithValue(ctx, ContextKeyScope, claims.Scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, logger *slog.Logger, desc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if _, err := w.Write([]byte(`{"error":"unauthorized","error_description":"` + desc + `"}`)); err != nil {
		logger.ErrorContext(r.Context(), "failed to write unauthorized response",
			"error", err,
			"request_id", GetRequestID(r.Context()),
		)
	}
}
