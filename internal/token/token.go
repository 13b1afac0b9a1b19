// Package token issues and validates the short-lived bearer tokens that UI
// applications use to drive a verification session. These are distinct from
// the backend auth token carried inside the session context; they only prove
// that a caller owns a particular session actor.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"veriflow/internal/platform/middleware"
	dErrors "veriflow/pkg/domain-errors"
	"veriflow/pkg/domain"
)

// Scope limits what a session token may do.
const (
	ScopePrimary = "primary"
	ScopeHandoff = "handoff"
)

// Claims represents the JWT claims for session tokens.
type Claims struct {
	SessionID string `json:"session_id"`
	Scope     string `json:"scope"`
	jwt.RegisteredClaims
}

// Service handles session token creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
}

func NewService(signingKey, issuer string) *Service {
	return &Service{signingKey: []byte(signingKey), issuer: issuer}
}

// Issue mints a session token. Handoff-scoped tokens are time-boxed tighter
// than primary ones by the caller-supplied ttl.
func (s *Service) Issue(sessionID domain.SessionID, scope string, ttl time.Duration) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		SessionID: sessionID.String(),
		Scope:     scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return tok.SignedString(s.signingKey)
}

// ValidateToken implements middleware.TokenValidator.
func (s *Service) ValidateToken(tokenString string) (*middleware.TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeSessionExpired, "session token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session token claims")
	}

	return &middleware.TokenClaims{SessionID: claims.SessionID, Scope: claims.Scope}, nil
}
