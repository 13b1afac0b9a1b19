// Package domain holds the typed identifiers and enums shared across the
// verification flow engines. Typed IDs prevent cross-type assignment at
// compile time; parsing enforces the "valid, non-empty, non-nil UUID"
// invariant at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "veriflow/pkg/domain-errors"
)

// SessionID identifies one verification session on one device.
type SessionID uuid.UUID

func NewSessionID() SessionID { return SessionID(uuid.New()) }

func (id SessionID) String() string { return uuid.UUID(id).String() }
func (id SessionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// ParseSessionID parses a session ID received from an untrusted caller.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return SessionID(uuid.Nil), err
	}
	return SessionID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return u, nil
}
