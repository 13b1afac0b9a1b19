package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "veriflow/pkg/domain-errors"
)

// TestParseSessionID_Invariants validates the parsing invariant:
// session IDs must be valid, non-empty, non-nil UUIDs.
func TestParseSessionID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseSessionID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseSessionID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseSessionID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseSessionID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, SessionID(valid), id)
	})
}

func TestD2PStatusTerminal(t *testing.T) {
	assert.False(t, D2PWaiting.Terminal())
	assert.True(t, D2PCompleted.Terminal())
	assert.True(t, D2PFailed.Terminal())
	assert.True(t, D2PCanceled.Terminal())
}

func TestFieldKeyScopes(t *testing.T) {
	assert.False(t, FieldSSN9.IsBusiness())
	assert.True(t, FieldBusinessTIN.IsBusiness())
}
