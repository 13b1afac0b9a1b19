package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "nope"))
}

func TestCodeSurvivesWrapping(t *testing.T) {
	base := New(CodeSessionExpired, "token revoked")
	wrapped := fmt.Errorf("bootstrap: %w", base)

	assert.True(t, HasCode(wrapped, CodeSessionExpired))
	assert.Equal(t, CodeSessionExpired, CodeOf(wrapped))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeNetwork, "requirements fetch failed")

	require.Error(t, err)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, CodeNetwork, CodeOf(err))
}

func TestUncodedErrorReportsInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.False(t, HasCode(errors.New("plain"), CodeNetwork))
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, ToHTTPStatus(CodeSessionExpired))
	assert.Equal(t, http.StatusTooManyRequests, ToHTTPStatus(CodeChallengeCooldown))
	assert.Equal(t, http.StatusUnprocessableEntity, ToHTTPStatus(CodeConfigInvalid))
	assert.Equal(t, http.StatusBadGateway, ToHTTPStatus(CodeNetwork))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(Code("mystery")))
}
