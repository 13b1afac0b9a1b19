// Package domainerrors provides coded errors for the verification flow.
// Services wrap infrastructure failures into coded errors so transports and
// orchestration can branch on the code instead of string matching.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for propagation decisions and HTTP translation.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeInternal     Code = "internal"
	CodeUnavailable  Code = "unavailable"

	// Flow-specific codes. Config and session errors are terminal for the
	// owning session; challenge and network errors are recoverable by
	// re-dispatching the same event.
	CodeConfigInvalid      Code = "config_invalid"
	CodeSessionExpired     Code = "session_expired"
	CodeChallengeExpired   Code = "challenge_expired"
	CodeChallengeCooldown  Code = "challenge_cooldown"
	CodeIncompatibleDevice Code = "incompatible_device"
	CodeNetwork            Code = "network"
)

// Error is a coded domain error. It optionally wraps a cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err returns
// nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the code from err, walking the wrap chain. Uncoded errors
// report CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is shorthand for HasCode, matching the call sites that read better as a
// predicate.
func Is(err error, code Code) bool { return HasCode(err, code) }

// ToHTTPStatus maps a code to the status the transport layer should emit.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeSessionExpired, CodeChallengeExpired:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeChallengeCooldown:
		return http.StatusTooManyRequests
	case CodeConfigInvalid:
		return http.StatusUnprocessableEntity
	case CodeIncompatibleDevice:
		return http.StatusPreconditionFailed
	case CodeUnavailable, CodeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
