package core

import (
	"errors"
	"fmt"
)

// Error codes for domain errors.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeNotFound         = "not_found"
	ErrCodeInternal         = "internal"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeUnauthorized     = "unauthorized"

	ErrCodeUnsupportedVersion = "unsupported_version"
)

var (
	// ErrValidation marks a malformed send payload.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an unknown user or message.
	ErrNotFound = errors.New("not found")
	// ErrPersistence marks a failed store write; the operation left no partial state.
	ErrPersistence = errors.New("persistence failed")
	// ErrRecipientOffline is returned by Deliver when no live connection exists.
	ErrRecipientOffline = errors.New("recipient offline")
	// ErrDeliveryFailed is returned by Deliver when the live connection rejected the push.
	ErrDeliveryFailed = errors.New("delivery failed")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// ToCoreError classifies err into a wire error.
// Internal details of persistence failures are not exposed.
func ToCoreError(err error) *CoreError {
	var ce *CoreError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, ErrValidation):
		return coreError(ErrCodeValidationFailed, err.Error())
	case errors.Is(err, ErrNotFound):
		return coreError(ErrCodeNotFound, err.Error())
	default:
		return coreError(ErrCodeInternal, "internal error")
	}
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
