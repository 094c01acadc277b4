package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrValidation signals malformed input (signals, criteria, config, upload).
	ErrValidation = errors.New("validation failed")
	// ErrForbidden signals a rejected administrative credential.
	ErrForbidden = errors.New("forbidden")

	// ErrProviderAuth signals that the model provider rejected the credential.
	ErrProviderAuth = errors.New("provider authentication failed")
	// ErrProviderRateLimit signals a provider quota or backoff response.
	ErrProviderRateLimit = errors.New("provider rate limited")
	// ErrProviderInvalidResponse signals unparseable or schema-invalid model output.
	ErrProviderInvalidResponse = errors.New("provider returned an invalid response")
	// ErrInternal signals any other failure.
	ErrInternal = errors.New("internal error")

	// ErrTextSearchUnavailable signals that the store has no usable full-text index.
	ErrTextSearchUnavailable = errors.New("text search unavailable")
)

// Code is a stable, caller-visible error code.
type Code string

// Error codes exposed to API callers.
const (
	CodeValidation              Code = "VALIDATION_ERROR"
	CodeProviderAuth            Code = "PROVIDER_AUTH_ERROR"
	CodeProviderRateLimit       Code = "PROVIDER_RATE_LIMIT"
	CodeProviderInvalidResponse Code = "PROVIDER_INVALID_RESPONSE"
	CodeInternal                Code = "INTERNAL_ERROR"
	CodeNotFound                Code = "NOT_FOUND"
	CodeForbidden               Code = "FORBIDDEN"
)

var codeBySentinel = []struct {
	err  error
	code Code
}{
	{ErrValidation, CodeValidation},
	{ErrProviderAuth, CodeProviderAuth},
	{ErrProviderRateLimit, CodeProviderRateLimit},
	{ErrProviderInvalidResponse, CodeProviderInvalidResponse},
	{ErrNotFound, CodeNotFound},
	{ErrForbidden, CodeForbidden},
}

// CodeOf maps any error onto its stable code. Unclassified errors become INTERNAL_ERROR.
func CodeOf(err error) Code {
	for _, c := range codeBySentinel {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// Error is a classified failure: Kind is one of the sentinels above, Message is safe to show
// to callers, Err keeps the provider or driver cause for logs and telemetry.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Code returns the stable code for the error kind.
func (e *Error) Code() Code { return CodeOf(e.Kind) }

// NewError creates a classified error.
func NewError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// PublicMessage returns the caller-safe message of err, never provider payloads.
func PublicMessage(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	switch CodeOf(err) {
	case CodeValidation:
		// validation errors describe the caller's own input
		return err.Error()
	case CodeProviderAuth:
		return "invalid provider credentials"
	case CodeProviderRateLimit:
		return "provider quota exceeded"
	case CodeProviderInvalidResponse:
		return "provider returned an invalid response"
	case CodeNotFound:
		return "not found"
	case CodeForbidden:
		return "forbidden"
	default:
		return "internal error"
	}
}
