package shopsight

import "github.com/kailas-cloud/shopsight/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound                = domain.ErrNotFound
	ErrValidation              = domain.ErrValidation
	ErrProviderAuth            = domain.ErrProviderAuth
	ErrProviderRateLimit       = domain.ErrProviderRateLimit
	ErrProviderInvalidResponse = domain.ErrProviderInvalidResponse
	ErrInternal                = domain.ErrInternal
)

// ErrorCode returns the stable public code for err ("VALIDATION_ERROR", "INTERNAL", ...).
func ErrorCode(err error) string {
	return string(domain.CodeOf(err))
}
