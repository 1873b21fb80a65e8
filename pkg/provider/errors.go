package provider

import (
	"errors"
	"fmt"
)

// Sentinel errors for provider operations.
var (
	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccessDenied indicates insufficient permissions.
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidParameter indicates the vendor rejected a request field
	// (malformed path, unknown object type, too many entries).
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrQuotaExceeded indicates the account's daily refresh quota is used up.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrThrottled indicates the request was rate limited by the provider.
	ErrThrottled = errors.New("request throttled")

	// ErrProviderUnavailable indicates the provider service is unavailable.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// ProviderError wraps provider-specific errors with context.
type ProviderError struct {
	// Op is the operation that failed (e.g., "RefreshObjectCaches").
	Op string

	// Provider is the provider type (e.g., "aliyun-cdn").
	Provider ProviderType

	// Code is the vendor error code, if one was returned.
	Code string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsInvalidCredentials returns true if the error indicates authentication failed.
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

// IsAccessDenied returns true if the error indicates insufficient permissions.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsInvalidParameter returns true if the vendor rejected a request field.
func IsInvalidParameter(err error) bool {
	return errors.Is(err, ErrInvalidParameter)
}

// IsQuotaExceeded returns true if the refresh quota is exhausted.
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// IsThrottled returns true if the error indicates the request was rate limited.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

// IsProviderUnavailable returns true if the error indicates the provider service is unavailable.
func IsProviderUnavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}
