package aliyun

import (
	"errors"
	"strings"

	"github.com/alibabacloud-go/tea/tea"

	"github.com/3leaps/nimbuscdn/pkg/provider"
)

// SDKError returns the vendor SDK error inside err, if any.
func SDKError(err error) (*tea.SDKError, bool) {
	var sdkErr *tea.SDKError
	if errors.As(err, &sdkErr) && sdkErr != nil {
		return sdkErr, true
	}
	return nil, false
}

// ErrorCode returns the vendor error code carried by err, or "".
func ErrorCode(err error) string {
	if sdkErr, ok := SDKError(err); ok {
		return tea.StringValue(sdkErr.Code)
	}
	return ""
}

// Classify wraps err in a ProviderError whose Err is the matching provider
// sentinel. Errors that match no known code are wrapped with Err unchanged.
//
// Classification is informational (metrics, output error codes). Callers
// that must surface the vendor's error as-is keep using the original err.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	code := ErrorCode(err)
	wrapped := &provider.ProviderError{
		Op:       op,
		Provider: provider.ProviderAliyunCDN,
		Code:     code,
		Err:      err,
	}

	if sentinel := sentinelForCode(code); sentinel != nil {
		wrapped.Err = sentinel
		return wrapped
	}

	// No vendor code: fall back to HTTP status when the SDK reported one.
	if sdkErr, ok := SDKError(err); ok {
		switch tea.IntValue(sdkErr.StatusCode) {
		case 401:
			wrapped.Err = provider.ErrInvalidCredentials
		case 403:
			wrapped.Err = provider.ErrAccessDenied
		case 400:
			wrapped.Err = provider.ErrInvalidParameter
		case 429:
			wrapped.Err = provider.ErrThrottled
		case 500, 502, 503, 504:
			wrapped.Err = provider.ErrProviderUnavailable
		}
	}
	return wrapped
}

func sentinelForCode(code string) error {
	switch {
	case code == "":
		return nil
	case strings.HasPrefix(code, "InvalidAccessKeyId"),
		strings.HasPrefix(code, "SignatureDoesNotMatch"),
		strings.HasPrefix(code, "InvalidSecurityToken"):
		return provider.ErrInvalidCredentials
	case strings.HasPrefix(code, "Forbidden"),
		strings.HasPrefix(code, "NoPermission"),
		strings.HasPrefix(code, "AccessDenied"):
		return provider.ErrAccessDenied
	case strings.HasPrefix(code, "InvalidObjectPath"),
		strings.HasPrefix(code, "InvalidObjectType"),
		strings.HasPrefix(code, "InvalidParameter"),
		strings.HasPrefix(code, "MissingParameter"),
		strings.HasPrefix(code, "InvalidDomain"):
		return provider.ErrInvalidParameter
	case strings.Contains(code, "QuotaExceed"):
		return provider.ErrQuotaExceeded
	case strings.HasPrefix(code, "Throttling"):
		return provider.ErrThrottled
	case strings.HasPrefix(code, "ServiceUnavailable"),
		strings.HasPrefix(code, "InternalError"):
		return provider.ErrProviderUnavailable
	}
	return nil
}
