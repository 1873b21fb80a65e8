package host

import (
	"context"
	"errors"

	"github.com/3leaps/nimbuscdn/pkg/credentials"
	"github.com/3leaps/nimbuscdn/pkg/output"
	"github.com/3leaps/nimbuscdn/pkg/provider"
	"github.com/3leaps/nimbuscdn/pkg/provider/aliyun"
	"github.com/3leaps/nimbuscdn/pkg/workflow"
)

// ErrorCode maps a node execution error to an output error code.
// It returns "" for a nil error.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return output.ErrCodeCanceled
	case errors.Is(err, credentials.ErrNotFound):
		return output.ErrCodeInvalidCredentials
	}

	var cfgErr *aliyun.ConfigError
	if errors.As(err, &cfgErr) {
		return output.ErrCodeInvalidCredentials
	}
	var paramErr *workflow.ParameterError
	if errors.As(err, &paramErr) {
		return output.ErrCodeInvalidParameter
	}

	classified := aliyun.Classify("RefreshObjectCaches", err)
	switch {
	case provider.IsInvalidCredentials(classified):
		return output.ErrCodeInvalidCredentials
	case provider.IsAccessDenied(classified):
		return output.ErrCodeAccessDenied
	case provider.IsInvalidParameter(classified):
		return output.ErrCodeInvalidParameter
	case provider.IsQuotaExceeded(classified):
		return output.ErrCodeQuotaExceeded
	case provider.IsThrottled(classified):
		return output.ErrCodeThrottled
	case provider.IsProviderUnavailable(classified):
		return output.ErrCodeProviderUnavailable
	}
	return output.ErrCodeInternal
}

func vendorCode(err error) string {
	return aliyun.ErrorCode(err)
}
