package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// Retryable runtime error codes: throttling and transient service faults.
// Everything else reported by the API (authorization, invalid agent,
// validation) is permanent and surfaces immediately.
var retryableErrorCodes = []string{
	"throttlingexception",
	"servicequotaexceededexception",
	"internalserverexception",
	"serviceunavailableexception",
	"dependencyfailedexception",
	"badgatewayexception",
	"modelnotreadyexception",
}

// IsRetryableInvokeError reports whether an invocation failure is a
// transport or throttling condition worth another attempt. API errors are
// classified by code; non-API errors (DNS, connection reset, read deadline)
// are transport-level and retryable, except caller cancellation.
func IsRetryableInvokeError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := strings.ToLower(apiErr.ErrorCode())
		for _, retryable := range retryableErrorCodes {
			if code == retryable {
				return true
			}
		}
		return false
	}
	return true
}
