package api

import (
	"errors"
	"fmt"
	"net"
)

// APIError represents a non-2xx response from the sports-data API.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string // truncated response body
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s failed (%d): %s", e.Endpoint, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s failed (%d)", e.Endpoint, e.StatusCode)
}

// IsRetryable returns true if the error can be resolved by waiting and retrying.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// IsUnauthorized returns true when the credential was rejected.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// Retryable reports whether err is worth another attempt: rate limiting,
// server-side failures and network errors are; everything else is not.
func Retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
