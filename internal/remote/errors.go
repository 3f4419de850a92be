package remote

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrTenantNotResolved is returned when the server has not yet associated the
// caller with a tenant. Sync legs treat it as a soft skip.
var ErrTenantNotResolved = errors.New("tenant not resolved")

// HTTPError represents a non-2xx response from the sync server
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string

	// TenantNotResolved is set when the body carried the tenant-not-resolved marker
	TenantNotResolved bool

	// RetryAfterDelay is parsed from the Retry-After header, zero if absent
	RetryAfterDelay time.Duration
}

// Error returns the error message
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// Unwrap exposes ErrTenantNotResolved to errors.Is
func (e *HTTPError) Unwrap() error {
	if e.TenantNotResolved {
		return ErrTenantNotResolved
	}
	return nil
}

// Retryable reports whether the status is worth another attempt: 5xx and 429
func (e *HTTPError) Retryable() bool {
	if e.TenantNotResolved {
		return false
	}
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// RetryAfter returns the server-requested delay, if any
func (e *HTTPError) RetryAfter() time.Duration {
	return e.RetryAfterDelay
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, url, message string) error {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        url,
		Message:    message,
	}
}

// StatusCode extracts the HTTP status from err, or 0 when err is not an HTTPError
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// parseRetryAfter understands the delta-seconds and HTTP-date forms
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
