package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// UpstreamError reports a failed classifier call. StatusCode is 0 when the
// request never produced an HTTP response (DNS, timeout, reset).
type UpstreamError struct {
	StatusCode int
	Body       string
	Cause      error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream classifier returned status %d: %s", e.StatusCode, truncate(e.Body, 256))
	}
	if e.Cause != nil {
		return fmt.Sprintf("upstream classifier unreachable: %v", e.Cause)
	}
	return "upstream classifier failed"
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// Temporary reports whether the failure is worth retrying when client
// errors are excluded from retries: transport failures, 408, 429 and 5xx.
func (e *UpstreamError) Temporary() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	default:
		return e.StatusCode >= 500
	}
}

// IsClientError reports whether err is an UpstreamError carrying a
// non-retryable 4xx status.
func IsClientError(err error) bool {
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		return false
	}
	return upErr.StatusCode >= 400 && upErr.StatusCode < 500 && !upErr.Temporary()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
