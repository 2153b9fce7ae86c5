package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// NetworkError marks a transport-level failure that is safe to retry
// (timeouts, connection resets, 429s, 5xx responses). Retryable failures
// are wrapped in this type so callers can distinguish them from permanent
// errors with errors.As.
type NetworkError struct {
	Err        error
	StatusCode int
}

func (e *NetworkError) Error() string {
	return e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError wraps err as retryable with an optional HTTP status code.
func NewNetworkError(err error, statusCode int) *NetworkError {
	return &NetworkError{Err: err, StatusCode: statusCode}
}

// IsRetryable reports whether the error chain contains a NetworkError or
// matches common transient transport failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var ne *NetworkError
	if errors.As(err, &ne) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// Wrapped transport errors from HTTP clients lose their type; fall
	// back to message matching.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsRetryableHTTPStatus reports whether the status code indicates a
// transient server-side condition.
func IsRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
