package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// UnavailableError reports that a guarded dependency is refusing requests,
// typically because its circuit breaker is open. Callers treat it as a signal
// to fall back rather than retry.
type UnavailableError struct {
	Name       string
	RetryAfter string
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.RetryAfter != "" {
		return fmt.Sprintf("%s unavailable (retry in %s): %v", e.Name, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("%s unavailable: %v", e.Name, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err indicates a dependency refusing requests.
func IsUnavailable(err error) bool {
	var unavailable *UnavailableError
	return errors.As(err, &unavailable)
}

// IsTransient reports whether err looks retryable: connection-level network
// failures and timeouts rather than malformed requests or parse errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"connection refused", "connection reset", "no such host", "timeout", "temporary failure"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
