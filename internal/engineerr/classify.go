package engineerr

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// Classify inspects err and reports which taxonomy Kind it most likely
// belongs to, used by the Scheduler and Worker Pool to decide whether a
// node-local retry is worth attempting before surfacing a
// NodeExecutionFailure. Generalizes the transient/permanent-only
// classification the teacher applies in its retry package to the full
// eight-kind taxonomy.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindNodeTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindStateConflict
	}
	if errors.Is(err, syscall.ETIMEDOUT) {
		return KindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTransient
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return KindTransient
		}
		if dnsErr.IsNotFound {
			return KindNotFound
		}
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) {
		return KindTransient
	}

	msg := strings.ToLower(err.Error())

	transientPatterns := []string{
		"timeout", "timed out", "temporary failure", "connection refused",
		"connection reset", "network is unreachable", "host is unreachable",
		"service unavailable", "rate limit exceeded", "throttle", "try again",
		"temporarily unavailable", "gateway timeout", "bad gateway",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return KindTransient
		}
	}

	switch {
	case strings.Contains(msg, "not found"):
		return KindNotFound
	case strings.Contains(msg, "forbidden"), strings.Contains(msg, "permission denied"), strings.Contains(msg, "access denied"):
		return KindPermissionDenied
	case strings.Contains(msg, "invalid"), strings.Contains(msg, "malformed"), strings.Contains(msg, "parse error"):
		return KindValidation
	case strings.Contains(msg, "conflict"), strings.Contains(msg, "precondition failed"):
		return KindStateConflict
	case strings.Contains(msg, "expired"):
		return KindExpired
	}

	return KindNodeExecution
}

// ShouldRetry mirrors the teacher's retry.ShouldRetry: retry only
// Transient classifications, and only while under the attempt budget.
func ShouldRetry(err error, currentAttempt, maxAttempts int) bool {
	if err == nil || currentAttempt >= maxAttempts {
		return false
	}
	return Classify(err) == KindTransient
}
