package errors

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
)

// IsTransient reports whether an error looks like a temporary condition worth
// retrying: IO failures, network timeouts, and upstream throttling or server
// errors (HTTP 5xx / 429). Classified errors answer from their retry strategy;
// everything else is sniffed from the error chain.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// Canceled work is not retryable; the caller gave up.
	if stderrors.Is(err, context.Canceled) {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if c, ok := AsClassified(err); ok {
		return c.IsTransient()
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if stderrors.Is(err, io.ErrUnexpectedEOF) ||
		stderrors.Is(err, syscall.ECONNRESET) ||
		stderrors.Is(err, syscall.ECONNREFUSED) ||
		stderrors.Is(err, syscall.EPIPE) ||
		stderrors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	return hasTransientStatusMarker(err.Error())
}

// hasTransientStatusMarker scans an error string for upstream status codes that
// indicate throttling or server-side failure. Provider clients embed the status
// code in their error messages ("status 503", "status 429"), so this catches
// wrapped SDK errors without needing typed status errors everywhere.
func hasTransientStatusMarker(msg string) bool {
	for _, marker := range []string{
		"status 429", "status 500", "status 502", "status 503", "status 504",
		"too many requests", "service unavailable", "gateway timeout",
	} {
		if strings.Contains(strings.ToLower(msg), marker) {
			return true
		}
	}
	return false
}
