package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	infrahttp "github.com/Meltveit/qrydex/infrastructure/http"
	"github.com/Meltveit/qrydex/infrastructure/retry"
)

// StatusError is returned for responses with a 4xx or 5xx status code.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// IsRetryable reports whether a fetch error is transient: throttling and
// bot-blocking statuses (403, 429), server errors, and timeouts.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusForbidden ||
			statusErr.Code == http.StatusTooManyRequests ||
			statusErr.Code >= http.StatusInternalServerError
	}

	if errors.Is(err, infrahttp.ErrTooManyRedirects) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return retry.DefaultIsRetryable(err)
}
