package httpx

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"time"
)

// StatusError carries a non-2xx response through the error chain so callers
// can classify it without keeping the response body around.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
	// RetryAfter holds the raw Retry-After header, if the server sent one.
	RetryAfter string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("remote returned %s", e.Status)
	}
	return fmt.Sprintf("remote returned %s: %s", e.Status, body)
}

func (e *StatusError) HTTPStatusCode() int { return e.StatusCode }

type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

func IsRetryableHTTPStatus(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return IsRetryableHTTPStatus(sc.HTTPStatusCode())
	}
	return false
}

// RetryAfterDuration honors a Retry-After header value when the server sent
// one, clamped to max.
func RetryAfterDuration(header string, fallback, max time.Duration) time.Duration {
	sleepFor := fallback
	if ra := strings.TrimSpace(header); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			sleepFor = time.Duration(secs) * time.Second
		}
	}
	if max > 0 && sleepFor > max {
		sleepFor = max
	}
	return sleepFor
}

// JitterSleep spreads a base delay by +/-20% so retrying clients do not
// stampede the same endpoint in lockstep.
func JitterSleep(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	j := 0.2
	delta := base.Seconds() * j
	low := base.Seconds() - delta
	high := base.Seconds() + delta
	if low < 0 {
		low = 0
	}
	v := low + rand.Float64()*(high-low)
	return time.Duration(v * float64(time.Second))
}
