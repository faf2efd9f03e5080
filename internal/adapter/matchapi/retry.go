package matchapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// backoffDelay base*2^attempt, capped by the advertised Retry-After when present
func backoffDelay(attempt int, base, retryAfter time.Duration) time.Duration {
	delay := base * time.Duration(1<<uint(attempt))
	if retryAfter > 0 && delay > retryAfter {
		delay = retryAfter
	}
	return delay
}

// parseRetryAfter reads Retry-After as delta-seconds or an HTTP date, 0 when absent
func parseRetryAfter(h http.Header, now time.Time) time.Duration {
	raw := strings.TrimSpace(h.Get(HeaderRetryAfter))
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(raw); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// sleepContext cancellable wait
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
