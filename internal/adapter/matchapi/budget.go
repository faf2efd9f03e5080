package matchapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"MatchSync/internal/interfaces"
	"MatchSync/internal/metrics"
)

// Rate-limit response metadata
const (
	HeaderRateRemaining = "X-RateLimit-Remaining"
	HeaderRateReset     = "X-RateLimit-Reset"
	HeaderRetryAfter    = "Retry-After"
)

// RateBudget last observed upstream budget, owned by one client instance.
// It starts at the published ceiling and is only advisory.
type RateBudget struct {
	mu        sync.Mutex
	limit     int
	remaining int
	resetsAt  time.Time
	low       int
}

// NewRateBudget budget starting full at limit, IsLow below lowThreshold
func NewRateBudget(limit, lowThreshold int) *RateBudget {
	if lowThreshold <= 0 {
		lowThreshold = 10
	}
	return &RateBudget{limit: limit, remaining: limit, low: lowThreshold}
}

// Observe updates the budget from response headers, absent headers leave it untouched
func (b *RateBudget) Observe(h http.Header) {
	remainingRaw := h.Get(HeaderRateRemaining)
	resetRaw := h.Get(HeaderRateReset)
	if remainingRaw == "" && resetRaw == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if n, err := strconv.Atoi(remainingRaw); err == nil {
		b.remaining = n
		metrics.RateBudgetRemaining.Set(float64(n))
	}
	if t, ok := parseResetTime(resetRaw); ok {
		b.resetsAt = t
	}
}

// Status snapshot for callers and the admin surface
func (b *RateBudget) Status() interfaces.RateBudgetStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return interfaces.RateBudgetStatus{
		Remaining: b.remaining,
		Limit:     b.limit,
		ResetsAt:  b.resetsAt,
		IsLow:     b.remaining < b.low,
	}
}

// parseResetTime accepts unix seconds or RFC3339
func parseResetTime(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
