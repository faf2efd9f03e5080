package matchapi

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestRateBudget_StartsFull(t *testing.T) {
	b := NewRateBudget(100, 10)
	s := b.Status()
	if s.Remaining != 100 || s.Limit != 100 || s.IsLow {
		t.Errorf("unexpected initial status %+v", s)
	}
}

func TestRateBudget_Observe(t *testing.T) {
	b := NewRateBudget(100, 10)

	h := http.Header{}
	h.Set(HeaderRateRemaining, "10")
	h.Set(HeaderRateReset, "2026-10-18T12:00:00Z")
	b.Observe(h)
	s := b.Status()
	if s.Remaining != 10 || s.IsLow {
		t.Errorf("10 remaining is not low, got %+v", s)
	}
	if !s.ResetsAt.Equal(time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected reset %v", s.ResetsAt)
	}

	h.Set(HeaderRateRemaining, "9")
	b.Observe(h)
	if !b.Status().IsLow {
		t.Errorf("9 remaining should be low")
	}

	// absent headers leave the last observation
	b.Observe(http.Header{})
	if b.Status().Remaining != 9 {
		t.Errorf("budget changed without headers: %+v", b.Status())
	}
}

func TestRateBudget_IgnoresGarbage(t *testing.T) {
	b := NewRateBudget(100, 10)
	h := http.Header{}
	h.Set(HeaderRateRemaining, "lots")
	h.Set(HeaderRateReset, "soon")
	b.Observe(h)
	s := b.Status()
	if s.Remaining != 100 || !s.ResetsAt.IsZero() {
		t.Errorf("unparseable headers must be ignored, got %+v", s)
	}
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		name       string
		attempt    int
		retryAfter time.Duration
		want       time.Duration
	}{
		{"first", 0, 0, 5 * time.Second},
		{"second", 1, 0, 10 * time.Second},
		{"third", 2, 0, 20 * time.Second},
		{"capped", 2, 12 * time.Second, 12 * time.Second},
		{"retry after larger than backoff", 0, time.Minute, 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := backoffDelay(tt.attempt, 5*time.Second, tt.retryAfter); got != tt.want {
				t.Errorf("backoffDelay(%d, %v) = %v, want %v", tt.attempt, tt.retryAfter, got, tt.want)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	h := http.Header{}
	if d := parseRetryAfter(h, now); d != 0 {
		t.Errorf("absent header: got %v", d)
	}
	h.Set(HeaderRetryAfter, "30")
	if d := parseRetryAfter(h, now); d != 30*time.Second {
		t.Errorf("seconds form: got %v", d)
	}
	h.Set(HeaderRetryAfter, now.Add(45*time.Second).Format(http.TimeFormat))
	if d := parseRetryAfter(h, now); d != 45*time.Second {
		t.Errorf("date form: got %v", d)
	}
	h.Set(HeaderRetryAfter, "-3")
	if d := parseRetryAfter(h, now); d != 0 {
		t.Errorf("negative seconds: got %v", d)
	}
}

func TestSleepContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); err == nil {
		t.Fatal("expected context error")
	}
}
