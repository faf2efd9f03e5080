package interfaces

import (
	"context"
	"time"

	"MatchSync/internal/model"
)

// ListingResult one conditional, fully paginated listing poll
type ListingResult struct {
	Records      []model.MatchPayload
	NewToken     string // Last-Modified of the first page
	WasUnchanged bool   // first page answered 304
	StatusCode   int
}

// DetailResult one conditional match detail fetch, Data is nil when unchanged
type DetailResult struct {
	Data         *model.MatchDetailPayload
	NewToken     string
	WasUnchanged bool
	StatusCode   int
}

// RateBudgetStatus last observed upstream rate-limit state, advisory only
type RateBudgetStatus struct {
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetsAt  time.Time `json:"resets_at"`
	IsLow     bool      `json:"is_low"`
}

// MatchSource the rate-limited upstream match API
type MatchSource interface {
	FetchListing(ctx context.Context, endpoint string, filters map[string]string, token string) (*ListingResult, error)
	FetchDetail(ctx context.Context, matchID string, token string) (*DetailResult, error)
	GetRateBudgetStatus() RateBudgetStatus
}
