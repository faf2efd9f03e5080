package matchapi

import (
	"errors"
	"fmt"
)

// ErrRateLimited the upstream kept answering 429 after every retry
var ErrRateLimited = errors.New("upstream rate limit exceeded")

// APIError non-success, non-throttling upstream response
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream %s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// StatusCode HTTP-equivalent outcome of err for the audit log, 0 for transport failures
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	if errors.Is(err, ErrRateLimited) {
		return 429
	}
	return 0
}
