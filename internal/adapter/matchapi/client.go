package matchapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"MatchSync/internal/config"
	"MatchSync/internal/interfaces"
	"MatchSync/internal/metrics"
	"MatchSync/internal/model"
	"MatchSync/internal/utils/httpclient"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	headerAPIKey          = "X-API-Key"
	headerIfModifiedSince = "If-Modified-Since"
	headerLastModified    = "Last-Modified"

	maxBodySize      = 32 << 20 // 32MB, replays of long matches are large
	maxErrorBodySize = 64 << 10
)

// Client rate-limited upstream match API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	budget     *RateBudget
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*response]
	maxRetries int
	backoff    time.Duration
	pageSize   int
	maxPages   int
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
	logger     *logrus.Logger
}

var _ interfaces.MatchSource = (*Client)(nil)

// Option overrides client collaborators, mostly for tests
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithRateBudget(b *RateBudget) Option {
	return func(c *Client) { c.budget = b }
}

func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithSleeper replaces the backoff wait
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// response a fully read upstream response
type response struct {
	status int
	header http.Header
	body   []byte
}

// NewClient a missing API key is a configuration error and fails immediately
func NewClient(cfg *config.UpstreamConfig, logger *logrus.Logger, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, config.ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("upstream base_url is not configured")
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.BackoffBase
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 20
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpclient.NewHTTPClient(cfg, logger),
		budget:     NewRateBudget(cfg.RequestsPerHour, cfg.LowBudget),
		limiter:    newLimiter(cfg.RequestsPerHour, cfg.Burst),
		maxRetries: maxRetries,
		backoff:    backoff,
		pageSize:   pageSize,
		maxPages:   maxPages,
		sleep:      sleepContext,
		now:        time.Now,
		logger:     logger,
	}
	c.breaker = newBreaker("matchapi", logger)
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// newLimiter paces requests to the hourly ceiling, bursts up to burst
func newLimiter(perHour, burst int) *rate.Limiter {
	if perHour <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Hour/time.Duration(perHour)), burst)
}

// GetRateBudgetStatus last observed budget
func (c *Client) GetRateBudgetStatus() interfaces.RateBudgetStatus {
	return c.budget.Status()
}

// FetchListing polls a paginated listing. The conditional token goes out on the
// first page only; a 304 there short-circuits the whole poll.
func (c *Client) FetchListing(ctx context.Context, endpoint string, filters map[string]string, token string) (*interfaces.ListingResult, error) {
	result := &interfaces.ListingResult{}

	for page := 1; ; page++ {
		query := url.Values{}
		for k, v := range filters {
			if v != "" {
				query.Set(k, v)
			}
		}
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(c.pageSize))

		sendToken := ""
		if page == 1 {
			sendToken = token
		}
		resp, err := c.get(ctx, endpoint, query, sendToken)
		if err != nil {
			return nil, err
		}

		if page == 1 {
			result.StatusCode = resp.status
			result.NewToken = resp.header.Get(headerLastModified)
			if resp.status == http.StatusNotModified {
				if result.NewToken == "" {
					result.NewToken = token
				}
				result.WasUnchanged = true
				return result, nil
			}
		} else if resp.status == http.StatusNotModified {
			break
		}

		var body model.ListingResponse
		if err := json.Unmarshal(resp.body, &body); err != nil {
			return nil, fmt.Errorf("decode %s page %d: %w", endpoint, page, err)
		}
		result.Records = append(result.Records, body.Data...)

		if len(body.Data) == 0 || !(body.Meta.HasMore || body.Meta.TotalPages > page) {
			break
		}
		if page >= c.maxPages {
			c.logger.WithFields(logrus.Fields{
				"endpoint":  endpoint,
				"max_pages": c.maxPages,
			}).Warn("listing still has more pages, stopping at max_pages")
			break
		}
	}

	c.logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"records":  len(result.Records),
	}).Debug("listing fetched")
	return result, nil
}

// FetchDetail fetches one match replay with the same conditional semantics
func (c *Client) FetchDetail(ctx context.Context, matchID string, token string) (*interfaces.DetailResult, error) {
	if matchID == "" {
		return nil, errors.New("match id is required")
	}
	endpoint := model.MatchEndpoint(matchID)
	resp, err := c.get(ctx, endpoint, nil, token)
	if err != nil {
		return nil, err
	}

	result := &interfaces.DetailResult{
		StatusCode: resp.status,
		NewToken:   resp.header.Get(headerLastModified),
	}
	if resp.status == http.StatusNotModified {
		if result.NewToken == "" {
			result.NewToken = token
		}
		result.WasUnchanged = true
		return result, nil
	}

	var detail model.MatchDetailPayload
	if err := json.Unmarshal(resp.body, &detail); err != nil {
		return nil, fmt.Errorf("decode %s: %w", endpoint, err)
	}
	if detail.Match.ID == "" {
		detail.Match.ID = matchID
	}
	result.Data = &detail
	return result, nil
}

// get one logical request behind the circuit breaker
func (c *Client) get(ctx context.Context, endpoint string, query url.Values, token string) (*response, error) {
	resp, err := c.breaker.Execute(func() (*response, error) {
		resp, err := c.doRequestWithRateLimit(ctx, endpoint, query, token)
		if err != nil && ctx.Err() != nil {
			return nil, &callerDoneError{err: err}
		}
		return resp, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("upstream %s: %w", endpoint, err)
	}
	return resp, err
}

// doRequestWithRateLimit retries 429 responses with exponential backoff, every
// other outcome returns immediately
func (c *Client) doRequestWithRateLimit(ctx context.Context, endpoint string, query url.Values, token string) (*response, error) {
	reqURL := c.baseURL + "/" + endpoint
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for request slot %s: %w", reqURL, err)
		}

		resp, err := c.doOnce(ctx, endpoint, reqURL, token)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.status == http.StatusNotModified,
			resp.status >= 200 && resp.status < 300:
			return resp, nil

		case resp.status == http.StatusTooManyRequests:
			if attempt >= c.maxRetries {
				return nil, fmt.Errorf("%w: %s after %d retries", ErrRateLimited, endpoint, c.maxRetries)
			}
			delay := backoffDelay(attempt, c.backoff, parseRetryAfter(resp.header, c.now()))
			metrics.UpstreamThrottleRetries.WithLabelValues(metrics.EndpointLabel(endpoint)).Inc()
			c.logger.WithFields(logrus.Fields{
				"endpoint": endpoint,
				"attempt":  attempt + 1,
				"delay":    delay.String(),
			}).Warn("upstream throttled, backing off")
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}

		default:
			body := resp.body
			if len(body) > maxErrorBodySize {
				body = append(body[:maxErrorBodySize:maxErrorBodySize], []byte("... (truncated)")...)
			}
			return nil, &APIError{Endpoint: endpoint, StatusCode: resp.status, Body: string(body)}
		}
	}
}

// doOnce one HTTP round trip; the rate budget is updated whatever the status
func (c *Client) doOnce(ctx context.Context, endpoint, reqURL, token string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request %s: %w", reqURL, err)
	}
	req.Header.Set(headerAPIKey, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set(headerIfModifiedSince, token)
	}

	label := metrics.EndpointLabel(endpoint)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", reqURL, err)
	}
	defer resp.Body.Close()

	c.budget.Observe(resp.Header)
	metrics.UpstreamRequests.WithLabelValues(label, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", reqURL, err)
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: body}, nil
}
