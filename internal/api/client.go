package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/courtside/courtside-cli/internal/observe"
	"github.com/courtside/courtside-cli/internal/resilience"
)

const (
	// DefaultBaseURL is the balldontlie v1 endpoint.
	DefaultBaseURL = "https://api.balldontlie.io/v1"

	defaultTimeout = 10 * time.Second
	maxBodySize    = 4 * 1024 * 1024

	// limiterBurst covers one prediction (schedule lookup plus two win-rate
	// queries) without waiting on the limiter.
	limiterBurst = 3
)

// version is set at build time via ldflags.
var version = "dev"

// SetVersion sets the version string for User-Agent headers.
func SetVersion(v string) { version = v }

// Options configures a [Client].
type Options struct {
	APIKey     string
	BaseURL    string
	AuthScheme string // "" sends the raw key, "Bearer" prefixes it
	Timeout    time.Duration

	// MaxRetries and RetryBackoff bound retries of 429, 5xx and network
	// failures. MaxRetries == 0 disables retrying.
	MaxRetries   int
	RetryBackoff time.Duration

	// RequestsPerMinute throttles outbound calls. Zero means unlimited.
	RequestsPerMinute int

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client is an HTTP client for the balldontlie API. It is safe for
// concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	authScheme string
	client     *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// New creates a new API client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), limiterBurst)
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    opts.BaseURL,
		authScheme: opts.AuthScheme,
		client:     httpClient,
		limiter:    limiter,
		retry: resilience.RetryConfig{
			Name:        "balldontlie",
			MaxRetries:  opts.MaxRetries,
			Backoff:     opts.RetryBackoff,
			ShouldRetry: Retryable,
		},
	}
}

// ListGames calls GET /games with the given filters and returns the first
// page of results.
func (c *Client) ListGames(ctx context.Context, q GamesQuery) ([]Game, error) {
	params := url.Values{}
	if q.StartDate != "" {
		params.Set("start_date", q.StartDate)
	}
	if q.EndDate != "" {
		params.Set("end_date", q.EndDate)
	}
	for _, id := range q.TeamIDs {
		params.Add("team_ids[]", strconv.Itoa(id))
	}
	for _, s := range q.Seasons {
		params.Add("seasons[]", strconv.Itoa(s))
	}
	if q.PerPage > 0 {
		params.Set("per_page", strconv.Itoa(q.PerPage))
	}

	var resp GamesResponse
	if err := c.get(ctx, "/games", params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	return resilience.Retry(ctx, c.retry, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
		return c.do(ctx, path, u, out)
	})
}

func (c *Client) do(ctx context.Context, endpoint, u string, out any) error {
	start := time.Now()
	status := "error"
	defer func() {
		elapsed := time.Since(start)
		observe.DefaultMetrics().RecordUpstream(ctx, "balldontlie", endpoint, status, elapsed)
		slog.Debug("balldontlie request", "endpoint", endpoint, "status", status, "duration", elapsed)
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "courtside/"+version)
	if c.apiKey != "" {
		auth := c.apiKey
		if c.authScheme != "" {
			auth = c.authScheme + " " + c.apiKey
		}
		httpReq.Header.Set("Authorization", auth)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode >= 300 {
		status = "http_" + strconv.Itoa(httpResp.StatusCode)
		return &APIError{
			StatusCode: httpResp.StatusCode,
			Endpoint:   "GET " + endpoint,
			Body:       truncate(string(respBody), 200),
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response (status %d): %w (body: %s)", httpResp.StatusCode, err, truncate(string(respBody), 200))
	}
	status = "ok"
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
