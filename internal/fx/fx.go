// Package fx converts between US dollars and Dominican pesos using live
// public exchange-rate feeds.
package fx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/courtside/courtside-cli/internal/observe"
	"github.com/courtside/courtside-cli/internal/resilience"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultUserAgent = "Mozilla/5.0"
	maxBodySize      = 1 << 20
)

// Source is one rate feed. Path is a gjson path to the USD->DOP rate in the
// feed's JSON body.
type Source struct {
	Name string `toml:"name" json:"name"`
	URL  string `toml:"url" json:"url" validate:"required,url"`
	Path string `toml:"path" json:"path" validate:"required"`
}

// DefaultSources are tried in order.
var DefaultSources = []Source{
	{
		Name: "jsdelivr",
		URL:  "https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@latest/v1/currencies/usd.json",
		Path: "usd.dop",
	},
	{
		Name: "open-er-api",
		URL:  "https://open.er-api.com/v6/latest/USD",
		Path: "rates.DOP",
	},
}

// Direction selects which way an amount is converted.
type Direction string

const (
	USDToDOP Direction = "usd_to_dop"
	DOPToUSD Direction = "dop_to_usd"
)

var (
	ErrInvalidAmount    = errors.New("amount must be a number")
	ErrInvalidDirection = errors.New("direction must be 'usd_to_dop' or 'dop_to_usd'")
	ErrNoRate           = errors.New("could not fetch live rate")
)

// Message renders err as the user-facing tool error string.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "Error: amount must be a number"
	case errors.Is(err, ErrInvalidDirection):
		return "Error: direction must be 'usd_to_dop' or 'dop_to_usd'"
	case errors.Is(err, ErrNoRate):
		return "Error: Could not fetch live rate"
	default:
		return "Error: " + err.Error()
	}
}

// ParseAmount accepts a decoded JSON value. Nil means 1.0; strings are parsed
// as decimal numbers.
func ParseAmount(v any) (float64, error) {
	switch a := v.(type) {
	case nil:
		return 1.0, nil
	case float64:
		return a, nil
	case int:
		return float64(a), nil
	case bool:
		if a {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
		if err != nil {
			return 0, ErrInvalidAmount
		}
		return f, nil
	default:
		f, err := strconv.ParseFloat(strings.TrimSpace(fmt.Sprint(a)), 64)
		if err != nil {
			return 0, ErrInvalidAmount
		}
		return f, nil
	}
}

// ParseDirection normalizes s, ignoring case and surrounding space.
func ParseDirection(s string) (Direction, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch Direction(s) {
	case USDToDOP, DOPToUSD:
		return Direction(s), nil
	}
	return "", ErrInvalidDirection
}

// Conversion is the result of [Converter.Convert]. Exactly one of DOP and
// USD is set.
type Conversion struct {
	DOP  *float64 `json:"dop,omitempty"`
	USD  *float64 `json:"usd,omitempty"`
	Rate float64  `json:"rate"`
}

// Options configures a [Converter].
type Options struct {
	Sources    []Source
	Timeout    time.Duration // per source
	UserAgent  string
	HTTPClient *http.Client
}

// Converter fetches the live rate and converts amounts. It is safe for
// concurrent use.
type Converter struct {
	client    *http.Client
	userAgent string
	sources   *resilience.FallbackGroup[Source]
}

// New creates a Converter.
func New(opts Options) *Converter {
	if len(opts.Sources) == 0 {
		opts.Sources = DefaultSources
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	// An open source is skipped only while another one can answer.
	fg := resilience.NewFallbackGroup[Source](resilience.BreakerConfig{MaxFailures: 3, Cooldown: 30 * time.Second})
	for i, s := range opts.Sources {
		name := s.Name
		if name == "" {
			name = "source-" + strconv.Itoa(i+1)
		}
		s.Name = name
		fg.Add(name, s)
	}
	return &Converter{client: client, userAgent: opts.UserAgent, sources: fg}
}

// Convert converts amount in the given direction at the live rate.
func (c *Converter) Convert(ctx context.Context, amount float64, dir Direction) (*Conversion, error) {
	if dir != USDToDOP && dir != DOPToUSD {
		return nil, ErrInvalidDirection
	}
	rate, err := c.Rate(ctx)
	if err != nil {
		return nil, err
	}
	if dir == USDToDOP {
		v := round2(amount * rate)
		return &Conversion{DOP: &v, Rate: rate}, nil
	}
	v := round2(amount / rate)
	return &Conversion{USD: &v, Rate: rate}, nil
}

// Rate returns DOP per USD from the first source that answers.
func (c *Converter) Rate(ctx context.Context) (float64, error) {
	rate, err := resilience.FirstSuccess(ctx, c.sources, func(s Source) (float64, error) {
		return c.fetch(ctx, s)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNoRate, err)
	}
	return rate, nil
}

func (c *Converter) fetch(ctx context.Context, s Source) (float64, error) {
	start := time.Now()
	status := "error"
	defer func() {
		elapsed := time.Since(start)
		observe.DefaultMetrics().RecordUpstream(ctx, "fx", s.Name, status, elapsed)
		slog.Debug("rate source request", "source", s.Name, "status", status, "duration", elapsed)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		status = "http_" + strconv.Itoa(resp.StatusCode)
		return 0, fmt.Errorf("%s: HTTP %d", s.Name, resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return 0, fmt.Errorf("%s: invalid JSON body", s.Name)
	}

	v := gjson.GetBytes(body, s.Path)
	if v.Type != gjson.Number {
		return 0, fmt.Errorf("%s: no numeric value at %q", s.Name, s.Path)
	}
	rate := v.Float()
	if rate <= 0 {
		return 0, fmt.Errorf("%s: non-positive rate %v", s.Name, rate)
	}
	status = "ok"
	return rate, nil
}

func round2(x float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 2, 64), 64)
	return r
}
