package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Execute] while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig tunes a [Breaker].
type BreakerConfig struct {
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: 3.
	MaxFailures int

	// Cooldown is how long an open breaker rejects calls before letting a
	// single trial call through. Default: 1m.
	Cooldown time.Duration
}

// Breaker is a consecutive-failure circuit breaker. While open, calls fail
// fast; after Cooldown one trial call decides whether it closes again.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	trial    bool
}

// NewBreaker creates a closed [Breaker]. Zero config fields take defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	return &Breaker{name: cfg.Name, maxFailures: cfg.MaxFailures, cooldown: cfg.Cooldown}
}

// Open reports whether calls are currently being rejected.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isOpen()
}

func (b *Breaker) isOpen() bool {
	if b.failures < b.maxFailures {
		return false
	}
	return b.trial || time.Since(b.openedAt) < b.cooldown
}

// Execute runs fn unless the breaker is open.
func (b *Breaker) Execute(fn func() error) error {
	return b.execute(context.Background(), fn, false)
}

// ExecuteContext is [Breaker.Execute] for work bound to ctx. A failure seen
// after ctx is done belongs to the caller, not the guarded dependency, and
// leaves the failure count untouched.
func (b *Breaker) ExecuteContext(ctx context.Context, fn func() error) error {
	return b.execute(ctx, fn, false)
}

// Force runs fn even while the breaker is open and records the outcome like
// any other call.
func (b *Breaker) Force(ctx context.Context, fn func() error) error {
	return b.execute(ctx, fn, true)
}

func (b *Breaker) execute(ctx context.Context, fn func() error, force bool) error {
	b.mu.Lock()
	if !force && b.isOpen() {
		b.mu.Unlock()
		return ErrCircuitOpen
	}
	if b.failures >= b.maxFailures {
		b.trial = true
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.trial = false
	if err == nil {
		if b.failures >= b.maxFailures {
			slog.Info("circuit breaker closed", "name", b.name)
		}
		b.failures = 0
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	b.failures++
	if b.failures >= b.maxFailures {
		b.openedAt = time.Now()
		if b.failures == b.maxFailures {
			slog.Warn("circuit breaker opened", "name", b.name, "consecutive_failures", b.failures)
		}
	}
	return err
}
