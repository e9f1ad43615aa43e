package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry of a [FallbackGroup] failed.
var ErrAllFailed = errors.New("all sources failed")

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// FallbackGroup holds an ordered list of interchangeable sources. Sources are
// tried in registration order; the first success wins.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     BreakerConfig
}

// NewFallbackGroup returns an empty group whose entries each get a breaker
// built from cfg.
func NewFallbackGroup[T any](cfg BreakerConfig) *FallbackGroup[T] {
	return &FallbackGroup[T]{cfg: cfg}
}

// Add appends a source.
func (fg *FallbackGroup[T]) Add(name string, value T) {
	cfg := fg.cfg
	cfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{name: name, value: value, breaker: NewBreaker(cfg)})
}

// Len returns the number of registered sources.
func (fg *FallbackGroup[T]) Len() int { return len(fg.entries) }

// FirstSuccess runs fn against each source of fg in order and returns the
// first successful result. Sources whose breaker is open are skipped while
// another source can still be asked; when every breaker is open they are all
// tried anyway, so a call never fails without reaching at least one source.
// It is a function rather than a method because methods cannot declare type
// parameters.
func FirstSuccess[T, R any](ctx context.Context, fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		zero      R
		lastErr   error
		attempted bool
	)
	call := func(entry *fallbackEntry[T], force bool) (R, error) {
		var result R
		run := func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		}
		if force {
			return result, entry.breaker.Force(ctx, run)
		}
		return result, entry.breaker.ExecuteContext(ctx, run)
	}

	for i := range fg.entries {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		entry := &fg.entries[i]
		result, err := call(entry, false)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping source (circuit open)", "source", entry.name)
			continue
		}
		attempted = true
		lastErr = err
		slog.Warn("source failed, trying next", "source", entry.name, "error", err)
	}

	if !attempted {
		for i := range fg.entries {
			if err := ctx.Err(); err != nil {
				return zero, err
			}
			entry := &fg.entries[i]
			result, err := call(entry, true)
			if err == nil {
				return result, nil
			}
			lastErr = err
			slog.Warn("source failed with circuit open", "source", entry.name, "error", err)
		}
	}

	if lastErr == nil {
		return zero, ErrAllFailed
	}
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
