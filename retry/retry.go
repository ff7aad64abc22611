// Package retry provides bounded retry with exponential backoff for calls to
// external services. Only errors classified as recoverable are retried; the
// classification lives alongside the policy so every call site shares one
// transient-error predicate.
package retry

import (
	"context"
	"time"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseWait   = time.Second
	DefaultMaxWait    = 30 * time.Second
)

// Policy describes how a call is retried: how many times, how long to wait
// between attempts, and which errors qualify. Policies are values and are
// passed explicitly into each external-call site.
type Policy struct {
	// MaxRetries is the number of retries after the initial attempt. Zero
	// means the call runs exactly once.
	MaxRetries int

	// BaseWait is the wait before the first retry. Each subsequent retry
	// doubles the wait.
	BaseWait time.Duration

	// MaxWait caps the backoff growth.
	MaxWait time.Duration

	// IsRecoverable overrides the default transient-error predicate when
	// set.
	IsRecoverable func(error) bool
}

// DefaultPolicy returns the policy used when no options are given.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		BaseWait:   DefaultBaseWait,
		MaxWait:    DefaultMaxWait,
	}
}

// Option customizes a Policy.
type Option func(*Policy)

// WithMaxRetries sets the number of retries after the initial attempt.
func WithMaxRetries(n int) Option {
	return func(p *Policy) { p.MaxRetries = n }
}

// WithBaseWait sets the wait before the first retry.
func WithBaseWait(d time.Duration) Option {
	return func(p *Policy) { p.BaseWait = d }
}

// WithMaxWait caps the backoff wait.
func WithMaxWait(d time.Duration) Option {
	return func(p *Policy) { p.MaxWait = d }
}

// Do runs fn under the default policy adjusted by opts.
func Do(ctx context.Context, fn func() error, opts ...Option) error {
	policy := DefaultPolicy()
	for _, opt := range opts {
		opt(&policy)
	}
	return policy.Do(ctx, fn)
}

// Do runs fn, retrying recoverable failures until the attempt budget is
// spent. The last error is returned unwrapped so callers see the original
// failure.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	isRecoverable := p.IsRecoverable
	if isRecoverable == nil {
		isRecoverable = IsRecoverable
	}

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.wait(attempt - 1)):
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRecoverable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// wait returns the backoff before retry n (0-based): BaseWait doubled per
// retry, capped at MaxWait.
func (p Policy) wait(n int) time.Duration {
	wait := p.BaseWait
	if wait <= 0 {
		wait = DefaultBaseWait
	}
	for i := 0; i < n; i++ {
		wait *= 2
		if p.MaxWait > 0 && wait >= p.MaxWait {
			return p.MaxWait
		}
	}
	if p.MaxWait > 0 && wait > p.MaxWait {
		return p.MaxWait
	}
	return wait
}
