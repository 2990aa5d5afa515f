// Package retry wraps github.com/cenkalti/backoff/v4 with the two retry
// shapes the CORE needs: a bounded retry for durable writes (spec §4.5
// "Target-repo write failure: retry per configured policy") and an
// unbounded, context-cancellable poll backoff for tailer loops (spec §4.6
// "sleep with jitter; retry").
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy configures both retry shapes.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxElapsed bounds a Do() call; zero means retry forever (only
	// meaningful for Do, ignored by PollBackoff which is always unbounded
	// and relies on ctx cancellation instead).
	MaxElapsed time.Duration
}

// DefaultPolicy is a reasonable default for store-write retries: short
// initial backoff, capped growth, bounded total elapsed time so a
// persistently failing store surfaces an error instead of hanging forever.
var DefaultPolicy = Policy{
	InitialInterval: 100 * time.Millisecond,
	MaxInterval:     5 * time.Second,
	MaxElapsed:      30 * time.Second,
}

// PollPolicy is the default for tailer poll-backoff between empty iterations.
var PollPolicy = Policy{
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     30 * time.Second,
}

func (p Policy) build() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = p.MaxElapsed
	return b
}

// Do retries fn according to policy until it succeeds, the policy's max
// elapsed time is exceeded, or ctx is cancelled. A returned error is either
// ctx.Err() or the last error fn produced.
func Do(ctx context.Context, policy Policy, fn func() error) error {
	b := backoff.WithContext(policy.build(), ctx)
	return backoff.Retry(fn, b)
}

// PollBackoff returns a fresh, unbounded exponential backoff suitable for
// driving a "no new entries, sleep and retry" tailer loop. Callers call
// NextBackOff() after each empty iteration and time.Sleep (or select on
// ctx.Done()) for the returned duration; call Reset() once new work is
// found so the next empty streak starts from InitialInterval again.
func PollBackoff(policy Policy) *backoff.ExponentialBackOff {
	b := policy.build()
	b.MaxElapsedTime = 0
	return b
}
