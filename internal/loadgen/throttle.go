package loadgen

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttle caps the rate at which sessions start across all workers.
//
// The burst is one session, so a stalled front-end is not followed by a
// burst of queued sessions. Throttle is safe for concurrent use.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle creates a throttle admitting perSecond sessions per second.
// The first session is admitted at once. A rate <= 0 is treated as 1.
func NewThrottle(perSecond float64) *Throttle {
	if perSecond <= 0 {
		perSecond = 1.0
	}
	return &Throttle{
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Rate returns the target rate in sessions per second.
func (t *Throttle) Rate() float64 {
	return float64(t.limiter.Limit())
}

// Wait blocks until the next session may start. It returns an error if ctx
// ends first, or if the wait would outlast the ctx deadline.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}
