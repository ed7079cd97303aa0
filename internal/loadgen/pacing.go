package loadgen

import (
	"context"
	"math/rand"
	"time"
)

// PacingType identifies the type of pacing.
type PacingType string

const (
	PacingNone     PacingType = "none"
	PacingConstant PacingType = "constant"
	PacingRandom   PacingType = "random"
)

// Pacing controls the think time a worker waits between records.
type Pacing struct {
	// Type of pacing: "none", "constant", "random"
	Type PacingType

	// Duration for constant pacing
	Duration time.Duration

	// Min and Max bound random pacing
	Min time.Duration
	Max time.Duration
}

// Next returns the wait before the next record.
func (p *Pacing) Next() time.Duration {
	if p == nil {
		return 0
	}

	switch p.Type {
	case PacingConstant:
		return p.Duration
	case PacingRandom:
		diff := p.Max - p.Min
		if diff > 0 {
			return p.Min + time.Duration(rand.Int63n(int64(diff)))
		}
		return p.Min
	default:
		return 0
	}
}

// Wait blocks for the next think time. It returns false if ctx ended first.
func (p *Pacing) Wait(ctx context.Context) bool {
	wait := p.Next()
	if wait <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
