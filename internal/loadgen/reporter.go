package loadgen

import (
	"context"
	"time"
)

// DefaultReportInterval is how often progress is reported.
const DefaultReportInterval = time.Second

// Progress is one periodic reading of the exchange counter.
type Progress struct {
	Total int64
	Delta int64
	At    time.Time
}

// Reporter periodically reads the counter and reports the increase since
// the previous reading.
type Reporter struct {
	Counter  *Counter
	Interval time.Duration
	Sink     func(Progress)

	previous int64
}

// Run reports once per interval until ctx is done.
func (r *Reporter) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultReportInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			p := r.Tick(now)
			if r.Sink != nil {
				r.Sink(p)
			}
		}
	}
}

// Tick takes one reading and advances the snapshot.
func (r *Reporter) Tick(now time.Time) Progress {
	current := r.Counter.Load()
	p := Progress{
		Total: current,
		Delta: current - r.previous,
		At:    now,
	}
	r.previous = current
	return p
}
