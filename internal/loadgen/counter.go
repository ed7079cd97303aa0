package loadgen

import "sync/atomic"

// Counter counts completed HTTP exchanges across all workers.
//
// The orchestrator owns it and hands the same pointer to every worker and
// to the reporter. It only ever grows.
type Counter struct {
	n atomic.Int64
}

// NewCounter returns a zeroed counter.
func NewCounter() *Counter {
	return &Counter{}
}

// Inc adds one exchange and returns the new total.
func (c *Counter) Inc() int64 {
	return c.n.Add(1)
}

// Load returns the current total.
func (c *Counter) Load() int64 {
	return c.n.Load()
}
