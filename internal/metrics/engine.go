// Package metrics aggregates exchange latencies for the end-of-run summary.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Engine collects exchange latencies using HDR histograms.
//
// Counters are atomic; histograms are guarded by mutexes because
// hdrhistogram.Histogram.RecordValue is not safe for concurrent use.
// Engine is safe for concurrent use by all workers.
type Engine struct {
	// Range: 1 microsecond to 1 hour, 3 significant figures
	latencyHist   *hdrhistogram.Histogram
	latencyHistMu sync.Mutex

	stepHists   map[string]*stepHistogram
	stepOrder   []string
	stepHistsMu sync.RWMutex

	totalExchanges  atomic.Int64
	failedExchanges atomic.Int64

	startTime time.Time
	config    EngineConfig
}

type stepHistogram struct {
	mu     sync.Mutex
	hist   *hdrhistogram.Histogram
	failed int64
}

// EngineConfig contains configuration for the metrics engine.
type EngineConfig struct {
	// HistogramMin is the minimum recordable value in microseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds (default: 1 hour)
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		HistogramMin:     1,
		HistogramMax:     3600000000,
		HistogramSigFigs: 3,
	}
}

// NewEngine creates a new metrics engine with default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig())
}

// NewEngineWithConfig creates a new metrics engine with custom configuration.
func NewEngineWithConfig(config EngineConfig) *Engine {
	return &Engine{
		latencyHist: hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		stepHists:   make(map[string]*stepHistogram),
		startTime:   time.Now(),
		config:      config,
	}
}

// Record records one exchange of the named step.
func (e *Engine) Record(step string, duration time.Duration, ok bool) {
	latencyMicros := e.clamp(duration.Microseconds())

	e.latencyHistMu.Lock()
	_ = e.latencyHist.RecordValue(latencyMicros)
	e.latencyHistMu.Unlock()

	sh := e.step(step)
	sh.mu.Lock()
	_ = sh.hist.RecordValue(latencyMicros)
	if !ok {
		sh.failed++
	}
	sh.mu.Unlock()

	e.totalExchanges.Add(1)
	if !ok {
		e.failedExchanges.Add(1)
	}
}

func (e *Engine) clamp(v int64) int64 {
	if v < e.config.HistogramMin {
		return e.config.HistogramMin
	}
	if v > e.config.HistogramMax {
		return e.config.HistogramMax
	}
	return v
}

func (e *Engine) step(name string) *stepHistogram {
	e.stepHistsMu.RLock()
	sh, ok := e.stepHists[name]
	e.stepHistsMu.RUnlock()
	if ok {
		return sh
	}

	e.stepHistsMu.Lock()
	defer e.stepHistsMu.Unlock()

	if sh, ok = e.stepHists[name]; ok {
		return sh
	}
	sh = &stepHistogram{
		hist: hdrhistogram.New(e.config.HistogramMin, e.config.HistogramMax, e.config.HistogramSigFigs),
	}
	e.stepHists[name] = sh
	e.stepOrder = append(e.stepOrder, name)
	return sh
}

// Snapshot returns a point-in-time view of all metrics.
func (e *Engine) Snapshot() *Snapshot {
	e.latencyHistMu.Lock()
	overall := statsOf(e.latencyHist)
	e.latencyHistMu.Unlock()

	e.stepHistsMu.RLock()
	order := make([]string, len(e.stepOrder))
	copy(order, e.stepOrder)
	e.stepHistsMu.RUnlock()

	steps := make([]StepStats, 0, len(order))
	for _, name := range order {
		sh := e.step(name)
		sh.mu.Lock()
		steps = append(steps, StepStats{
			Name:    name,
			Failed:  sh.failed,
			Latency: statsOf(sh.hist),
		})
		sh.mu.Unlock()
	}

	elapsed := time.Since(e.startTime)
	total := e.totalExchanges.Load()

	rate := 0.0
	if elapsed.Seconds() > 0 {
		rate = float64(total) / elapsed.Seconds()
	}

	return &Snapshot{
		TotalExchanges:  total,
		FailedExchanges: e.failedExchanges.Load(),
		Latency:         overall,
		Steps:           steps,
		Rate:            rate,
		Elapsed:         elapsed,
		StartTime:       e.startTime,
	}
}

func statsOf(h *hdrhistogram.Histogram) LatencyStats {
	if h.TotalCount() == 0 {
		return LatencyStats{}
	}
	return LatencyStats{
		Min:   time.Duration(h.Min()) * time.Microsecond,
		Max:   time.Duration(h.Max()) * time.Microsecond,
		Mean:  time.Duration(h.Mean()) * time.Microsecond,
		P50:   time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P90:   time.Duration(h.ValueAtQuantile(90)) * time.Microsecond,
		P95:   time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		P99:   time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
		Count: h.TotalCount(),
	}
}

// Snapshot contains a point-in-time view of all metrics.
type Snapshot struct {
	TotalExchanges  int64         `json:"totalExchanges"`
	FailedExchanges int64         `json:"failedExchanges"`
	Latency         LatencyStats  `json:"latency"`
	Steps           []StepStats   `json:"steps"`
	Rate            float64       `json:"rate"`
	Elapsed         time.Duration `json:"elapsed"`
	StartTime       time.Time     `json:"startTime"`
}

// StepStats contains latency statistics for one interaction step.
type StepStats struct {
	Name    string       `json:"name"`
	Failed  int64        `json:"failed"`
	Latency LatencyStats `json:"latency"`
}

// LatencyStats contains latency statistics.
type LatencyStats struct {
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P90   time.Duration `json:"p90"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
	Count int64         `json:"count"`
}
