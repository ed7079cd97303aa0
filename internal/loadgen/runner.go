// Package loadgen drives the survey interaction across a pool of workers.
//
// A Runner partitions the dataset into one contiguous range per worker and
// starts the workers together. Every worker owns its own HTTP session and
// walks its range forever, bumping a shared Counter on each exchange. The
// first failing worker cancels the shared context; the others stop at
// their next checkpoint and Run returns that failure.
package loadgen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/surveyload/internal/dataset"
	"github.com/wesleyorama2/surveyload/internal/logging"
	"github.com/wesleyorama2/surveyload/internal/metrics"
)

// SessionFactory creates the session owned by one worker.
type SessionFactory func(workerID int) (Session, error)

// Observer is told about assignments and progress. Calls arrive on the
// goroutine that called Run.
type Observer interface {
	Assigned(workerID int, r RecordRange)
	Progress(p Progress)
}

// Options configures a run.
type Options struct {
	Workers int

	// Duration bounds the run. Zero runs until cancelled or failed.
	Duration time.Duration

	// MaxPasses bounds each worker. Zero loops forever.
	MaxPasses int

	// Rate caps session starts per second across all workers. Zero is
	// unlimited.
	Rate float64

	ReportInterval time.Duration
	Pacing         *Pacing
	Driver         DriverOptions
}

// Result summarises a finished run.
type Result struct {
	RunID       string
	Started     time.Time
	Elapsed     time.Duration
	Total       int64
	Ranges      []RecordRange
	Sessions    []int64
	Passes      []int64
	Interrupted bool
	Metrics     *metrics.Snapshot
}

// Runner orchestrates one load run.
type Runner struct {
	records    []dataset.SessionRecord
	opts       Options
	newSession SessionFactory

	counter  *Counter
	metrics  *metrics.Engine
	observer Observer
	logger   *zap.Logger
	runID    string

	workers []*Worker
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithObserver sets the observer for assignments and progress.
func WithObserver(o Observer) RunnerOption {
	return func(r *Runner) {
		r.observer = o
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithCounter makes the runner count into c.
func WithCounter(c *Counter) RunnerOption {
	return func(r *Runner) {
		r.counter = c
	}
}

// WithMetrics makes the runner record latencies into m.
func WithMetrics(m *metrics.Engine) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithRunID overrides the generated run id.
func WithRunID(id string) RunnerOption {
	return func(r *Runner) {
		r.runID = id
	}
}

// NewRunner creates a runner over records.
func NewRunner(records []dataset.SessionRecord, opts Options, newSession SessionFactory, options ...RunnerOption) *Runner {
	r := &Runner{
		records:    records,
		opts:       opts,
		newSession: newSession,
		counter:    NewCounter(),
		metrics:    metrics.NewEngine(),
		logger:     zap.NewNop(),
		runID:      uuid.NewString(),
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// RunID returns the id attached to this run's log lines.
func (r *Runner) RunID() string {
	return r.runID
}

// Counter returns the shared exchange counter.
func (r *Runner) Counter() *Counter {
	return r.counter
}

// Run starts all workers and reports progress on the calling goroutine
// until the run ends.
//
// It returns a *FatalError when a worker failed. Cancelling ctx stops the
// run cleanly and marks the result as interrupted.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if r.opts.Workers < 1 {
		return nil, fmt.Errorf("worker count must be >= 1, got %d", r.opts.Workers)
	}

	logger := logging.WithRun(r.logger, r.runID)
	started := time.Now()
	ranges := Partition(len(r.records), r.opts.Workers)

	var throttle *Throttle
	if r.opts.Rate > 0 {
		throttle = NewThrottle(r.opts.Rate)
	}

	r.workers = make([]*Worker, 0, len(ranges))
	for i, rg := range ranges {
		session, err := r.newSession(i)
		if err != nil {
			return nil, fmt.Errorf("create session for worker %d: %w", i, err)
		}
		if closer, ok := session.(interface{ CloseIdleConnections() }); ok {
			defer closer.CloseIdleConnections()
		}

		r.workers = append(r.workers, &Worker{
			ID:        i,
			Range:     rg,
			Records:   r.records,
			Driver:    NewSessionDriver(session, r.counter, r.metrics, r.opts.Driver),
			MaxPasses: r.opts.MaxPasses,
			Pacing:    r.opts.Pacing,
			Throttle:  throttle,
			Logger:    logger,
		})

		if r.observer != nil {
			r.observer.Assigned(i, rg)
		}
	}

	runCtx := ctx
	if r.opts.Duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.opts.Duration)
		defer cancel()
	}

	logger.Info("run started",
		zap.Int("workers", len(r.workers)),
		zap.Int("records", len(r.records)),
		zap.Duration("duration", r.opts.Duration),
		zap.Int("maxPasses", r.opts.MaxPasses),
		zap.Float64("rate", r.opts.Rate))

	g, gctx := errgroup.WithContext(runCtx)
	for _, w := range r.workers {
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- g.Wait()
	}()

	// gctx ends on the first failure, on cancellation, or once every
	// worker has returned.
	reporter := &Reporter{
		Counter:  r.counter,
		Interval: r.opts.ReportInterval,
		Sink: func(p Progress) {
			if r.observer != nil {
				r.observer.Progress(p)
			}
		},
	}
	reporter.Run(gctx)
	err := <-waitErr

	result := r.result(started)
	result.Ranges = ranges
	result.Interrupted = ctx.Err() != nil

	var fatal *FatalError
	if errors.As(err, &fatal) {
		logger.Error("run failed", zap.Error(err), zap.Int64("exchanges", result.Total))
		return result, fatal
	}
	if err != nil {
		return result, err
	}

	logger.Info("run finished",
		zap.Int64("exchanges", result.Total),
		zap.Duration("elapsed", result.Elapsed),
		zap.Bool("interrupted", result.Interrupted))
	return result, nil
}

func (r *Runner) result(started time.Time) *Result {
	res := &Result{
		RunID:    r.runID,
		Started:  started,
		Elapsed:  time.Since(started),
		Total:    r.counter.Load(),
		Sessions: make([]int64, len(r.workers)),
		Passes:   make([]int64, len(r.workers)),
		Metrics:  r.metrics.Snapshot(),
	}
	for i, w := range r.workers {
		res.Sessions[i] = w.Sessions()
		res.Passes[i] = w.Passes()
	}
	return res
}
