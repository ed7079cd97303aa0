package loadgen

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wesleyorama2/surveyload/internal/dataset"
)

// WorkerState represents the lifecycle state of a worker.
type WorkerState int32

const (
	// WorkerIdle indicates the worker has not started.
	WorkerIdle WorkerState = iota
	// WorkerRunning indicates the worker is driving sessions.
	WorkerRunning
	// WorkerStopped indicates the worker has returned.
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerRunning:
		return "running"
	case WorkerStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// SessionRunner drives the interaction for one record.
// *SessionDriver implements it.
type SessionRunner interface {
	Run(ctx context.Context, rec dataset.SessionRecord) error
}

// Worker repeatedly walks its range of the dataset, in ascending order,
// wrapping back to the start after the last record.
type Worker struct {
	ID      int
	Range   RecordRange
	Records []dataset.SessionRecord
	Driver  SessionRunner

	// MaxPasses ends the worker after that many passes. Zero loops forever.
	MaxPasses int

	// Pacing is the think time between records. Nil means none.
	Pacing *Pacing

	// Throttle, when set, is waited on before every record. It is usually
	// shared by all workers of a run.
	Throttle *Throttle

	Logger *zap.Logger

	state    atomic.Int32
	passes   atomic.Int64
	sessions atomic.Int64
}

// State returns the current worker state.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Passes returns the number of completed passes over the range.
func (w *Worker) Passes() int64 {
	return w.passes.Load()
}

// Sessions returns the number of completed interactions.
func (w *Worker) Sessions() int64 {
	return w.sessions.Load()
}

// Run loops until ctx is done, MaxPasses is reached or a session fails.
//
// A session failure is returned as a *FatalError. A transport error caused
// by ctx ending is not a failure; the worker just stops.
func (w *Worker) Run(ctx context.Context) error {
	w.state.Store(int32(WorkerRunning))
	defer w.state.Store(int32(WorkerStopped))

	logger := w.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.Int("worker", w.ID), zap.Stringer("range", w.Range))
	logger.Debug("worker started")

	if w.Range.Empty() {
		// Every pass over an empty range is a no-op.
		if w.MaxPasses > 0 {
			w.passes.Store(int64(w.MaxPasses))
			return nil
		}
		<-ctx.Done()
		logger.Debug("worker stopped", zap.Int64("passes", w.passes.Load()))
		return nil
	}

	for {
		for i := w.Range.Start; i <= w.Range.End; i++ {
			if ctx.Err() != nil {
				logger.Debug("worker stopped", zap.Int64("passes", w.passes.Load()))
				return nil
			}

			if w.Throttle != nil && w.Throttle.Wait(ctx) != nil {
				logger.Debug("worker stopped", zap.Int64("passes", w.passes.Load()))
				return nil
			}

			rec := w.Records[i]
			if err := w.Driver.Run(ctx, rec); err != nil {
				if ctx.Err() != nil && IsTransport(err) {
					logger.Debug("worker interrupted mid-request", zap.Error(err))
					return nil
				}
				logger.Error("session failed", zap.Int("index", i), zap.String("uac", rec.AccessCode), zap.Error(err))
				return &FatalError{WorkerID: w.ID, Index: i, Record: rec, Err: err}
			}
			w.sessions.Add(1)

			if w.Pacing != nil && !w.Pacing.Wait(ctx) {
				return nil
			}
		}

		passes := w.passes.Add(1)
		logger.Debug("pass complete", zap.Int64("passes", passes))
		if w.MaxPasses > 0 && passes >= int64(w.MaxPasses) {
			return nil
		}
	}
}
