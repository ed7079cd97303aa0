package loadgen_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/surveyload/internal/dataset"
	"github.com/wesleyorama2/surveyload/internal/loadgen"
)

// scriptedDriver records the access codes it is asked to drive.
type scriptedDriver struct {
	mu      sync.Mutex
	visited []string
	onVisit func(n int, rec dataset.SessionRecord) error
}

func (d *scriptedDriver) Run(_ context.Context, rec dataset.SessionRecord) error {
	d.mu.Lock()
	d.visited = append(d.visited, rec.AccessCode)
	n := len(d.visited)
	d.mu.Unlock()

	if d.onVisit != nil {
		return d.onVisit(n, rec)
	}
	return nil
}

func (d *scriptedDriver) codes() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.visited...)
}

func records(codes ...string) []dataset.SessionRecord {
	out := make([]dataset.SessionRecord, len(codes))
	for i, c := range codes {
		out[i] = dataset.SessionRecord{AccessCode: c, AddressLine1: "addr " + c, Postcode: "PC " + c}
	}
	return out
}

func TestWorker_VisitsRangeInOrderAndWraps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driver := &scriptedDriver{onVisit: func(n int, _ dataset.SessionRecord) error {
		if n == 7 {
			cancel()
		}
		return nil
	}}

	w := &loadgen.Worker{
		ID:      1,
		Range:   loadgen.RecordRange{Start: 1, End: 3},
		Records: records("U0", "U1", "U2", "U3", "U4"),
		Driver:  driver,
	}

	require.NoError(t, w.Run(ctx))
	assert.Equal(t, []string{"U1", "U2", "U3", "U1", "U2", "U3", "U1"}, driver.codes())
	assert.Equal(t, int64(2), w.Passes())
	assert.Equal(t, int64(7), w.Sessions())
	assert.Equal(t, loadgen.WorkerStopped, w.State())
}

func TestWorker_MaxPasses(t *testing.T) {
	driver := &scriptedDriver{}
	w := &loadgen.Worker{
		Range:     loadgen.RecordRange{Start: 0, End: 1},
		Records:   records("A", "B"),
		Driver:    driver,
		MaxPasses: 3,
	}

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, []string{"A", "B", "A", "B", "A", "B"}, driver.codes())
	assert.Equal(t, int64(3), w.Passes())
}

func TestWorker_FailureIsFatal(t *testing.T) {
	cause := &loadgen.ValidationFailure{Step: loadgen.StepAccessCode, Reasons: []string{"boom"}}
	driver := &scriptedDriver{onVisit: func(_ int, rec dataset.SessionRecord) error {
		if rec.AccessCode == "B" {
			return cause
		}
		return nil
	}}

	w := &loadgen.Worker{
		ID:      4,
		Range:   loadgen.RecordRange{Start: 0, End: 2},
		Records: records("A", "B", "C"),
		Driver:  driver,
	}

	err := w.Run(context.Background())

	var fatal *loadgen.FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, 4, fatal.WorkerID)
	assert.Equal(t, 1, fatal.Index)
	assert.Equal(t, "B", fatal.Record.AccessCode)
	assert.Equal(t, loadgen.StepAccessCode, fatal.Step())
	assert.True(t, errors.Is(err, cause))
	// C is never attempted.
	assert.Equal(t, []string{"A", "B"}, driver.codes())
}

func TestWorker_TransportErrorAfterStopIsClean(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	driver := &scriptedDriver{onVisit: func(_ int, _ dataset.SessionRecord) error {
		cancel()
		return &loadgen.TransportFailure{Step: loadgen.StepStart, Err: context.Canceled}
	}}

	w := &loadgen.Worker{
		Range:   loadgen.RecordRange{Start: 0, End: 0},
		Records: records("A"),
		Driver:  driver,
	}
	assert.NoError(t, w.Run(ctx))
}

func TestWorker_EmptyRange(t *testing.T) {
	driver := &scriptedDriver{}

	bounded := &loadgen.Worker{
		Range:     loadgen.RecordRange{Start: 0, End: -1},
		Driver:    driver,
		MaxPasses: 2,
	}
	require.NoError(t, bounded.Run(context.Background()))
	assert.Equal(t, int64(2), bounded.Passes())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	unbounded := &loadgen.Worker{
		Range:  loadgen.RecordRange{Start: 0, End: -1},
		Driver: driver,
	}
	require.NoError(t, unbounded.Run(ctx))
	assert.Empty(t, driver.codes())
}

func TestWorker_PacingStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	driver := &scriptedDriver{}
	w := &loadgen.Worker{
		Range:   loadgen.RecordRange{Start: 0, End: 0},
		Records: records("A"),
		Driver:  driver,
		Pacing:  &loadgen.Pacing{Type: loadgen.PacingConstant, Duration: time.Hour},
	}

	start := time.Now()
	require.NoError(t, w.Run(ctx))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []string{"A"}, driver.codes())
}

func TestPacing_Next(t *testing.T) {
	var nilPacing *loadgen.Pacing
	assert.Zero(t, nilPacing.Next())

	assert.Zero(t, (&loadgen.Pacing{Type: loadgen.PacingNone, Duration: time.Second}).Next())
	assert.Equal(t, time.Second, (&loadgen.Pacing{Type: loadgen.PacingConstant, Duration: time.Second}).Next())

	random := &loadgen.Pacing{Type: loadgen.PacingRandom, Min: 2 * time.Second, Max: 10 * time.Second}
	for range 100 {
		d := random.Next()
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.Less(t, d, 10*time.Second)
	}

	fixed := &loadgen.Pacing{Type: loadgen.PacingRandom, Min: time.Second, Max: time.Second}
	assert.Equal(t, time.Second, fixed.Next())
}
