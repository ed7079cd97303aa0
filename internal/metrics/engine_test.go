package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Record(t *testing.T) {
	e := NewEngine()

	e.Record("GET_start", 10*time.Millisecond, true)
	e.Record("GET_start", 20*time.Millisecond, true)
	e.Record("POST_Uac", 30*time.Millisecond, false)

	snap := e.Snapshot()
	assert.Equal(t, int64(3), snap.TotalExchanges)
	assert.Equal(t, int64(1), snap.FailedExchanges)
	assert.Equal(t, int64(3), snap.Latency.Count)

	require.Len(t, snap.Steps, 2)
	assert.Equal(t, "GET_start", snap.Steps[0].Name)
	assert.Equal(t, int64(2), snap.Steps[0].Latency.Count)
	assert.Equal(t, int64(0), snap.Steps[0].Failed)
	assert.Equal(t, "POST_Uac", snap.Steps[1].Name)
	assert.Equal(t, int64(1), snap.Steps[1].Failed)

	// 3 significant figures
	assert.InDelta(t, float64(10*time.Millisecond), float64(snap.Steps[0].Latency.Min), float64(50*time.Microsecond))
	assert.InDelta(t, float64(20*time.Millisecond), float64(snap.Steps[0].Latency.Max), float64(50*time.Microsecond))
}

func TestEngine_EmptySnapshot(t *testing.T) {
	snap := NewEngine().Snapshot()
	assert.Zero(t, snap.TotalExchanges)
	assert.Empty(t, snap.Steps)
	assert.Equal(t, LatencyStats{}, snap.Latency)
}

func TestEngine_ClampsOutOfRange(t *testing.T) {
	e := NewEngine()
	e.Record("tiny", 0, true)
	e.Record("huge", 2*time.Hour, true)

	snap := e.Snapshot()
	assert.Equal(t, int64(2), snap.Latency.Count)
	assert.LessOrEqual(t, snap.Latency.Max, time.Hour+time.Hour/100)
}

func TestEngine_ConcurrentRecord(t *testing.T) {
	e := NewEngine()

	const workers, perWorker = 8, 500
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			step := []string{"GET_start", "POST_Uac", "Launch"}[w%3]
			for i := 0; i < perWorker; i++ {
				e.Record(step, time.Duration(i+1)*time.Microsecond, i%10 != 0)
			}
		}(w)
	}
	wg.Wait()

	snap := e.Snapshot()
	assert.Equal(t, int64(workers*perWorker), snap.TotalExchanges)
	assert.Equal(t, int64(workers*perWorker/10), snap.FailedExchanges)

	var stepTotal int64
	for _, s := range snap.Steps {
		stepTotal += s.Latency.Count
	}
	assert.Equal(t, int64(workers*perWorker), stepTotal)
}

func TestSnapshot_StepsInFirstSeenOrder(t *testing.T) {
	e := NewEngine()
	e.Record("POST_Uac", time.Millisecond, true)
	e.Record("Launch", time.Millisecond, true)
	e.Record("GET_start", time.Millisecond, true)
	e.Record("POST_Uac", time.Millisecond, true)

	steps := e.Snapshot().Steps
	require.Len(t, steps, 3)
	assert.Equal(t, []string{"POST_Uac", "Launch", "GET_start"}, []string{steps[0].Name, steps[1].Name, steps[2].Name})
}
