package harness

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aiqdata/internal/contracts"
)

func makeUnits(ids ...string) []Unit[int] {
	units := make([]Unit[int], len(ids))
	for i, id := range ids {
		units[i] = Unit[int]{ID: id, Input: i}
	}
	return units
}

func TestRun_SortsResultsByID(t *testing.T) {
	units := makeUnits("600000.SH", "000001.SZ", "300750.SZ")

	batch := Run(context.Background(), units, func(_ context.Context, u Unit[int]) (string, error) {
		return u.ID + "-ok", nil
	}, Options{Name: "sort", MaxWorkers: 3})

	require.Len(t, batch.Results, 3)
	assert.Equal(t, "000001.SZ", batch.Results[0].ID)
	assert.Equal(t, "300750.SZ", batch.Results[1].ID)
	assert.Equal(t, "600000.SH", batch.Results[2].ID)
	assert.Equal(t, []string{"000001.SZ-ok", "300750.SZ-ok", "600000.SH-ok"}, batch.Values())
	assert.Equal(t, 3, batch.Succeeded())
	assert.Equal(t, 0, batch.Failed())
	assert.False(t, batch.AllFailed())
	assert.NotEmpty(t, batch.RunID)
}

func TestRun_ErrorsAndPanicsDoNotAbort(t *testing.T) {
	boom := errors.New("bad file")
	units := makeUnits("a", "b", "c", "d")

	batch := Run(context.Background(), units, func(_ context.Context, u Unit[int]) (int, error) {
		switch u.ID {
		case "b":
			return 0, boom
		case "c":
			panic("index out of range")
		}
		return u.Input * 10, nil
	}, Options{MaxWorkers: 2})

	assert.Equal(t, 2, batch.Succeeded())
	assert.Equal(t, 2, batch.Failed())

	failures := batch.Failures()
	require.Len(t, failures, 2)

	assert.Equal(t, "b", failures[0].ID)
	assert.True(t, errors.Is(failures[0].Err, contracts.ErrWorkerFailure))
	assert.True(t, errors.Is(failures[0].Err, boom))
	assert.False(t, IsPanic(failures[0].Err))

	assert.Equal(t, "c", failures[1].ID)
	assert.True(t, IsPanic(failures[1].Err))
	assert.Contains(t, failures[1].Err.Error(), "index out of range")

	assert.Equal(t, []int{0, 30}, batch.Values())
}

func TestRun_BoundedConcurrency(t *testing.T) {
	ids := make([]string, 20)
	for i := range ids {
		ids[i] = fmt.Sprintf("u%02d", i)
	}

	var inFlight, peak int32
	batch := Run(context.Background(), makeUnits(ids...), func(_ context.Context, _ Unit[int]) (struct{}, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return struct{}{}, nil
	}, Options{MaxWorkers: 3})

	assert.Equal(t, 20, batch.Succeeded())
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	batch := Run(ctx, makeUnits("a", "b"), func(_ context.Context, _ Unit[int]) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 1, nil
	}, Options{MaxWorkers: 2})

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.True(t, batch.AllFailed())
	for _, r := range batch.Results {
		assert.True(t, errors.Is(r.Err, context.Canceled))
	}
}

func TestRun_BudgetKeepsFinishedResults(t *testing.T) {
	units := makeUnits("a", "b", "c", "d", "e")

	batch := Run(context.Background(), units, func(ctx context.Context, u Unit[int]) (int, error) {
		if u.ID == "a" {
			return 1, nil
		}
		select {
		case <-time.After(time.Second):
			return 1, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}, Options{MaxWorkers: 1, Budget: 50 * time.Millisecond})

	require.Len(t, batch.Results, 5)
	assert.Equal(t, "a", batch.Results[0].ID)
	assert.NoError(t, batch.Results[0].Err)
	assert.Equal(t, 1, batch.Succeeded())
	for _, r := range batch.Results[1:] {
		assert.True(t, errors.Is(r.Err, context.DeadlineExceeded), "unit %s: %v", r.ID, r.Err)
	}
}

func TestRun_UnitTimeout(t *testing.T) {
	batch := Run(context.Background(), makeUnits("slow", "fast"), func(_ context.Context, u Unit[int]) (int, error) {
		if u.ID == "slow" {
			time.Sleep(300 * time.Millisecond)
		}
		return 1, nil
	}, Options{MaxWorkers: 2, UnitTimeout: 20 * time.Millisecond})

	require.Len(t, batch.Results, 2)
	assert.Equal(t, "fast", batch.Results[0].ID)
	assert.NoError(t, batch.Results[0].Err)
	assert.True(t, errors.Is(batch.Results[1].Err, context.DeadlineExceeded))
}

func TestRun_DispatchRate(t *testing.T) {
	start := time.Now()
	batch := Run(context.Background(), makeUnits("a", "b", "c"), func(_ context.Context, _ Unit[int]) (int, error) {
		return 1, nil
	}, Options{MaxWorkers: 3, DispatchRate: 20})

	assert.Equal(t, 3, batch.Succeeded())
	// burst of 1 at 20/s: the third unit starts no earlier than ~100ms
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestRun_Empty(t *testing.T) {
	batch := Run(context.Background(), nil, func(_ context.Context, _ Unit[int]) (int, error) {
		return 0, nil
	}, Options{})

	assert.Empty(t, batch.Results)
	assert.False(t, batch.AllFailed())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	Run(context.Background(), makeUnits("a", "b", "c"), func(_ context.Context, u Unit[int]) (int, error) {
		switch u.ID {
		case "b":
			return 0, errors.New("bad")
		case "c":
			panic("boom")
		}
		return 1, nil
	}, Options{Name: "features", MaxWorkers: 1, Metrics: m})

	families, err := reg.Gather()
	require.NoError(t, err)

	outcomes := map[string]float64{}
	var observed uint64
	for _, mf := range families {
		switch mf.GetName() {
		case "aiq_harness_units_total":
			for _, metric := range mf.GetMetric() {
				for _, lp := range metric.GetLabel() {
					if lp.GetName() == "outcome" {
						outcomes[lp.GetValue()] = metric.GetCounter().GetValue()
					}
				}
			}
		case "aiq_harness_unit_duration_seconds":
			for _, metric := range mf.GetMetric() {
				observed += metric.GetHistogram().GetSampleCount()
			}
		}
	}

	assert.Equal(t, map[string]float64{OutcomeSuccess: 1, OutcomeError: 1, OutcomePanic: 1}, outcomes)
	assert.Equal(t, uint64(3), observed)
}

func TestNewMetrics_NilRegistererDisables(t *testing.T) {
	m, err := NewMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, m)
	m.observe("x", OutcomeSuccess, time.Millisecond)
}
