package coordinator

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/coinbridge/internal/metrics"
	"github.com/namelens/coinbridge/internal/observability"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fakeClock) Sleep(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
}

func (f *fakeClock) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

func setupTelemetry(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })

	return collector
}

func testPolicies() PolicyTable {
	return NewPolicyTable(
		Policy{"spot", "/ticker/price", time.Second, 1},
		Policy{"spot", "/klines", 5 * time.Second, 1},
	)
}

func newTestCoordinator(clock *fakeClock, opts ...Option) *Coordinator {
	base := []Option{WithClock(clock.Now), WithSleep(clock.Sleep)}
	return New("test", testPolicies(), append(base, opts...)...)
}

func counting(calls *int32, value any) Executor {
	return func() (any, error) {
		atomic.AddInt32(calls, 1)
		return value, nil
	}
}

func TestKeyIsOrderIndependent(t *testing.T) {
	a := Params{"symbol": "BTCUSDT", "interval": "1h", "limit": 100}
	b := Params{"limit": 100, "interval": "1h", "symbol": "BTCUSDT"}
	require.Equal(t, Key("spot", "/klines", a), Key("spot", "/klines", b))
	require.Equal(t, `spot:/klines:{"interval":"1h","limit":100,"symbol":"BTCUSDT"}`, Key("spot", "/klines", a))
}

func TestKeyNilParamsMatchesEmpty(t *testing.T) {
	require.Equal(t, "spot:/exchangeInfo:{}", Key("spot", "/exchangeInfo", nil))
	require.Equal(t, Key("spot", "/exchangeInfo", Params{}), Key("spot", "/exchangeInfo", nil))
}

func TestConcurrentIdenticalCallsExecuteOnce(t *testing.T) {
	clock := newFakeClock()
	c := newTestCoordinator(clock)

	var calls int32
	release := make(chan struct{})
	exec := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "42000.00", nil
	}

	const n = 10
	results := make([]any, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.FetchWithDedup("spot", "/ticker/price", Params{"symbol": "BTCUSDT"}, exec)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		require.Equal(t, "42000.00", v)
	}
	require.Equal(t, 0, c.Stats().Pending)
}

func TestCacheFreshness(t *testing.T) {
	clock := newFakeClock()
	c := newTestCoordinator(clock)

	var calls int32
	params := Params{"symbol": "ETHUSDT"}

	_, err := c.FetchWithDedup("spot", "/ticker/price", params, counting(&calls, 1.0))
	require.NoError(t, err)

	clock.Advance(500 * time.Millisecond)
	_, err = c.FetchWithDedup("spot", "/ticker/price", params, counting(&calls, 2.0))
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))

	clock.Advance(500 * time.Millisecond)
	v, err := c.FetchWithDedup("spot", "/ticker/price", params, counting(&calls, 3.0))
	require.NoError(t, err)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.Equal(t, 3.0, v)
}

func TestKeySensitivity(t *testing.T) {
	clock := newFakeClock()
	c := newTestCoordinator(clock)

	var calls int32
	_, _ = c.FetchWithDedup("spot", "/ticker/price", Params{"symbol": "BTCUSDT"}, counting(&calls, 1))
	_, _ = c.FetchWithDedup("spot", "/ticker/price", Params{"symbol": "ETHUSDT"}, counting(&calls, 2))
	_, _ = c.FetchWithDedup("futures", "/ticker/price", Params{"symbol": "BTCUSDT"}, counting(&calls, 3))
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))

	_, _ = c.FetchWithDedup("spot", "/klines", Params{"symbol": "BTCUSDT", "interval": "1h"}, counting(&calls, 4))
	_, _ = c.FetchWithDedup("spot", "/klines", Params{"interval": "1h", "symbol": "BTCUSDT"}, counting(&calls, 5))
	require.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestRateBudgetSleepsForRemainingWindow(t *testing.T) {
	clock := newFakeClock()
	c := newTestCoordinator(clock, WithMaxWeight(3), WithWindow(time.Minute))

	var calls int32
	symbols := []string{"A", "B", "C", "D"}
	for _, s := range symbols {
		_, err := c.FetchWithDedup("spot", "/ticker/price", Params{"symbol": s}, counting(&calls, s))
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	require.Equal(t, int32(4), atomic.LoadInt32(&calls))
	require.Equal(t, []time.Duration{57 * time.Second}, clock.Sleeps())
	require.Equal(t, 1, c.Stats().WeightUsed)
}

func TestWindowResetsAfterElapsed(t *testing.T) {
	clock := newFakeClock()
	c := newTestCoordinator(clock, WithMaxWeight(1))

	var calls int32
	_, _ = c.FetchWithDedup("spot", "/ticker/price", Params{"symbol": "A"}, counting(&calls, 1))
	clock.Advance(time.Minute)
	_, _ = c.FetchWithDedup("spot", "/ticker/price", Params{"symbol": "B"}, counting(&calls, 2))

	require.Empty(t, clock.Sleeps())
	require.Equal(t, 1, c.Stats().WeightUsed)
}

func TestErrorsAreNotCached(t *testing.T) {
	clock := newFakeClock()
	c := newTestCoordinator(clock)

	boom := errors.New("upstream exploded")
	var calls int32
	failing := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	}

	_, err := c.FetchWithDedup("spot", "/ticker/price", Params{"symbol": "X"}, failing)
	require.ErrorIs(t, err, boom)

	v, err := c.FetchWithDedup("spot", "/ticker/price", Params{"symbol": "X"}, counting(&calls, "ok"))
	require.NoError(t, err)
	require.Equal(t, "ok", v)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.Equal(t, 1, c.Stats().CacheEntries)
}

func TestNilValueIsNotCached(t *testing.T) {
	clock := newFakeClock()
	c := newTestCoordinator(clock)

	var calls int32
	_, err := c.FetchWithDedup("spot", "/ticker/price", nil, counting(&calls, nil))
	require.NoError(t, err)
	_, err = c.FetchWithDedup("spot", "/ticker/price", nil, counting(&calls, nil))
	require.NoError(t, err)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFailureFansOutToWaiters(t *testing.T) {
	collector := setupTelemetry(t)
	clock := newFakeClock()
	c := newTestCoordinator(clock)

	boom := errors.New("Invalid symbol.")
	var calls int32
	release := make(chan struct{})
	failing := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return nil, boom
	}

	const n = 5
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.FetchWithDedup("spot", "/ticker/price", Params{"symbol": "NOPE"}, failing)
		}(i)
	}

	require.Eventually(t, func() bool {
		return collector.CountMetricsByName(metrics.CoordinatorDedupSharedTotal) == n-1
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
	shared := 0
	for _, err := range errs {
		require.Error(t, err)
		require.Equal(t, boom.Error(), err.Error())
		require.ErrorIs(t, err, boom)
		var se *sharedError
		if errors.As(err, &se) {
			shared++
		}
	}
	require.Equal(t, n-1, shared)
	require.Equal(t, 1, collector.CountMetricsByName(metrics.CoordinatorExecutorErrorsTotal))
}

func TestPanickingExecutorReleasesKey(t *testing.T) {
	collector := setupTelemetry(t)
	clock := newFakeClock()
	c := newTestCoordinator(clock)
	params := Params{"symbol": "BTCUSDT"}

	release := make(chan struct{})
	panicking := func() (any, error) {
		<-release
		panic("decoder exploded")
	}

	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.FetchWithDedup("spot", "/ticker/price", params, panicking)
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return c.Stats().Pending == 1 }, time.Second, time.Millisecond)

	waiterErr := make(chan error, 1)
	go func() {
		_, err := c.FetchWithDedup("spot", "/ticker/price", params, counting(new(int32), "unused"))
		waiterErr <- err
	}()
	require.Eventually(t, func() bool {
		return collector.CountMetricsByName(metrics.CoordinatorDedupSharedTotal) == 1
	}, time.Second, time.Millisecond)
	close(release)

	var pe *PanicError
	select {
	case err := <-leaderErr:
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "decoder exploded", pe.Value)
	case <-time.After(time.Second):
		t.Fatal("leader did not return after executor panic")
	}
	select {
	case err := <-waiterErr:
		require.ErrorAs(t, err, &pe)
	case <-time.After(time.Second):
		t.Fatal("waiter did not return after executor panic")
	}
	require.Equal(t, 0, c.Stats().Pending)

	// The key is free again and the failure was not cached.
	done := make(chan any, 1)
	go func() {
		v, err := c.FetchWithDedup("spot", "/ticker/price", params, counting(new(int32), "42000.00"))
		assert.NoError(t, err)
		done <- v
	}()
	select {
	case v := <-done:
		assert.Equal(t, "42000.00", v)
	case <-time.After(time.Second):
		t.Fatal("second fetch blocked on a released key")
	}
}

func TestFetchContextSurvivesExecutorPanic(t *testing.T) {
	c := newTestCoordinator(newFakeClock())

	_, err := c.FetchContext(context.Background(), "spot", "/klines", nil, func() (any, error) {
		var m map[string]int
		m["boom"]++
		return nil, nil
	})
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, err.Error(), "spot:/klines:{}")
	assert.Equal(t, 0, c.Stats().Pending)
}

func TestWaitersParkWithoutPolling(t *testing.T) {
	collector := setupTelemetry(t)
	clock := newFakeClock()
	var reads int32
	c := New("test", testPolicies(),
		WithClock(func() time.Time {
			atomic.AddInt32(&reads, 1)
			return clock.Now()
		}),
		WithSleep(clock.Sleep),
	)

	var calls int32
	release := make(chan struct{})
	exec := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "42000.00", nil
	}

	const n = 8
	results := make([]any, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.FetchWithDedup("spot", "/ticker/price", Params{"symbol": "BTCUSDT"}, exec)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	require.Eventually(t, func() bool {
		return collector.CountMetricsByName(metrics.CoordinatorDedupSharedTotal) == n-1
	}, time.Second, time.Millisecond)

	readsParked := atomic.LoadInt32(&reads)
	goroutinesParked := runtime.NumGoroutine()
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, readsParked, atomic.LoadInt32(&reads), "parked waiters read the clock")
	assert.LessOrEqual(t, runtime.NumGoroutine(), goroutinesParked)

	close(release)
	wg.Wait()
	for _, v := range results {
		require.Equal(t, "42000.00", v)
	}
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestScenarioBudgetOfTwo(t *testing.T) {
	clock := newFakeClock()
	c := New("scenario",
		NewPolicyTable(Policy{"spot", "/ticker/price", 5 * time.Second, 1}),
		WithClock(clock.Now), WithSleep(clock.Sleep),
		WithMaxWeight(2), WithWindow(time.Minute),
	)

	var calls int32
	// A and B share a key one second apart.
	_, err := c.FetchWithDedup("spot", "/ticker/price", Params{"symbol": "BTCUSDT"}, counting(&calls, "a"))
	require.NoError(t, err)
	clock.Advance(time.Second)
	v, err := c.FetchWithDedup("spot", "/ticker/price", Params{"symbol": "BTCUSDT"}, counting(&calls, "b"))
	require.NoError(t, err)
	require.Equal(t, "a", v)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// C uses the remaining budget.
	_, err = c.FetchWithDedup("spot", "/ticker/price", Params{"symbol": "ETHUSDT"}, counting(&calls, "c"))
	require.NoError(t, err)
	require.Equal(t, 2, c.Stats().WeightUsed)

	// D waits out the window.
	v, err = c.FetchWithDedup("spot", "/ticker/price", Params{"symbol": "BNBUSDT"}, counting(&calls, "d"))
	require.NoError(t, err)
	require.Equal(t, "d", v)
	require.Equal(t, []time.Duration{59 * time.Second}, clock.Sleeps())
	require.Equal(t, 1, c.Stats().WeightUsed)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchContextReturnsEarlyButStillCaches(t *testing.T) {
	clock := newFakeClock()
	c := newTestCoordinator(clock)

	var calls int32
	release := make(chan struct{})
	slow := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "late", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.FetchContext(ctx, "spot", "/klines", Params{"symbol": "BTCUSDT"}, slow)
		done <- err
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(release)
	require.Eventually(t, func() bool { return c.Stats().CacheEntries == 1 }, time.Second, time.Millisecond)

	v, err := c.FetchContext(context.Background(), "spot", "/klines", Params{"symbol": "BTCUSDT"}, counting(&calls, "fresh"))
	require.NoError(t, err)
	require.Equal(t, "late", v)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchContextCancelledBeforeStart(t *testing.T) {
	c := newTestCoordinator(newFakeClock())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	_, err := c.FetchContext(ctx, "spot", "/klines", nil, counting(&calls, 1))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestTypedFetch(t *testing.T) {
	c := newTestCoordinator(newFakeClock())

	prices, err := Fetch(context.Background(), c, "spot", "/ticker/price", nil, func() ([]float64, error) {
		return []float64{1, 2}, nil
	})
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2}, prices)

	_, err = Fetch(context.Background(), c, "spot", "/ticker/price", nil, func() (string, error) {
		return "unused", nil
	})
	require.Error(t, err)
}

func TestMarginShrinksBudget(t *testing.T) {
	c := New("m", PolicyTable{}, WithMaxWeight(1200), WithMargin(0.5))
	require.Equal(t, 600, c.Stats().MaxWeight)

	c = New("m", PolicyTable{}, WithMaxWeight(1), WithMargin(0.1))
	require.Equal(t, 1, c.Stats().MaxWeight)
}

func TestCacheHitMetric(t *testing.T) {
	collector := setupTelemetry(t)
	c := newTestCoordinator(newFakeClock())

	var calls int32
	_, _ = c.FetchWithDedup("spot", "/ticker/price", nil, counting(&calls, 1))
	_, _ = c.FetchWithDedup("spot", "/ticker/price", nil, counting(&calls, 1))

	require.Equal(t, 1, collector.CountMetricsByName(metrics.CoordinatorCacheMissesTotal))
	require.Equal(t, 1, collector.CountMetricsByName(metrics.CoordinatorCacheHitsTotal))
}
