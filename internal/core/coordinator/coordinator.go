// Package coordinator deduplicates, caches and rate-budgets outbound requests
// to a shared upstream.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/namelens/coinbridge/internal/metrics"
	"github.com/namelens/coinbridge/internal/observability"
)

// Executor performs the upstream call for a request. It runs at most once per
// in-flight key and must not depend on who asked.
type Executor func() (any, error)

// Params are the request parameters that take part in the cache key.
type Params map[string]any

const (
	DefaultWindow    = time.Minute
	DefaultMaxWeight = 1200
)

type cacheEntry struct {
	value    any
	storedAt time.Time
}

type pendingRequest struct {
	done  chan struct{}
	value any
	err   error
}

// Coordinator owns one rate window, one response cache and the registry of
// in-flight requests for a pool of endpoints.
type Coordinator struct {
	name      string
	policies  PolicyTable
	window    time.Duration
	maxWeight int
	clock     func() time.Time
	sleep     func(time.Duration)

	mu          sync.Mutex
	cache       map[string]cacheEntry
	pending     map[string]*pendingRequest
	weightUsed  int
	windowStart time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithWindow sets the rate window length.
func WithWindow(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.window = d
		}
	}
}

// WithMaxWeight sets the weight budget per window.
func WithMaxWeight(w int) Option {
	return func(c *Coordinator) {
		if w > 0 {
			c.maxWeight = w
		}
	}
}

// WithMargin scales the weight budget by a ratio in (0, 1]. Apply after
// WithMaxWeight.
func WithMargin(margin float64) Option {
	return func(c *Coordinator) {
		if margin <= 0 || margin >= 1 {
			return
		}
		adjusted := int(math.Floor(float64(c.maxWeight) * margin))
		if adjusted < 1 {
			adjusted = 1
		}
		c.maxWeight = adjusted
	}
}

// WithClock injects the time source.
func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithSleep injects the function used to wait out an exhausted window.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Coordinator) { c.sleep = sleep }
}

// New creates a coordinator for a named pool.
func New(name string, policies PolicyTable, opts ...Option) *Coordinator {
	c := &Coordinator{
		name:      name,
		policies:  policies,
		window:    DefaultWindow,
		maxWeight: DefaultMaxWeight,
		cache:     make(map[string]cacheEntry),
		pending:   make(map[string]*pendingRequest),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.windowStart = c.now()
	return c
}

// Name returns the pool name.
func (c *Coordinator) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// Policies returns the policy table.
func (c *Coordinator) Policies() PolicyTable {
	if c == nil {
		return PolicyTable{}
	}
	return c.policies
}

// Key builds the request key: category, endpoint and the params encoded as
// JSON with sorted keys.
func Key(category, endpoint string, params Params) string {
	canonical := "{}"
	if len(params) > 0 {
		// encoding/json sorts map keys, which makes the encoding canonical.
		if data, err := json.Marshal(map[string]any(params)); err == nil {
			canonical = string(data)
		} else {
			canonical = fmt.Sprintf("%v", map[string]any(params))
		}
	}
	return category + ":" + endpoint + ":" + canonical
}

// FetchWithDedup returns a fresh cached value, joins an identical in-flight
// request, or reserves weight and runs exec. Errors are never cached. Waiters
// on a failed request receive an error that wraps the original. An exec that
// panics fails the request with a *PanicError.
func (c *Coordinator) FetchWithDedup(category, endpoint string, params Params, exec Executor) (any, error) {
	key := Key(category, endpoint, params)
	policy := c.policies.Lookup(category, endpoint)

	c.mu.Lock()
	now := c.now()

	if entry, ok := c.cache[key]; ok && now.Sub(entry.storedAt) < policy.TTL {
		c.mu.Unlock()
		metrics.RecordCoordinatorEvent(metrics.CoordinatorCacheHitsTotal, c.name, category)
		return entry.value, nil
	}

	if req, ok := c.pending[key]; ok {
		c.mu.Unlock()
		metrics.RecordCoordinatorEvent(metrics.CoordinatorDedupSharedTotal, c.name, category)
		<-req.done
		if req.err != nil {
			return nil, &sharedError{err: req.err}
		}
		return req.value, nil
	}

	req := &pendingRequest{done: make(chan struct{})}
	c.pending[key] = req
	c.acquireWeight(now, policy.Weight, category)
	c.mu.Unlock()

	metrics.RecordCoordinatorEvent(metrics.CoordinatorCacheMissesTotal, c.name, category)
	value, err := c.run(key, exec)

	c.mu.Lock()
	if err != nil {
		req.err = err
	} else {
		if value != nil {
			c.cache[key] = cacheEntry{value: value, storedAt: c.now()}
		}
		req.value = value
	}
	close(req.done)
	delete(c.pending, key)
	c.mu.Unlock()

	if err != nil {
		metrics.RecordCoordinatorEvent(metrics.CoordinatorExecutorErrorsTotal, c.name, category)
		return nil, err
	}
	return value, nil
}

// FetchContext is FetchWithDedup bounded by ctx. When ctx ends first the
// caller gets ctx.Err(); the execution itself keeps running and still fills
// the cache.
func (c *Coordinator) FetchContext(ctx context.Context, category, endpoint string, params Params, exec Executor) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type outcome struct {
		value any
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := c.FetchWithDedup(category, endpoint, params, exec)
		ch <- outcome{value: v, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-ch:
		return out.value, out.err
	}
}

// Fetch is a typed wrapper over FetchContext.
func Fetch[T any](ctx context.Context, c *Coordinator, category, endpoint string, params Params, exec func() (T, error)) (T, error) {
	var zero T
	value, err := c.FetchContext(ctx, category, endpoint, params, func() (any, error) {
		return exec()
	})
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("coordinator: unexpected cached type %T for %s %s", value, category, endpoint)
	}
	return typed, nil
}

// acquireWeight reserves w units in the current window. Called with c.mu held;
// may release and re-acquire it while sleeping.
func (c *Coordinator) acquireWeight(now time.Time, w int, category string) {
	elapsed := now.Sub(c.windowStart)
	if elapsed >= c.window {
		c.weightUsed = 0
		c.windowStart = now
	} else if c.weightUsed+w > c.maxWeight {
		wait := c.window - elapsed
		metrics.RecordCoordinatorEvent(metrics.CoordinatorRateWaitsTotal, c.name, category)
		if observability.ServerLogger != nil {
			observability.ServerLogger.Warn("Rate budget exhausted, waiting for window reset",
				zap.String("pool", c.name),
				zap.String("category", category),
				zap.Int("weight_used", c.weightUsed),
				zap.Int("max_weight", c.maxWeight),
				zap.Duration("wait", wait))
		}

		c.mu.Unlock()
		c.doSleep(wait)
		c.mu.Lock()

		c.weightUsed = 0
		c.windowStart = c.now()
	}
	c.weightUsed += w
}

// Stats is a point-in-time view of a coordinator.
type Stats struct {
	Name         string    `json:"name"`
	WeightUsed   int       `json:"weight_used"`
	MaxWeight    int       `json:"max_weight"`
	WindowStart  time.Time `json:"window_start"`
	Window       string    `json:"window"`
	CacheEntries int       `json:"cache_entries"`
	Pending      int       `json:"pending"`
}

// Stats snapshots the rate window and registry sizes.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Name:         c.name,
		WeightUsed:   c.weightUsed,
		MaxWeight:    c.maxWeight,
		WindowStart:  c.windowStart,
		Window:       c.window.String(),
		CacheEntries: len(c.cache),
		Pending:      len(c.pending),
	}
}

func (c *Coordinator) now() time.Time {
	if c != nil && c.clock != nil {
		return c.clock()
	}
	return time.Now().UTC()
}

func (c *Coordinator) doSleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if c.sleep != nil {
		c.sleep(d)
		return
	}
	time.Sleep(d)
}

// run calls exec and turns a panic into a *PanicError, so the pending entry
// for key is always released.
func (c *Coordinator) run(key string, exec Executor) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if observability.ServerLogger != nil {
				observability.ServerLogger.Error("Executor panicked",
					zap.String("pool", c.name),
					zap.String("key", key),
					zap.Any("panic", r),
					zap.Stack("stack"))
			}
			value, err = nil, &PanicError{Key: key, Value: r}
		}
	}()
	return exec()
}

// PanicError reports an executor that panicked instead of returning.
type PanicError struct {
	Key   string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("executor for %s panicked: %v", e.Key, e.Value)
}

// sharedError is handed to callers that joined an in-flight request which
// failed. It carries the same message and unwraps to the original error.
type sharedError struct {
	err error
}

func (e *sharedError) Error() string { return e.err.Error() }

func (e *sharedError) Unwrap() error { return e.err }
