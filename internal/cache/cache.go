// Package cache is the C4 Cache: a write-once, in-memory record of which
// orders have already been seen and/or filled, deduplicated across
// concurrent monitor/strategy goroutines with singleflight.Group from
// golang.org/x/sync.
package cache

import (
	"sync"

	"golang.org/x/sync/singleflight"

	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

// Mirror is the write-only side channel a Cache reports finished fills to.
// *db.SnapshotRecorder satisfies this; it is never consulted for reads.
type Mirror interface {
	RecordFill(orderID string, order ftypes.Order, result ftypes.ExecutionResult) error
}

// entry is the cache's authoritative record for one order.
type entry struct {
	order       ftypes.Order
	filled      bool
	result      ftypes.ExecutionResult
	gasEstimate *ftypes.GasEstimate
	swapPlan    *ftypes.SwapPlan
}

// Cache tracks orders by ID. Reads never block on writes in flight for a
// different ID; Resolve deduplicates concurrent callers working the same
// ID down to a single execution.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	group   singleflight.Group
	mirror  Mirror
}

// New creates a Cache. mirror may be nil, in which case fills are not
// mirrored anywhere outside the process.
func New(mirror Mirror) *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		mirror:  mirror,
	}
}

// Seen reports whether orderID has ever been recorded, regardless of fill
// outcome — the monitor uses this to skip orders it already emitted.
func (c *Cache) Seen(orderID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[orderID]
	return ok
}

// Filled reports whether orderID was already successfully filled, letting
// callers short-circuit before re-evaluating an order.
func (c *Cache) Filled(orderID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[orderID]
	return ok && e.filled
}

// Record registers an order as seen, without marking it filled. Safe to
// call multiple times for the same ID; the first call wins.
func (c *Cache) Record(orderID string, order ftypes.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[orderID]; ok {
		return
	}
	c.entries[orderID] = &entry{order: order}
}

// Resolve runs fn at most once per orderID concurrently in flight, storing
// and mirroring its result. Concurrent callers for the same orderID block
// on the first caller's fn and all receive its result — this is what
// prevents two strategy goroutines racing the same order into two fills.
func (c *Cache) Resolve(orderID string, order ftypes.Order, fn func() (ftypes.ExecutionResult, error)) (ftypes.ExecutionResult, error) {
	if c.Filled(orderID) {
		c.mu.RLock()
		result := c.entries[orderID].result
		c.mu.RUnlock()
		return result, nil
	}

	v, err, _ := c.group.Do(orderID, func() (interface{}, error) {
		result, fnErr := fn()

		c.mu.Lock()
		e := c.entries[orderID]
		if e == nil {
			e = &entry{}
		}
		e.order = order
		e.filled = fnErr == nil && result.Success
		e.result = result
		c.entries[orderID] = e
		c.mu.Unlock()

		if c.mirror != nil {
			_ = c.mirror.RecordFill(orderID, order, result)
		}

		return result, fnErr
	})

	if v == nil {
		return ftypes.ExecutionResult{}, err
	}
	return v.(ftypes.ExecutionResult), err
}

// GasEstimate returns the memoized gas estimate for orderID, if one was
// recorded by SetGasEstimate.
func (c *Cache) GasEstimate(orderID string) (ftypes.GasEstimate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[orderID]
	if !ok || e.gasEstimate == nil {
		return ftypes.GasEstimate{}, false
	}
	return *e.gasEstimate, true
}

// SetGasEstimate memoizes a strategy's gas estimate for orderID, so that
// CalculateProfitability and a later ExecuteOrder for the same order reuse
// one estimate instead of re-quoting it.
func (c *Cache) SetGasEstimate(orderID string, order ftypes.Order, est ftypes.GasEstimate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[orderID]
	if e == nil {
		e = &entry{order: order}
		c.entries[orderID] = e
	}
	e.gasEstimate = &est
}

// SwapPlan returns the memoized swap plan for orderID, if one was recorded
// by SetSwapPlan.
func (c *Cache) SwapPlan(orderID string) (ftypes.SwapPlan, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[orderID]
	if !ok || e.swapPlan == nil {
		return ftypes.SwapPlan{}, false
	}
	return *e.swapPlan, true
}

// SetSwapPlan memoizes a stable-swap filler's shortfall plan for orderID,
// replacing the unsynchronized per-filler map this used to require.
func (c *Cache) SetSwapPlan(orderID string, order ftypes.Order, plan ftypes.SwapPlan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[orderID]
	if e == nil {
		e = &entry{order: order}
		c.entries[orderID] = e
	}
	e.swapPlan = &plan
}

// Len returns the number of orders currently tracked, primarily for tests
// and metrics.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
