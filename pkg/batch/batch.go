package batch

import (
	"errors"
	"sync"
)

// Result is the settled outcome of one item of a batch.
type Result[T any] struct {
	ID   string
	Item T
	Err  error
}

// OK reports whether the item succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Results is an ordered list of per-item outcomes.
type Results[T any] []Result[T]

// Succeeded returns the items that completed without error.
func (rs Results[T]) Succeeded() []T {
	items := make([]T, 0, len(rs))
	for _, r := range rs {
		if r.OK() {
			items = append(items, r.Item)
		}
	}
	return items
}

// Failed returns the outcomes that carry an error.
func (rs Results[T]) Failed() Results[T] {
	failed := make(Results[T], 0)
	for _, r := range rs {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}

// AllOK reports whether every item succeeded. An empty batch is OK.
func (rs Results[T]) AllOK() bool {
	for _, r := range rs {
		if !r.OK() {
			return false
		}
	}
	return true
}

// Err joins every item error, or returns nil.
func (rs Results[T]) Err() error {
	var errs []error
	for _, r := range rs {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}

// Collector gathers results from concurrent workers while keeping slot order.
type Collector[T any] struct {
	mu      sync.Mutex
	results Results[T]
}

// NewCollector creates a collector with size slots.
func NewCollector[T any](size int) *Collector[T] {
	return &Collector[T]{results: make(Results[T], size)}
}

// Set stores the outcome for slot i.
func (c *Collector[T]) Set(i int, result Result[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[i] = result
}

// Results returns a copy of the collected outcomes.
func (c *Collector[T]) Results() Results[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(Results[T], len(c.results))
	copy(out, c.results)
	return out
}
