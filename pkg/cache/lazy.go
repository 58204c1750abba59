package cache

import (
	"context"
	"fmt"
	"sync"
)

// Loader computes a value on first use.
type Loader[T any] func(ctx context.Context) (T, error)

// Lazy memoizes the result of a loader.
type Lazy[T any] struct {
	name string
	load Loader[T]

	mu     sync.Mutex
	loaded bool
	value  T
}

// NewLazy creates a memoized value. name labels the cache metrics.
func NewLazy[T any](name string, load Loader[T]) *Lazy[T] {
	if load == nil {
		panic("cache: loader cannot be nil")
	}
	return &Lazy[T]{
		name: name,
		load: load,
	}
}

// Get returns the memoized value, running the loader on first use.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		CacheHits.WithLabelValues(l.name).Inc()
		return l.value, nil
	}
	CacheMisses.WithLabelValues(l.name).Inc()

	value, err := l.load(ctx)
	if err != nil {
		CacheErrors.WithLabelValues(l.name).Inc()
		var zero T
		return zero, fmt.Errorf("load %s: %w", l.name, err)
	}

	l.value = value
	l.loaded = true
	return value, nil
}

// Loaded reports whether a value is memoized.
func (l *Lazy[T]) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// Reset drops the memoized value.
func (l *Lazy[T]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	var zero T
	l.value = zero
	l.loaded = false
}
