package cache

import (
	"sync"
	"time"
)

// Value caches a single value and rebuilds it through a load function
// once the refresh interval has lapsed. A failed rebuild keeps and
// returns the previously loaded value. A ttl of zero or less loads
// once and never refreshes.
type Value[T any] struct {
	mu     sync.Mutex
	load   func() (T, error)
	ttl    time.Duration
	value  T
	loaded time.Time
	primed bool
}

// NewValue creates a cache around load. Nothing is loaded until the
// first Get.
func NewValue[T any](ttl time.Duration, load func() (T, error)) *Value[T] {
	return &Value[T]{load: load, ttl: ttl}
}

// Get returns the cached value, rebuilding it first when it has never
// been loaded or has gone stale. Concurrent callers share a single
// rebuild.
func (v *Value[T]) Get() (T, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.primed && (v.ttl <= 0 || time.Since(v.loaded) < v.ttl) {
		return v.value, nil
	}

	fresh, err := v.load()
	if err != nil {
		if v.primed {
			return v.value, nil
		}
		var zero T
		return zero, err
	}

	v.value = fresh
	v.loaded = time.Now()
	v.primed = true
	return fresh, nil
}

// Invalidate drops the cached value so the next Get rebuilds it.
func (v *Value[T]) Invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()

	var zero T
	v.value = zero
	v.loaded = time.Time{}
	v.primed = false
}
