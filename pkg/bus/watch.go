package bus

import (
	"sync"
	"sync/atomic"
)

// Watch holds the latest published value of a signal.
// Publish never blocks; readers observe the most recent value only.
type Watch[T any] struct {
	value   atomic.Pointer[T]
	version atomic.Uint64

	lock    sync.Mutex
	changed chan struct{}
}

// NewWatch creates a Watch holding initial.
func NewWatch[T any](initial T) *Watch[T] {
	w := &Watch[T]{}
	w.value.Store(&initial)
	return w
}

// Publish replaces the value and wakes up waiters.
func (w *Watch[T]) Publish(v T) {
	w.value.Store(&v)
	w.version.Add(1)
	w.lock.Lock()
	if w.changed != nil {
		close(w.changed)
		w.changed = nil
	}
	w.lock.Unlock()
}

// Load returns the latest value and its version.
func (w *Watch[T]) Load() (T, uint64) {
	ver := w.version.Load()
	if p := w.value.Load(); p != nil {
		return *p, ver
	}
	var zero T
	return zero, ver
}

// Get returns the latest value.
func (w *Watch[T]) Get() T {
	v, _ := w.Load()
	return v
}

// Changed returns a channel closed at the next Publish.
func (w *Watch[T]) Changed() <-chan struct{} {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.changed == nil {
		w.changed = make(chan struct{})
	}
	return w.changed
}
