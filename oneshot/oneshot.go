// Package oneshot implements arm-then-consume-once injection into the next
// call of a hooked routine.
package oneshot

import "sync"

// Injector holds one armed payload. Take disarms before returning, so the
// hook consumes the payload before running any callback that might trigger
// the same native action again. Arming twice replaces the payload.
type Injector[T any] struct {
	mu      sync.Mutex
	armed   bool
	payload T
}

// Arm sets the payload for the next matching call.
func (i *Injector[T]) Arm(payload T) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.armed = true
	i.payload = payload
}

// Take consumes the payload, if armed.
func (i *Injector[T]) Take() (T, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	p, ok := i.payload, i.armed
	var zero T
	i.armed, i.payload = false, zero
	return p, ok
}

// Peek returns the payload without consuming it, for hook points that
// fire before the consuming one.
func (i *Injector[T]) Peek() (T, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.payload, i.armed
}

func (i *Injector[T]) Armed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.armed
}

func (i *Injector[T]) Reset() {
	i.Take()
}
