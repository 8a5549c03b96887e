package bridge

import (
	"context"
	"sync"
	"sync/atomic"
)

// Host is the scripting host's single exclusivity context. It must be held
// for every call into host code.
//
// Holding is tracked in a context.Context rather than per goroutine: a
// context returned by Acquire re-enters without blocking, so host code
// that triggers a hooked native call which calls back into the host does
// not deadlock, as long as the context is passed along. A context kept
// past its release no longer counts as holding.
type Host struct {
	mu       sync.Mutex
	cur      atomic.Pointer[hold]
	acquired atomic.Int64
}

type hold struct{ _ byte }

type heldKey struct{ h *Host }

// Acquire takes the host context unless ctx already holds it. The returned
// release func is safe to call more than once.
func (h *Host) Acquire(ctx context.Context) (context.Context, func()) {
	if h.Held(ctx) {
		return ctx, func() {}
	}
	h.mu.Lock()
	h.acquired.Add(1)
	tok := new(hold)
	h.cur.Store(tok)
	var once sync.Once
	return context.WithValue(ctx, heldKey{h}, tok), func() {
		once.Do(func() {
			h.cur.Store(nil)
			h.mu.Unlock()
		})
	}
}

// Held reports whether ctx holds h.
func (h *Host) Held(ctx context.Context) bool {
	tok, _ := ctx.Value(heldKey{h}).(*hold)
	return tok != nil && h.cur.Load() == tok
}

// Acquisitions counts the times the host context was actually taken.
func (h *Host) Acquisitions() int64 {
	return h.acquired.Load()
}
