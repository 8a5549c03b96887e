package bridge

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/k2io/oakhook/internal/log"
)

// Callable is host code reachable from a hook.
type Callable interface {
	Call(ctx context.Context, args ...Value) (Value, error)
}

// Func adapts a Go func to Callable.
type Func func(ctx context.Context, args ...Value) (Value, error)

func (f Func) Call(ctx context.Context, args ...Value) (Value, error) {
	return f(ctx, args...)
}

// HostError is a failure raised by host code during a hook.
type HostError struct {
	Site  string
	Args  []Value
	Cause error
}

func (e *HostError) Error() string {
	args := make([]string, len(e.Args))
	for i := range e.Args {
		args[i] = e.Args[i].String()
	}
	return fmt.Sprintf("%s(%s): %v", e.Site, strings.Join(args, ", "), e.Cause)
}

func (e *HostError) Unwrap() error { return e.Cause }

// Call runs fn under the host context. An error or panic from fn is logged
// with the call site and returned as a *HostError; it never unwinds into the
// native caller, which should fall back to its default behaviour.
func Call(ctx context.Context, h *Host, site string, fn Callable, args ...Value) (v Value, err error) {
	ctx, release := h.Acquire(ctx)
	defer release()
	defer func() {
		if r := recover(); r != nil {
			cause, ok := r.(error)
			if !ok {
				cause = fmt.Errorf("panic: %v", r)
			}
			v, err = Value{}, fail(site, args, cause, zap.StackSkip("stack", 2))
		}
	}()
	v, err = fn.Call(ctx, args...)
	if err != nil {
		return Value{}, fail(site, args, err)
	}
	return v, nil
}

func fail(site string, args []Value, cause error, fields ...zap.Field) error {
	herr := &HostError{Site: site, Args: args, Cause: cause}
	log.L().Error("host callback failed",
		append([]zap.Field{zap.String("site", site), zap.Error(herr)}, fields...)...)
	return herr
}

// Restore applies a temporary native mutation around body. mutate returns
// the undo, which runs however body exits, panics included.
func Restore(mutate func() (undo func()), body func() error) error {
	undo := mutate()
	defer undo()
	return body()
}
