package oakhook

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/k2io/oakhook/internal/log"
)

// Func is a native routine seen from Go: integer and pointer arguments in,
// one integer result out. Floating point arguments are not representable.
type Func func(args ...uintptr) uintptr

// Binder attaches Go replacements to native routines.
type Binder interface {
	// Hook routes calls of the routine at target to fn and returns a Func
	// that runs the original routine.
	Hook(target uintptr, arity int, fn Func, name string) (Func, error)
	// Native returns a Func calling the routine at addr.
	Native(addr uintptr, arity int) Func
	// NativeFloat is Native for a routine returning a float32, whose bits
	// come back as the result.
	NativeFloat(addr uintptr, arity int) (Func, error)
	// Unhook undoes Hook for target.
	Unhook(target uintptr) error
}

// CallTable is a Binder for a simulated engine. Routines are Go funcs
// defined by address, and the engine side calls them through Call, so a
// hook replaces the table entry instead of patching code.
type CallTable struct {
	mu     sync.Mutex
	funcs  map[uintptr]Func
	hooked map[uintptr]hooked
}

type hooked struct {
	name string
	orig Func
}

func NewCallTable() *CallTable {
	return &CallTable{
		funcs:  make(map[uintptr]Func),
		hooked: make(map[uintptr]hooked),
	}
}

// Define places fn at addr, replacing whatever was there.
func (t *CallTable) Define(addr uintptr, fn Func) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.funcs[addr] = fn
}

func (t *CallTable) lookup(addr uintptr) Func {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.funcs[addr]
}

// Call runs the routine currently at addr. Calling an undefined address
// panics, as jumping to it would crash.
func (t *CallTable) Call(addr uintptr, args ...uintptr) uintptr {
	fn := t.lookup(addr)
	if fn == nil {
		panic(fmt.Sprintf("call of 0x%x: %v", addr, ErrNoRoutine))
	}
	return fn(args...)
}

func (t *CallTable) Hook(target uintptr, arity int, fn Func, name string) (Func, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.hooked[target]; ok {
		return nil, fmt.Errorf("%s at 0x%x (held by %s): %w", name, target, prev.name, ErrDoubleHook)
	}
	orig := t.funcs[target]
	if orig == nil {
		return nil, fmt.Errorf("%s at 0x%x: %w", name, target, ErrNoRoutine)
	}
	t.funcs[target] = fn
	t.hooked[target] = hooked{name: name, orig: orig}
	log.L().Info("hooked call table entry", zap.String("hook", name), zap.Int("arity", arity))
	return orig, nil
}

// Unhook puts back the routine replaced by Hook.
func (t *CallTable) Unhook(target uintptr) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.hooked[target]
	if !ok {
		return fmt.Errorf("0x%x: %w", target, ErrHookNotFound)
	}
	t.funcs[target] = h.orig
	delete(t.hooked, target)
	return nil
}

func (t *CallTable) Native(addr uintptr, arity int) Func {
	return func(args ...uintptr) uintptr {
		return t.Call(addr, args...)
	}
}

// NativeFloat is Native: simulated routines return float bits directly.
func (t *CallTable) NativeFloat(addr uintptr, arity int) (Func, error) {
	return t.Native(addr, arity), nil
}
