package oakhook

import (
	"fmt"
	"syscall"

	"go.uber.org/zap"

	"github.com/k2io/oakhook/internal/log"
)

// InlineBinder hooks live code with Install. Replacements are exposed to
// native code through syscall.NewCallback, so arguments follow the Windows
// x64 calling convention and at most six are supported.
//
// SyscallN also loads the first four arguments into XMM0-3, so a float32
// argument can be passed as its bits. Replacements get the integer
// registers only; XMM0-3 of the hooked call are kept aside and put back when
// the original is called, so float arguments reach it unchanged.
type InlineBinder struct {
	Mem Memory
}

func (b InlineBinder) Hook(target uintptr, arity int, fn Func, name string) (Func, error) {
	cb, err := callback(arity, fn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	entry, slot, err := floatEntry(b.Mem, cb)
	if err != nil {
		return nil, fmt.Errorf("%s: float entry: %w", name, err)
	}
	d, err := Install(b.Mem, target, entry, name)
	if err != nil {
		return nil, err
	}
	exit, err := floatExit(b.Mem, slot, d.Trampoline)
	if err != nil {
		if uerr := d.Uninstall(); uerr != nil {
			log.L().Error("undo hook", zap.String("hook", name), zap.Error(uerr))
		}
		return nil, fmt.Errorf("%s: float exit: %w", name, err)
	}
	return b.Native(exit, arity), nil
}

func (InlineBinder) Native(addr uintptr, arity int) Func {
	return func(args ...uintptr) uintptr {
		r, _, _ := syscall.SyscallN(addr, args...)
		return r
	}
}

// NativeFloat calls addr through a thunk that moves XMM0 into EAX.
func (b InlineBinder) NativeFloat(addr uintptr, arity int) (Func, error) {
	if arity > 4 {
		return nil, fmt.Errorf("unsupported arity %d", arity)
	}
	thunk, err := FloatThunk(b.Mem, addr)
	if err != nil {
		return nil, err
	}
	return b.Native(thunk, arity), nil
}

func (b InlineBinder) Unhook(target uintptr) error {
	return Uninstall(b.Mem, target)
}

// callback creates a native entry point for fn. NewCallback needs a func
// with a fixed signature, hence one closure per arity.
func callback(arity int, fn Func) (uintptr, error) {
	switch arity {
	case 0:
		return syscall.NewCallback(func() uintptr { return fn() }), nil
	case 1:
		return syscall.NewCallback(func(a uintptr) uintptr { return fn(a) }), nil
	case 2:
		return syscall.NewCallback(func(a, b uintptr) uintptr { return fn(a, b) }), nil
	case 3:
		return syscall.NewCallback(func(a, b, c uintptr) uintptr { return fn(a, b, c) }), nil
	case 4:
		return syscall.NewCallback(func(a, b, c, d uintptr) uintptr { return fn(a, b, c, d) }), nil
	case 5:
		return syscall.NewCallback(func(a, b, c, d, e uintptr) uintptr { return fn(a, b, c, d, e) }), nil
	case 6:
		return syscall.NewCallback(func(a, b, c, d, e, f uintptr) uintptr { return fn(a, b, c, d, e, f) }), nil
	}
	return 0, fmt.Errorf("unsupported arity %d", arity)
}
