// Package oakhook installs inline detours into x86-64 code.
//
// A detour overwrites the entry of a target routine with a jump to a
// replacement and builds a trampoline holding the overwritten instructions
// followed by a jump back, so the replacement can still run the original.
// Code is read and written through a Memory, which is either the live
// process or a simulated buffer.
package oakhook

import (
	"errors"
	"sync"
)

// Detour is an installed hook. It lives until Uninstall, which in normal
// operation only happens when the whole module is torn down.
type Detour struct {
	Name        string
	Target      uintptr
	Replacement uintptr
	// Trampoline runs the original routine
	Trampoline uintptr

	mem Memory
	// the overwritten instructions
	saved []byte
}

type hookKey struct {
	mem    Memory
	target uintptr
}

var (
	// hooks applied with memory and target address as keys
	hooks = make(map[hookKey]*Detour)
	// protect the hooks map
	lock sync.Mutex
)

var (
	// ErrDoubleHook means already hooked
	ErrDoubleHook = errors.New("double hook")
	// ErrHookNotFound means the hook not found
	ErrHookNotFound = errors.New("hook not found")
	// ErrRelativeAddr means a relative operand in the prologue cannot be moved
	ErrRelativeAddr = errors.New("relative address in instruction")
	// ErrShortFunction means the routine ends before the patch does
	ErrShortFunction = errors.New("function too short to patch")
	// ErrNoRoutine means there is nothing to call at an address
	ErrNoRoutine = errors.New("no routine at address")
)

var isDebug = false

// SetDebug enables logging of every patch and trampoline written.
func SetDebug(x bool) {
	isDebug = x
}

// Lookup returns the detour installed at target in mem.
func Lookup(mem Memory, target uintptr) (*Detour, bool) {
	lock.Lock()
	defer lock.Unlock()
	d, ok := hooks[hookKey{mem, target}]
	return d, ok
}

// Installed returns every detour installed in mem.
func Installed(mem Memory) []*Detour {
	lock.Lock()
	defer lock.Unlock()
	var out []*Detour
	for k, d := range hooks {
		if k.mem == mem {
			out = append(out, d)
		}
	}
	return out
}
