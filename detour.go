package oakhook

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/k2io/oakhook/internal/log"
)

// Install redirects the routine at target to replacement.
//
// Only one detour may be installed per target; a second Install returns
// ErrDoubleHook. The patch is written in a single WriteAt once the trampoline
// is complete, so until then callers keep running the unmodified routine.
func Install(mem Memory, target, replacement uintptr, name string) (*Detour, error) {
	lock.Lock()
	defer lock.Unlock()
	key := hookKey{mem, target}
	if _, ok := hooks[key]; ok {
		return nil, fmt.Errorf("%s at 0x%x: %w", name, target, ErrDoubleHook)
	}

	patch := jump(target, replacement)
	code, err := mem.ReadAt(target, len(patch)+maxInstLen)
	if err != nil {
		return nil, fmt.Errorf("%s: read prologue: %w", name, err)
	}
	inf, err := ensureLength(code, len(patch))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	tramp, err := allocNear(mem, target, inf.length+jmpAbsLen)
	if err != nil {
		return nil, fmt.Errorf("%s: allocate trampoline: %w", name, err)
	}
	body, err := relocate(code[:inf.length], inf.insts, target, tramp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	body = append(body, jump(tramp+uintptr(inf.length), target+uintptr(inf.length))...)
	if err := mem.WriteAt(tramp, body); err != nil {
		return nil, fmt.Errorf("%s: write trampoline: %w", name, err)
	}

	for len(patch) < inf.length {
		patch = append(patch, 0x90)
	}
	saved := append([]byte(nil), code[:inf.length]...)
	if err := mem.WriteAt(target, patch); err != nil {
		return nil, fmt.Errorf("%s: write patch: %w", name, err)
	}

	d := &Detour{
		Name:        name,
		Target:      target,
		Replacement: replacement,
		Trampoline:  tramp,
		mem:         mem,
		saved:       saved,
	}
	hooks[key] = d

	log.L().Info("installed detour",
		zap.String("hook", name),
		zap.String("target", fmt.Sprintf("0x%x", target)),
		zap.String("trampoline", fmt.Sprintf("0x%x", tramp)))
	if isDebug {
		log.L().Debug("detour bytes",
			zap.String("hook", name),
			zap.Binary("saved", saved),
			zap.Binary("patch", patch),
			zap.Binary("trampoline", body))
	}
	return d, nil
}

// Uninstall writes the saved instructions back over the patch. The
// trampoline stays allocated, since a caller may still be running through it.
func (d *Detour) Uninstall() error {
	return Uninstall(d.mem, d.Target)
}

// Uninstall removes the detour at target in mem.
func Uninstall(mem Memory, target uintptr) error {
	lock.Lock()
	defer lock.Unlock()
	key := hookKey{mem, target}
	d, ok := hooks[key]
	if !ok {
		return fmt.Errorf("0x%x: %w", target, ErrHookNotFound)
	}
	if err := mem.WriteAt(target, d.saved); err != nil {
		return fmt.Errorf("%s: restore: %w", d.Name, err)
	}
	delete(hooks, key)
	log.L().Info("removed detour", zap.String("hook", d.Name))
	return nil
}

// UninstallAll removes every detour installed in mem. All of them are
// attempted; the first failure is returned.
func UninstallAll(mem Memory) error {
	var first error
	for _, d := range Installed(mem) {
		if err := d.Uninstall(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
