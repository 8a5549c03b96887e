package keybinds

import (
	"context"
	"strings"

	"github.com/k2io/oakhook"
)

// Focus tells whether a player controller is interacting with a menu.
type Focus interface {
	InMenu(ctx context.Context, actor uintptr) (bool, error)
}

// FocusFunc adapts a func to Focus.
type FocusFunc func(ctx context.Context, actor uintptr) (bool, error)

func (f FocusFunc) InMenu(ctx context.Context, actor uintptr) (bool, error) {
	return f(ctx, actor)
}

// NativeFocus calls the controller's own IsInMenu routine.
type NativeFocus struct {
	IsInMenu oakhook.Func
}

func (f NativeFocus) InMenu(_ context.Context, actor uintptr) (bool, error) {
	return f.IsInMenu(actor)&0xff != 0, nil
}

// CursorFocus reads the controller's bShowMouseCursor bit. It is less exact
// than IsInMenu but only relies on the generic player controller layout.
type CursorFocus struct {
	Mem    oakhook.Memory
	Offset int
	Mask   uint8
}

func (f CursorFocus) InMenu(_ context.Context, actor uintptr) (bool, error) {
	b, err := f.Mem.ReadAt(actor+uintptr(f.Offset), 1)
	if err != nil {
		return false, err
	}
	return b[0]&f.Mask != 0, nil
}

// SelectFocus picks the focus query for an executable. Only the executable
// named menuExe has a working IsInMenu; everything else, including unknown
// executables, uses the cursor.
func SelectFocus(exe, menuExe string, native, cursor Focus) Focus {
	base := exe[strings.LastIndexAny(exe, `/\`)+1:]
	if native != nil && strings.EqualFold(base, menuExe) {
		return native
	}
	return cursor
}
