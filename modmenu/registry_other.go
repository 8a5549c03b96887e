//go:build !windows

package modmenu

import (
	"fmt"
	"runtime"

	"github.com/k2io/oakhook"
)

// defaultBinder fails: native callbacks into Go only exist on windows.
func defaultBinder(oakhook.Memory) (oakhook.Binder, error) {
	return nil, fmt.Errorf("no inline binder on %s, set Options.Binder", runtime.GOOS)
}
