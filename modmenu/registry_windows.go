package modmenu

import "github.com/k2io/oakhook"

func defaultBinder(mem oakhook.Memory) (oakhook.Binder, error) {
	return oakhook.InlineBinder{Mem: mem}, nil
}
