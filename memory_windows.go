package oakhook

import "golang.org/x/sys/windows"

func protectPages(addr, size uintptr) (func() error, error) {
	var old uint32
	if err := windows.VirtualProtect(addr, size, windows.PAGE_EXECUTE_READWRITE, &old); err != nil {
		return nil, err
	}
	return func() error {
		var prev uint32
		return windows.VirtualProtect(addr, size, old, &prev)
	}, nil
}

const canMapNear = true

// mapAt commits size bytes of read, write and exec memory at exactly addr,
// which must be 64KiB aligned.
func mapAt(addr uintptr, size int) bool {
	p, err := windows.VirtualAlloc(addr, uintptr(size),
		windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_EXECUTE_READWRITE)
	return err == nil && p == addr
}
