package image

import (
	"fmt"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Self returns the code section of the main executable module of the
// current process.
func Self() (*Module, error) {
	var h windows.Handle
	if err := windows.GetModuleHandleEx(0, nil, &h); err != nil {
		return nil, err
	}
	var mi windows.ModuleInfo
	err := windows.GetModuleInformation(windows.CurrentProcess(), h, &mi, uint32(unsafe.Sizeof(mi)))
	if err != nil {
		return nil, err
	}
	name := "main"
	buf := make([]uint16, windows.MAX_PATH)
	if n, err := windows.GetModuleFileName(h, &buf[0], uint32(len(buf))); err == nil {
		name = filepath.Base(windows.UTF16ToString(buf[:n]))
	}
	mapped := unsafe.Slice((*byte)(unsafe.Pointer(mi.BaseOfDll)), mi.SizeOfImage)
	rva, size, err := mappedText(mapped)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return NewModule(name, mi.BaseOfDll+uintptr(rva), int(size)), nil
}
