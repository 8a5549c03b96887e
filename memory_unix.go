//go:build unix

package oakhook

import "golang.org/x/sys/unix"

var pageSize = uintptr(unix.Getpagesize())

// protectPages makes the pages spanning addr..addr+size writable. The
// returned func puts them back to read+exec.
func protectPages(addr, size uintptr) (func() error, error) {
	if err := mprotect(addr, size, unix.PROT_EXEC|unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return nil, err
	}
	return func() error {
		return mprotect(addr, size, unix.PROT_EXEC|unix.PROT_READ)
	}, nil
}

func mprotect(addr, size uintptr, prot int) error {
	start := pageSize * (addr / pageSize)
	length := pageSize * ((addr + size + pageSize - 1 - start) / pageSize)
	return unix.Mprotect(makeSlice(start, length), prot)
}
