package oakhook

import "golang.org/x/sys/unix"

const canMapNear = true

// mapAt maps size bytes of read, write and exec memory at exactly addr.
func mapAt(addr uintptr, size int) bool {
	p, _, errno := unix.Syscall6(unix.SYS_MMAP, addr, uintptr(size),
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_FIXED_NOREPLACE, ^uintptr(0), 0)
	if errno != 0 {
		return false
	}
	if p != addr {
		// kernels before 4.17 take the address as a hint only
		unix.Syscall(unix.SYS_MUNMAP, p, uintptr(size), 0)
		return false
	}
	return true
}
