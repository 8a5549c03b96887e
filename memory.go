package oakhook

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/edsrzf/mmap-go"

	"github.com/k2io/oakhook/image"
)

// Memory is the code being patched.
type Memory interface {
	ReadAt(addr uintptr, n int) ([]byte, error)
	WriteAt(addr uintptr, p []byte) error
	// AllocExec returns n bytes of writable, executable memory.
	AllocExec(n int) (uintptr, error)
}

// NearAllocator is a Memory that can place executable memory close to an
// address. Install takes trampolines from it when it can, so relocated
// rel32 operands still reach their targets.
type NearAllocator interface {
	AllocNear(near uintptr, n int) (uintptr, error)
}

// allocNear prefers mem's near allocations.
func allocNear(mem Memory, near uintptr, n int) (uintptr, error) {
	if a, ok := mem.(NearAllocator); ok {
		return a.AllocNear(near, n)
	}
	return mem.AllocExec(n)
}

var _ Memory = (*image.Buffer)(nil)

// LiveMemory is the memory of the current process. Addresses are trusted.
type LiveMemory struct{}

var (
	_ Memory        = LiveMemory{}
	_ NearAllocator = LiveMemory{}
)

func makeSlice(addr, size uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
}

func (LiveMemory) ReadAt(addr uintptr, n int) ([]byte, error) {
	out := make([]byte, n)
	copy(out, makeSlice(addr, uintptr(n)))
	return out, nil
}

// WriteAt makes the pages at addr writable for the copy and then restores
// their protection.
func (LiveMemory) WriteAt(addr uintptr, p []byte) error {
	size := uintptr(len(p))
	restore, err := protectPages(addr, size)
	if err != nil {
		return fmt.Errorf("unprotect 0x%x: %w", addr, err)
	}
	copy(makeSlice(addr, size), p)
	return restore()
}

func (LiveMemory) AllocExec(n int) (uintptr, error) {
	return trampolines.alloc(n)
}

// AllocNear returns n bytes of executable memory within nearRange of near.
func (LiveMemory) AllocNear(near uintptr, n int) (uintptr, error) {
	if !canMapNear {
		return trampolines.alloc(n)
	}
	return trampolines.allocNear(near, n)
}

const (
	arenaSize = 64 << 10
	// allocation granularity of VirtualAlloc, used on every platform
	arenaAlign = 64 << 10
	// a rel32 reaches 2GiB; half of it is left for what the relocated
	// instructions point at
	nearRange = 1 << 30
)

// ErrNoNearMemory means no free memory was found within reach of a target.
var ErrNoNearMemory = errors.New("no free memory near target")

type block struct {
	base uintptr
	size int
	used int
}

func (b *block) take(n int) (uintptr, bool) {
	start := (b.used + 15) &^ 15
	if start+n > b.size {
		return 0, false
	}
	b.used = start + n
	return b.base + uintptr(start), true
}

// reaches reports whether all of b lies within nearRange of addr.
func (b *block) reaches(addr uintptr) bool {
	return distance(addr, b.base) < nearRange && distance(addr, b.base+uintptr(b.size)) < nearRange
}

func distance(a, b uintptr) uintptr {
	if a > b {
		return a - b
	}
	return b - a
}

// arena hands out trampolines from executable mappings. Mappings are never
// unmapped, a trampoline can be running when its detour is removed.
//
// Trampolines that must sit near their target come from blocks mapped close
// to it, one per region of code. The rest share anonymous mappings placed by
// the OS.
type arena struct {
	mu   sync.Mutex
	cur  *block
	near []*block
	all  []mmap.MMap
}

var trampolines arena

func blockSize(n int) int {
	size := arenaSize
	for size < n {
		size <<= 1
	}
	return size
}

func (a *arena) alloc(n int) (uintptr, error) {
	if n <= 0 {
		return 0, fmt.Errorf("invalid allocation size %d", n)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cur != nil {
		if p, ok := a.cur.take(n); ok {
			return p, nil
		}
	}
	m, err := mmap.MapRegion(nil, blockSize(n), mmap.RDWR|mmap.EXEC, mmap.ANON, 0)
	if err != nil {
		return 0, fmt.Errorf("map trampoline arena: %w", err)
	}
	a.all = append(a.all, m)
	a.cur = &block{base: uintptr(unsafe.Pointer(&m[0])), size: len(m)}
	p, _ := a.cur.take(n)
	return p, nil
}

func (a *arena) allocNear(near uintptr, n int) (uintptr, error) {
	if n <= 0 {
		return 0, fmt.Errorf("invalid allocation size %d", n)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, b := range a.near {
		if !b.reaches(near) {
			continue
		}
		if p, ok := b.take(n); ok {
			return p, nil
		}
	}
	size := blockSize(n)
	base, err := mapNear(near, size, mapAt)
	if err != nil {
		return 0, fmt.Errorf("map trampoline arena near 0x%x: %w", near, err)
	}
	b := &block{base: base, size: size}
	a.near = append(a.near, b)
	p, _ := b.take(n)
	return p, nil
}

// mapNear maps size bytes with try, at the free aligned address closest to
// near, alternating above and below it.
func mapNear(near uintptr, size int, try func(addr uintptr, size int) bool) (uintptr, error) {
	start := near &^ (arenaAlign - 1)
	limit := uintptr(nearRange - size - arenaAlign)
	for d := uintptr(0); d <= limit; d += arenaAlign {
		if up := start + d; up >= start && try(up, size) {
			return up, nil
		}
		if d == 0 || d > start {
			continue
		}
		if down := start - d; down >= arenaAlign && try(down, size) {
			return down, nil
		}
	}
	return 0, ErrNoNearMemory
}
