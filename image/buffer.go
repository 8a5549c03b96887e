package image

import "fmt"

// Buffer is an Image over a byte slice placed at a chosen base address.
//
// It is used for on-disk executables and as simulated process memory in
// tests. Besides the image itself it keeps an arena after the image for
// executable allocations, so it can also stand in for the detour installer's
// memory. Scans only ever see the image part.
type Buffer struct {
	base uintptr
	size int
	data []byte
}

// NewBuffer places data at base. The buffer takes ownership of data.
func NewBuffer(base uintptr, data []byte) *Buffer {
	return &Buffer{base: base, size: len(data), data: data}
}

func (b *Buffer) Base() uintptr { return b.base }

func (b *Buffer) Len() int { return b.size }

func (b *Buffer) Bytes(addr uintptr, n int) ([]byte, error) {
	if err := check(b.base, b.size, addr, n); err != nil {
		return nil, err
	}
	off := addr - b.base
	return b.data[off : off+uintptr(n)], nil
}

// ReadAt copies n bytes at addr, including arena memory.
func (b *Buffer) ReadAt(addr uintptr, n int) ([]byte, error) {
	if err := check(b.base, len(b.data), addr, n); err != nil {
		return nil, err
	}
	off := addr - b.base
	out := make([]byte, n)
	copy(out, b.data[off:])
	return out, nil
}

// WriteAt overwrites memory at addr, including arena memory.
func (b *Buffer) WriteAt(addr uintptr, p []byte) error {
	if err := check(b.base, len(b.data), addr, len(p)); err != nil {
		return err
	}
	copy(b.data[addr-b.base:], p)
	return nil
}

// AllocExec reserves n zeroed bytes in the arena, 16-byte aligned.
func (b *Buffer) AllocExec(n int) (uintptr, error) {
	if n <= 0 {
		return 0, fmt.Errorf("invalid allocation size %d", n)
	}
	start := (len(b.data) + 15) &^ 15
	b.data = append(b.data, make([]byte, start+n-len(b.data))...)
	return b.base + uintptr(start), nil
}
