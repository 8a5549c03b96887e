package image

import "unsafe"

// Module is an Image over memory mapped into the current process.
type Module struct {
	Name string
	base uintptr
	size int
}

// NewModule describes size bytes of live memory at base. Nothing is
// validated: the caller vouches that the range is mapped and readable.
func NewModule(name string, base uintptr, size int) *Module {
	return &Module{Name: name, base: base, size: size}
}

func (m *Module) Base() uintptr { return m.base }

func (m *Module) Len() int { return m.size }

func (m *Module) Bytes(addr uintptr, n int) ([]byte, error) {
	if err := check(m.base, m.size, addr, n); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n), nil
}
