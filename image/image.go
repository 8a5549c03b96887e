// Package image gives bounded access to a region of the target process.
//
// All raw memory interpretation in the repository goes through an Image.
// The bounds check only guarantees that reads stay inside the region; whether
// a value at a given displacement means what the caller thinks it means is
// still entirely down to the caller knowing the binary's layout.
package image

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"
)

// ErrOutOfBounds means a read or write left the image.
var ErrOutOfBounds = errors.New("address outside image")

// Image is a contiguous, readable region of a loaded binary.
type Image interface {
	// Base is the address of the first byte of the region.
	Base() uintptr
	// Len is the size of the region in bytes.
	Len() int
	// Bytes returns n bytes starting at addr. The result may alias the
	// underlying memory and must not be modified.
	Bytes(addr uintptr, n int) ([]byte, error)
}

// Fixed is any value with a fixed little-endian encoding.
type Fixed interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 |
		~int64 | ~uint64 | ~float32 | ~float64
}

// Read interprets the bytes at addr as a T.
func Read[T Fixed](img Image, addr uintptr) (T, error) {
	var v T
	b, err := img.Bytes(addr, int(unsafe.Sizeof(v)))
	if err != nil {
		return v, err
	}
	err = binary.Read(bytes.NewReader(b), binary.LittleEndian, &v)
	return v, err
}

// ReadOffset reads a T at addr+displacement.
func ReadOffset[T Fixed](img Image, addr uintptr, displacement int) (T, error) {
	return Read[T](img, uintptr(int64(addr)+int64(displacement)))
}

// ReadPointer reads a pointer-sized value at addr.
func ReadPointer(img Image, addr uintptr) (uintptr, error) {
	v, err := Read[uint64](img, addr)
	return uintptr(v), err
}

// ResolveRelative decodes the rel32 operand at addr, as used by CALL and JMP,
// returning addr + 4 + displacement.
func ResolveRelative(img Image, addr uintptr) (uintptr, error) {
	d, err := Read[int32](img, addr)
	if err != nil {
		return 0, err
	}
	return uintptr(int64(addr) + 4 + int64(d)), nil
}

// Contains reports whether [addr, addr+n) lies within img.
func Contains(img Image, addr uintptr, n int) bool {
	return check(img.Base(), img.Len(), addr, n) == nil
}

func check(base uintptr, size int, addr uintptr, n int) error {
	if n < 0 || addr < base {
		return fmt.Errorf("%w: 0x%x+%d", ErrOutOfBounds, addr, n)
	}
	off := addr - base
	if off > uintptr(size) || uintptr(size)-off < uintptr(n) {
		return fmt.Errorf("%w: 0x%x+%d", ErrOutOfBounds, addr, n)
	}
	return nil
}
