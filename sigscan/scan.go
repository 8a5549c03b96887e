package sigscan

import (
	"fmt"

	"github.com/k2io/oakhook/image"
)

func region(img image.Image) ([]byte, error) {
	return img.Bytes(img.Base(), img.Len())
}

// Scan returns the address of the only match of p in img.
func Scan(img image.Image, p Pattern) (uintptr, error) {
	data, err := region(img)
	if err != nil {
		return 0, err
	}
	i := p.index(data, 0)
	if i < 0 {
		return 0, fmt.Errorf("%w: %s", ErrPatternNotFound, p)
	}
	if j := p.index(data, i+1); j >= 0 {
		return 0, fmt.Errorf("%w: %s (0x%x and 0x%x)", ErrPatternAmbiguous, p,
			img.Base()+uintptr(i), img.Base()+uintptr(j))
	}
	return img.Base() + uintptr(i), nil
}

// ScanNullable is like Scan but returns 0 instead of failing. It is meant for
// patterns that only exist in some builds, to pick between code paths.
func ScanNullable(img image.Image, p Pattern) uintptr {
	addr, err := Scan(img, p)
	if err != nil {
		return 0
	}
	return addr
}

// ScanAll returns every match of p in img, in address order.
func ScanAll(img image.Image, p Pattern) ([]uintptr, error) {
	data, err := region(img)
	if err != nil {
		return nil, err
	}
	var out []uintptr
	for i := p.index(data, 0); i >= 0; i = p.index(data, i+1) {
		out = append(out, img.Base()+uintptr(i))
	}
	return out, nil
}
