//go:build !unix && !windows

package oakhook

import (
	"errors"
	"runtime"
)

func protectPages(addr, size uintptr) (func() error, error) {
	return nil, errors.New("page protection not supported on " + runtime.GOOS)
}
