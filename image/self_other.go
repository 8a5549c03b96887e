//go:build !windows && !linux

package image

import (
	"errors"
	"runtime"
)

// Self is not supported on this platform.
func Self() (*Module, error) {
	return nil, errors.New("live module lookup not supported on " + runtime.GOOS)
}
