//go:build !linux && !darwin

package system

import (
	"errors"
	"runtime"
)

// FreeDiskBytes is unsupported on this platform.
func FreeDiskBytes(string) (uint64, error) {
	return 0, errors.New("free disk space is not available on " + runtime.GOOS)
}
