//go:build !linux && !darwin

package supervisor

import (
	"errors"
	"syscall"
)

func (SystemProcessTable) Signal(int, syscall.Signal) error {
	return errors.New("signals not supported on this platform")
}

func detachedAttr() *syscall.SysProcAttr {
	return nil
}
