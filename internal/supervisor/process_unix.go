//go:build linux || darwin

package supervisor

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func (SystemProcessTable) Signal(pid int, sig syscall.Signal) error {
	return unix.Kill(pid, sig)
}

func detachedAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
