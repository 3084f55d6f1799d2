// Package network answers whether a TCP port on this host is free.
package network

import (
	"errors"
	"net"
	"strconv"
	"syscall"
	"time"
)

// PortChecker probes a fixed host for listeners.
type PortChecker struct {
	host string
}

// NewPortChecker creates a checker for host (usually 127.0.0.1).
func NewPortChecker(host string) *PortChecker {
	return &PortChecker{host: host}
}

// InUse reports whether something already owns port: either a listener
// answers on it or binding it fails with EADDRINUSE.
func (c *PortChecker) InUse(port int) bool {
	addr := net.JoinHostPort(c.host, strconv.Itoa(port))
	if conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond); err == nil {
		_ = conn.Close()
		return true
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Is(err, syscall.EADDRINUSE)
	}
	_ = l.Close()
	return false
}
