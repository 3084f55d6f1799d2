//go:build linux || darwin

package system

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// FreeDiskBytes returns the bytes available to unprivileged users on the
// filesystem holding path.
func FreeDiskBytes(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil
}
