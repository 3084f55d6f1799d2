//go:build darwin

package system

import (
	"strings"

	"golang.org/x/sys/unix"
)

// sysctlSource reads hardware facts through sysctl. Only total memory is
// reported; free memory is left at zero because the pager's numbers are not
// a reliable availability signal on this platform.
type sysctlSource struct{}

func newPlatformSource() Source {
	return sysctlSource{}
}

func (sysctlSource) Cores() int { return numCPU() }

func (sysctlSource) CPU() CPUInfo {
	var info CPUInfo
	if model, err := unix.Sysctl("machdep.cpu.brand_string"); err == nil {
		info.Model = strings.TrimSpace(model)
	}
	// Absent on Apple silicon.
	if hz, err := unix.SysctlUint64("hw.cpufrequency"); err == nil {
		info.ClockMHz = int(hz / 1_000_000)
	}
	return info
}

func (sysctlSource) Memory() MemInfo {
	total, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return MemInfo{}
	}
	return MemInfo{TotalMB: int(total / (1024 * 1024))}
}
