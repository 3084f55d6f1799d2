//go:build linux

package system

import "os"

type procSource struct {
	cpuinfo string
	meminfo string
}

func newPlatformSource() Source {
	return procSource{cpuinfo: "/proc/cpuinfo", meminfo: "/proc/meminfo"}
}

func (procSource) Cores() int { return numCPU() }

func (s procSource) CPU() CPUInfo {
	data, err := os.ReadFile(s.cpuinfo)
	if err != nil {
		return CPUInfo{}
	}
	return parseCPUInfo(data)
}

func (s procSource) Memory() MemInfo {
	data, err := os.ReadFile(s.meminfo)
	if err != nil {
		return MemInfo{}
	}
	return parseMemInfo(data)
}
