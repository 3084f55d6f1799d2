package system

import "runtime"

// Source reads raw platform metrics. Implementations return zero values for
// anything they cannot read.
type Source interface {
	Cores() int
	CPU() CPUInfo
	Memory() MemInfo
}

// NewSource returns the metric reader for the running OS.
func NewSource() Source {
	return newPlatformSource()
}

func numCPU() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}
