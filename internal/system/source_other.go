//go:build !linux && !darwin

package system

type fallbackSource struct{}

func newPlatformSource() Source {
	return fallbackSource{}
}

func (fallbackSource) Cores() int      { return numCPU() }
func (fallbackSource) CPU() CPUInfo    { return CPUInfo{} }
func (fallbackSource) Memory() MemInfo { return MemInfo{} }
