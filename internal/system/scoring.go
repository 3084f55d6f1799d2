package system

import "github.com/mori-agent/mori/internal/domain"

// UnifiedMemoryCPUScore is assigned to integrated-accelerator machines where
// clock-based scoring says nothing useful.
const UnifiedMemoryCPUScore = 10

// CPUScorer turns core count and clock into a comparable score.
type CPUScorer interface {
	Score(cores, clockMHz int) int
}

// MemoryScorer turns memory figures into a comparable score.
type MemoryScorer interface {
	Score(totalMB, freeMB int) int
}

// FixedCPUScore ignores its inputs.
type FixedCPUScore struct {
	Value int
}

func (f FixedCPUScore) Score(int, int) int { return f.Value }

// ClockCPUScore is cores*MHz/1000, truncated.
type ClockCPUScore struct{}

func (ClockCPUScore) Score(cores, clockMHz int) int {
	if cores <= 0 || clockMHz <= 0 {
		return 0
	}
	return cores * clockMHz / 1000
}

// TotalMemoryScore is whole GiB of total memory.
type TotalMemoryScore struct{}

func (TotalMemoryScore) Score(totalMB, _ int) int {
	if totalMB <= 0 {
		return 0
	}
	return totalMB / 1024
}

// FreeMemoryScore is whole GiB of free memory.
type FreeMemoryScore struct{}

func (FreeMemoryScore) Score(_, freeMB int) int {
	if freeMB <= 0 {
		return 0
	}
	return freeMB / 1024
}

// Strategy pairs the two scorers used for one platform class.
type Strategy struct {
	CPU    CPUScorer
	Memory MemoryScorer
}

// StrategyFor returns the scorers for a platform class. The memory scorers
// deliberately measure different quantities (total vs free) per class.
func StrategyFor(p domain.PlatformClass) Strategy {
	switch p {
	case domain.PlatformUnifiedMemory:
		return Strategy{CPU: FixedCPUScore{Value: UnifiedMemoryCPUScore}, Memory: TotalMemoryScore{}}
	case domain.PlatformTotalMemory:
		return Strategy{CPU: ClockCPUScore{}, Memory: TotalMemoryScore{}}
	default:
		return Strategy{CPU: ClockCPUScore{}, Memory: FreeMemoryScore{}}
	}
}

// ClassifyPlatform maps GOOS/GOARCH onto a platform class.
func ClassifyPlatform(goos, goarch string) domain.PlatformClass {
	if goos == "darwin" {
		if goarch == "arm64" {
			return domain.PlatformUnifiedMemory
		}
		return domain.PlatformTotalMemory
	}
	return domain.PlatformFreeMemory
}
