package system

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mori-agent/mori/internal/domain"
)

func TestClockCPUScore(t *testing.T) {
	tests := []struct {
		cores, mhz, want int
	}{
		{8, 2000, 16},
		{2, 1500, 3},
		{4, 2999, 11},
		{1, 999, 0},
		{0, 3000, 0},
		{16, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClockCPUScore{}.Score(tt.cores, tt.mhz), "%d cores @ %d MHz", tt.cores, tt.mhz)
	}
}

func TestCPUScoreIsMonotonic(t *testing.T) {
	s := ClockCPUScore{}
	for cores := 1; cores <= 64; cores++ {
		for mhz := 0; mhz <= 5000; mhz += 137 {
			base := s.Score(cores, mhz)
			assert.GreaterOrEqual(t, s.Score(cores+1, mhz), base)
			assert.GreaterOrEqual(t, s.Score(cores, mhz+1), base)
		}
	}
}

func TestMemoryScoreIsMonotonic(t *testing.T) {
	for _, scorer := range []MemoryScorer{TotalMemoryScore{}, FreeMemoryScore{}} {
		prev := 0
		for mb := 0; mb <= 140000; mb += 97 {
			got := scorer.Score(mb, mb)
			assert.GreaterOrEqual(t, got, prev, "%T at %d MB", scorer, mb)
			prev = got
		}
	}
}

func TestStrategyKeepsTotalVersusFreeAsymmetry(t *testing.T) {
	const total, free = 32768, 4096

	assert.Equal(t, 32, StrategyFor(domain.PlatformTotalMemory).Memory.Score(total, free))
	assert.Equal(t, 32, StrategyFor(domain.PlatformUnifiedMemory).Memory.Score(total, free))
	assert.Equal(t, 4, StrategyFor(domain.PlatformFreeMemory).Memory.Score(total, free))

	assert.Equal(t, UnifiedMemoryCPUScore, StrategyFor(domain.PlatformUnifiedMemory).CPU.Score(1, 0))
	assert.Equal(t, 16, StrategyFor(domain.PlatformFreeMemory).CPU.Score(8, 2000))
}

func TestClassifyPlatform(t *testing.T) {
	assert.Equal(t, domain.PlatformUnifiedMemory, ClassifyPlatform("darwin", "arm64"))
	assert.Equal(t, domain.PlatformTotalMemory, ClassifyPlatform("darwin", "amd64"))
	assert.Equal(t, domain.PlatformFreeMemory, ClassifyPlatform("linux", "arm64"))
	assert.Equal(t, domain.PlatformFreeMemory, ClassifyPlatform("freebsd", "amd64"))
}
