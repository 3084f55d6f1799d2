package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mori-agent/mori/internal/domain"
)

func newSelector(t *testing.T) *Selector {
	t.Helper()
	s, err := New()
	require.NoError(t, err)
	return s
}

func report(cpu, mem int) domain.CapabilityReport {
	return domain.CapabilityReport{Platform: domain.PlatformFreeMemory, CPUScore: cpu, MemoryScore: mem, GPUClass: domain.GPUNone}
}

func TestSelectThresholds(t *testing.T) {
	s := newSelector(t)
	tests := []struct {
		name string
		cpu  int
		mem  int
		want domain.Tier
	}{
		{"exact highest boundary", 8, 16, domain.TierHighest},
		{"cpu one short of highest", 7, 16, domain.TierMid},
		{"memory one short of highest", 8, 15, domain.TierMid},
		{"exact mid boundary", 6, 12, domain.TierMid},
		{"cpu one short of mid", 5, 12, domain.TierFallback},
		{"memory one short of mid", 6, 11, domain.TierFallback},
		{"zero", 0, 0, domain.TierFallback},
		{"huge", 500, 1024, domain.TierHighest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Select(report(tt.cpu, tt.mem)).Tier)
		})
	}
}

func TestSelectScenarios(t *testing.T) {
	s := newSelector(t)

	// 8 cores at 2000 MHz, 32 GiB total.
	a := s.Select(domain.CapabilityReport{Platform: domain.PlatformTotalMemory, CPUCores: 8, CPUClockMHz: 2000, CPUScore: 16, TotalMemMB: 32768, MemoryScore: 32})
	assert.Equal(t, domain.TierHighest, a.Tier)
	assert.Equal(t, "codellama:13b", a.ConfigurationID)

	// 2 cores at 1500 MHz, 4 GiB total.
	b := s.Select(domain.CapabilityReport{Platform: domain.PlatformTotalMemory, CPUCores: 2, CPUClockMHz: 1500, CPUScore: 3, TotalMemMB: 4096, MemoryScore: 4})
	assert.Equal(t, domain.TierFallback, b.Tier)
	assert.Equal(t, "deepseek-coder:1.3b", b.ConfigurationID)
}

func TestSelectUnifiedMemoryOverride(t *testing.T) {
	r := report(0, 1)
	r.Platform = domain.PlatformUnifiedMemory
	assert.Equal(t, domain.TierHighest, newSelector(t).Select(r).Tier)
}

func TestSelectIsDeterministic(t *testing.T) {
	s := newSelector(t)
	r := report(7, 13)
	first := s.Select(r)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, s.Select(r))
	}
	assert.Equal(t, r, first.Rationale)
}

func TestParseRejectsBadTables(t *testing.T) {
	_, err := Parse([]byte("tiers:\n  - tier: highest\n    model: x\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("tiers:\n  - tier: highest\n  - tier: fallback\n    model: y\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("tiers: [oops"))
	assert.Error(t, err)
}

func TestOverride(t *testing.T) {
	sel := newSelector(t).Select(report(1, 1))

	same := Override(sel, "")
	assert.False(t, same.Overridden)

	o := Override(sel, "llama3:8b")
	assert.True(t, o.Overridden)
	assert.Equal(t, "llama3:8b", o.ConfigurationID)
	assert.Equal(t, sel.Rationale, o.Rationale)
	assert.Equal(t, sel.Tier, o.Tier)
}
