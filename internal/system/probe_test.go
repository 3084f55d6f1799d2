package system

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mori-agent/mori/internal/domain"
)

type fakeSource struct {
	cores int
	cpu   CPUInfo
	mem   MemInfo
}

func (f fakeSource) Cores() int      { return f.cores }
func (f fakeSource) CPU() CPUInfo    { return f.cpu }
func (f fakeSource) Memory() MemInfo { return f.mem }

type fakeGPU struct{ class domain.GPUClass }

func (f fakeGPU) Detect(context.Context) (domain.GPUClass, string) { return f.class, "" }

type fakeRecorder struct {
	got []domain.CapabilityReport
	err error
}

func (f *fakeRecorder) WriteCapability(r domain.CapabilityReport) error {
	f.got = append(f.got, r)
	return f.err
}

func newTestProber(src Source, rec Recorder, platform domain.PlatformClass) *Prober {
	p := NewProber(src, fakeGPU{class: domain.GPUNone}, rec, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.platform = platform
	p.now = func() time.Time { return time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC) }
	return p
}

func TestProbeScoresAndRecords(t *testing.T) {
	rec := &fakeRecorder{}
	src := fakeSource{cores: 8, cpu: CPUInfo{Model: "Xeon", ClockMHz: 2000}, mem: MemInfo{TotalMB: 32768, FreeMB: 30000}}

	got := newTestProber(src, rec, domain.PlatformTotalMemory).Probe(context.Background())

	assert.Equal(t, 16, got.CPUScore)
	assert.Equal(t, 32, got.MemoryScore)
	assert.Equal(t, domain.GPUNone, got.GPUClass)
	require.Len(t, rec.got, 1)
	assert.Equal(t, got, rec.got[0])
}

func TestProbeDegradesUnreadableMetrics(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("read-only fs")}
	got := newTestProber(fakeSource{cores: 0, mem: MemInfo{TotalMB: -1}}, rec, domain.PlatformFreeMemory).Probe(context.Background())

	assert.Equal(t, 1, got.CPUCores)
	assert.Zero(t, got.CPUClockMHz)
	assert.Zero(t, got.CPUScore)
	assert.Zero(t, got.TotalMemMB)
	assert.Zero(t, got.MemoryScore)
	assert.Len(t, rec.got, 1, "record is still attempted")
}

func TestProbeUnifiedMemoryUsesFixedScore(t *testing.T) {
	got := newTestProber(fakeSource{cores: 8, mem: MemInfo{TotalMB: 16384}}, nil, domain.PlatformUnifiedMemory).Probe(context.Background())
	assert.Equal(t, UnifiedMemoryCPUScore, got.CPUScore)
	assert.Equal(t, 16, got.MemoryScore)
}
