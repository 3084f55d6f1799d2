// Package system profiles the local machine into a CapabilityReport.
package system

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/mori-agent/mori/internal/domain"
)

// GPUDetector classifies the machine's accelerator.
type GPUDetector interface {
	Detect(ctx context.Context) (domain.GPUClass, string)
}

// Recorder persists the per-category inspection records.
type Recorder interface {
	WriteCapability(r domain.CapabilityReport) error
}

// Prober builds capability reports. It never fails: unreadable metrics
// become zero and an undetectable GPU becomes GPUNone.
type Prober struct {
	source   Source
	gpu      GPUDetector
	recorder Recorder
	logger   *slog.Logger
	platform domain.PlatformClass
	now      func() time.Time
}

// NewProber creates a prober for the running platform.
func NewProber(source Source, gpu GPUDetector, recorder Recorder, logger *slog.Logger) *Prober {
	return &Prober{
		source:   source,
		gpu:      gpu,
		recorder: recorder,
		logger:   logger,
		platform: ClassifyPlatform(runtime.GOOS, runtime.GOARCH),
		now:      time.Now,
	}
}

// Platform returns the platform class the prober scores for.
func (p *Prober) Platform() domain.PlatformClass {
	return p.platform
}

// Probe reads, scores and records the machine's capabilities.
func (p *Prober) Probe(ctx context.Context) domain.CapabilityReport {
	cores := p.source.Cores()
	if cores < 1 {
		cores = 1
	}
	cpu := p.source.CPU()
	mem := p.source.Memory()
	gpuClass, gpuName := p.gpu.Detect(ctx)

	strategy := StrategyFor(p.platform)
	report := domain.CapabilityReport{
		Platform:    p.platform,
		CPUModel:    cpu.Model,
		CPUCores:    cores,
		CPUClockMHz: max(cpu.ClockMHz, 0),
		TotalMemMB:  max(mem.TotalMB, 0),
		FreeMemMB:   max(mem.FreeMB, 0),
		GPUClass:    gpuClass,
		GPUName:     gpuName,
		Timestamp:   p.now(),
	}
	report.CPUScore = strategy.CPU.Score(report.CPUCores, report.CPUClockMHz)
	report.MemoryScore = strategy.Memory.Score(report.TotalMemMB, report.FreeMemMB)

	p.logger.Info("capability probe complete",
		"platform", report.Platform,
		"cpu_cores", report.CPUCores,
		"cpu_clock_mhz", report.CPUClockMHz,
		"cpu_score", report.CPUScore,
		"total_memory_mb", report.TotalMemMB,
		"free_memory_mb", report.FreeMemMB,
		"memory_score", report.MemoryScore,
		"gpu_class", report.GPUClass,
	)

	if p.recorder != nil {
		if err := p.recorder.WriteCapability(report); err != nil {
			p.logger.Warn("failed to write capability records", "err", err)
		}
	}
	return report
}
