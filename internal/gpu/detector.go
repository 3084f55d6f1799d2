// Package gpu classifies the accelerator available to the inference daemon.
package gpu

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/mori-agent/mori/internal/domain"
)

const probeTimeout = 5 * time.Second

// CommandRunner runs an external tool and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Detector probes for an integrated accelerator first and a discrete one
// second. Any failure degrades to domain.GPUNone.
type Detector struct {
	logger   *slog.Logger
	debug    bool
	goos     string
	goarch   string
	run      CommandRunner
	lookPath func(string) (string, error)
}

// NewDetector creates a detector for the running platform.
// In debug mode no tools are executed and GPUNone is reported.
func NewDetector(debug bool, logger *slog.Logger) *Detector {
	return &Detector{
		logger:   logger,
		debug:    debug,
		goos:     runtime.GOOS,
		goarch:   runtime.GOARCH,
		run:      runCommand,
		lookPath: exec.LookPath,
	}
}

// Detect returns the GPU class and a display name when one is known.
func (d *Detector) Detect(ctx context.Context) (domain.GPUClass, string) {
	if d.debug {
		d.logger.Info("debug mode, skipping gpu probe")
		return domain.GPUNone, ""
	}

	if name, ok := d.integrated(ctx); ok {
		return domain.GPUIntegratedMetal, name
	}
	if name, ok := d.discrete(ctx); ok {
		return domain.GPUDiscreteAccelerator, name
	}
	return domain.GPUNone, ""
}

func (d *Detector) integrated(ctx context.Context) (string, bool) {
	if d.goos != "darwin" {
		return "", false
	}
	// All Apple silicon has Metal.
	if d.goarch == "arm64" {
		return "Apple Silicon", true
	}

	out, err := d.run(ctx, "system_profiler", "SPDisplaysDataType")
	if err != nil {
		d.logger.Debug("system_profiler failed", "err", err)
		return "", false
	}
	if !bytes.Contains(out, []byte("Metal")) {
		return "", false
	}
	return chipsetModel(out), true
}

func (d *Detector) discrete(ctx context.Context) (string, bool) {
	if _, err := d.lookPath("nvidia-smi"); err != nil {
		return "", false
	}
	out, err := d.run(ctx, "nvidia-smi", "--query-gpu=name", "--format=csv,noheader")
	if err != nil {
		d.logger.Warn("nvidia-smi present but failed", "err", err)
		return "", false
	}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if name := strings.TrimSpace(sc.Text()); name != "" {
			return name, true
		}
	}
	return "", false
}

// chipsetModel pulls "Chipset Model: ..." out of system_profiler output.
func chipsetModel(out []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if v, ok := strings.CutPrefix(line, "Chipset Model:"); ok {
			return strings.TrimSpace(v)
		}
	}
	return "Metal GPU"
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return exec.CommandContext(ctx, name, args...).Output()
}
