// Package provision runs the probe, select, supervise pipeline locally and
// optionally replicates it onto a remote peer.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/mori-agent/mori/internal/config"
	"github.com/mori-agent/mori/internal/domain"
	"github.com/mori-agent/mori/internal/selector"
)

type Prober interface {
	Probe(ctx context.Context) domain.CapabilityReport
}

type Selector interface {
	Select(report domain.CapabilityReport) domain.ModelSelection
}

type SummaryWriter interface {
	WriteSummary(runID string, sel domain.ModelSelection) error
}

type Supervisor interface {
	Ensure(ctx context.Context) (domain.ServiceHandle, error)
}

type ModelStore interface {
	EnsureModel(ctx context.Context, model string) (bool, error)
}

type RemoteProvisioner interface {
	Provision(ctx context.Context, target domain.RemoteTarget, explicit bool) domain.ProvisioningOutcome
}

// Runner executes one provisioning run. Steps are strictly sequential.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger

	prober     Prober
	selector   Selector
	records    SummaryWriter
	supervisor Supervisor
	models     ModelStore
	remote     RemoteProvisioner

	lookPath func(string) (string, error)
	freeDisk func(string) (uint64, error)
	homeDir  string
}

// Run provisions the targets named by mode. A non-nil error means the run
// failed; the summary still describes everything that happened before.
func (r *Runner) Run(ctx context.Context, mode domain.Mode) (*Summary, error) {
	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID, "mode", mode)
	summary := &Summary{RunID: runID, Mode: mode}

	logger.Info("provisioning started", "hop", r.cfg.Hop)

	if r.cfg.Hop > 0 && mode == domain.ModeRemote {
		return summary, domain.ConfigurationError{
			Field:  config.EnvPrefix + "_HOP",
			Reason: fmt.Sprintf("remote provisioning refused at hop %d", r.cfg.Hop),
		}
	}
	if mode.RemoteExplicit() {
		if err := r.cfg.ValidateRemote(); err != nil {
			return summary, err
		}
	}

	if mode.IncludesLocal() {
		if err := r.checkLocal(); err != nil {
			return summary, err
		}
		if err := r.runLocal(ctx, runID, summary, logger); err != nil {
			summary.Outcomes = append(summary.Outcomes, domain.ProvisioningOutcome{Result: domain.ResultFailed, Reason: err.Error(), Err: err})
			return summary, err
		}
		summary.Outcomes = append(summary.Outcomes, domain.LocalSuccess())
	}

	if mode.IncludesRemote() {
		out := r.runRemote(ctx, mode, logger)
		summary.Outcomes = append(summary.Outcomes, out)
		if mode.RemoteExplicit() && out.Result == domain.ResultFailed {
			cause := out.Err
			if cause == nil {
				cause = errors.New(out.Reason)
			}
			return summary, fmt.Errorf("%s: %w", out.Target(), cause)
		}
	}

	logger.Info("provisioning finished")
	return summary, nil
}

// Select probes the machine, chooses a configuration and records both.
func (r *Runner) Select(ctx context.Context, runID string) domain.ModelSelection {
	report := r.prober.Probe(ctx)
	sel := selector.Override(r.selector.Select(report), r.cfg.Model)
	if err := r.records.WriteSummary(runID, sel); err != nil {
		r.logger.Warn("write summary record", "err", err)
	}
	r.logger.Info("configuration selected",
		"run_id", runID,
		"model", sel.ConfigurationID,
		"tier", sel.Tier,
		"overridden", sel.Overridden,
		"cpu_score", report.CPUScore,
		"memory_score", report.MemoryScore,
	)
	return sel
}

func (r *Runner) runLocal(ctx context.Context, runID string, summary *Summary, logger *slog.Logger) error {
	sel := r.Select(ctx, runID)
	summary.Selection = &sel

	handle, err := r.supervisor.Ensure(ctx)
	summary.Service = &handle
	if err != nil {
		return err
	}

	if !r.cfg.PullModel {
		return nil
	}
	pulled, err := r.models.EnsureModel(ctx, sel.ConfigurationID)
	if err != nil {
		return domain.ServiceStartupError{Stage: "model", LastState: handle.State, Err: err}
	}
	summary.ModelPulled = pulled
	logger.Info("model available", "model", sel.ConfigurationID, "pulled", pulled)
	return nil
}

func (r *Runner) runRemote(ctx context.Context, mode domain.Mode, logger *slog.Logger) domain.ProvisioningOutcome {
	target := r.cfg.RemoteTarget()
	switch {
	case r.cfg.Hop > 0:
		logger.Info("remote provisioning skipped", "reason", "hop limit")
		return domain.ProvisioningOutcome{Remote: &target, Result: domain.ResultSkipped, Reason: "already running on a provisioned peer"}
	case !r.cfg.HasRemote():
		logger.Info("remote provisioning skipped", "reason", "no remote host")
		return domain.ProvisioningOutcome{Remote: &target, Result: domain.ResultSkipped, Reason: "no remote host configured"}
	}
	return r.remote.Provision(ctx, target, mode.RemoteExplicit())
}

// checkLocal verifies the requirements of the local pipeline before any
// process is touched.
func (r *Runner) checkLocal() error {
	if _, err := r.lookPath(r.cfg.ServiceBinary); err != nil {
		return domain.PreconditionError{
			Check:  "tool",
			Detail: fmt.Sprintf("%s not found in PATH; install it and re-run", r.cfg.ServiceBinary),
		}
	}

	need := uint64(r.cfg.MinFreeDiskGB) * humanize.GByte
	if need == 0 {
		return nil
	}
	free, err := r.freeDisk(r.homeDir)
	if err != nil {
		r.logger.Warn("disk headroom unknown", "path", r.homeDir, "err", err)
		return nil
	}
	if free < need {
		return domain.PreconditionError{
			Check:  "disk",
			Detail: fmt.Sprintf("%s free in %s, need at least %s", humanize.Bytes(free), r.homeDir, humanize.Bytes(need)),
		}
	}
	return nil
}
