// Package supervisor keeps exactly one healthy inference daemon bound to
// its port.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"syscall"
	"time"

	"github.com/mori-agent/mori/internal/bounded"
	"github.com/mori-agent/mori/internal/domain"
)

const (
	DefaultGrace          = 2 * time.Second
	DefaultSettle         = 3 * time.Second
	DefaultPortRetries    = 3
	DefaultPortInterval   = 1 * time.Second
	DefaultHealthRetries  = 15
	DefaultHealthInterval = 2 * time.Second
)

var (
	errPortBusy   = errors.New("port still in use")
	errNotRunning = errors.New("process exited right after launch")
	errNoProcess  = errors.New("no launched process")
)

// ProcessTable looks up and signals OS processes.
type ProcessTable interface {
	// FindByName returns pids whose executable name is exactly name.
	FindByName(ctx context.Context, name string) ([]int, error)
	// PortOwners returns pids holding a TCP listener on port.
	PortOwners(ctx context.Context, port int) ([]int, error)
	Signal(pid int, sig syscall.Signal) error
}

// Process is a launched daemon.
type Process interface {
	Pid() int
	Exited() bool
}

// Launcher starts the daemon detached from this process.
type Launcher interface {
	Launch(ctx context.Context) (Process, error)
}

// HealthProbe does a single liveness check.
type HealthProbe interface {
	Check(ctx context.Context) error
}

// PortChecker reports whether a local port is taken.
type PortChecker interface {
	InUse(port int) bool
}

// Options holds the fixed waits and ceilings. Zero fields take defaults.
type Options struct {
	Name           string
	Port           int
	HealthEndpoint string

	Grace          time.Duration
	Settle         time.Duration
	PortRetries    int
	PortInterval   time.Duration
	HealthRetries  int
	HealthInterval time.Duration
}

func (o *Options) applyDefaults() {
	if o.Grace == 0 {
		o.Grace = DefaultGrace
	}
	if o.Settle == 0 {
		o.Settle = DefaultSettle
	}
	if o.PortRetries == 0 {
		o.PortRetries = DefaultPortRetries
	}
	if o.PortInterval == 0 {
		o.PortInterval = DefaultPortInterval
	}
	if o.HealthRetries == 0 {
		o.HealthRetries = DefaultHealthRetries
	}
	if o.HealthInterval == 0 {
		o.HealthInterval = DefaultHealthInterval
	}
}

// Supervisor drives the ServiceHandle state machine. It is not safe for
// concurrent use; the pipeline calling it is sequential.
type Supervisor struct {
	opts     Options
	procs    ProcessTable
	launcher Launcher
	health   HealthProbe
	ports    PortChecker
	logger   *slog.Logger

	handle  domain.ServiceHandle
	process Process

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(opts Options, procs ProcessTable, launcher Launcher, health HealthProbe, ports PortChecker, logger *slog.Logger) *Supervisor {
	opts.applyDefaults()
	return &Supervisor{
		opts:     opts,
		procs:    procs,
		launcher: launcher,
		health:   health,
		ports:    ports,
		logger:   logger.With("service", opts.Name, "port", opts.Port),
		handle: domain.ServiceHandle{
			Name:           opts.Name,
			Port:           opts.Port,
			HealthEndpoint: opts.HealthEndpoint,
			State:          domain.ServiceStopped,
		},
		sleep: sleepCtx,
	}
}

// Handle returns a copy of the current handle.
func (s *Supervisor) Handle() domain.ServiceHandle {
	return s.handle
}

// Diagnostic is the command an operator can run to see who holds port.
func Diagnostic(port int) string {
	return "lsof -nP -iTCP:" + strconv.Itoa(port) + " -sTCP:LISTEN"
}

// Ensure brings the service to Running, remediating port contention on
// the way. The returned handle reflects the last state reached.
func (s *Supervisor) Ensure(ctx context.Context) (domain.ServiceHandle, error) {
	if err := s.EnsureStopped(ctx); err != nil {
		return s.handle, err
	}
	if err := s.transition(domain.ServiceStarting); err != nil {
		return s.handle, err
	}

	if s.ports.InUse(s.opts.Port) {
		if err := s.transition(domain.ServicePortConflict); err != nil {
			return s.handle, err
		}
		if err := s.ReleasePort(ctx, s.opts.Port); err != nil {
			_ = s.transition(domain.ServiceFailed)
			return s.handle, err
		}
		if err := s.transition(domain.ServiceStarting); err != nil {
			return s.handle, err
		}
	}

	if err := s.Start(ctx); err != nil {
		return s.handle, err
	}
	if err := s.VerifyProcessAlive(); err != nil {
		return s.handle, err
	}
	if err := s.WaitHealthy(ctx, s.opts.HealthRetries); err != nil {
		return s.handle, err
	}
	return s.handle, nil
}

// EnsureStopped terminates any running instance of the service. When
// nothing is running it sends no signal.
func (s *Supervisor) EnsureStopped(ctx context.Context) error {
	pids, err := s.procs.FindByName(ctx, s.opts.Name)
	if err != nil {
		return fmt.Errorf("find %s processes: %w", s.opts.Name, err)
	}

	if len(pids) > 0 {
		s.logger.Info("stopping running instance", "pids", pids)
		err := s.terminate(ctx, pids, func() ([]int, error) {
			return s.procs.FindByName(ctx, s.opts.Name)
		})
		if err != nil {
			return err
		}
	}

	s.process = nil
	s.handle.PID = 0
	return s.transition(domain.ServiceStopped)
}

// ReleasePort kills whatever holds port, re-checking after each round.
// It gives up after PortRetries rounds with a ResourceContentionError.
func (s *Supervisor) ReleasePort(ctx context.Context, port int) error {
	if !s.ports.InUse(port) {
		return nil
	}

	policy := bounded.Policy{Attempts: s.opts.PortRetries}
	attempts := 0
	err := bounded.Do(ctx, policy, func(attempt int) error {
		attempts = attempt
		owners, err := s.procs.PortOwners(ctx, port)
		if err != nil {
			s.logger.Warn("list port owners", "attempt", attempt, "err", err)
		}
		for _, pid := range owners {
			s.logger.Info("killing port owner", "pid", pid, "attempt", attempt)
			if err := s.procs.Signal(pid, syscall.SIGKILL); err != nil {
				s.logger.Warn("sigkill failed", "pid", pid, "err", err)
			}
		}
		if err := s.sleep(ctx, s.opts.PortInterval); err != nil {
			return err
		}
		if s.ports.InUse(port) {
			return errPortBusy
		}
		return nil
	})
	if err == nil {
		s.logger.Info("port released", "attempts", attempts)
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return domain.ResourceContentionError{
		Port:       port,
		Attempts:   attempts,
		Diagnostic: Diagnostic(port),
		Err:        err,
	}
}

// Start launches the daemon and waits the settle period.
func (s *Supervisor) Start(ctx context.Context) error {
	if err := s.transition(domain.ServiceStarting); err != nil {
		return err
	}

	proc, err := s.launcher.Launch(ctx)
	if err != nil {
		_ = s.transition(domain.ServiceFailed)
		return domain.ServiceStartupError{Stage: "launch", LastState: domain.ServiceStarting, Err: err}
	}
	s.process = proc
	s.handle.PID = proc.Pid()
	s.logger.Info("service launched", "pid", proc.Pid())

	return s.sleep(ctx, s.opts.Settle)
}

// VerifyProcessAlive fails fast when the launched process is already gone.
func (s *Supervisor) VerifyProcessAlive() error {
	var cause error
	switch {
	case s.process == nil:
		cause = errNoProcess
	case s.process.Exited():
		cause = errNotRunning
	default:
		return nil
	}
	last := s.handle.State
	s.abandonLaunch(context.Background())
	_ = s.transition(domain.ServiceFailed)
	return domain.ServiceStartupError{Stage: "launch", LastState: last, Err: cause}
}

// WaitHealthy polls the health endpoint exactly maxRetries times at most.
func (s *Supervisor) WaitHealthy(ctx context.Context, maxRetries int) error {
	policy := bounded.Policy{Attempts: maxRetries, Interval: s.opts.HealthInterval}
	err := bounded.Do(ctx, policy, func(attempt int) error {
		err := s.health.Check(ctx)
		if err != nil {
			s.logger.Debug("health check failed", "attempt", attempt, "endpoint", s.opts.HealthEndpoint, "err", err)
		}
		return err
	})
	if err != nil {
		last := s.handle.State
		s.abandonLaunch(ctx)
		_ = s.transition(domain.ServiceFailed)
		return domain.ServiceStartupError{Stage: "health", LastState: last, Err: err}
	}

	s.logger.Info("service healthy", "endpoint", s.opts.HealthEndpoint)
	return s.transition(domain.ServiceRunning)
}

// abandonLaunch stops the process started by Start so a failed start does
// not leave an unhealthy daemon holding the port.
func (s *Supervisor) abandonLaunch(ctx context.Context) {
	proc := s.process
	s.process = nil
	s.handle.PID = 0
	if proc == nil || proc.Exited() {
		return
	}

	s.logger.Warn("stopping unhealthy instance", "pid", proc.Pid())
	err := s.terminate(context.WithoutCancel(ctx), []int{proc.Pid()}, func() ([]int, error) {
		if proc.Exited() {
			return nil, nil
		}
		return []int{proc.Pid()}, nil
	})
	if err != nil {
		s.logger.Warn("stop unhealthy instance", "pid", proc.Pid(), "err", err)
	}
}

// terminate sends SIGTERM to pids, waits the grace period and SIGKILLs
// whatever remaining still reports.
func (s *Supervisor) terminate(ctx context.Context, pids []int, remaining func() ([]int, error)) error {
	for _, pid := range pids {
		if err := s.procs.Signal(pid, syscall.SIGTERM); err != nil {
			s.logger.Warn("sigterm failed", "pid", pid, "err", err)
		}
	}
	if err := s.sleep(ctx, s.opts.Grace); err != nil {
		return err
	}

	left, err := remaining()
	if err != nil {
		return fmt.Errorf("find %s processes: %w", s.opts.Name, err)
	}
	for _, pid := range left {
		s.logger.Warn("did not stop in time, killing", "pid", pid)
		_ = s.procs.Signal(pid, syscall.SIGKILL)
	}
	return nil
}

func (s *Supervisor) transition(to domain.ServiceState) error {
	from := s.handle.State
	if !domain.CanTransition(from, to) {
		return domain.ErrIllegalTransition{From: from, To: to}
	}
	if from != to {
		s.logger.Debug("state change", "from", from, "to", to)
	}
	s.handle.State = to
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
