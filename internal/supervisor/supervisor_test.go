package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mori-agent/mori/internal/domain"
)

type signalCall struct {
	pid int
	sig syscall.Signal
}

type fakeProcs struct {
	running []int
	owners  []int
	signals []signalCall

	// stopOnTerm clears running on SIGTERM.
	stopOnTerm bool
	onSignal   func(pid int, sig syscall.Signal)
}

func (f *fakeProcs) FindByName(context.Context, string) ([]int, error) {
	return f.running, nil
}

func (f *fakeProcs) PortOwners(context.Context, int) ([]int, error) {
	return f.owners, nil
}

func (f *fakeProcs) Signal(pid int, sig syscall.Signal) error {
	f.signals = append(f.signals, signalCall{pid, sig})
	if sig == syscall.SIGTERM && f.stopOnTerm {
		f.running = nil
	}
	if f.onSignal != nil {
		f.onSignal(pid, sig)
	}
	return nil
}

type fakeProcess struct {
	pid    int
	exited bool
}

func (p *fakeProcess) Pid() int     { return p.pid }
func (p *fakeProcess) Exited() bool { return p.exited }

type fakeLauncher struct {
	proc     *fakeProcess
	err      error
	launches int
}

func (l *fakeLauncher) Launch(context.Context) (Process, error) {
	l.launches++
	if l.err != nil {
		return nil, l.err
	}
	return l.proc, nil
}

type fakeHealth struct {
	healthyAfter int // 0 means never
	checks       int
}

func (h *fakeHealth) Check(context.Context) error {
	h.checks++
	if h.healthyAfter > 0 && h.checks >= h.healthyAfter {
		return nil
	}
	return errors.New("connection refused")
}

// fakePorts reports busy for the first busyFor calls; -1 means always busy.
type fakePorts struct {
	busyFor int
	calls   int
}

func (p *fakePorts) InUse(int) bool {
	p.calls++
	return p.busyFor < 0 || p.calls <= p.busyFor
}

type fixture struct {
	procs    *fakeProcs
	launcher *fakeLauncher
	health   *fakeHealth
	ports    *fakePorts
	sleeps   []time.Duration
	sup      *Supervisor
}

func newFixture() *fixture {
	f := &fixture{
		procs:    &fakeProcs{stopOnTerm: true},
		launcher: &fakeLauncher{proc: &fakeProcess{pid: 4242}},
		health:   &fakeHealth{healthyAfter: 1},
		ports:    &fakePorts{},
	}
	opts := Options{
		Name:           "ollama",
		Port:           11434,
		HealthEndpoint: "http://127.0.0.1:11434/api/version",
		HealthInterval: time.Nanosecond,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.sup = New(opts, f.procs, f.launcher, f.health, f.ports, logger)
	f.sup.sleep = func(_ context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	}
	return f
}

func TestEnsureStoppedIsIdempotent(t *testing.T) {
	f := newFixture()
	f.procs.running = []int{100}
	ctx := context.Background()

	require.NoError(t, f.sup.EnsureStopped(ctx))
	assert.Equal(t, domain.ServiceStopped, f.sup.Handle().State)
	require.Len(t, f.procs.signals, 1)
	assert.Equal(t, signalCall{100, syscall.SIGTERM}, f.procs.signals[0])

	require.NoError(t, f.sup.EnsureStopped(ctx))
	assert.Equal(t, domain.ServiceStopped, f.sup.Handle().State)
	assert.Len(t, f.procs.signals, 1, "second call must not signal")
}

func TestEnsureStoppedKillsStragglers(t *testing.T) {
	f := newFixture()
	f.procs.running = []int{100}
	f.procs.stopOnTerm = false

	require.NoError(t, f.sup.EnsureStopped(context.Background()))
	assert.Equal(t, []signalCall{{100, syscall.SIGTERM}, {100, syscall.SIGKILL}}, f.procs.signals)
	assert.Equal(t, []time.Duration{DefaultGrace}, f.sleeps)
}

func TestReleasePortAlwaysOccupied(t *testing.T) {
	f := newFixture()
	f.ports.busyFor = -1
	f.procs.owners = []int{77}

	err := f.sup.ReleasePort(context.Background(), 11434)

	var rce domain.ResourceContentionError
	require.ErrorAs(t, err, &rce)
	assert.Equal(t, DefaultPortRetries, rce.Attempts)
	assert.Equal(t, 11434, rce.Port)
	assert.Equal(t, "lsof -nP -iTCP:11434 -sTCP:LISTEN", rce.Diagnostic)
	assert.Len(t, f.procs.signals, DefaultPortRetries)
	for _, s := range f.procs.signals {
		assert.Equal(t, syscall.SIGKILL, s.sig)
	}
}

func TestReleasePortFreesOnSecondRound(t *testing.T) {
	f := newFixture()
	// precheck busy, round 1 busy, round 2 free
	f.ports.busyFor = 2
	f.procs.owners = []int{77}

	require.NoError(t, f.sup.ReleasePort(context.Background(), 11434))
	assert.Len(t, f.procs.signals, 2)
}

func TestReleasePortNoopWhenFree(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.sup.ReleasePort(context.Background(), 11434))
	assert.Empty(t, f.procs.signals)
}

func TestWaitHealthyNeverResponds(t *testing.T) {
	f := newFixture()
	f.health.healthyAfter = 0
	require.NoError(t, f.sup.Start(context.Background()))

	err := f.sup.WaitHealthy(context.Background(), 5)

	var sse domain.ServiceStartupError
	require.ErrorAs(t, err, &sse)
	assert.Equal(t, "health", sse.Stage)
	assert.Equal(t, domain.ServiceStarting, sse.LastState)
	assert.Equal(t, 5, f.health.checks)
	assert.Equal(t, domain.ServiceFailed, f.sup.Handle().State)
}

func TestEnsureStopsUnhealthyLaunch(t *testing.T) {
	f := newFixture()
	f.health.healthyAfter = 0

	h, err := f.sup.Ensure(context.Background())

	var sse domain.ServiceStartupError
	require.ErrorAs(t, err, &sse)
	assert.Equal(t, domain.ServiceFailed, h.State)
	assert.Zero(t, h.PID)
	assert.Equal(t, []signalCall{{4242, syscall.SIGTERM}, {4242, syscall.SIGKILL}}, f.procs.signals)
	assert.Equal(t, []time.Duration{DefaultSettle, DefaultGrace}, f.sleeps)
}

func TestEnsureUnhealthyLaunchThatExitsOnTerm(t *testing.T) {
	f := newFixture()
	f.health.healthyAfter = 0
	f.procs.onSignal = func(pid int, sig syscall.Signal) {
		if pid == 4242 && sig == syscall.SIGTERM {
			f.launcher.proc.exited = true
		}
	}

	_, err := f.sup.Ensure(context.Background())
	require.Error(t, err)
	assert.Equal(t, []signalCall{{4242, syscall.SIGTERM}}, f.procs.signals)
}

func TestWaitHealthyEventually(t *testing.T) {
	f := newFixture()
	f.health.healthyAfter = 3
	require.NoError(t, f.sup.Start(context.Background()))

	require.NoError(t, f.sup.WaitHealthy(context.Background(), 5))
	assert.Equal(t, 3, f.health.checks)
	assert.Equal(t, domain.ServiceRunning, f.sup.Handle().State)
}

func TestEnsureHappyPath(t *testing.T) {
	f := newFixture()

	h, err := f.sup.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ServiceRunning, h.State)
	assert.Equal(t, 4242, h.PID)
	assert.Equal(t, 1, f.launcher.launches)
	assert.Contains(t, f.sleeps, DefaultSettle)
}

func TestEnsureRemediatesPortConflict(t *testing.T) {
	f := newFixture()
	f.ports.busyFor = 2 // Ensure check + ReleasePort precheck
	f.procs.owners = []int{9}

	h, err := f.sup.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ServiceRunning, h.State)
	assert.Equal(t, []signalCall{{9, syscall.SIGKILL}}, f.procs.signals)
}

func TestEnsurePortNeverFreed(t *testing.T) {
	f := newFixture()
	f.ports.busyFor = -1

	h, err := f.sup.Ensure(context.Background())
	var rce domain.ResourceContentionError
	require.ErrorAs(t, err, &rce)
	assert.Equal(t, domain.ServiceFailed, h.State)
	assert.Zero(t, f.launcher.launches)
}

func TestEnsureProcessDiesImmediately(t *testing.T) {
	f := newFixture()
	f.launcher.proc.exited = true

	h, err := f.sup.Ensure(context.Background())
	var sse domain.ServiceStartupError
	require.ErrorAs(t, err, &sse)
	assert.Equal(t, "launch", sse.Stage)
	assert.Equal(t, domain.ServiceFailed, h.State)
	assert.Zero(t, h.PID)
	assert.Empty(t, f.procs.signals, "an exited process is not signalled")
	assert.Zero(t, f.health.checks, "no health checks after a dead launch")
}

func TestEnsureLaunchError(t *testing.T) {
	f := newFixture()
	f.launcher.err = errors.New("exec: not found")

	_, err := f.sup.Ensure(context.Background())
	var sse domain.ServiceStartupError
	require.ErrorAs(t, err, &sse)
	assert.Equal(t, "launch", sse.Stage)
}

func TestEnsureAfterFailureRecovers(t *testing.T) {
	f := newFixture()
	f.launcher.proc.exited = true
	_, err := f.sup.Ensure(context.Background())
	require.Error(t, err)

	f.launcher.proc.exited = false
	h, err := f.sup.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ServiceRunning, h.State)
}

func TestParsePids(t *testing.T) {
	assert.Equal(t, []int{12, 345}, parsePids([]byte("12\n 345 \njunk\n\n")))
	assert.Nil(t, parsePids(nil))
}
