package remote

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mori-agent/mori/internal/domain"
	"github.com/mori-agent/mori/internal/sshkey"
)

// ArtifactPath is where the provisioning binary is placed on the peer.
const ArtifactPath = "/tmp/mori-provision"

// HopEnv marks a run started by another mori. Its value is the hop count.
const HopEnv = "MORI_HOP"

const cleanupTimeout = 15 * time.Second

// Options configures an Orchestrator.
type Options struct {
	KeyDir string
	// Artifact is the local binary to copy. Empty means this executable.
	Artifact string
	// Notice receives operator instructions such as a public key to trust.
	Notice io.Writer
}

// Orchestrator drives provisioning of a single peer.
type Orchestrator struct {
	transport Transport
	opts      Options
	logger    *slog.Logger

	platform      func() (string, string)
	readPublicKey func(path string) (string, error)
}

func NewOrchestrator(transport Transport, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.Notice == nil {
		opts.Notice = io.Discard
	}
	return &Orchestrator{
		transport: transport,
		opts:      opts,
		logger:    logger,
		platform:  localPlatform,

		readPublicKey: sshkey.ReadPublicKey,
	}
}

// Provision runs the full remote sequence and maps its error onto an
// outcome. Failures become Skipped unless explicit is set.
func (o *Orchestrator) Provision(ctx context.Context, target domain.RemoteTarget, explicit bool) domain.ProvisioningOutcome {
	logger := o.logger.With("target", target.String())
	err := o.provision(ctx, target, logger)
	out := domain.RemoteOutcome(target, err, explicit)
	if err != nil {
		logger.Warn("remote provisioning did not complete", "result", out.Result, "err", err)
	} else {
		logger.Info("remote provisioning complete")
	}
	return out
}

func (o *Orchestrator) provision(ctx context.Context, target domain.RemoteTarget, logger *slog.Logger) error {
	if err := o.transport.Available(); err != nil {
		return domain.RemoteConnectivityError{Step: "precondition", Cause: domain.CauseToolingMissing, Err: err}
	}

	hostname, _ := os.Hostname()
	kp, generated, err := sshkey.EnsureKey(o.opts.KeyDir, "mori@"+hostname)
	if err != nil {
		return domain.RemoteConnectivityError{Step: "precondition", Cause: domain.CauseUnknown, Err: err}
	}
	if generated {
		pub, err := o.readPublicKey(kp.PublicKeyPath)
		if err != nil {
			return domain.RemoteConnectivityError{Step: "precondition", Cause: domain.CauseUnknown, Err: err}
		}
		fmt.Fprintf(o.opts.Notice, "Generated %s. Add this line to %s's ~/.ssh/authorized_keys and re-run:\n%s\n",
			kp.PrivateKeyPath, target.Address(), pub)
		logger.Info("ssh key generated", "path", kp.PrivateKeyPath)
		return domain.RemoteConnectivityError{Step: "precondition", Cause: domain.CauseKeyGenerated}
	}

	if out, err := o.transport.Run(ctx, target, kp.PrivateKeyPath, "true"); err != nil {
		return connectivityError("connectivity", out, err)
	}
	logger.Debug("peer reachable")

	if err := o.checkPlatform(ctx, target, kp.PrivateKeyPath); err != nil {
		return err
	}

	artifact := o.opts.Artifact
	if artifact == "" {
		if artifact, err = os.Executable(); err != nil {
			return domain.RemoteConnectivityError{Step: "transfer", Cause: domain.CauseUnknown, Err: err}
		}
	}

	defer o.cleanup(ctx, target, kp.PrivateKeyPath, logger)

	if out, err := o.transport.Copy(ctx, target, kp.PrivateKeyPath, artifact, ArtifactPath); err != nil {
		return connectivityError("transfer", out, err)
	}
	logger.Info("artifact transferred", "path", ArtifactPath)

	cmd := fmt.Sprintf("chmod 0755 %s && %s=1 %s setup local", ArtifactPath, HopEnv, ArtifactPath)
	out, err := o.transport.Run(ctx, target, kp.PrivateKeyPath, cmd)
	if err != nil {
		rce := connectivityError("trigger", out, err)
		if rce.Cause == domain.CauseUnknown {
			rce.Cause = domain.CauseRemoteExecFailed
		}
		return rce
	}
	o.relay(target, out)
	return nil
}

// relay copies the peer's own setup report to the notice writer, one
// prefixed line at a time.
func (o *Orchestrator) relay(target domain.RemoteTarget, out []byte) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fmt.Fprintf(o.opts.Notice, "[%s] %s\n", target.Address(), sc.Text())
	}
}

func (o *Orchestrator) checkPlatform(ctx context.Context, target domain.RemoteTarget, keyPath string) error {
	out, err := o.transport.Run(ctx, target, keyPath, "uname -sm")
	if err != nil {
		return connectivityError("compatibility", out, err)
	}

	goos, goarch := o.platform()
	remoteOS, remoteArch, ok := platformFromUname(string(out))
	if !ok || remoteOS != goos || remoteArch != goarch {
		return domain.RemoteConnectivityError{
			Step:   "compatibility",
			Cause:  domain.CauseIncompatible,
			Output: fmt.Sprintf("peer reports %q, this binary is %s/%s", strings.TrimSpace(string(out)), goos, goarch),
		}
	}
	return nil
}

// cleanup removes the artifact even when ctx is already cancelled.
func (o *Orchestrator) cleanup(ctx context.Context, target domain.RemoteTarget, keyPath string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if out, err := o.transport.Run(ctx, target, keyPath, "rm -f "+ArtifactPath); err != nil {
		logger.Warn("remove remote artifact", "err", err, "output", strings.TrimSpace(string(out)))
	}
}

func connectivityError(step string, out []byte, err error) domain.RemoteConnectivityError {
	cause := Classify(string(out))
	if errors.Is(err, context.DeadlineExceeded) {
		cause = domain.CauseHostUnreachable
	}
	return domain.RemoteConnectivityError{Step: step, Cause: cause, Output: string(out), Err: err}
}
