// Package remote replicates the local provisioning pipeline onto one peer
// over the system OpenSSH client.
package remote

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/mori-agent/mori/internal/domain"
)

// Transport executes commands on and copies files to a peer.
type Transport interface {
	// Available reports whether the transport tooling is installed.
	Available() error
	Run(ctx context.Context, target domain.RemoteTarget, keyPath, command string) ([]byte, error)
	Copy(ctx context.Context, target domain.RemoteTarget, keyPath, localPath, remotePath string) ([]byte, error)
}

// SSHTransport shells out to ssh and scp with a fixed non-interactive
// option set.
type SSHTransport struct {
	lookPath func(string) (string, error)
}

func NewSSHTransport() *SSHTransport {
	return &SSHTransport{lookPath: exec.LookPath}
}

func (t *SSHTransport) Available() error {
	for _, bin := range []string{"ssh", "scp"} {
		if _, err := t.lookPath(bin); err != nil {
			return fmt.Errorf("%s not found in PATH: %w", bin, err)
		}
	}
	return nil
}

func (t *SSHTransport) Run(ctx context.Context, target domain.RemoteTarget, keyPath, command string) ([]byte, error) {
	args := append(options(target, keyPath), "-p", strconv.Itoa(target.Port), target.Address(), command)
	return exec.CommandContext(ctx, "ssh", args...).CombinedOutput()
}

func (t *SSHTransport) Copy(ctx context.Context, target domain.RemoteTarget, keyPath, localPath, remotePath string) ([]byte, error) {
	args := append(options(target, keyPath), "-P", strconv.Itoa(target.Port), localPath, target.Address()+":"+remotePath)
	return exec.CommandContext(ctx, "scp", args...).CombinedOutput()
}

// options is shared by ssh and scp: key auth only, host key accepted on
// first use, bounded connect and keepalive.
func options(target domain.RemoteTarget, keyPath string) []string {
	args := []string{
		"-o", "BatchMode=yes",
		"-o", "PasswordAuthentication=no",
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", "ConnectTimeout=" + seconds(target.ConnectTimeout),
		"-o", "ServerAliveInterval=" + seconds(target.KeepaliveInterval),
		"-o", "ServerAliveCountMax=3",
		"-o", "LogLevel=ERROR",
	}
	if keyPath != "" {
		args = append(args, "-i", keyPath)
	}
	return args
}

func seconds(d time.Duration) string {
	s := int(d / time.Second)
	if s < 1 {
		s = 1
	}
	return strconv.Itoa(s)
}
