package domain

import (
	"fmt"
	"strings"
)

// PreconditionError reports a missing tool or insufficient resource found
// before any mutation was attempted.
type PreconditionError struct {
	Check  string
	Detail string
}

func (e PreconditionError) Error() string {
	return fmt.Sprintf("precondition %s failed: %s", e.Check, e.Detail)
}

// ResourceContentionError reports a port that stayed occupied after every
// remediation attempt.
type ResourceContentionError struct {
	Port       int
	Attempts   int
	Diagnostic string
	Err        error
}

func (e ResourceContentionError) Error() string {
	return fmt.Sprintf("port %d still in use after %d attempts; inspect it with: %s", e.Port, e.Attempts, e.Diagnostic)
}

func (e ResourceContentionError) Unwrap() error {
	return e.Err
}

// ServiceStartupError reports a service that did not launch, died right after
// launch or never became healthy.
type ServiceStartupError struct {
	Stage     string
	LastState ServiceState
	Err       error
}

func (e ServiceStartupError) Error() string {
	return fmt.Sprintf("service %s failed (state %s): %v", e.Stage, e.LastState, e.Err)
}

func (e ServiceStartupError) Unwrap() error {
	return e.Err
}

// ConnectivityCause is the remediable reason a peer could not be used.
type ConnectivityCause string

const (
	CauseToolingMissing   ConnectivityCause = "tooling_missing"
	CauseKeyGenerated     ConnectivityCause = "key_generated"
	CauseKeyNotTrusted    ConnectivityCause = "key_not_trusted"
	CauseHostUnreachable  ConnectivityCause = "host_unreachable"
	CausePortClosed       ConnectivityCause = "port_closed"
	CauseAccessDenied     ConnectivityCause = "access_denied"
	CauseHostKeyMismatch  ConnectivityCause = "host_key_mismatch"
	CauseIncompatible     ConnectivityCause = "incompatible_platform"
	CauseRemoteExecFailed ConnectivityCause = "remote_exec_failed"
	CauseUnknown          ConnectivityCause = "unknown"
)

var causeHints = map[ConnectivityCause]string{
	CauseToolingMissing:   "install an OpenSSH client (ssh and scp)",
	CauseKeyGenerated:     "a new key pair was generated; add the public key to the peer's authorized_keys and re-run",
	CauseKeyNotTrusted:    "the peer rejected the key; run ssh-copy-id for this key",
	CauseHostUnreachable:  "check the host name and network route",
	CausePortClosed:       "check that sshd listens on the configured port",
	CauseAccessDenied:     "check that the remote user exists and may log in",
	CauseHostKeyMismatch:  "the peer's host key changed; verify it and update known_hosts",
	CauseIncompatible:     "the peer's OS/architecture differs from this binary",
	CauseRemoteExecFailed: "inspect the remote output above",
}

// Hint returns the operator remediation for the cause.
func (c ConnectivityCause) Hint() string {
	if h, ok := causeHints[c]; ok {
		return h
	}
	return "re-run with --debug and inspect the ssh output"
}

// RemoteConnectivityError reports a remote step that could not complete.
type RemoteConnectivityError struct {
	Step   string
	Cause  ConnectivityCause
	Output string
	Err    error
}

func (e RemoteConnectivityError) Error() string {
	msg := fmt.Sprintf("remote %s: %s (%s)", e.Step, e.Cause, e.Cause.Hint())
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e RemoteConnectivityError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports missing or malformed settings.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Field, e.Reason)
}
