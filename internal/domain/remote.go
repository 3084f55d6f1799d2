package domain

import (
	"fmt"
	"time"
)

// DefaultSSHPort is used when no remote port is configured.
const DefaultSSHPort = 22

// RemoteTarget is the peer that receives a replica of the local provisioning.
type RemoteTarget struct {
	Host              string
	User              string
	Port              int
	ConnectTimeout    time.Duration
	KeepaliveInterval time.Duration
}

// Address returns user@host.
func (t RemoteTarget) Address() string {
	return fmt.Sprintf("%s@%s", t.User, t.Host)
}

func (t RemoteTarget) String() string {
	return fmt.Sprintf("%s:%d", t.Address(), t.Port)
}

// Mode is the CLI-selected scope of a provisioning run.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
	ModeBoth   Mode = "both"
)

// ParseMode validates a mode argument.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLocal, ModeRemote, ModeBoth:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid mode %q (expected local, remote or both)", s)
	}
}

// IncludesLocal reports whether the mode provisions this machine.
func (m Mode) IncludesLocal() bool { return m == ModeLocal || m == ModeBoth }

// IncludesRemote reports whether the mode provisions the peer.
func (m Mode) IncludesRemote() bool { return m == ModeRemote || m == ModeBoth }

// RemoteExplicit is true when remote provisioning is the sole requested action.
func (m Mode) RemoteExplicit() bool { return m == ModeRemote }

// Result is the result kind of one provisioning attempt.
type Result string

const (
	ResultSuccess Result = "success"
	ResultSkipped Result = "skipped"
	ResultFailed  Result = "failed"
)

// ProvisioningOutcome is produced once per target per run.
type ProvisioningOutcome struct {
	Remote *RemoteTarget
	Result Result
	Reason string

	// Err is the cause behind a failed or skipped outcome.
	Err error
}

// Target names the outcome's target for summaries.
func (o ProvisioningOutcome) Target() string {
	if o.Remote == nil {
		return "local"
	}
	return "remote " + o.Remote.String()
}

// LocalSuccess builds the outcome of a completed local pipeline.
func LocalSuccess() ProvisioningOutcome {
	return ProvisioningOutcome{Result: ResultSuccess}
}

// RemoteOutcome maps a remote error onto an outcome. Errors degrade to
// Skipped only when remote provisioning was opportunistic.
func RemoteOutcome(target RemoteTarget, err error, explicit bool) ProvisioningOutcome {
	t := target
	if err == nil {
		return ProvisioningOutcome{Remote: &t, Result: ResultSuccess}
	}
	res := ResultSkipped
	if explicit {
		res = ResultFailed
	}
	return ProvisioningOutcome{Remote: &t, Result: res, Reason: err.Error(), Err: err}
}
