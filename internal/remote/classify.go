package remote

import (
	"runtime"
	"strings"

	"github.com/mori-agent/mori/internal/domain"
)

var causePatterns = []struct {
	needle string
	cause  domain.ConnectivityCause
}{
	{"REMOTE HOST IDENTIFICATION HAS CHANGED", domain.CauseHostKeyMismatch},
	{"Host key verification failed", domain.CauseHostKeyMismatch},
	{"Permission denied (publickey", domain.CauseKeyNotTrusted},
	{"Permission denied", domain.CauseAccessDenied},
	{"Connection refused", domain.CausePortClosed},
	{"Could not resolve hostname", domain.CauseHostUnreachable},
	{"No route to host", domain.CauseHostUnreachable},
	{"Network is unreachable", domain.CauseHostUnreachable},
	{"Connection timed out", domain.CauseHostUnreachable},
	{"Operation timed out", domain.CauseHostUnreachable},
}

// Classify maps ssh/scp output to the remediable cause it reports.
func Classify(output string) domain.ConnectivityCause {
	for _, p := range causePatterns {
		if strings.Contains(output, p.needle) {
			return p.cause
		}
	}
	return domain.CauseUnknown
}

var unameOS = map[string]string{
	"Linux":  "linux",
	"Darwin": "darwin",
}

var unameArch = map[string]string{
	"x86_64":  "amd64",
	"amd64":   "amd64",
	"aarch64": "arm64",
	"arm64":   "arm64",
}

// platformFromUname converts `uname -sm` output to GOOS/GOARCH.
func platformFromUname(out string) (goos, goarch string, ok bool) {
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return "", "", false
	}
	goos, okOS := unameOS[fields[0]]
	goarch, okArch := unameArch[fields[1]]
	return goos, goarch, okOS && okArch
}

func localPlatform() (string, string) {
	return runtime.GOOS, runtime.GOARCH
}
