package supervisor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// SystemProcessTable uses pgrep and lsof.
type SystemProcessTable struct{}

func (SystemProcessTable) FindByName(ctx context.Context, name string) ([]int, error) {
	return pidsFrom(exec.CommandContext(ctx, "pgrep", "-x", name))
}

func (SystemProcessTable) PortOwners(ctx context.Context, port int) ([]int, error) {
	return pidsFrom(exec.CommandContext(ctx, "lsof", "-t", "-iTCP:"+strconv.Itoa(port), "-sTCP:LISTEN"))
}

// pidsFrom runs a pid-listing command. Exit status 1 means "no match" for
// both pgrep and lsof.
func pidsFrom(cmd *exec.Cmd) ([]int, error) {
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", cmd.Path, err)
	}
	return parsePids(out), nil
}

func parsePids(out []byte) []int {
	var pids []int
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		pid, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
		if err == nil && pid > 0 {
			pids = append(pids, pid)
		}
	}
	return pids
}

// ExecLauncher starts `<binary> serve` in its own session with output
// appended to LogPath.
type ExecLauncher struct {
	Binary  string
	Addr    string
	LogPath string
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func (p *execProcess) Pid() int { return p.cmd.Process.Pid }

func (p *execProcess) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (l ExecLauncher) Launch(ctx context.Context) (Process, error) {
	path, err := exec.LookPath(l.Binary)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", l.Binary, err)
	}

	if err := os.MkdirAll(filepath.Dir(l.LogPath), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(l.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open service log: %w", err)
	}
	defer logFile.Close()

	// Not CommandContext: the daemon must outlive this run.
	cmd := exec.Command(path, "serve")
	cmd.Env = append(os.Environ(), "OLLAMA_HOST="+l.Addr)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = detachedAttr()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", l.Binary, err)
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}
