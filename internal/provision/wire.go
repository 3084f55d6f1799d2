package provision

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/mori-agent/mori/internal/config"
	"github.com/mori-agent/mori/internal/gpu"
	"github.com/mori-agent/mori/internal/inference"
	"github.com/mori-agent/mori/internal/network"
	"github.com/mori-agent/mori/internal/records"
	"github.com/mori-agent/mori/internal/remote"
	"github.com/mori-agent/mori/internal/selector"
	"github.com/mori-agent/mori/internal/supervisor"
	"github.com/mori-agent/mori/internal/system"
)

// ServiceLogFile receives the daemon's stdout and stderr.
const ServiceLogFile = "service.log"

// New wires the runner's collaborators from cfg. Operator instructions
// such as a public key to trust are written to notice.
func New(cfg *config.Config, logger *slog.Logger, notice io.Writer) (*Runner, error) {
	store, err := records.NewStore(cfg.RecordDir)
	if err != nil {
		return nil, fmt.Errorf("init records: %w", err)
	}

	sel, err := selector.New()
	if err != nil {
		return nil, fmt.Errorf("init selector: %w", err)
	}

	detector := gpu.NewDetector(cfg.Debug, logger)
	prober := system.NewProber(system.NewSource(), detector, store, logger)
	client := inference.NewClient(cfg.BaseURL(), logger)

	sup := supervisor.New(
		supervisor.Options{
			Name:           filepath.Base(cfg.ServiceBinary),
			Port:           cfg.Port,
			HealthEndpoint: client.HealthEndpoint(),
		},
		supervisor.SystemProcessTable{},
		supervisor.ExecLauncher{
			Binary:  cfg.ServiceBinary,
			Addr:    cfg.ServiceAddr(),
			LogPath: filepath.Join(cfg.RecordDir, ServiceLogFile),
		},
		client,
		network.NewPortChecker(cfg.Host),
		logger,
	)

	orch := remote.NewOrchestrator(remote.NewSSHTransport(), remote.Options{
		KeyDir: cfg.SSHKeyDir,
		Notice: notice,
	}, logger)

	home, err := os.UserHomeDir()
	if err != nil {
		home = string(filepath.Separator)
	}

	return &Runner{
		cfg:        cfg,
		logger:     logger,
		prober:     prober,
		selector:   sel,
		records:    store,
		supervisor: sup,
		models:     client,
		remote:     orch,
		lookPath:   exec.LookPath,
		freeDisk:   system.FreeDiskBytes,
		homeDir:    home,
	}, nil
}
