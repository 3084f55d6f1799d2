package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mori-agent/mori/internal/config"
)

// app carries what every subcommand needs after flags are parsed.
type app struct {
	configPath string
	debug      bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "mori",
		Short:         "Provision a local inference daemon sized to this machine",
		Long:          "mori profiles the machine, picks a model tier, brings the inference daemon up on its port and can replicate the same setup onto one peer over SSH.",
		Version:       config.Version,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Arguments are valid by now; runtime failures should not print usage.
			cmd.SilenceUsage = true
			return a.load()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (MORI_* environment variables still apply)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "verbose logging and no GPU probing")

	root.AddCommand(
		newSetupCmd(a),
		newProbeCmd(a),
		newStatusCmd(a),
		newModelsCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.debug {
		cfg.Debug = true
	}
	a.cfg = cfg
	a.logger = config.NewLogger(cfg, "mori")
	a.logger.Debug("configuration loaded",
		"version", config.Version,
		"build_time", config.BuildTime,
		"record_dir", cfg.RecordDir,
		"hop", cfg.Hop,
	)
	return nil
}
