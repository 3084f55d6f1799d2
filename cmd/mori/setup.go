package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mori-agent/mori/internal/domain"
	"github.com/mori-agent/mori/internal/provision"
)

func newSetupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "setup [local|remote|both]",
		Short: "Provision this machine, the configured peer, or both (default)",
		Long: `Provision the inference daemon.

  local   probe, select a model and bring the daemon up on this machine
  remote  replicate the local setup onto MORI_REMOTE_HOST over SSH
  both    local first, then remote; remote problems are reported but not fatal`,
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(domain.ModeLocal), string(domain.ModeRemote), string(domain.ModeBoth)},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := domain.ModeBoth
			if len(args) == 1 {
				m, err := domain.ParseMode(args[0])
				if err != nil {
					return err
				}
				mode = m
			}

			runner, err := provision.New(a.cfg, a.logger, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			summary, runErr := runner.Run(cmd.Context(), mode)
			if summary != nil {
				if err := summary.Render(cmd.OutOrStdout()); err != nil {
					return fmt.Errorf("render summary: %w", err)
				}
			}
			return runErr
		},
	}
}
