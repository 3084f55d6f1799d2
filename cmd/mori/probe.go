package main

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mori-agent/mori/internal/provision"
)

func newProbeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Print the capability report and model selection without touching the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := provision.New(a.cfg, a.logger, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			sel := runner.Select(cmd.Context(), uuid.NewString())

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sel)
		},
	}
}
