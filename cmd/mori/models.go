package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mori-agent/mori/internal/inference"
)

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models the inference daemon already has",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := inference.NewClient(a.cfg.BaseURL(), a.logger).Models(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(out, "No models available.")
				return nil
			}
			fmt.Fprintln(out, "Available models:")
			for _, name := range names {
				fmt.Fprintf(out, "- %s\n", name)
			}
			return nil
		},
	}
}
