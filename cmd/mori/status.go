package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mori-agent/mori/internal/inference"
	"github.com/mori-agent/mori/internal/records"
	"github.com/mori-agent/mori/internal/server"
)

func newStatusCmd(a *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Serve the last run's records and the daemon's liveness over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := records.NewStore(a.cfg.RecordDir)
			if err != nil {
				return err
			}
			client := inference.NewClient(a.cfg.BaseURL(), a.logger)
			srv := server.New(listen, server.NewHandler(store, client, a.logger), a.logger)
			fmt.Fprintf(cmd.OutOrStdout(), "serving status on http://%s (records in %s)\n", listen, store.Dir())
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:11500", "address for the status API")
	return cmd
}
