package cmd

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/calctra/resmatch/app"
)

const flagOutput = "output"

// ExportCmd dumps the matching store as a genesis document
func ExportCmd(state *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the matching state as genesis JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := state.config
			cfg.Telemetry.MetricsAddress = ""
			cfg.Telemetry.TracingEnabled = false

			matchingApp, err := app.New(cfg, state.logger)
			if err != nil {
				return err
			}
			defer matchingApp.Close(context.Background())

			gs, err := matchingApp.Keeper.ExportGenesis(cmd.Context())
			if err != nil {
				return err
			}

			if out, _ := cmd.Flags().GetString(flagOutput); out != "" {
				return app.WriteGenesis(out, *gs)
			}
			bz, err := json.MarshalIndent(gs, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(bz))
			return nil
		},
	}
	cmd.Flags().String(flagOutput, "", "write to this file instead of stdout")
	return cmd
}
