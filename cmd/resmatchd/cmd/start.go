package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/calctra/resmatch/api"
	"github.com/calctra/resmatch/app"
)

// StartCmd runs the matching API until interrupted
func StartCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the matching service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			matchingApp, err := app.New(state.config, state.logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := matchingApp.Close(context.Background()); err != nil {
					state.logger.Error("shutdown failed", "error", err)
				}
			}()

			if addr := state.config.Telemetry.MetricsAddress; addr != "" {
				serveMetrics(ctx, addr, state.logger)
			}

			server, err := api.NewServer(
				state.logger,
				state.config.API,
				matchingApp.Keeper,
				matchingApp.Events,
				matchingApp.Health,
			)
			if err != nil {
				return err
			}
			return server.Start(ctx)
		},
	}
}
