package cmd

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/calctra/resmatch/app/telemetry"
)

// Set via -ldflags "-X github.com/calctra/resmatch/cmd/resmatchd/cmd.Commit=..."
var Commit = ""

func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationSkipConfig: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("resmatchd %s", telemetry.ServiceVersion)
			if Commit != "" {
				cmd.Printf(" (%s)", Commit)
			}
			cmd.Printf(" %s\n", runtime.Version())
		},
	}
}
