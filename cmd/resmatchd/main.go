package main

import (
	"os"

	"github.com/calctra/resmatch/cmd/resmatchd/cmd"
)

func main() {
	rootCmd := cmd.NewRootCmd()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
