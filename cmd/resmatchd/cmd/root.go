package cmd

import (
	"fmt"

	"cosmossdk.io/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/calctra/resmatch/app"
)

const (
	flagHome      = "home"
	flagConfig    = "config"
	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"
	flagAuthority = "authority"
)

// rootState is filled by the root pre-run and read by every subcommand
type rootState struct {
	viper      *viper.Viper
	config     app.Config
	configFile string
	logger     log.Logger
}

// NewRootCmd creates the resmatchd root command
func NewRootCmd() *cobra.Command {
	state := &rootState{viper: app.NewViper()}

	rootCmd := &cobra.Command{
		Use:   "resmatchd",
		Short: "Compute resource matching daemon",
		Long: `resmatchd matches computation requests to registered compute resources
and tracks each engagement from match to settlement.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SetOut(cmd.OutOrStdout())
			cmd.SetErr(cmd.ErrOrStderr())
			return state.load(cmd)
		},
	}

	rootCmd.PersistentFlags().String(flagHome, app.DefaultNodeHome, "directory for config and data")
	rootCmd.PersistentFlags().String(flagConfig, "", "config file (default is <home>/resmatchd.toml)")
	rootCmd.PersistentFlags().String(flagLogLevel, "info", "log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().String(flagLogFormat, app.LogFormatPlain, "log format (plain|json)")
	rootCmd.PersistentFlags().String(flagAuthority, "", "identity allowed to match any request and update params")

	rootCmd.AddCommand(
		InitCmd(state),
		StartCmd(state),
		ConfigCmd(state),
		TokenCmd(state),
		ExportCmd(state),
		VersionCmd(),
	)
	return rootCmd
}

// load binds the persistent flags into viper and decodes the config
func (s *rootState) load(cmd *cobra.Command) error {
	bindings := map[string]string{
		"home":       flagHome,
		"log.level":  flagLogLevel,
		"log.format": flagLogFormat,
		"authority":  flagAuthority,
	}
	for key, flag := range bindings {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := s.viper.BindPFlag(key, f); err != nil {
			return err
		}
	}

	s.configFile, _ = cmd.Flags().GetString(flagConfig)
	if cmd.Annotations[annotationSkipConfig] == "true" {
		return nil
	}

	cfg, err := app.LoadConfig(s.viper, s.configFile)
	if err != nil {
		return err
	}
	s.config = cfg

	s.logger, err = app.NewLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	return nil
}

// annotationSkipConfig marks commands that run before a valid config exists
const annotationSkipConfig = "resmatchd/skip-config"
