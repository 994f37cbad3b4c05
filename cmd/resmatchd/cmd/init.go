package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/calctra/resmatch/api"
	"github.com/calctra/resmatch/app"
	"github.com/calctra/resmatch/x/matching/types"
)

const (
	flagOverwrite = "overwrite"
	flagBackend   = "store-backend"
)

// InitCmd returns a command that writes a fresh config file into the home
// directory.
func InitCmd(state *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write a default resmatchd.toml into the home directory, with a freshly
generated API token secret.

Example:
  resmatchd init --authority ops-team --home ~/.resmatchd
`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationSkipConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := app.DefaultConfig()
			cfg.Home = state.viper.GetString("home")
			cfg.Authority = types.Identity(state.viper.GetString("authority"))
			cfg.Log.Level = state.viper.GetString("log.level")
			cfg.Log.Format = state.viper.GetString("log.format")
			if backend, _ := cmd.Flags().GetString(flagBackend); backend != "" {
				cfg.Store.Backend = backend
			}

			secret := make([]byte, api.MinSecretLength)
			if _, err := rand.Read(secret); err != nil {
				return fmt.Errorf("failed to generate API secret: %w", err)
			}
			cfg.API.JWTSecret = hex.EncodeToString(secret)

			if err := cfg.Validate(); err != nil {
				return err
			}

			path := state.configFile
			if path == "" {
				path = filepath.Join(cfg.Home, app.ConfigFileName+".toml")
			}
			overwrite, _ := cmd.Flags().GetBool(flagOverwrite)
			if _, err := os.Stat(path); err == nil && !overwrite {
				return fmt.Errorf("config file already exists: %s", path)
			}

			if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
				return err
			}

			out := app.NewViper()
			if err := out.MergeConfigMap(cfg.Settings()); err != nil {
				return err
			}
			if err := out.WriteConfigAs(path); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			if err := os.Chmod(path, 0o600); err != nil {
				return err
			}

			cmd.Printf("wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().Bool(flagOverwrite, false, "overwrite an existing config file")
	cmd.Flags().String(flagBackend, "", "store backend (goleveldb|pebbledb|memdb)")
	return cmd
}
