package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calctra/resmatch/api"
	"github.com/calctra/resmatch/x/matching/types"
)

const flagTTL = "ttl"

// TokenCmd issues API bearer tokens signed with the configured secret
func TokenCmd(state *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API bearer tokens",
	}

	issue := &cobra.Command{
		Use:   "issue [identity]",
		Short: "Issue a token that lets the bearer act as identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := state.config.API.JWTSecret
			if secret == "" {
				return fmt.Errorf("api.jwt_secret is not configured; tokens would not be accepted by the server")
			}

			ttl := state.config.API.TokenTTL
			if cmd.Flags().Changed(flagTTL) {
				ttl, _ = cmd.Flags().GetDuration(flagTTL)
			}
			if ttl <= 0 {
				return fmt.Errorf("ttl must be positive")
			}

			token, err := api.NewAuthService([]byte(secret), ttl).GenerateToken(types.Identity(args[0]))
			if err != nil {
				return err
			}
			cmd.Println(token)
			return nil
		},
	}
	issue.Flags().Duration(flagTTL, 0, "token lifetime (default api.token_ttl)")

	cmd.AddCommand(issue)
	return cmd
}
