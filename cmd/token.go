package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nchat-dev/auditledger/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an API access token",
	Long: `Mints a signed bearer token for the HTTP API. Requires an auth secret
in the config; without one the API runs open and needs no tokens.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		svc := auth.NewService(cfg.Auth.Secret)
		if !svc.Enabled() {
			return fmt.Errorf("no auth secret configured; set auth.secret in %s first", cfgFile)
		}

		scope, _ := cmd.Flags().GetString("scope")
		if !auth.ValidScope(scope) {
			return fmt.Errorf("unknown scope %q: want append, read or admin", scope)
		}

		ttl, _ := cmd.Flags().GetDuration("ttl")
		if ttl <= 0 {
			ttl = cfg.Auth.TokenTTL
		}

		token, err := svc.Mint(scope, ttl)
		if err != nil {
			return fmt.Errorf("minting token: %w", err)
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("scope", "read", "token scope: append, read or admin")
	tokenCmd.Flags().Duration("ttl", 0, "token lifetime (default: config token_ttl)")
	rootCmd.AddCommand(tokenCmd)
}
