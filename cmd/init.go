package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nchat-dev/auditledger/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the ledger configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure the ledger and writes a .auditledger.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
