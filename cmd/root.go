package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "auditledger",
	Short: "Tamper-evident audit ledger for team chat platforms",
	Long: `Audit Ledger records administrative and security events in an
append-only hash chain. Every entry is linked to its predecessor by a
SHA-256 hash, so any later modification or deletion of history is
detectable by re-verification.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".auditledger.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
