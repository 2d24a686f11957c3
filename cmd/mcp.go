package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nchat-dev/auditledger/internal/chain"
	mcpserver "github.com/nchat-dev/auditledger/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long: `Starts a Model Context Protocol (MCP) server on stdio, exposing audit
search and verification tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		st, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()

		writer, err := chain.New(context.Background(), st)
		if err != nil {
			return fmt.Errorf("recovering chain head: %w", err)
		}

		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "auditledger MCP server started on stdio (store=%s, head=%d)\n",
			cfg.Store, writer.Head())

		srv := mcpserver.NewServer(st, writer)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
