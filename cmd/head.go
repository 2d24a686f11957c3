package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nchat-dev/auditledger/internal/chain"
)

var headCmd = &cobra.Command{
	Use:   "head",
	Short: "Print the chain tip",
	Long:  `Prints the latest committed block number, its hash and timestamp.`,
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

		ctx := context.Background()
		writer, err := chain.New(ctx, st)
		if err != nil {
			return fmt.Errorf("recovering chain head: %w", err)
		}

		head := map[string]any{
			"blockNumber": writer.Head(),
			"entryHash":   writer.HeadHash(),
		}
		if block := writer.Head(); block >= 0 {
			entries, err := st.ReadRange(ctx, block, block)
			if err != nil {
				return fmt.Errorf("reading head block: %w", err)
			}
			if len(entries) == 1 {
				head["timestamp"] = entries[0].Timestamp.Format(time.RFC3339Nano)
			}
		}
		return printJSON(head)
	},
}

func init() {
	rootCmd.AddCommand(headCmd)
}
