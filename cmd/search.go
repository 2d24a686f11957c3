package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nchat-dev/auditledger/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the ledger with filters",
	Long: `Queries committed entries. All given filters combine; omitted filters
match everything. Results page newest first by default.`,
	RunE: runSearch,
}

func init() {
	addFilterFlags(searchCmd)
	searchCmd.Flags().Int("limit", 0, "page size (default 50, max 500)")
	searchCmd.Flags().Int("offset", 0, "entries to skip")
	searchCmd.Flags().String("sort-by", "", "sort key: timestamp, severity, actor, action")
	searchCmd.Flags().String("sort-order", "", "sort order: asc or desc")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	filter, err := filterFromFlags(cmd)
	if err != nil {
		return err
	}
	filter.Limit, _ = cmd.Flags().GetInt("limit")
	filter.Offset, _ = cmd.Flags().GetInt("offset")
	filter.SortBy, _ = cmd.Flags().GetString("sort-by")
	filter.SortOrder, _ = cmd.Flags().GetString("sort-order")

	index := search.NewIndex(st, search.WithMaxLimit(cfg.Limits.SearchMaxLimit))
	result, err := index.Search(context.Background(), filter)
	if err != nil {
		return fmt.Errorf("searching ledger: %w", err)
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(result)
	}

	if result.Total == 0 {
		fmt.Println("No entries match the given filters.")
		return nil
	}
	for _, e := range result.Entries {
		printEntry(e)
	}
	fmt.Printf("\n%d of %d matching entries", len(result.Entries), result.Total)
	if result.HasMore {
		fmt.Printf(" (use --offset %d for the next page)", filter.Offset+len(result.Entries))
	}
	fmt.Println()
	return nil
}
