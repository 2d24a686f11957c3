package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nchat-dev/auditledger/internal/chain"
	"github.com/nchat-dev/auditledger/internal/ledger"
)

var appendCmd = &cobra.Command{
	Use:   "append",
	Short: "Append one entry to the ledger",
	Long: `Appends a single audit entry to the chain and prints the committed
entry, including its assigned block number and hash.`,
	RunE: runAppend,
}

func init() {
	appendCmd.Flags().String("actor", "", "actor ID (required)")
	appendCmd.Flags().String("actor-type", "user", "actor type: user, system, bot, service")
	appendCmd.Flags().String("action", "", "dotted action name, e.g. user.login (required)")
	appendCmd.Flags().String("category", "other", "entry category")
	appendCmd.Flags().String("severity", "info", "entry severity")
	appendCmd.Flags().String("description", "", "human-readable description (required)")
	appendCmd.Flags().String("resource-type", "", "affected resource type")
	appendCmd.Flags().String("resource-id", "", "affected resource ID")
	appendCmd.Flags().String("resource-name", "", "affected resource name")
	appendCmd.Flags().String("metadata", "", "extra context as a JSON object")
	appendCmd.Flags().Bool("failed", false, "record the action as failed")
	appendCmd.Flags().String("idempotency-key", "", "dedup key for retries (default: random)")
	appendCmd.MarkFlagRequired("actor")
	appendCmd.MarkFlagRequired("action")
	appendCmd.MarkFlagRequired("description")
	rootCmd.AddCommand(appendCmd)
}

func runAppend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	writer, err := chain.New(ctx, st,
		chain.WithLogger(log),
		chain.WithMetadataCap(cfg.Limits.MetadataMaxBytes),
	)
	if err != nil {
		return fmt.Errorf("recovering chain head: %w", err)
	}

	actorID, _ := cmd.Flags().GetString("actor")
	actorType, _ := cmd.Flags().GetString("actor-type")
	action, _ := cmd.Flags().GetString("action")
	category, _ := cmd.Flags().GetString("category")
	severity, _ := cmd.Flags().GetString("severity")
	description, _ := cmd.Flags().GetString("description")
	failed, _ := cmd.Flags().GetBool("failed")
	key, _ := cmd.Flags().GetString("idempotency-key")
	if key == "" {
		key = uuid.NewString()
	}

	in := chain.Input{
		Actor:          ledger.Actor{ID: actorID, Type: ledger.ParseActorType(actorType)},
		Action:         action,
		Category:       ledger.ParseCategory(category),
		Severity:       ledger.ParseSeverity(severity),
		Description:    description,
		Success:        !failed,
		IdempotencyKey: key,
	}

	if rt, _ := cmd.Flags().GetString("resource-type"); rt != "" {
		rid, _ := cmd.Flags().GetString("resource-id")
		rname, _ := cmd.Flags().GetString("resource-name")
		in.Resource = &ledger.Resource{Type: rt, ID: rid, Name: rname}
	}

	if raw, _ := cmd.Flags().GetString("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Metadata); err != nil {
			return fmt.Errorf("parsing metadata: %w", err)
		}
	}

	entry, replayed, err := writer.Append(ctx, in)
	if err != nil {
		return fmt.Errorf("appending entry: %w", err)
	}
	if replayed {
		fmt.Fprintf(os.Stderr, "idempotency key already committed as block %d\n", entry.BlockNumber)
	}
	return printJSON(entry)
}
