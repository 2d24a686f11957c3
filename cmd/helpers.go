package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nchat-dev/auditledger/internal/config"
	"github.com/nchat-dev/auditledger/internal/ledger"
	"github.com/nchat-dev/auditledger/internal/search"
	"github.com/nchat-dev/auditledger/internal/store"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `auditledger init` to create a config file", err)
	}
	return cfg, nil
}

// newLogger builds the CLI logger. Output goes to stderr so stdout
// stays clean for command output and the MCP protocol.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.LogLevel != "" {
		if err := level.Set(cfg.LogLevel); err != nil {
			return nil, fmt.Errorf("parsing log level: %w", err)
		}
	}
	if verbose {
		level = zapcore.DebugLevel
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}

// openStore opens the configured ledger store backend.
func openStore(cfg *config.Config) (store.Store, error) {
	return store.Open(store.Options{
		Kind:        cfg.Store,
		SQLitePath:  cfg.SQLitePath,
		PostgresDSN: cfg.PostgresDSN(),
	})
}

// addFilterFlags registers the entry filter flags shared by the search
// and export commands.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("category", nil, "filter by category (repeatable)")
	cmd.Flags().StringSlice("severity", nil, "filter by severity (repeatable)")
	cmd.Flags().String("actor", "", "filter by exact actor ID")
	cmd.Flags().String("query", "", "substring match against descriptions and actions")
	cmd.Flags().String("action-glob", "", "glob pattern over the action taxonomy, e.g. 'user.*'")
	cmd.Flags().String("success", "", "filter by outcome: true or false")
	cmd.Flags().String("from", "", "earliest timestamp, RFC 3339")
	cmd.Flags().String("to", "", "latest timestamp, RFC 3339")
}

// filterFromFlags builds a search filter from the shared flags.
func filterFromFlags(cmd *cobra.Command) (search.Filter, error) {
	var filter search.Filter

	filter.Categories, _ = cmd.Flags().GetStringSlice("category")
	filter.Severities, _ = cmd.Flags().GetStringSlice("severity")
	filter.ActorID, _ = cmd.Flags().GetString("actor")
	filter.SearchText, _ = cmd.Flags().GetString("query")
	filter.ActionGlob, _ = cmd.Flags().GetString("action-glob")

	if v, _ := cmd.Flags().GetString("success"); v != "" {
		b := v == "true"
		if v != "true" && v != "false" {
			return filter, fmt.Errorf("parsing success: want true or false, got %q", v)
		}
		filter.Success = &b
	}
	if v, _ := cmd.Flags().GetString("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("parsing from: %w", err)
		}
		filter.FromTime = &t
	}
	if v, _ := cmd.Flags().GetString("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("parsing to: %w", err)
		}
		filter.ToTime = &t
	}

	return filter, nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// printEntry writes one entry as a human-readable line.
func printEntry(e ledger.Entry) {
	outcome := "ok"
	if !e.Success {
		outcome = "FAILED"
	}
	fmt.Printf("#%-6d %s  %-8s %-10s %-28s %-7s %s\n",
		e.BlockNumber,
		e.Timestamp.Format(time.RFC3339),
		e.Severity,
		e.Category,
		e.Action,
		outcome,
		e.Description,
	)
}
