package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nchat-dev/auditledger/internal/export"
	"github.com/nchat-dev/auditledger/internal/search"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export matching entries in a SIEM-ready format",
	Long: `Streams matching entries to stdout or a file as JSON, CSV, RFC 5424
syslog or CEF. The shared filter flags select which entries to export.`,
	RunE: runExport,
}

func init() {
	addFilterFlags(exportCmd)
	exportCmd.Flags().String("format", "json", "output format: json, csv, syslog, cef")
	exportCmd.Flags().String("out", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
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

	filter, err := filterFromFlags(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	outPath, _ := cmd.Flags().GetString("out")

	var out io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	exporter := export.New(search.NewIndex(st), export.Options{
		Hostname: cfg.Syslog.Hostname,
		App:      cfg.Syslog.App,
		Version:  Version,
	}, log)

	result, err := exporter.Export(context.Background(), filter, format, out)
	if err != nil {
		return fmt.Errorf("exporting entries: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Exported %d entries as %s\n", result.Count, format)
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: block %d: %s: %s\n", w.Block, w.Field, w.Reason)
	}
	return nil
}
