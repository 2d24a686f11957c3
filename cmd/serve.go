package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nchat-dev/auditledger/internal/auth"
	"github.com/nchat-dev/auditledger/internal/chain"
	"github.com/nchat-dev/auditledger/internal/export"
	"github.com/nchat-dev/auditledger/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the audit ledger HTTP server",
	Long: `Starts the HTTP API: append, search, verification, export and a
websocket stream of committed entries.`,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		writer, err := chain.New(context.Background(), st,
			chain.WithLogger(log),
			chain.WithIdempotencyWindow(cfg.Limits.IdempotencyWindow),
			chain.WithMetadataCap(cfg.Limits.MetadataMaxBytes),
		)
		if err != nil {
			return fmt.Errorf("recovering chain head: %w", err)
		}

		port := cfg.Server.Port
		if servePort != 0 {
			port = servePort
		}

		srv := server.New(server.Config{
			Port:           port,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			SearchMaxLimit: cfg.Limits.SearchMaxLimit,
			Export: export.Options{
				Hostname: cfg.Syslog.Hostname,
				App:      cfg.Syslog.App,
				Version:  Version,
			},
		}, st, writer, auth.NewService(cfg.Auth.Secret), log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			srv.Shutdown(context.Background())
		}()

		fmt.Fprintf(os.Stderr, "auditledger v%s starting on port %d\n", Version, port)
		fmt.Fprintf(os.Stderr, "  Store: %s\n", cfg.Store)
		fmt.Fprintf(os.Stderr, "  Head:  block %d\n", writer.Head())
		if !auth.NewService(cfg.Auth.Secret).Enabled() {
			fmt.Fprintln(os.Stderr, "  Auth:  disabled (no secret configured)")
		}

		if err := srv.Start(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "override the configured HTTP port")
	rootCmd.AddCommand(serveCmd)
}
