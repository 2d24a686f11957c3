package config

import (
	"time"

	"github.com/nchat-dev/auditledger/internal/chain"
	"github.com/nchat-dev/auditledger/internal/ledger"
	"github.com/nchat-dev/auditledger/internal/search"
)

// DefaultConfig returns a Config with sensible defaults: a local
// SQLite ledger, auth disabled, standard limits.
func DefaultConfig() *Config {
	return &Config{
		Store:      "sqlite",
		SQLitePath: "auditledger.db",
		Postgres: PostgresConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "auditledger",
			DBName:  "auditledger",
			SSLMode: "disable",
		},
		Server: ServerConfig{
			Port:           8440,
			AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Limits: LimitsConfig{
			MetadataMaxBytes:  ledger.MaxMetadataBytes,
			SearchMaxLimit:    search.MaxLimit,
			IdempotencyWindow: chain.DefaultIdempotencyWindow,
		},
		Syslog: SyslogConfig{
			App: "auditledger",
		},
		LogLevel: "info",
	}
}
