// Package config loads and validates the ledger's configuration:
// defaults, then a YAML file, then AUDITLEDGER_* environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (AUDITLEDGER_*). A missing file is
// not an error; defaults apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// A double underscore separates path segments, a single one is
	// literal: AUDITLEDGER_SQLITE_PATH -> sqlite_path,
	// AUDITLEDGER_SERVER__PORT -> server.port,
	// AUDITLEDGER_LIMITS__METADATA_MAX_BYTES -> limits.metadata_max_bytes.
	if err := k.Load(env.Provider("AUDITLEDGER_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "AUDITLEDGER_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validStores is the set of recognized store kinds.
var validStores = map[string]bool{
	"sqlite":   true,
	"postgres": true,
	"memory":   true,
}

// validLogLevels is the set of recognized log levels.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if !validStores[c.Store] {
		return fmt.Errorf("invalid store %q: must be one of sqlite, postgres, memory", c.Store)
	}
	if c.Store == "sqlite" && c.SQLitePath == "" {
		return fmt.Errorf("sqlite_path is required for the sqlite store")
	}
	if c.Store == "postgres" && c.Postgres.DBName == "" {
		return fmt.Errorf("postgres.dbname is required for the postgres store")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	if c.Limits.MetadataMaxBytes <= 0 {
		return fmt.Errorf("limits.metadata_max_bytes must be positive")
	}
	if c.Limits.SearchMaxLimit <= 0 {
		return fmt.Errorf("limits.search_max_limit must be positive")
	}
	if c.Limits.IdempotencyWindow <= 0 {
		return fmt.Errorf("limits.idempotency_window must be positive")
	}

	if c.LogLevel != "" && !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q: must be one of debug, info, warn, error", c.LogLevel)
	}

	return nil
}

// PostgresDSN renders the lib/pq connection string.
func (c *Config) PostgresDSN() string {
	p := c.Postgres
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}
