package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store != "sqlite" || cfg.Server.Port != 8440 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadReadsYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".auditledger.yml")
	content := []byte("store: memory\nserver:\n  port: 9000\nlog_level: debug\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store != "memory" {
		t.Errorf("Store = %q, want memory", cfg.Store)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	// Untouched keys keep their defaults.
	if cfg.SQLitePath != "auditledger.db" {
		t.Errorf("SQLitePath = %q, want default", cfg.SQLitePath)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".auditledger.yml")
	if err := os.WriteFile(path, []byte("store: sqlite\n"), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	t.Setenv("AUDITLEDGER_STORE", "memory")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store != "memory" {
		t.Errorf("Store = %q, want env override memory", cfg.Store)
	}
}

func TestEnvOverridesUnderscoreAndNestedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".auditledger.yml")
	if err := os.WriteFile(path, []byte("store: sqlite\nlog_level: info\n"), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	// Single underscores are literal, double underscores nest.
	t.Setenv("AUDITLEDGER_SQLITE_PATH", "/tmp/override.db")
	t.Setenv("AUDITLEDGER_LOG_LEVEL", "error")
	t.Setenv("AUDITLEDGER_SERVER__PORT", "9443")
	t.Setenv("AUDITLEDGER_AUTH__TOKEN_TTL", "1h")
	t.Setenv("AUDITLEDGER_LIMITS__METADATA_MAX_BYTES", "4096")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SQLitePath != "/tmp/override.db" {
		t.Errorf("SQLitePath = %q, want env override /tmp/override.db", cfg.SQLitePath)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want env override error", cfg.LogLevel)
	}
	if cfg.Server.Port != 9443 {
		t.Errorf("Server.Port = %d, want env override 9443", cfg.Server.Port)
	}
	if cfg.Auth.TokenTTL != time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want env override 1h", cfg.Auth.TokenTTL)
	}
	if cfg.Limits.MetadataMaxBytes != 4096 {
		t.Errorf("Limits.MetadataMaxBytes = %d, want env override 4096", cfg.Limits.MetadataMaxBytes)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".auditledger.yml")

	cfg := DefaultConfig()
	cfg.Store = "memory"
	cfg.Server.Port = 9999
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Store != "memory" || loaded.Server.Port != 9999 {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown store":   func(c *Config) { c.Store = "etcd" },
		"no sqlite path":  func(c *Config) { c.SQLitePath = "" },
		"port too low":    func(c *Config) { c.Server.Port = 0 },
		"port too high":   func(c *Config) { c.Server.Port = 70000 },
		"metadata cap":    func(c *Config) { c.Limits.MetadataMaxBytes = 0 },
		"search limit":    func(c *Config) { c.Limits.SearchMaxLimit = -1 },
		"idem window":     func(c *Config) { c.Limits.IdempotencyWindow = 0 },
		"bad log level":   func(c *Config) { c.LogLevel = "loud" },
		"postgres dbname": func(c *Config) { c.Store = "postgres"; c.Postgres.DBName = "" },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate() = nil, want error", name)
		}
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Postgres.Password = "hunter2"
	dsn := cfg.PostgresDSN()
	want := "host=localhost port=5432 user=auditledger password=hunter2 dbname=auditledger sslmode=disable"
	if dsn != want {
		t.Errorf("PostgresDSN() = %q, want %q", dsn, want)
	}
}
