package config

import "time"

// Config is the top-level configuration, corresponding to
// .auditledger.yml.
type Config struct {
	Store      string         `yaml:"store" koanf:"store"` // sqlite, postgres or memory
	SQLitePath string         `yaml:"sqlite_path" koanf:"sqlite_path"`
	Postgres   PostgresConfig `yaml:"postgres" koanf:"postgres"`
	Server     ServerConfig   `yaml:"server" koanf:"server"`
	Auth       AuthConfig     `yaml:"auth" koanf:"auth"`
	Limits     LimitsConfig   `yaml:"limits" koanf:"limits"`
	Syslog     SyslogConfig   `yaml:"syslog" koanf:"syslog"`
	LogLevel   string         `yaml:"log_level" koanf:"log_level"`
}

// PostgresConfig holds the optional Postgres store settings.
type PostgresConfig struct {
	Host     string `yaml:"host" koanf:"host"`
	Port     int    `yaml:"port" koanf:"port"`
	User     string `yaml:"user" koanf:"user"`
	Password string `yaml:"password" koanf:"password"`
	DBName   string `yaml:"dbname" koanf:"dbname"`
	SSLMode  string `yaml:"sslmode" koanf:"sslmode"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Port           int      `yaml:"port" koanf:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" koanf:"allowed_origins"`
}

// AuthConfig holds token settings. An empty secret disables API auth.
type AuthConfig struct {
	Secret   string        `yaml:"secret" koanf:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl" koanf:"token_ttl"`
}

// LimitsConfig bounds request and writer behavior.
type LimitsConfig struct {
	MetadataMaxBytes  int `yaml:"metadata_max_bytes" koanf:"metadata_max_bytes"`
	SearchMaxLimit    int `yaml:"search_max_limit" koanf:"search_max_limit"`
	IdempotencyWindow int `yaml:"idempotency_window" koanf:"idempotency_window"`
}

// SyslogConfig names this deployment in syslog/CEF exports.
type SyslogConfig struct {
	Hostname string `yaml:"hostname" koanf:"hostname"`
	App      string `yaml:"app" koanf:"app"`
}
