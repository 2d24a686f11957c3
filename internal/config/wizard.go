package config

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard, saves the result
// to path and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to auditledger! Let's configure this deployment.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Store backend.
	storePrompt := promptui.Select{
		Label: "Select ledger store",
		Items: []string{
			"sqlite   — single file, no external service",
			"postgres — shared PostgreSQL server",
			"memory   — ephemeral, for trying things out",
		},
	}
	storeIdx, _, err := storePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("store selection: %w", err)
	}
	cfg.Store = []string{"sqlite", "postgres", "memory"}[storeIdx]

	switch cfg.Store {
	case "sqlite":
		pathPrompt := promptui.Prompt{
			Label:   "SQLite database path",
			Default: cfg.SQLitePath,
		}
		cfg.SQLitePath, err = pathPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("sqlite path: %w", err)
		}
	case "postgres":
		hostPrompt := promptui.Prompt{Label: "Postgres host", Default: cfg.Postgres.Host}
		if cfg.Postgres.Host, err = hostPrompt.Run(); err != nil {
			return nil, fmt.Errorf("postgres host: %w", err)
		}
		dbPrompt := promptui.Prompt{Label: "Postgres database", Default: cfg.Postgres.DBName}
		if cfg.Postgres.DBName, err = dbPrompt.Run(); err != nil {
			return nil, fmt.Errorf("postgres database: %w", err)
		}
		userPrompt := promptui.Prompt{Label: "Postgres user", Default: cfg.Postgres.User}
		if cfg.Postgres.User, err = userPrompt.Run(); err != nil {
			return nil, fmt.Errorf("postgres user: %w", err)
		}
	}

	// 2. API port.
	portPrompt := promptui.Prompt{
		Label:   "HTTP API port",
		Default: strconv.Itoa(cfg.Server.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > 65535 {
				return fmt.Errorf("enter a port between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	// 3. Auth secret.
	secretPrompt := promptui.Prompt{
		Label: "API auth secret (empty disables authentication)",
		Mask:  '*',
	}
	if cfg.Auth.Secret, err = secretPrompt.Run(); err != nil {
		return nil, fmt.Errorf("auth secret: %w", err)
	}
	if cfg.Auth.Secret == "" {
		fmt.Println("Warning: the API will accept unauthenticated requests.")
	}

	// 4. Syslog identity for exports.
	hostPrompt := promptui.Prompt{
		Label:   "Hostname reported in syslog exports",
		Default: "audit-host",
	}
	if cfg.Syslog.Hostname, err = hostPrompt.Run(); err != nil {
		return nil, fmt.Errorf("syslog hostname: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, err
	}

	fmt.Printf("\nConfiguration written to %s\n", path)
	return cfg, nil
}
