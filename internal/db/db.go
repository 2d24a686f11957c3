package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB opened on the ledger's SQLite file.
type DB struct {
	*sql.DB
	path string
}

// Open creates or opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	d := &DB{DB: sqlDB, path: path}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// OpenMemory creates an in-memory SQLite database (useful for testing).
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}

	// The in-memory database vanishes when its last connection closes;
	// a second connection would see an empty schema.
	sqlDB.SetMaxOpenConns(1)

	d := &DB{DB: sqlDB, path: ":memory:"}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// Path returns the filesystem path the database was opened on.
func (d *DB) Path() string { return d.path }

// migrate runs all schema migrations.
func (d *DB) migrate() error {
	_, err := d.Exec(schema)
	return err
}

// schema contains the full database schema. The ledger table is
// append-only: no UPDATE or DELETE statement exists anywhere in the
// codebase, so immutability is structural rather than conventional.
// The RFC3339Nano text in ts is the authoritative timestamp used for
// hashing; ts_unix_ns exists only for range scans.
const schema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
    block_number INTEGER PRIMARY KEY,
    ts TEXT NOT NULL,
    ts_unix_ns INTEGER NOT NULL,
    actor_id TEXT NOT NULL,
    actor_type TEXT NOT NULL CHECK(actor_type IN ('user','system','bot','service')),
    action TEXT NOT NULL,
    category TEXT NOT NULL CHECK(category IN ('user','message','channel','admin','security','automation','other')),
    severity TEXT NOT NULL CHECK(severity IN ('info','warning','error','critical')),
    resource_type TEXT NOT NULL DEFAULT '',
    resource_id TEXT NOT NULL DEFAULT '',
    resource_name TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL,
    metadata TEXT NOT NULL DEFAULT '{}',
    success INTEGER NOT NULL,
    entry_hash TEXT NOT NULL,
    previous_hash TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_ts ON ledger_entries(ts_unix_ns);
CREATE INDEX IF NOT EXISTS idx_ledger_cat_sev ON ledger_entries(category, severity);
CREATE INDEX IF NOT EXISTS idx_ledger_actor ON ledger_entries(actor_id);
CREATE INDEX IF NOT EXISTS idx_ledger_action ON ledger_entries(action);
`
