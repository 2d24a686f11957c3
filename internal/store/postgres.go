package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/nchat-dev/auditledger/internal/ledger"
)

// Postgres persists the chain in a PostgreSQL table with the same
// logical schema as the SQLite backend. Selected with store: postgres.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects with the given lib/pq DSN and ensures the
// ledger schema exists.
func OpenPostgres(dsn string) (*Postgres, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres store: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	p := &Postgres{db: sqlDB}
	if err := p.ensureSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ensuring postgres schema: %w", err)
	}
	return p, nil
}

func (p *Postgres) ensureSchema() error {
	_, err := p.db.Exec(`
		CREATE TABLE IF NOT EXISTS ledger_entries (
			block_number BIGINT PRIMARY KEY,
			ts TEXT NOT NULL,
			ts_unix_ns BIGINT NOT NULL,
			actor_id TEXT NOT NULL,
			actor_type TEXT NOT NULL,
			action TEXT NOT NULL,
			category TEXT NOT NULL,
			severity TEXT NOT NULL,
			resource_type TEXT NOT NULL DEFAULT '',
			resource_id TEXT NOT NULL DEFAULT '',
			resource_name TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			success BOOLEAN NOT NULL,
			entry_hash TEXT NOT NULL,
			previous_hash TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_ts ON ledger_entries(ts_unix_ns);
		CREATE INDEX IF NOT EXISTS idx_ledger_cat_sev ON ledger_entries(category, severity);
	`)
	return err
}

// Append commits one entry.
func (p *Postgres) Append(ctx context.Context, e ledger.Entry) error {
	metadata, err := ledger.CanonicalMetadata(e.Metadata)
	if err != nil {
		return fmt.Errorf("serializing metadata for block %d: %w", e.BlockNumber, err)
	}

	var resType, resID, resName string
	if e.Resource != nil {
		resType, resID, resName = e.Resource.Type, e.Resource.ID, e.Resource.Name
	}

	ts := e.Timestamp.UTC()
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (
			block_number, ts, ts_unix_ns, actor_id, actor_type, action,
			category, severity, resource_type, resource_id, resource_name,
			description, metadata, success, entry_hash, previous_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		e.BlockNumber,
		ts.Format(time.RFC3339Nano),
		ts.UnixNano(),
		e.Actor.ID,
		string(e.Actor.Type),
		e.Action,
		string(e.Category),
		string(e.Severity),
		resType,
		resID,
		resName,
		e.Description,
		string(metadata),
		e.Success,
		e.EntryHash,
		e.PreviousHash,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return fmt.Errorf("inserting block %d: %w", e.BlockNumber, ErrDuplicateBlock)
		}
		return fmt.Errorf("inserting block %d: %w", e.BlockNumber, err)
	}
	return nil
}

// ReadRange returns committed entries with block numbers in [from, to].
func (p *Postgres) ReadRange(ctx context.Context, from, to int64) ([]ledger.Entry, error) {
	if from < 0 {
		from = 0
	}
	if from > to {
		return nil, nil
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT block_number, ts, actor_id, actor_type, action, category,
		       severity, resource_type, resource_id, resource_name,
		       description, metadata, success, entry_hash, previous_hash
		FROM ledger_entries
		WHERE block_number BETWEEN $1 AND $2
		ORDER BY block_number ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("reading blocks [%d, %d]: %w", from, to, err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		e, err := scanPostgresEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning ledger row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Head returns the latest block number, or -1 when the ledger is empty.
func (p *Postgres) Head(ctx context.Context) (int64, error) {
	var head sql.NullInt64
	err := p.db.QueryRowContext(ctx, "SELECT MAX(block_number) FROM ledger_entries").Scan(&head)
	if err != nil {
		return -1, fmt.Errorf("reading head: %w", err)
	}
	if !head.Valid {
		return -1, nil
	}
	return head.Int64, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error { return p.db.Close() }

func scanPostgresEntry(rows *sql.Rows) (ledger.Entry, error) {
	var (
		e                       ledger.Entry
		ts                      string
		actorType, category     string
		severity                string
		resType, resID, resName string
		metadata                string
	)

	err := rows.Scan(
		&e.BlockNumber, &ts, &e.Actor.ID, &actorType, &e.Action, &category,
		&severity, &resType, &resID, &resName,
		&e.Description, &metadata, &e.Success, &e.EntryHash, &e.PreviousHash,
	)
	if err != nil {
		return ledger.Entry{}, err
	}

	e.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("parsing timestamp of block %d: %w", e.BlockNumber, err)
	}
	e.Actor.Type = ledger.ActorType(actorType)
	e.Category = ledger.Category(category)
	e.Severity = ledger.Severity(severity)

	if resType != "" || resID != "" || resName != "" {
		e.Resource = &ledger.Resource{Type: resType, ID: resID, Name: resName}
	}

	e.Metadata, err = ledger.DecodeMetadata(metadata)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("parsing metadata of block %d: %w", e.BlockNumber, err)
	}

	return e, nil
}
