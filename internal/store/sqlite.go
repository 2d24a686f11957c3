package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nchat-dev/auditledger/internal/db"
	"github.com/nchat-dev/auditledger/internal/ledger"
)

// SQLite persists the chain in a single ledger_entries table, one row
// per block. The default backend.
type SQLite struct {
	db *db.DB
}

// NewSQLite creates a SQLite-backed store over an opened database.
func NewSQLite(database *db.DB) *SQLite {
	return &SQLite{db: database}
}

// Append commits one entry. The row is written in a single INSERT, so a
// concurrent reader sees either the whole entry or nothing.
func (s *SQLite) Append(ctx context.Context, e ledger.Entry) error {
	metadata, err := ledger.CanonicalMetadata(e.Metadata)
	if err != nil {
		return fmt.Errorf("serializing metadata for block %d: %w", e.BlockNumber, err)
	}

	var resType, resID, resName string
	if e.Resource != nil {
		resType, resID, resName = e.Resource.Type, e.Resource.ID, e.Resource.Name
	}

	ts := e.Timestamp.UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (
			block_number, ts, ts_unix_ns, actor_id, actor_type, action,
			category, severity, resource_type, resource_id, resource_name,
			description, metadata, success, entry_hash, previous_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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
		boolToInt(e.Success),
		e.EntryHash,
		e.PreviousHash,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") ||
			strings.Contains(err.Error(), "PRIMARY KEY") {
			return fmt.Errorf("inserting block %d: %w", e.BlockNumber, ErrDuplicateBlock)
		}
		return fmt.Errorf("inserting block %d: %w", e.BlockNumber, err)
	}
	return nil
}

// ReadRange returns committed entries with block numbers in [from, to].
func (s *SQLite) ReadRange(ctx context.Context, from, to int64) ([]ledger.Entry, error) {
	if from < 0 {
		from = 0
	}
	if from > to {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT block_number, ts, actor_id, actor_type, action, category,
		       severity, resource_type, resource_id, resource_name,
		       description, metadata, success, entry_hash, previous_hash
		FROM ledger_entries
		WHERE block_number BETWEEN ? AND ?
		ORDER BY block_number ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("reading blocks [%d, %d]: %w", from, to, err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning ledger row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Head returns the latest block number, or -1 when the ledger is empty.
func (s *SQLite) Head(ctx context.Context) (int64, error) {
	var head sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MAX(block_number) FROM ledger_entries").Scan(&head)
	if err != nil {
		return -1, fmt.Errorf("reading head: %w", err)
	}
	if !head.Valid {
		return -1, nil
	}
	return head.Int64, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error { return s.db.Close() }

// DB exposes the underlying handle for read-only consumers that need
// raw access, such as tamper-injection in tests.
func (s *SQLite) DB() *db.DB { return s.db }

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (ledger.Entry, error) {
	var (
		e                       ledger.Entry
		ts                      string
		actorType, category     string
		severity                string
		resType, resID, resName string
		metadata                string
		success                 int
	)

	err := sc.Scan(
		&e.BlockNumber, &ts, &e.Actor.ID, &actorType, &e.Action, &category,
		&severity, &resType, &resID, &resName,
		&e.Description, &metadata, &success, &e.EntryHash, &e.PreviousHash,
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
	e.Success = success != 0

	if resType != "" || resID != "" || resName != "" {
		e.Resource = &ledger.Resource{Type: resType, ID: resID, Name: resName}
	}

	e.Metadata, err = ledger.DecodeMetadata(metadata)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("parsing metadata of block %d: %w", e.BlockNumber, err)
	}

	return e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
