package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/nchat-dev/auditledger/internal/db"
	"github.com/nchat-dev/auditledger/internal/ledger"
)

// ErrDuplicateBlock is returned by Append when the block number is
// already committed. The writer serializes appends, so hitting it means
// two writers share one store — a deployment error worth loud failure.
var ErrDuplicateBlock = errors.New("duplicate block number")

// Store is append-only persistence for the hash chain. There is no
// update or delete operation at this layer; committed entries are
// immutable by construction.
type Store interface {
	// Append commits one entry under its block number. A duplicate
	// block number fails with ErrDuplicateBlock.
	Append(ctx context.Context, e ledger.Entry) error

	// ReadRange returns the committed entries with block numbers in
	// [from, to], ascending. Bounds outside the chain clamp; from > to
	// yields an empty result. Readers never observe a partially
	// written entry.
	ReadRange(ctx context.Context, from, to int64) ([]ledger.Entry, error)

	// Head returns the latest committed block number, or -1 when the
	// ledger is empty.
	Head(ctx context.Context) (int64, error)

	Close() error
}

// Options selects and configures a Store backend.
type Options struct {
	Kind        string // "sqlite", "postgres" or "memory"
	SQLitePath  string
	PostgresDSN string
}

// Open constructs the backend named by opts.Kind.
func Open(opts Options) (Store, error) {
	switch opts.Kind {
	case "sqlite", "":
		database, err := db.Open(opts.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return NewSQLite(database), nil
	case "postgres":
		return OpenPostgres(opts.PostgresDSN)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", opts.Kind)
	}
}
