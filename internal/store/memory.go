package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/nchat-dev/auditledger/internal/ledger"
)

// Memory keeps the chain in a slice. Used for ephemeral deployments
// and as the reference store in tests.
type Memory struct {
	mu      sync.RWMutex
	entries []ledger.Entry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Append commits one entry. Block n must land at index n.
func (m *Memory) Append(ctx context.Context, e ledger.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e.BlockNumber < int64(len(m.entries)) {
		return fmt.Errorf("inserting block %d: %w", e.BlockNumber, ErrDuplicateBlock)
	}
	if e.BlockNumber != int64(len(m.entries)) {
		return fmt.Errorf("inserting block %d out of order, next is %d", e.BlockNumber, len(m.entries))
	}
	m.entries = append(m.entries, cloneEntry(e))
	return nil
}

// ReadRange returns committed entries with block numbers in [from, to].
func (m *Memory) ReadRange(ctx context.Context, from, to int64) ([]ledger.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if from < 0 {
		from = 0
	}
	if max := int64(len(m.entries)) - 1; to > max {
		to = max
	}
	if from > to {
		return nil, nil
	}

	out := make([]ledger.Entry, 0, to-from+1)
	for _, e := range m.entries[from : to+1] {
		out = append(out, cloneEntry(e))
	}
	return out, nil
}

// Head returns the latest block number, or -1 when the ledger is empty.
func (m *Memory) Head(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.entries)) - 1, nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error { return nil }

// cloneEntry copies an entry so callers never share the stored
// metadata map or resource pointer.
func cloneEntry(e ledger.Entry) ledger.Entry {
	out := e
	if e.Resource != nil {
		res := *e.Resource
		out.Resource = &res
	}
	if e.Metadata != nil {
		meta := make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			meta[k] = v
		}
		out.Metadata = meta
	}
	return out
}
