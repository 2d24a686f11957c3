package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nchat-dev/auditledger/internal/ledger"
	"github.com/nchat-dev/auditledger/internal/store"
)

// DefaultIdempotencyWindow is how many recently committed idempotency
// keys the writer remembers for deduplicating retries.
const DefaultIdempotencyWindow = 1024

// Input is a producer's request to record one event. Block number,
// timestamp and both hashes are assigned by the writer, never by the
// caller.
type Input struct {
	Actor          ledger.Actor     `json:"actor"`
	Action         string           `json:"action"`
	Category       ledger.Category  `json:"category"`
	Severity       ledger.Severity  `json:"severity"`
	Resource       *ledger.Resource `json:"resource,omitempty"`
	Description    string           `json:"description"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
	Success        bool             `json:"success"`
	IdempotencyKey string           `json:"idempotencyKey,omitempty"`
}

// Writer owns the hash chain's only critical section. All concurrent
// appends serialize through it, which is what makes block numbering
// gapless and chaining linearizable.
type Writer struct {
	store       store.Store
	log         *zap.Logger
	clock       func() time.Time
	metadataCap int

	mu       sync.Mutex
	head     int64  // latest committed block, -1 when empty
	headHash string // EntryHash of head, genesis constant when empty
	window   *idemWindow

	listenersMu sync.RWMutex
	listeners   []func(ledger.Entry)
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the writer's logger. Defaults to a nop logger.
func WithLogger(log *zap.Logger) Option {
	return func(w *Writer) { w.log = log }
}

// WithClock overrides the commit-time clock. Commit order defines
// chain order, so a regressing clock never breaks validity.
func WithClock(clock func() time.Time) Option {
	return func(w *Writer) { w.clock = clock }
}

// WithIdempotencyWindow sets how many recent keys are remembered.
func WithIdempotencyWindow(size int) Option {
	return func(w *Writer) { w.window = newIdemWindow(size) }
}

// WithMetadataCap sets the byte cap applied to canonical metadata.
// Defaults to ledger.MaxMetadataBytes.
func WithMetadataCap(n int) Option {
	return func(w *Writer) { w.metadataCap = n }
}

// WithListener registers a hook invoked after each commit, outside the
// critical section. Listeners must not block; the server's stream hub
// hands entries off to buffered channels.
func WithListener(fn func(ledger.Entry)) Option {
	return func(w *Writer) { w.listeners = append(w.listeners, fn) }
}

// New creates a Writer over the given store, recovering the current
// head and its hash so the chain continues where it left off.
func New(ctx context.Context, st store.Store, opts ...Option) (*Writer, error) {
	w := &Writer{
		store:    st,
		log:      zap.NewNop(),
		clock:    time.Now,
		head:     -1,
		headHash: ledger.GenesisHash,
		window:   newIdemWindow(DefaultIdempotencyWindow),
	}
	for _, opt := range opts {
		opt(w)
	}

	head, err := st.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("recovering chain head: %w", err)
	}
	if head >= 0 {
		tip, err := st.ReadRange(ctx, head, head)
		if err != nil {
			return nil, fmt.Errorf("reading chain tip: %w", err)
		}
		if len(tip) != 1 {
			return nil, &ledger.IntegrityError{Block: head, Reason: "head block missing from store"}
		}
		recomputed, err := ledger.ComputeHash(tip[0])
		if err != nil {
			return nil, fmt.Errorf("recomputing tip hash: %w", err)
		}
		if recomputed != tip[0].EntryHash {
			return nil, &ledger.IntegrityError{Block: head, Reason: "stored tip hash does not recompute"}
		}
		w.head = head
		w.headHash = tip[0].EntryHash
	}

	w.log.Info("hash-chain writer ready", zap.Int64("head", w.head))
	return w, nil
}

// Append validates, numbers, hashes and persists one entry. It is safe
// for concurrent use; calls serialize into a single total order. The
// second return is true when a remembered idempotency key short-
// circuited the call and the returned entry was committed earlier.
func (w *Writer) Append(ctx context.Context, in Input) (ledger.Entry, bool, error) {
	// Reject bad input before taking the lock; no block number is
	// consumed by a failed validation.
	if err := ledger.ValidateInput(in.Actor, in.Action, in.Description, in.Metadata, w.metadataCap); err != nil {
		return ledger.Entry{}, false, err
	}

	in.Actor.Type = ledger.ParseActorType(string(in.Actor.Type))
	in.Category = ledger.ParseCategory(string(in.Category))
	in.Severity = ledger.ParseSeverity(string(in.Severity))

	if err := ctx.Err(); err != nil {
		return ledger.Entry{}, false, err
	}

	w.mu.Lock()

	if in.IdempotencyKey != "" {
		if block, seen := w.window.lookup(in.IdempotencyKey); seen {
			w.mu.Unlock()
			e, err := w.replay(ctx, in.IdempotencyKey, block)
			if err != nil {
				return ledger.Entry{}, false, err
			}
			return e, true, nil
		}
	}

	e := ledger.Entry{
		BlockNumber:  w.head + 1,
		Timestamp:    w.clock().UTC(),
		Actor:        in.Actor,
		Action:       in.Action,
		Category:     in.Category,
		Severity:     in.Severity,
		Resource:     in.Resource,
		Description:  in.Description,
		Metadata:     in.Metadata,
		Success:      in.Success,
		PreviousHash: w.headHash,
	}

	hash, err := ledger.ComputeHash(e)
	if err != nil {
		w.mu.Unlock()
		return ledger.Entry{}, false, fmt.Errorf("hashing entry: %w", err)
	}
	e.EntryHash = hash

	if err := w.store.Append(ctx, e); err != nil {
		// The head does not advance, so the same block number is
		// reused on the caller's retry.
		w.mu.Unlock()
		w.log.Error("append failed", zap.Int64("block", e.BlockNumber), zap.Error(err))
		return ledger.Entry{}, false, &ledger.PersistenceError{Err: err}
	}

	w.head = e.BlockNumber
	w.headHash = e.EntryHash
	if in.IdempotencyKey != "" {
		w.window.record(in.IdempotencyKey, e.BlockNumber)
	}
	w.mu.Unlock()

	w.log.Debug("entry committed",
		zap.Int64("block", e.BlockNumber),
		zap.String("action", e.Action),
		zap.String("actor", e.Actor.ID),
	)
	w.notify(e)
	return e, false, nil
}

// replay re-reads the entry a deduplicated key committed earlier.
func (w *Writer) replay(ctx context.Context, key string, block int64) (ledger.Entry, error) {
	entries, err := w.store.ReadRange(ctx, block, block)
	if err != nil {
		return ledger.Entry{}, &ledger.PersistenceError{Err: err}
	}
	if len(entries) != 1 {
		return ledger.Entry{}, &ledger.IntegrityError{Block: block, Reason: "deduplicated block missing from store"}
	}
	w.log.Debug("idempotent replay", zap.String("key", key), zap.Int64("block", block))
	return entries[0], nil
}

// Head returns the latest committed block number, -1 when empty.
// Verification runs pin their range to this value.
func (w *Writer) Head() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.head
}

// HeadHash returns the EntryHash of the latest committed block, or the
// genesis constant when the chain is empty. Operators anchor this
// value externally.
func (w *Writer) HeadHash() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.headHash
}

// Subscribe adds a post-commit listener after construction.
func (w *Writer) Subscribe(fn func(ledger.Entry)) {
	w.listenersMu.Lock()
	defer w.listenersMu.Unlock()
	w.listeners = append(w.listeners, fn)
}

func (w *Writer) notify(e ledger.Entry) {
	w.listenersMu.RLock()
	defer w.listenersMu.RUnlock()
	for _, fn := range w.listeners {
		fn(e)
	}
}
