// Package search is the read-only query projection over the ledger.
// It is fed exclusively from the store's committed entries and never
// writes.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/nchat-dev/auditledger/internal/ledger"
	"github.com/nchat-dev/auditledger/internal/store"
)

const (
	// DefaultLimit applies when a filter requests no page size.
	DefaultLimit = 50
	// MaxLimit caps any caller-requested page size.
	MaxLimit = 500
)

// Filter selects and orders entries. All fields AND-combine; the list
// fields OR within themselves. The zero Filter matches everything.
type Filter struct {
	Categories []string   `json:"categories,omitempty"`
	Severities []string   `json:"severities,omitempty"`
	ActorID    string     `json:"actorId,omitempty"`
	Success    *bool      `json:"success,omitempty"`
	SearchText string     `json:"searchText,omitempty"`
	ActionGlob string     `json:"actionGlob,omitempty"`
	FromTime   *time.Time `json:"fromTime,omitempty"`
	ToTime     *time.Time `json:"toTime,omitempty"`
	Limit      int        `json:"limit,omitempty"`
	Offset     int        `json:"offset,omitempty"`
	SortBy     string     `json:"sortBy,omitempty"`    // timestamp, severity, actor, action
	SortOrder  string     `json:"sortOrder,omitempty"` // asc, desc
}

// Result is one page of matches. Total counts every match before
// pagination.
type Result struct {
	Entries []ledger.Entry `json:"entries"`
	Total   int            `json:"total"`
	HasMore bool           `json:"hasMore"`
}

// Stats summarizes the whole ledger for dashboards and tooling.
type Stats struct {
	TotalEntries int64                     `json:"totalEntries"`
	HeadBlock    int64                     `json:"headBlock"`
	ByCategory   map[ledger.Category]int64 `json:"byCategory"`
	BySeverity   map[ledger.Severity]int64 `json:"bySeverity"`
	SuccessCount int64                     `json:"successCount"`
	FailureCount int64                     `json:"failureCount"`
}

// Index answers filtered queries over the committed chain. It caches
// entries in block order and pulls only the blocks committed since its
// last refresh, so queries do not rescan the whole store.
type Index struct {
	store    store.Store
	log      *zap.Logger
	maxLimit int

	mu      sync.RWMutex
	entries []ledger.Entry // ascending by block, entries[i].BlockNumber == i
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the index's logger. Defaults to a nop logger.
func WithLogger(log *zap.Logger) Option {
	return func(ix *Index) { ix.log = log }
}

// WithMaxLimit overrides the page size cap. Defaults to MaxLimit.
func WithMaxLimit(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.maxLimit = n
		}
	}
}

// NewIndex creates an index over the given store.
func NewIndex(st store.Store, opts ...Option) *Index {
	ix := &Index{store: st, log: zap.NewNop(), maxLimit: MaxLimit}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// refresh pulls blocks committed since the last refresh into the cache.
func (ix *Index) refresh(ctx context.Context) error {
	head, err := ix.store.Head(ctx)
	if err != nil {
		return fmt.Errorf("reading head: %w", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	have := int64(len(ix.entries))
	if head < have {
		return nil
	}
	fresh, err := ix.store.ReadRange(ctx, have, head)
	if err != nil {
		return fmt.Errorf("reading blocks [%d, %d]: %w", have, head, err)
	}
	ix.entries = append(ix.entries, fresh...)
	return nil
}

// validate rejects malformed filters before any read occurs.
func (f Filter) validate() error {
	if f.FromTime != nil && f.ToTime != nil && f.FromTime.After(*f.ToTime) {
		return &ledger.QueryError{Reason: "fromTime is after toTime"}
	}
	if f.Limit < 0 {
		return &ledger.QueryError{Reason: "limit must not be negative"}
	}
	if f.Offset < 0 {
		return &ledger.QueryError{Reason: "offset must not be negative"}
	}
	switch f.SortBy {
	case "", "timestamp", "severity", "actor", "action":
	default:
		return &ledger.QueryError{Reason: fmt.Sprintf("unknown sortBy %q", f.SortBy)}
	}
	switch f.SortOrder {
	case "", "asc", "desc":
	default:
		return &ledger.QueryError{Reason: fmt.Sprintf("unknown sortOrder %q", f.SortOrder)}
	}
	if f.ActionGlob != "" && !doublestar.ValidatePattern(f.ActionGlob) {
		return &ledger.QueryError{Reason: fmt.Sprintf("invalid actionGlob %q", f.ActionGlob)}
	}
	return nil
}

// matcher precomputes the filter's normalized match sets.
type matcher struct {
	categories map[ledger.Category]bool
	severities map[ledger.Severity]bool
	actorID    string
	success    *bool
	text       string
	glob       string
	from, to   *time.Time
}

func newMatcher(f Filter) matcher {
	m := matcher{
		actorID: f.ActorID,
		success: f.Success,
		text:    strings.ToLower(f.SearchText),
		glob:    f.ActionGlob,
		from:    f.FromTime,
		to:      f.ToTime,
	}
	if len(f.Categories) > 0 {
		m.categories = make(map[ledger.Category]bool, len(f.Categories))
		for _, c := range f.Categories {
			m.categories[ledger.ParseCategory(c)] = true
		}
	}
	if len(f.Severities) > 0 {
		m.severities = make(map[ledger.Severity]bool, len(f.Severities))
		for _, s := range f.Severities {
			m.severities[ledger.ParseSeverity(s)] = true
		}
	}
	return m
}

func (m matcher) matches(e ledger.Entry) bool {
	if m.categories != nil && !m.categories[e.Category] {
		return false
	}
	if m.severities != nil && !m.severities[e.Severity] {
		return false
	}
	if m.actorID != "" && e.Actor.ID != m.actorID {
		return false
	}
	if m.success != nil && e.Success != *m.success {
		return false
	}
	if m.text != "" &&
		!strings.Contains(strings.ToLower(e.Description), m.text) &&
		!strings.Contains(strings.ToLower(e.Action), m.text) {
		return false
	}
	if m.glob != "" {
		ok, err := doublestar.Match(m.glob, e.Action)
		if err != nil || !ok {
			return false
		}
	}
	if m.from != nil && e.Timestamp.Before(*m.from) {
		return false
	}
	if m.to != nil && e.Timestamp.After(*m.to) {
		return false
	}
	return true
}

// Search returns one page of entries matching the filter. The page
// size is capped at the index's max limit regardless of what the
// caller asked for.
func (ix *Index) Search(ctx context.Context, f Filter) (Result, error) {
	matched, err := ix.Collect(ctx, f)
	if err != nil {
		return Result{}, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > ix.maxLimit {
		limit = ix.maxLimit
	}

	total := len(matched)
	start := f.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	page := make([]ledger.Entry, end-start)
	copy(page, matched[start:end])

	return Result{
		Entries: page,
		Total:   total,
		HasMore: end < total,
	}, nil
}

// Collect returns every match in the filter's sort order with no
// pagination cap. The exporter's feed.
func (ix *Index) Collect(ctx context.Context, f Filter) ([]ledger.Entry, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ix.refresh(ctx); err != nil {
		return nil, err
	}

	ix.mu.RLock()
	snapshot := ix.entries
	ix.mu.RUnlock()

	m := newMatcher(f)
	var matched []ledger.Entry
	for i, e := range snapshot {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if m.matches(e) {
			matched = append(matched, e)
		}
	}

	sortEntries(matched, f.SortBy, f.SortOrder)
	return matched, nil
}

// sortEntries orders matches by the requested key. Severity uses its
// ordinal, never lexicographic order, and every key ties-breaks on
// block number so pagination is stable.
func sortEntries(entries []ledger.Entry, sortBy, sortOrder string) {
	desc := sortOrder != "asc" // default is desc

	key := func(a, b ledger.Entry) int {
		switch sortBy {
		case "severity":
			return a.Severity.Rank() - b.Severity.Rank()
		case "actor":
			return strings.Compare(a.Actor.ID, b.Actor.ID)
		case "action":
			return strings.Compare(a.Action, b.Action)
		default: // timestamp
			switch {
			case a.Timestamp.Before(b.Timestamp):
				return -1
			case a.Timestamp.After(b.Timestamp):
				return 1
			default:
				return 0
			}
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		c := key(entries[i], entries[j])
		if desc {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		return entries[i].BlockNumber < entries[j].BlockNumber
	})
}

// Stats tallies the whole committed ledger.
func (ix *Index) Stats(ctx context.Context) (Stats, error) {
	if err := ix.refresh(ctx); err != nil {
		return Stats{}, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	s := Stats{
		TotalEntries: int64(len(ix.entries)),
		HeadBlock:    int64(len(ix.entries)) - 1,
		ByCategory:   make(map[ledger.Category]int64),
		BySeverity:   make(map[ledger.Severity]int64),
	}
	for _, e := range ix.entries {
		s.ByCategory[e.Category]++
		s.BySeverity[e.Severity]++
		if e.Success {
			s.SuccessCount++
		} else {
			s.FailureCount++
		}
	}
	return s, nil
}
