package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nchat-dev/auditledger/internal/chain"
	"github.com/nchat-dev/auditledger/internal/ledger"
	"github.com/nchat-dev/auditledger/internal/store"
)

// setupIndex commits a small fixture chain and returns an index over
// it plus the writer for appending more.
func setupIndex(t *testing.T) (*Index, *chain.Writer) {
	t.Helper()
	st := store.NewMemory()

	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	tick := 0
	w, err := chain.New(context.Background(), st, chain.WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}))
	if err != nil {
		t.Fatalf("chain.New: %v", err)
	}

	fixtures := []chain.Input{
		{
			Actor: ledger.Actor{ID: "alice", Type: ledger.ActorUser}, Action: "user.login",
			Category: ledger.CategoryUser, Severity: ledger.SeverityInfo,
			Description: "alice logged in", Success: true,
		},
		{
			Actor: ledger.Actor{ID: "bob", Type: ledger.ActorUser}, Action: "user.login",
			Category: ledger.CategoryUser, Severity: ledger.SeverityWarning,
			Description: "bob logged in from a new device", Success: true,
		},
		{
			Actor: ledger.Actor{ID: "mallory", Type: ledger.ActorUser}, Action: "user.login",
			Category: ledger.CategorySecurity, Severity: ledger.SeverityError,
			Description: "failed login for mallory", Success: false,
		},
		{
			Actor: ledger.Actor{ID: "admin1", Type: ledger.ActorUser}, Action: "channel.deleted",
			Category: ledger.CategoryChannel, Severity: ledger.SeverityWarning,
			Description: "admin1 deleted #general", Success: true,
		},
		{
			Actor: ledger.Actor{ID: "admin1", Type: ledger.ActorUser}, Action: "user.role_changed",
			Category: ledger.CategoryAdmin, Severity: ledger.SeverityCritical,
			Description: "admin1 granted owner to bob", Success: true,
		},
	}
	for i, in := range fixtures {
		if _, _, err := w.Append(context.Background(), in); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	return NewIndex(st), w
}

func TestSearchEmptyFilterReturnsEverything(t *testing.T) {
	ix, _ := setupIndex(t)

	res, err := ix.Search(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 5 || len(res.Entries) != 5 || res.HasMore {
		t.Errorf("empty filter: total=%d len=%d hasMore=%v, want 5/5/false",
			res.Total, len(res.Entries), res.HasMore)
	}
}

func TestSearchFiltersByCategory(t *testing.T) {
	ix, _ := setupIndex(t)

	res, err := ix.Search(context.Background(), Filter{Categories: []string{"security"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 1 {
		t.Fatalf("security filter Total = %d, want 1", res.Total)
	}
	if res.Entries[0].Category != ledger.CategorySecurity {
		t.Errorf("entry category = %q, want security", res.Entries[0].Category)
	}
}

func TestSearchCombinesFiltersWithAnd(t *testing.T) {
	ix, _ := setupIndex(t)

	res, err := ix.Search(context.Background(), Filter{
		Categories: []string{"user", "security"},
		Severities: []string{"warning", "error"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// bob (user/warning) and mallory (security/error) match; the
	// channel deletion is warning but category channel.
	if res.Total != 2 {
		t.Errorf("Total = %d, want 2; got %+v", res.Total, res.Entries)
	}
}

func TestSearchFiltersByActorAndSuccess(t *testing.T) {
	ix, _ := setupIndex(t)

	failed := false
	res, err := ix.Search(context.Background(), Filter{Success: &failed})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 1 || res.Entries[0].Actor.ID != "mallory" {
		t.Errorf("success=false returned %+v, want only mallory's entry", res.Entries)
	}

	res, err = ix.Search(context.Background(), Filter{ActorID: "admin1"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 2 {
		t.Errorf("actor filter Total = %d, want 2", res.Total)
	}
}

func TestSearchTextMatchesDescriptionAndAction(t *testing.T) {
	ix, _ := setupIndex(t)

	res, err := ix.Search(context.Background(), Filter{SearchText: "DELETED"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// Matches channel.deleted's action and its description.
	if res.Total != 1 || res.Entries[0].Action != "channel.deleted" {
		t.Errorf("text search returned %+v, want the channel deletion", res.Entries)
	}
}

func TestSearchActionGlob(t *testing.T) {
	ix, _ := setupIndex(t)

	res, err := ix.Search(context.Background(), Filter{ActionGlob: "user.*"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 4 {
		t.Errorf("user.* glob Total = %d, want 4", res.Total)
	}
	for _, e := range res.Entries {
		if e.Action[:5] != "user." {
			t.Errorf("glob returned non-matching action %q", e.Action)
		}
	}
}

func TestSearchTimeWindow(t *testing.T) {
	ix, _ := setupIndex(t)

	from := time.Date(2026, 4, 1, 8, 2, 0, 0, time.UTC)
	to := time.Date(2026, 4, 1, 8, 4, 0, 0, time.UTC)
	res, err := ix.Search(context.Background(), Filter{
		FromTime: &from, ToTime: &to, SortOrder: "asc",
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// Blocks 1..3 committed at 8:02, 8:03, 8:04; bounds are inclusive.
	if res.Total != 3 {
		t.Fatalf("time window Total = %d, want 3", res.Total)
	}
	if res.Entries[0].BlockNumber != 1 || res.Entries[2].BlockNumber != 3 {
		t.Errorf("time window returned blocks %d..%d, want 1..3",
			res.Entries[0].BlockNumber, res.Entries[2].BlockNumber)
	}
}

func TestSearchSortsBySeverityOrdinal(t *testing.T) {
	ix, _ := setupIndex(t)

	res, err := ix.Search(context.Background(), Filter{SortBy: "severity", SortOrder: "desc"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// Ordinal, not lexicographic: critical > error > warning > info.
	wantFirst, wantLast := ledger.SeverityCritical, ledger.SeverityInfo
	if res.Entries[0].Severity != wantFirst {
		t.Errorf("first severity = %q, want %q", res.Entries[0].Severity, wantFirst)
	}
	if res.Entries[len(res.Entries)-1].Severity != wantLast {
		t.Errorf("last severity = %q, want %q", res.Entries[len(res.Entries)-1].Severity, wantLast)
	}
	for i := 1; i < len(res.Entries); i++ {
		if res.Entries[i].Severity.Rank() > res.Entries[i-1].Severity.Rank() {
			t.Errorf("severity order violated at index %d", i)
		}
	}
}

func TestSearchPaginationIsStable(t *testing.T) {
	ix, _ := setupIndex(t)

	var seen []int64
	for offset := 0; ; offset += 2 {
		res, err := ix.Search(context.Background(), Filter{
			Limit: 2, Offset: offset, SortBy: "timestamp", SortOrder: "asc",
		})
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		for _, e := range res.Entries {
			seen = append(seen, e.BlockNumber)
		}
		if !res.HasMore {
			break
		}
	}
	if len(seen) != 5 {
		t.Fatalf("pagination walked %d entries, want 5", len(seen))
	}
	for i, block := range seen {
		if block != int64(i) {
			t.Errorf("page walk saw block %d at position %d", block, i)
		}
	}
}

func TestSearchCapsLimit(t *testing.T) {
	st := store.NewMemory()
	w, err := chain.New(context.Background(), st)
	if err != nil {
		t.Fatalf("chain.New: %v", err)
	}
	for i := 0; i < MaxLimit+10; i++ {
		_, _, err := w.Append(context.Background(), chain.Input{
			Actor:       ledger.Actor{ID: fmt.Sprintf("u%d", i), Type: ledger.ActorUser},
			Action:      "user.login",
			Category:    ledger.CategoryUser,
			Severity:    ledger.SeverityInfo,
			Description: "login",
			Success:     true,
		})
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	ix := NewIndex(st)
	res, err := ix.Search(context.Background(), Filter{Limit: 100000})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Entries) != MaxLimit {
		t.Errorf("oversized limit returned %d entries, want cap %d", len(res.Entries), MaxLimit)
	}
	if !res.HasMore || res.Total != MaxLimit+10 {
		t.Errorf("hasMore=%v total=%d, want true/%d", res.HasMore, res.Total, MaxLimit+10)
	}
}

func TestSearchConfiguredMaxLimit(t *testing.T) {
	ix, _ := setupIndex(t)
	small := NewIndex(ix.store, WithMaxLimit(2))

	res, err := small.Search(context.Background(), Filter{Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Entries) != 2 {
		t.Errorf("configured cap 2 returned %d entries", len(res.Entries))
	}
	if !res.HasMore || res.Total != 5 {
		t.Errorf("hasMore=%v total=%d, want true/5", res.HasMore, res.Total)
	}

	// The default page size also clamps to a smaller configured cap.
	res, err = small.Search(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Entries) != 2 {
		t.Errorf("default limit under cap 2 returned %d entries", len(res.Entries))
	}
}

func TestSearchRejectsMalformedFilters(t *testing.T) {
	ix, _ := setupIndex(t)
	ctx := context.Background()

	from := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	bad := []Filter{
		{FromTime: &from, ToTime: &to},
		{Limit: -1},
		{Offset: -5},
		{SortBy: "block"},
		{SortOrder: "sideways"},
		{ActionGlob: "user.[unclosed"},
	}
	for i, f := range bad {
		_, err := ix.Search(ctx, f)
		var qerr *ledger.QueryError
		if !errors.As(err, &qerr) {
			t.Errorf("filter %d: Search = %v, want QueryError", i, err)
		}
	}
}

func TestSearchSeesNewCommits(t *testing.T) {
	ix, w := setupIndex(t)
	ctx := context.Background()

	before, err := ix.Search(ctx, Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if _, _, err := w.Append(ctx, chain.Input{
		Actor:       ledger.Actor{ID: "carol", Type: ledger.ActorUser},
		Action:      "user.login",
		Category:    ledger.CategoryUser,
		Severity:    ledger.SeverityInfo,
		Description: "carol logged in",
		Success:     true,
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	after, err := ix.Search(ctx, Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if after.Total != before.Total+1 {
		t.Errorf("Total = %d after a commit, want %d", after.Total, before.Total+1)
	}
}

func TestSearchHonorsCancelledContext(t *testing.T) {
	ix, _ := setupIndex(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ix.Search(ctx, Filter{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Search with cancelled ctx = %v, want context.Canceled", err)
	}
}

func TestStats(t *testing.T) {
	ix, _ := setupIndex(t)

	s, err := ix.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.TotalEntries != 5 || s.HeadBlock != 4 {
		t.Errorf("totals = %d head %d, want 5 head 4", s.TotalEntries, s.HeadBlock)
	}
	if s.ByCategory[ledger.CategoryUser] != 2 {
		t.Errorf("user category count = %d, want 2", s.ByCategory[ledger.CategoryUser])
	}
	if s.BySeverity[ledger.SeverityWarning] != 2 {
		t.Errorf("warning count = %d, want 2", s.BySeverity[ledger.SeverityWarning])
	}
	if s.SuccessCount != 4 || s.FailureCount != 1 {
		t.Errorf("success/failure = %d/%d, want 4/1", s.SuccessCount, s.FailureCount)
	}
}
