package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nchat-dev/auditledger/internal/chain"
	"github.com/nchat-dev/auditledger/internal/ledger"
	"github.com/nchat-dev/auditledger/internal/search"
	"github.com/nchat-dev/auditledger/internal/store"
)

func setupExporter(t *testing.T) (*Exporter, *search.Index) {
	t.Helper()
	st := store.NewMemory()

	base := time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC)
	tick := 0
	w, err := chain.New(context.Background(), st, chain.WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}))
	if err != nil {
		t.Fatalf("chain.New: %v", err)
	}

	inputs := []chain.Input{
		{
			Actor: ledger.Actor{ID: "u1", Type: ledger.ActorUser}, Action: "user.login",
			Category: ledger.CategoryUser, Severity: ledger.SeverityInfo,
			Description: "u1 logged in", Success: true,
			Metadata: map[string]any{"ip": "10.0.0.7"},
		},
		{
			Actor: ledger.Actor{ID: "admin1", Type: ledger.ActorUser}, Action: "channel.deleted",
			Category: ledger.CategoryChannel, Severity: ledger.SeverityWarning,
			Description: "admin1 deleted #general", Success: true,
			Resource: &ledger.Resource{Type: "channel", ID: "ch-42", Name: "#general"},
			Metadata: map[string]any{"members": 120, "archive": map[string]any{"kept": true}},
		},
		{
			Actor: ledger.Actor{ID: "mallory", Type: ledger.ActorUser}, Action: "user.login",
			Category: ledger.CategorySecurity, Severity: ledger.SeverityCritical,
			Description: "failed login | with pipes = and equals", Success: false,
		},
	}
	for i, in := range inputs {
		if _, _, err := w.Append(context.Background(), in); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	ix := search.NewIndex(st)
	return New(ix, Options{Hostname: "audit-host", App: "auditledger", Version: "1.0.0"}, nil), ix
}

func TestExportJSONRoundTripsAgainstSearch(t *testing.T) {
	ex, ix := setupExporter(t)
	ctx := context.Background()
	filter := search.Filter{SortOrder: "asc"}

	var buf bytes.Buffer
	res, err := ex.Export(ctx, filter, "json", &buf)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.ContentType != "application/json" {
		t.Errorf("ContentType = %q, want application/json", res.ContentType)
	}
	if res.Count != 3 || len(res.Warnings) != 0 {
		t.Errorf("count=%d warnings=%v, want 3 and none", res.Count, res.Warnings)
	}

	var exported []ledger.Entry
	if err := json.Unmarshal(buf.Bytes(), &exported); err != nil {
		t.Fatalf("re-parsing export: %v", err)
	}

	want, err := ix.Collect(ctx, filter)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(exported) != len(want) {
		t.Fatalf("export has %d entries, search has %d", len(exported), len(want))
	}
	for i := range want {
		g, w := exported[i], want[i]
		if g.BlockNumber != w.BlockNumber || g.EntryHash != w.EntryHash ||
			g.PreviousHash != w.PreviousHash || g.Description != w.Description ||
			g.Action != w.Action || !g.Timestamp.Equal(w.Timestamp) {
			t.Errorf("entry %d differs after round trip:\n got %+v\nwant %+v", i, g, w)
		}
	}
}

func TestExportCSVHasHeaderAndAllRows(t *testing.T) {
	ex, _ := setupExporter(t)

	var buf bytes.Buffer
	res, err := ex.Export(context.Background(), search.Filter{SortOrder: "asc"}, "csv", &buf)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.ContentType != "text/csv" {
		t.Errorf("ContentType = %q, want text/csv", res.ContentType)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parsing csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("csv has %d rows, want header + 3", len(rows))
	}
	if rows[0][0] != "block_number" || rows[0][len(rows[0])-1] != "previous_hash" {
		t.Errorf("header row = %v", rows[0])
	}
	if rows[1][0] != "0" || rows[3][0] != "2" {
		t.Errorf("block column = %s..%s, want 0..2", rows[1][0], rows[3][0])
	}
	// The pipe-laden description survives RFC 4180 quoting.
	if rows[3][10] != "failed login | with pipes = and equals" {
		t.Errorf("description column = %q", rows[3][10])
	}
}

func TestExportSyslogSeverityAndWarnings(t *testing.T) {
	ex, _ := setupExporter(t)

	var buf bytes.Buffer
	res, err := ex.Export(context.Background(), search.Filter{SortOrder: "asc"}, "syslog", &buf)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.ContentType != "text/plain" {
		t.Errorf("ContentType = %q, want text/plain", res.ContentType)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("syslog export has %d lines, want 3", len(lines))
	}

	// Facility 13: info -> 13*8+6, warning -> +4, critical -> +2.
	if !strings.HasPrefix(lines[0], "<110>1 ") {
		t.Errorf("info line PRI wrong: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "<108>1 ") {
		t.Errorf("warning line PRI wrong: %s", lines[1])
	}
	if !strings.HasPrefix(lines[2], "<106>1 ") {
		t.Errorf("critical line PRI wrong: %s", lines[2])
	}

	if !strings.Contains(lines[0], "audit-host auditledger - user.login") {
		t.Errorf("header fields missing: %s", lines[0])
	}
	if !strings.Contains(lines[0], `block="0"`) || !strings.Contains(lines[0], `ip="10.0.0.7"`) {
		t.Errorf("structured data missing: %s", lines[0])
	}

	// The nested archive map on block 1 cannot ride in an SD param.
	if len(res.Warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one dropped field", res.Warnings)
	}
	warn := res.Warnings[0]
	if warn.Block != 1 || warn.Field != "metadata.archive" {
		t.Errorf("warning = %+v, want block 1 metadata.archive", warn)
	}
	// A dropped field never fails the export.
	if res.Count != 3 {
		t.Errorf("Count = %d, want 3", res.Count)
	}
}

func TestExportCEFFormatAndEscaping(t *testing.T) {
	ex, _ := setupExporter(t)

	var buf bytes.Buffer
	res, err := ex.Export(context.Background(), search.Filter{SortOrder: "asc"}, "cef", &buf)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.ContentType != "application/cef" {
		t.Errorf("ContentType = %q, want application/cef", res.ContentType)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("cef export has %d lines, want 3", len(lines))
	}

	if !strings.HasPrefix(lines[0], "CEF:0|nchat|auditledger|1.0.0|user.login|") {
		t.Errorf("cef header wrong: %s", lines[0])
	}
	// info=3, warning=6, critical=10 on the 0-10 scale.
	if !strings.Contains(lines[0], "|3|") {
		t.Errorf("info severity missing: %s", lines[0])
	}
	if !strings.Contains(lines[1], "|6|") {
		t.Errorf("warning severity missing: %s", lines[1])
	}
	if !strings.Contains(lines[2], "|10|") {
		t.Errorf("critical severity missing: %s", lines[2])
	}

	// Pipes in the description are escaped in the header section.
	if !strings.Contains(lines[2], `failed login \| with pipes`) {
		t.Errorf("pipe escaping missing: %s", lines[2])
	}
	if !strings.Contains(lines[2], "outcome=failure") {
		t.Errorf("outcome extension missing: %s", lines[2])
	}
	if !strings.Contains(lines[1], "cs1=channel:ch-42") {
		t.Errorf("resource extension missing: %s", lines[1])
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Field != "metadata.archive" {
		t.Errorf("warnings = %v, want the dropped archive map", res.Warnings)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	ex, _ := setupExporter(t)

	var buf bytes.Buffer
	_, err := ex.Export(context.Background(), search.Filter{}, "xml", &buf)
	var qerr *ledger.QueryError
	if !errors.As(err, &qerr) {
		t.Errorf("Export(xml) = %v, want QueryError", err)
	}
}

func TestExportAppliesFilter(t *testing.T) {
	ex, _ := setupExporter(t)

	var buf bytes.Buffer
	res, err := ex.Export(context.Background(), search.Filter{
		Categories: []string{"security"},
	}, "json", &buf)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.Count != 1 {
		t.Errorf("filtered export Count = %d, want 1", res.Count)
	}

	var exported []ledger.Entry
	if err := json.Unmarshal(buf.Bytes(), &exported); err != nil {
		t.Fatalf("re-parsing export: %v", err)
	}
	if len(exported) != 1 || exported[0].Category != ledger.CategorySecurity {
		t.Errorf("filtered export = %+v", exported)
	}
}

func TestExportHonorsCancelledContext(t *testing.T) {
	ex, _ := setupExporter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	_, err := ex.Export(ctx, search.Filter{}, "json", &buf)
	if err == nil {
		t.Error("Export with cancelled ctx succeeded")
	}
}

// brokenWriter fails after n writes.
type brokenWriter struct {
	n int
}

func (b *brokenWriter) Write(p []byte) (int, error) {
	if b.n <= 0 {
		return 0, errors.New("pipe closed")
	}
	b.n--
	return len(p), nil
}

func TestExportAbortsOnWriterFailure(t *testing.T) {
	ex, _ := setupExporter(t)

	_, err := ex.Export(context.Background(), search.Filter{}, "json", &brokenWriter{n: 2})
	var eerr *ledger.ExportError
	if !errors.As(err, &eerr) {
		t.Errorf("Export to broken writer = %v, want ExportError", err)
	}
}
