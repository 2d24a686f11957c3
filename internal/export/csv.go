package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/nchat-dev/auditledger/internal/ledger"
)

// csvHeader names every entry field; the CSV export is lossless.
var csvHeader = []string{
	"block_number", "timestamp", "actor_id", "actor_type", "action",
	"category", "severity", "resource_type", "resource_id", "resource_name",
	"description", "metadata", "success", "entry_hash", "previous_hash",
}

// csvFormatter emits one RFC 4180 row per entry with a header row.
// Metadata rides in its column as canonical JSON.
type csvFormatter struct {
	cw *csv.Writer
}

func (f *csvFormatter) ContentType() string { return "text/csv" }

func (f *csvFormatter) Begin(w io.Writer) error {
	f.cw = csv.NewWriter(w)
	if err := f.cw.Write(csvHeader); err != nil {
		return &writeFailure{err: err}
	}
	return nil
}

func (f *csvFormatter) WriteEntry(w io.Writer, e ledger.Entry) ([]Warning, error) {
	metadata, err := ledger.CanonicalMetadata(e.Metadata)
	if err != nil {
		return nil, err
	}

	var resType, resID, resName string
	if e.Resource != nil {
		resType, resID, resName = e.Resource.Type, e.Resource.ID, e.Resource.Name
	}

	row := []string{
		strconv.FormatInt(e.BlockNumber, 10),
		e.Timestamp.UTC().Format(time.RFC3339Nano),
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
		strconv.FormatBool(e.Success),
		e.EntryHash,
		e.PreviousHash,
	}
	if err := f.cw.Write(row); err != nil {
		return nil, &writeFailure{err: err}
	}
	return nil, nil
}

func (f *csvFormatter) End(w io.Writer) error {
	f.cw.Flush()
	if err := f.cw.Error(); err != nil {
		return &writeFailure{err: err}
	}
	return nil
}
