package export

import (
	"encoding/json"
	"io"

	"github.com/nchat-dev/auditledger/internal/ledger"
)

// jsonFormatter emits a JSON array of complete entries. Lossless: a
// re-parsed export equals the search result for the same filter.
type jsonFormatter struct {
	wroteFirst bool
}

func (f *jsonFormatter) ContentType() string { return "application/json" }

func (f *jsonFormatter) Begin(w io.Writer) error {
	if _, err := io.WriteString(w, "[\n"); err != nil {
		return &writeFailure{err: err}
	}
	return nil
}

func (f *jsonFormatter) WriteEntry(w io.Writer, e ledger.Entry) ([]Warning, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	prefix := "  "
	if f.wroteFirst {
		prefix = ",\n  "
	}
	if _, err := io.WriteString(w, prefix); err != nil {
		return nil, &writeFailure{err: err}
	}
	if _, err := w.Write(b); err != nil {
		return nil, &writeFailure{err: err}
	}
	f.wroteFirst = true
	return nil, nil
}

func (f *jsonFormatter) End(w io.Writer) error {
	if _, err := io.WriteString(w, "\n]\n"); err != nil {
		return &writeFailure{err: err}
	}
	return nil
}
