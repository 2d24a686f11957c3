// Package export serializes filtered entry sets for external SIEM
// tooling. One Formatter per target format; adding a format touches
// nothing outside this package.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/nchat-dev/auditledger/internal/ledger"
	"github.com/nchat-dev/auditledger/internal/search"
)

// Warning records one field or entry a lossy format had to drop.
// Warnings are values, never errors: the export still completes.
type Warning struct {
	Block  int64  `json:"block"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

// Result summarizes a completed export.
type Result struct {
	Count       int       `json:"count"`
	ContentType string    `json:"contentType"`
	Warnings    []Warning `json:"warnings,omitempty"`
}

// Formatter writes entries in one target format. Implementations may
// keep state between calls (delimiters, csv writers); a Formatter
// instance serves exactly one export.
type Formatter interface {
	ContentType() string
	Begin(w io.Writer) error
	// WriteEntry serializes one entry. Returned warnings record
	// dropped fields; a returned error skips the entry with a warning
	// unless the underlying writer itself failed.
	WriteEntry(w io.Writer, e ledger.Entry) ([]Warning, error)
	End(w io.Writer) error
}

// Options carries deployment identity into formats that embed it.
type Options struct {
	Hostname string // syslog HOSTNAME field
	App      string // syslog APP-NAME, CEF device product
	Version  string // CEF device version
}

func (o Options) withDefaults() Options {
	if o.Hostname == "" {
		o.Hostname = "-"
	}
	if o.App == "" {
		o.App = "auditledger"
	}
	if o.Version == "" {
		o.Version = "dev"
	}
	return o
}

// NewFormatter returns the Formatter for the named format: json, csv,
// syslog or cef.
func NewFormatter(format string, opts Options) (Formatter, error) {
	opts = opts.withDefaults()
	switch format {
	case "json":
		return &jsonFormatter{}, nil
	case "csv":
		return &csvFormatter{}, nil
	case "syslog":
		return &syslogFormatter{opts: opts}, nil
	case "cef":
		return &cefFormatter{opts: opts}, nil
	default:
		return nil, &ledger.QueryError{Reason: fmt.Sprintf("unknown export format %q", format)}
	}
}

// Exporter streams filtered entries through a Formatter.
type Exporter struct {
	index *search.Index
	log   *zap.Logger
	opts  Options
}

// New creates an Exporter over the given index.
func New(index *search.Index, opts Options, log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{index: index, log: log, opts: opts}
}

// Export writes every entry matching the filter to w in the named
// format. Per-entry formatting problems are skipped and recorded as
// warnings; a failed ledger read or a broken writer aborts with an
// ExportError.
func (ex *Exporter) Export(ctx context.Context, f search.Filter, format string, w io.Writer) (Result, error) {
	formatter, err := NewFormatter(format, ex.opts)
	if err != nil {
		return Result{}, err
	}
	res := Result{ContentType: formatter.ContentType()}

	entries, err := ex.index.Collect(ctx, f)
	if err != nil {
		var qerr *ledger.QueryError
		if errors.As(err, &qerr) {
			return res, err
		}
		return res, &ledger.ExportError{Err: err}
	}

	if err := formatter.Begin(w); err != nil {
		return res, &ledger.ExportError{Err: err}
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, &ledger.ExportError{Err: err}
		}
		warnings, err := formatter.WriteEntry(w, e)
		res.Warnings = append(res.Warnings, warnings...)
		if err != nil {
			if isWriteFailure(err) {
				return res, &ledger.ExportError{Err: err}
			}
			res.Warnings = append(res.Warnings, Warning{
				Block:  e.BlockNumber,
				Reason: fmt.Sprintf("entry skipped: %v", err),
			})
			ex.log.Warn("export skipped entry", zap.Int64("block", e.BlockNumber), zap.Error(err))
			continue
		}
		res.Count++
	}
	if err := formatter.End(w); err != nil {
		return res, &ledger.ExportError{Err: err}
	}

	ex.log.Debug("export complete",
		zap.String("format", format),
		zap.Int("count", res.Count),
		zap.Int("warnings", len(res.Warnings)),
	)
	return res, nil
}

// writeFailure marks errors from the destination writer, which abort
// the export rather than skipping an entry.
type writeFailure struct{ err error }

func (w *writeFailure) Error() string { return w.err.Error() }
func (w *writeFailure) Unwrap() error { return w.err }

func isWriteFailure(err error) bool {
	var wf *writeFailure
	return errors.As(err, &wf)
}
