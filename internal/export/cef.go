package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nchat-dev/auditledger/internal/ledger"
)

// cefSeverity maps entry severities onto CEF's 0-10 scale.
var cefSeverity = map[ledger.Severity]int{
	ledger.SeverityInfo:     3,
	ledger.SeverityWarning:  6,
	ledger.SeverityError:    8,
	ledger.SeverityCritical: 10,
}

// cefFormatter emits one Common Event Format line per entry:
// CEF:0|vendor|product|version|signatureID|name|severity|extensions.
// Like syslog it is lossy: non-scalar metadata is dropped with a
// warning.
type cefFormatter struct {
	opts Options
}

func (f *cefFormatter) ContentType() string { return "application/cef" }

func (f *cefFormatter) Begin(w io.Writer) error { return nil }
func (f *cefFormatter) End(w io.Writer) error   { return nil }

func (f *cefFormatter) WriteEntry(w io.Writer, e ledger.Entry) ([]Warning, error) {
	outcome := "success"
	if !e.Success {
		outcome = "failure"
	}

	ext := []string{
		"rt=" + strconv.FormatInt(e.Timestamp.UTC().UnixMilli(), 10),
		"suser=" + cefExtEscape(e.Actor.ID),
		"act=" + cefExtEscape(e.Action),
		"cat=" + cefExtEscape(string(e.Category)),
		"outcome=" + outcome,
		"cn1=" + strconv.FormatInt(e.BlockNumber, 10),
		"cn1Label=blockNumber",
	}
	if e.Resource != nil {
		ext = append(ext,
			"cs1="+cefExtEscape(e.Resource.Type+":"+e.Resource.ID),
			"cs1Label=resource",
		)
	}

	var warnings []Warning
	for _, k := range sortedKeys(e.Metadata) {
		v, ok := scalarString(e.Metadata[k])
		if !ok {
			warnings = append(warnings, Warning{
				Block:  e.BlockNumber,
				Field:  "metadata." + k,
				Reason: "non-scalar metadata value does not fit a CEF extension",
			})
			continue
		}
		ext = append(ext, cefExtKey(k)+"="+cefExtEscape(v))
	}

	line := fmt.Sprintf("CEF:0|nchat|%s|%s|%s|%s|%d|%s\n",
		cefHeaderEscape(f.opts.App),
		cefHeaderEscape(f.opts.Version),
		cefHeaderEscape(e.Action),
		cefHeaderEscape(e.Description),
		cefSeverity[e.Severity],
		strings.Join(ext, " "),
	)
	if _, err := io.WriteString(w, line); err != nil {
		return warnings, &writeFailure{err: err}
	}
	return warnings, nil
}

// cefHeaderEscape escapes the CEF header fields, where pipe delimits.
func cefHeaderEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `|`, `\|`, "\n", " ", "\r", " ")
	return r.Replace(s)
}

// cefExtEscape escapes extension values, where '=' delimits.
func cefExtEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `=`, `\=`, "\n", `\n`, "\r", `\n`)
	return r.Replace(s)
}

// cefExtKey sanitizes a metadata key into a legal extension key.
func cefExtKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
