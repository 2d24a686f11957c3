package export

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nchat-dev/auditledger/internal/ledger"
)

// syslogFacility is 13, the "log audit" facility of RFC 5424.
const syslogFacility = 13

// auditSDID is the structured-data element carrying the entry fields.
const auditSDID = "audit@32473"

// syslogSeverity maps entry severities onto the RFC 5424 scale.
var syslogSeverity = map[ledger.Severity]int{
	ledger.SeverityInfo:     6, // Informational
	ledger.SeverityWarning:  4, // Warning
	ledger.SeverityError:    3, // Error
	ledger.SeverityCritical: 2, // Critical
}

// syslogFormatter emits one RFC 5424 line per entry. Lossy by format
// design: metadata values that are not scalars cannot ride in an SD
// param and are dropped with a warning.
type syslogFormatter struct {
	opts Options
}

func (f *syslogFormatter) ContentType() string { return "text/plain" }

func (f *syslogFormatter) Begin(w io.Writer) error { return nil }
func (f *syslogFormatter) End(w io.Writer) error   { return nil }

func (f *syslogFormatter) WriteEntry(w io.Writer, e ledger.Entry) ([]Warning, error) {
	pri := syslogFacility*8 + syslogSeverity[e.Severity]

	params := []string{
		sdParam("block", strconv.FormatInt(e.BlockNumber, 10)),
		sdParam("actor", e.Actor.ID),
		sdParam("actorType", string(e.Actor.Type)),
		sdParam("category", string(e.Category)),
		sdParam("severity", string(e.Severity)),
		sdParam("success", strconv.FormatBool(e.Success)),
		sdParam("hash", e.EntryHash),
	}
	if e.Resource != nil {
		params = append(params,
			sdParam("resourceType", e.Resource.Type),
			sdParam("resourceId", e.Resource.ID),
		)
	}

	var warnings []Warning
	for _, k := range sortedKeys(e.Metadata) {
		v, ok := scalarString(e.Metadata[k])
		if !ok {
			warnings = append(warnings, Warning{
				Block:  e.BlockNumber,
				Field:  "metadata." + k,
				Reason: "non-scalar metadata value does not fit a syslog SD param",
			})
			continue
		}
		params = append(params, sdParam(sdName(k), v))
	}

	// <PRI>1 TIMESTAMP HOSTNAME APP-NAME PROCID MSGID [SD] MSG
	line := fmt.Sprintf("<%d>1 %s %s %s - %s [%s %s] %s\n",
		pri,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		f.opts.Hostname,
		f.opts.App,
		msgID(e.Action),
		auditSDID,
		strings.Join(params, " "),
		e.Description,
	)
	if _, err := io.WriteString(w, line); err != nil {
		return warnings, &writeFailure{err: err}
	}
	return warnings, nil
}

// sdParam renders name="value" with RFC 5424 PARAM-VALUE escaping.
func sdParam(name, value string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `]`, `\]`)
	return name + `="` + r.Replace(value) + `"`
}

// sdName sanitizes a metadata key into a legal SD-NAME: printable
// ASCII without '=', ']', '"' or spaces, at most 32 characters.
func sdName(key string) string {
	var b strings.Builder
	for _, r := range key {
		if r > 32 && r < 127 && r != '=' && r != ']' && r != '"' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
		if b.Len() >= 32 {
			break
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// msgID renders the action as the MSGID field, capped at the RFC's 32
// characters.
func msgID(action string) string {
	if len(action) > 32 {
		return action[:32]
	}
	return action
}

// scalarString renders a scalar metadata value; non-scalars report ok
// false.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), true
	case int, int32, int64:
		return fmt.Sprintf("%d", t), true
	case fmt.Stringer:
		return t.String(), true
	case nil:
		return "", true
	default:
		return "", false
	}
}

func sortedKeys(m map[string]any) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
