// Package report renders integrity verification reports for operators:
// Markdown for terminals and chat, standalone HTML for audit review.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"

	"github.com/nchat-dev/auditledger/internal/integrity"
	"github.com/nchat-dev/auditledger/internal/ledger"
)

// Markdown renders a verification report. compromised carries the
// stored entries of the compromised blocks, embedded as fenced JSON so
// an operator sees exactly what the store now claims happened.
func Markdown(rep integrity.Report, compromised []ledger.Entry) string {
	var b strings.Builder

	b.WriteString("# Audit Chain Verification\n\n")
	if rep.IsValid {
		b.WriteString("**Result: VALID** — every entry recomputed and linked correctly.\n\n")
	} else {
		b.WriteString("**Result: INVALID** — the chain shows evidence of tampering or loss.\n\n")
	}

	fmt.Fprintf(&b, "| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Verified at | %s |\n", rep.VerifiedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "| Total entries | %d |\n", rep.TotalEntries)
	fmt.Fprintf(&b, "| Verified entries | %d |\n", rep.VerifiedEntries)
	fmt.Fprintf(&b, "| Compromised blocks | %d |\n\n", len(rep.CompromisedBlocks))

	if rep.VerifiedEntries < rep.TotalEntries {
		b.WriteString("> **Incomplete run.** Verification did not cover the full range; ")
		b.WriteString("the result above must not be read as a clean bill of health.\n\n")
	}

	if len(rep.Errors) > 0 {
		b.WriteString("## Findings\n\n")
		for _, e := range rep.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
		b.WriteString("\n")
	}

	if len(compromised) > 0 {
		b.WriteString("## Compromised entries as stored\n\n")
		for _, e := range compromised {
			fmt.Fprintf(&b, "### Block %d\n\n", e.BlockNumber)
			pretty, err := json.MarshalIndent(e, "", "  ")
			if err != nil {
				fmt.Fprintf(&b, "_entry could not be serialized: %v_\n\n", err)
				continue
			}
			fmt.Fprintf(&b, "```json\n%s\n```\n\n", pretty)
		}
	}

	return b.String()
}

// htmlShell wraps the rendered report body in a standalone page.
const htmlShell = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Audit Chain Verification — {{.Status}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; max-width: 56rem; margin: 2rem auto; padding: 0 1rem; color: #1f2328; }
table { border-collapse: collapse; }
td, th { border: 1px solid #d1d9e0; padding: 0.3rem 0.8rem; }
pre { background: #f6f8fa; padding: 1rem; overflow-x: auto; border-radius: 6px; }
blockquote { border-left: 4px solid #d1242f; margin-left: 0; padding-left: 1rem; color: #59636e; }
.invalid h1 { color: #d1242f; }
</style>
</head>
<body class="{{.BodyClass}}">
{{.Content}}
</body>
</html>
`

type htmlData struct {
	Status    string
	BodyClass string
	Content   template.HTML
}

// HTML renders the report as a standalone page with highlighted JSON
// blocks for the compromised entries.
func HTML(rep integrity.Report, compromised []ledger.Entry) ([]byte, error) {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			htmlrenderer.WithUnsafe(),
		),
	)

	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(rep, compromised)), &body); err != nil {
		return nil, fmt.Errorf("rendering report markdown: %w", err)
	}

	tmpl, err := template.New("report").Parse(htmlShell)
	if err != nil {
		return nil, fmt.Errorf("parsing report template: %w", err)
	}

	data := htmlData{
		Status:    "valid",
		BodyClass: "valid",
		Content:   template.HTML(body.String()),
	}
	if !rep.IsValid {
		data.Status = "INVALID"
		data.BodyClass = "invalid"
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return nil, fmt.Errorf("rendering report page: %w", err)
	}
	return out.Bytes(), nil
}
