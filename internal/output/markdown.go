package output

import (
	"fmt"
	"strings"

	"github.com/lexiqai/meeting-summarizer/internal/pipeline"
)

// Markdown renders the summary document
func Markdown(title string, res *pipeline.Result) string {
	var b strings.Builder
	s := res.Summary

	fmt.Fprintf(&b, "# Meeting summary: %s\n\n", title)
	ns := notes(res)
	for _, n := range ns {
		fmt.Fprintf(&b, "> **Note:** %s\n", n)
	}
	if len(ns) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("## Summary\n\n")
	b.WriteString(strings.TrimSpace(s.Summary))
	b.WriteString("\n\n## Decisions\n\n")
	if len(s.Decisions) == 0 {
		b.WriteString("_None recorded._\n")
	}
	for i, d := range s.Decisions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, d)
	}

	b.WriteString("\n## Action items\n\n")
	if len(s.ActionItems) == 0 {
		b.WriteString("_None recorded._\n")
		return b.String()
	}
	b.WriteString("| # | Description | Owner | Deadline |\n")
	b.WriteString("|---|---|---|---|\n")
	for i, item := range s.ActionItems {
		fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", i+1, cell(item.Description), cell(item.Owner), cell(item.Deadline))
	}
	return b.String()
}

// cell escapes a table cell; empty cells show a dash
func cell(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "-"
	}
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
