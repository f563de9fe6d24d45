package render

import (
	"fmt"
	"strings"

	humanize "github.com/dustin/go-humanize"

	"github.com/ALT-F4-LLC/lp2jira/internal/compile"
	"github.com/ALT-F4-LLC/lp2jira/internal/reconcile"
)

// maxReportRows caps each detail list of the verify report.
const maxReportRows = 50

// VerifyMarkdown builds the verify report as markdown.
func VerifyMarkdown(rep reconcile.Report) string {
	var b strings.Builder
	b.WriteString("# Verify report\n\n")
	if rep.Interrupted {
		b.WriteString("_Interrupted before every issue was checked._\n\n")
	}
	b.WriteString("| Result | Issues |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Checked | %s |\n", humanize.Comma(int64(rep.Checked)))
	fmt.Fprintf(&b, "| OK | %s |\n", humanize.Comma(int64(rep.OK)))
	fmt.Fprintf(&b, "| Not found | %s |\n", humanize.Comma(int64(rep.NotFound)))
	fmt.Fprintf(&b, "| Status mismatch | %s |\n", humanize.Comma(int64(rep.StatusMismatch)))
	fmt.Fprintf(&b, "| Exceptions | %s |\n", humanize.Comma(int64(rep.Exceptions)))

	if len(rep.Mismatches) > 0 {
		b.WriteString("\n## Status mismatches\n\n| Issue | Key | Expected | Actual |\n|---|---|---|---|\n")
		for i, m := range rep.Mismatches {
			if i == maxReportRows {
				fmt.Fprintf(&b, "\n_and %d more_\n", len(rep.Mismatches)-maxReportRows)
				break
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", m.ID, m.Key, m.Expected, m.Actual)
		}
	}
	writeList(&b, "Not imported", rep.Missing)
	writeList(&b, "Errors", rep.Errors)
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n", title)
	for i, it := range items {
		if i == maxReportRows {
			fmt.Fprintf(b, "\n_and %d more_\n", len(items)-maxReportRows)
			return
		}
		fmt.Fprintf(b, "- `%s`\n", it)
	}
}

// RenderVerify renders the verify report for the terminal.
func RenderVerify(rep reconcile.Report) (string, error) {
	return RenderMarkdown(VerifyMarkdown(rep))
}

// CompileMessage summarizes a compile in one line.
func CompileMessage(s compile.Stats) string {
	msg := fmt.Sprintf("Compiled %s issues, %s links, %s users and %s versions into %s",
		humanize.Comma(int64(s.Issues)), humanize.Comma(int64(s.Links)),
		humanize.Comma(int64(s.Users)), humanize.Comma(int64(s.Versions)), s.IssuesOut)
	if s.Corrupt > 0 {
		msg += fmt.Sprintf(" (%d unreadable fragment(s) skipped)", s.Corrupt)
	}
	return msg
}

// UpdateMessage summarizes a reconciliation in one line.
func UpdateMessage(s reconcile.Stats) string {
	msg := fmt.Sprintf("Update bundle %s: %s new, %s changed, %s unchanged",
		s.Output, humanize.Comma(int64(s.NotFound)), humanize.Comma(int64(s.Changed)),
		humanize.Comma(int64(s.Unchanged)))
	if s.Resumed > 0 {
		msg += fmt.Sprintf(", %s from an earlier run", humanize.Comma(int64(s.Resumed)))
	}
	if s.Failed > 0 {
		msg += fmt.Sprintf(", %s failed", humanize.Comma(int64(s.Failed)))
	}
	return msg
}
