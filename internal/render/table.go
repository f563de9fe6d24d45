package render

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	humanize "github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ALT-F4-LLC/lp2jira/internal/db"
	"github.com/ALT-F4-LLC/lp2jira/internal/export"
)

const (
	defaultTermWidth = 100
	minReasonWidth   = 20
	shortIDLength    = 8
)

// StyledText applies a lipgloss style to text when colors are enabled.
// When colors are disabled, it returns the plain text unchanged.
func StyledText(text string, style lipgloss.Style) string {
	if ColorsEnabled() {
		return style.Render(text)
	}
	return text
}

// terminalWidth returns the current terminal width, falling back to a default.
func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return defaultTermWidth
	}
	return w
}

// truncate shortens a string to maxLen runes, appending an ellipsis if truncated.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// EmptyState renders a styled empty-state message with an optional contextual hint.
// When quiet is true the hint is suppressed.
func EmptyState(message, hint string, quiet bool) string {
	if !ColorsEnabled() {
		if quiet || hint == "" {
			return message
		}
		return message + "\n" + hint
	}

	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	hintStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)

	result := dimStyle.Render(message)
	if !quiet && hint != "" {
		result += "\n" + hintStyle.Render(hint)
	}
	return result
}

// outcomeColor maps an outcome or run status to a terminal color.
func outcomeColor(s string) lipgloss.Color {
	switch s {
	case string(export.Success), db.StatusCompleted:
		return lipgloss.Color("10")
	case string(export.Skipped), db.StatusRunning:
		return lipgloss.Color("8")
	case string(export.Failed): // same value as db.StatusFailed
		return lipgloss.Color("9")
	case db.StatusInterrupted:
		return lipgloss.Color("11")
	default:
		return lipgloss.Color("15")
	}
}

// colorTable renders rows with a bold header. colored lists the columns
// whose cells are tinted by outcomeColor.
func colorTable(headers []string, rows [][]string, colored ...int) string {
	tint := map[int]bool{}
	for _, c := range colored {
		tint[c] = true
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
			if row == table.HeaderRow {
				return s.Bold(true).Foreground(lipgloss.Color("15"))
			}
			if row < 0 || row >= len(rows) || col >= len(rows[row]) {
				return s
			}
			if tint[col] {
				return s.Foreground(outcomeColor(rows[row][col]))
			}
			return s
		})
	return t.Render()
}

// plainTable renders rows as left-aligned columns separated by two spaces.
func plainTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, r := range rows {
		for i, cell := range r {
			if n := utf8.RuneCountInString(cell); i < len(widths) && n > widths[i] {
				widths[i] = n
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			if i == len(cells)-1 {
				parts[i] = cell
				continue
			}
			parts[i] = cell + strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell))
		}
		fmt.Fprintln(&b, strings.TrimRight(strings.Join(parts, "  "), " "))
	}
	writeRow(headers)
	total := 0
	for _, w := range widths {
		total += w + 2
	}
	fmt.Fprintln(&b, strings.Repeat("-", total-2))
	for _, r := range rows {
		writeRow(r)
	}
	return b.String()
}

func renderTable(headers []string, rows [][]string, colored ...int) string {
	if !ColorsEnabled() {
		return plainTable(headers, rows)
	}
	return colorTable(headers, rows, colored...)
}

// RenderSummaries renders the per-phase export results.
func RenderSummaries(summaries []export.Summary) string {
	if len(summaries) == 0 {
		return EmptyState("Nothing exported.", "", false)
	}

	headers := []string{"Phase", "Total", "Exported", "Skipped", "Failed"}
	rows := make([][]string, 0, len(summaries))
	var failures []string
	for _, s := range summaries {
		phase := s.Phase
		if s.Interrupted {
			phase += " (interrupted)"
		}
		rows = append(rows, []string{
			phase,
			humanize.Comma(int64(s.Total)),
			humanize.Comma(int64(s.Success)),
			humanize.Comma(int64(s.Skipped)),
			humanize.Comma(int64(s.Failed)),
		})
		for _, f := range s.Failures {
			failures = append(failures, fmt.Sprintf("%s %s: %s", s.Phase, f.ID, f.Reason))
		}
	}

	out := renderTable(headers, rows)
	if len(failures) > 0 {
		width := terminalWidth()
		if width < minReasonWidth {
			width = minReasonWidth
		}
		lines := make([]string, 0, len(failures))
		for _, f := range failures {
			lines = append(lines, "  "+truncate(f, width-2))
		}
		out = strings.TrimRight(out, "\n") + "\n\n" +
			StyledText("Failures:", lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))) + "\n" +
			strings.Join(lines, "\n")
	}
	return out
}

func shortID(id string) string {
	if len(id) > shortIDLength {
		return id[:shortIDLength]
	}
	return id
}

func duration(run *db.Run) string {
	if run.FinishedAt == nil {
		return "-"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
}

// RenderRuns renders the run history, newest first.
func RenderRuns(runs []*db.Run) string {
	if len(runs) == 0 {
		return EmptyState("No runs recorded.", "Start one with: lp2jira", false)
	}

	headers := []string{"Run", "Mode", "Status", "Items", "Failed", "Started", "Took"}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			shortID(r.ID),
			r.Mode,
			r.Status,
			humanize.Comma(int64(r.Items)),
			humanize.Comma(int64(r.Failed)),
			humanize.Time(r.StartedAt),
			duration(r),
		})
	}
	return renderTable(headers, rows, 2)
}

// RenderItems renders the recorded items of one run.
func RenderItems(run *db.Run, items []db.Item) string {
	header := fmt.Sprintf("Run %s (%s, %s)", run.ID, run.Mode, run.Status)
	if run.Summary != "" {
		header += "\n" + run.Summary
	}
	if len(items) == 0 {
		return header + "\n\n" + EmptyState("No items recorded.", "", false)
	}

	width := terminalWidth() / 2
	if width < minReasonWidth {
		width = minReasonWidth
	}
	headers := []string{"Phase", "Entity", "Outcome", "Reason"}
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{it.Phase, it.EntityID, it.Outcome, truncate(it.Reason, width)})
	}
	return header + "\n\n" + renderTable(headers, rows, 2)
}
