package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ALT-F4-LLC/lp2jira/internal/render"
)

// usageHint follows every usage error in human mode.
const usageHint = "Run 'lp2jira --help' for usage."

// writeHumanSuccess writes a migration result to w. A one-line result gets a
// checkmark; phase tables and the verify report are printed untouched.
func writeHumanSuccess(w io.Writer, message string) {
	if message == "" {
		return
	}
	if strings.Contains(message, "\n") {
		fmt.Fprintln(w, message)
		return
	}
	if render.ColorsEnabled() {
		icon := lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Render("✔")
		fmt.Fprintf(w, "%s %s\n", icon, message)
	} else {
		fmt.Fprintln(w, message)
	}
}

// writeHumanError writes err to w. Usage errors, such as conflicting mode
// flags, are followed by a pointer to the help text.
func writeHumanError(w io.Writer, err error, code ErrorCode) {
	if render.ColorsEnabled() {
		icon := lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true).Render("✘")
		label := lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true).Render("Error:")
		fmt.Fprintf(w, "%s %s %s\n", icon, label, err)
		if code == ErrUsage {
			fmt.Fprintln(w, lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(usageHint))
		}
		return
	}
	fmt.Fprintf(w, "Error: %s\n", err)
	if code == ErrUsage {
		fmt.Fprintln(w, usageHint)
	}
}
