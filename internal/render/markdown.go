// Package render formats run summaries, ledger history and reports for the
// terminal.
package render

import (
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
)

// ColorsEnabled reports whether output may be styled: NO_COLOR must be unset
// and TERM must not be "dumb".
func ColorsEnabled() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return true
}

// RenderMarkdown renders a report, such as the verify report, for the
// terminal, wrapped to its width. With colors disabled the markdown is
// returned as written so it can be redirected into a file.
func RenderMarkdown(content string) (string, error) {
	if content == "" {
		return "", nil
	}

	if !ColorsEnabled() {
		return content, nil
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithEnvironmentConfig(),
		glamour.WithWordWrap(terminalWidth()),
	)
	if err != nil {
		return content, err
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return strings.TrimSpace(rendered), nil
}
