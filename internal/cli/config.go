package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/lp2jira/internal/config"
	"github.com/ALT-F4-LLC/lp2jira/internal/db"
	"github.com/ALT-F4-LLC/lp2jira/internal/output"
	"github.com/ALT-F4-LLC/lp2jira/internal/render"
)

type configInfo struct {
	*config.Config
	TokenSet      bool  `json:"token_set"`
	LedgerFound   bool  `json:"ledger_found"`
	LedgerSize    int64 `json:"ledger_size_bytes"`
	SchemaVersion int   `json:"schema_version"`
}

var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "Display the resolved configuration",
	Annotations: map[string]string{"skipLogger": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)

		info := configInfo{Config: cfg, TokenSet: cfg.Jira.Token != ""}

		stat, err := os.Stat(cfg.Ledger.Path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			w.Warn("No ledger found at %s. It is created by the first run.", cfg.Ledger.Path)
		case err != nil:
			return cmdErr(fmt.Errorf("reading ledger file: %w", err), output.ErrGeneral)
		default:
			conn, err := db.Open(cfg.Ledger.Path)
			if err != nil {
				return cmdErr(fmt.Errorf("opening ledger: %w", err), output.ErrGeneral)
			}
			defer conn.Close()

			info.SchemaVersion, err = db.SchemaVersion(conn)
			if err != nil {
				return cmdErr(fmt.Errorf("reading schema version: %w", err), output.ErrGeneral)
			}
			info.LedgerFound = true
			info.LedgerSize = stat.Size()
		}

		w.Success(info, formatConfigHuman(info))
		return nil
	},
}

func formatValue(val string) string {
	if val == "" {
		return "(not set)"
	}
	return val
}

func configRows(info configInfo) [][2]string {
	token := "(not set)"
	if info.TokenSet {
		token = "(set)"
	}
	ledger := info.Ledger.Path + " (not found)"
	if info.LedgerFound {
		ledger = fmt.Sprintf("%s (%s, schema v%d)", info.Ledger.Path, humanize.Bytes(uint64(info.LedgerSize)), info.SchemaVersion)
	}
	return [][2]string{
		{"Config file:", formatValue(info.File)},
		{"Launchpad API:", info.Launchpad.APIURL},
		{"Launchpad project:", formatValue(info.Launchpad.Project)},
		{"Jira URL:", formatValue(info.Jira.URL)},
		{"Jira user:", formatValue(info.Jira.Username)},
		{"Jira token:", token},
		{"Jira project:", fmt.Sprintf("%s (%s)", formatValue(info.Jira.Project), formatValue(info.Jira.Key))},
		{"External id field:", info.Jira.ExternalIDField},
		{"Import bundle:", info.IssuesFile()},
		{"Links bundle:", info.LinksFile()},
		{"Update bundle:", info.UpdateFile()},
		{"Issue fragments:", info.Local.Issues},
		{"User fragments:", info.Local.Users},
		{"Update fragments:", info.Local.Updates},
		{"Attachments:", info.Local.Attachments},
		{"Ledger:", ledger},
	}
}

func formatConfigHuman(info configInfo) string {
	rows := configRows(info)
	width := 0
	for _, r := range rows {
		width = max(width, len(r[0]))
	}

	if !render.ColorsEnabled() {
		lines := make([]string, len(rows))
		for i, r := range rows {
			lines[i] = fmt.Sprintf("%-*s %s", width, r[0], r[1])
		}
		return strings.Join(lines, "\n")
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(width + 1)
	valStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))

	lines := []string{headerStyle.Render("lp2jira Configuration"), ""}
	for _, r := range rows {
		lines = append(lines, "  "+keyStyle.Render(r[0])+valStyle.Render(r[1]))
	}
	return strings.Join(lines, "\n")
}

func init() {
	rootCmd.AddCommand(configCmd)
}
