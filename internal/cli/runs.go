package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/lp2jira/internal/db"
	"github.com/ALT-F4-LLC/lp2jira/internal/export"
	"github.com/ALT-F4-LLC/lp2jira/internal/output"
	"github.com/ALT-F4-LLC/lp2jira/internal/render"
)

var runsCmd = &cobra.Command{
	Use:   "runs [id]",
	Short: "List recorded runs, or show the items of one run",
	Long: `Without an argument, runs lists the most recent runs from the ledger. With a
run id, or a unique prefix of one, it shows the per-item outcomes of that run.`,
	Annotations: map[string]string{"ledger": "true", "skipLogger": "true"},
	Args:        cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		ledger := getLedger(cmd)

		if len(args) == 0 {
			limit, _ := cmd.Flags().GetInt("limit")
			if limit < 1 {
				return cmdErr(fmt.Errorf("--limit must be positive, got %d", limit), output.ErrValidation)
			}
			runs, err := db.ListRuns(ledger, limit)
			if err != nil {
				return cmdErr(fmt.Errorf("listing runs: %w", err), output.ErrGeneral)
			}
			w.Success(runs, render.RenderRuns(runs))
			return nil
		}

		run, err := db.GetRun(ledger, args[0])
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return cmdErr(err, output.ErrNotFound)
			}
			return cmdErr(err, output.ErrGeneral)
		}

		outcome := ""
		if failed, _ := cmd.Flags().GetBool("failed"); failed {
			outcome = string(export.Failed)
		}
		items, err := db.RunItems(ledger, run.ID, outcome)
		if err != nil {
			return cmdErr(fmt.Errorf("listing run items: %w", err), output.ErrGeneral)
		}

		w.Success(struct {
			*db.Run
			Entries []db.Item `json:"entries"`
		}{run, items}, render.RenderItems(run, items))
		return nil
	},
}

func init() {
	runsCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to list")
	runsCmd.Flags().Bool("failed", false, "Show only failed items")
	rootCmd.AddCommand(runsCmd)
}
