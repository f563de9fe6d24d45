package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/lp2jira/internal/db"
	"github.com/ALT-F4-LLC/lp2jira/internal/output"
	"github.com/ALT-F4-LLC/lp2jira/internal/render"
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile existing fragments into the import bundles",
	Long: `Compile merges the user and issue fragments already on disk into the import
and links bundles without contacting Launchpad.`,
	Annotations: map[string]string{"ledger": "true"},
	Args:        cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)
		logger := getLogger(cmd)
		ledger := getLedger(cmd)

		if err := cfg.EnsureDirs(); err != nil {
			return cmdErr(err, output.ErrGeneral)
		}

		run, err := db.StartRun(ledger, "compile")
		if err != nil {
			return cmdErr(err, output.ErrGeneral)
		}

		stats, err := newCompiler(cfg, newStore(cfg), logger).Compile()
		if err != nil {
			if ferr := db.FinishRun(ledger, run.ID, db.StatusFailed, err.Error()); ferr != nil {
				logger.Warn("ledger update failed", "run", run.ID, "err", ferr)
			}
			return cmdErr(fmt.Errorf("compiling fragments: %w", err), output.ErrGeneral)
		}

		msg := render.CompileMessage(stats)
		if err := db.FinishRun(ledger, run.ID, db.StatusCompleted, msg); err != nil {
			logger.Warn("ledger update failed", "run", run.ID, "err", err)
		}
		w.Success(stats, msg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compileCmd)
}
