package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/lp2jira/internal/compile"
	"github.com/ALT-F4-LLC/lp2jira/internal/db"
	"github.com/ALT-F4-LLC/lp2jira/internal/export"
	"github.com/ALT-F4-LLC/lp2jira/internal/output"
	"github.com/ALT-F4-LLC/lp2jira/internal/reconcile"
	"github.com/ALT-F4-LLC/lp2jira/internal/render"
	"github.com/ALT-F4-LLC/lp2jira/internal/translate"
)

// plan is what a root invocation does, derived from the mode flags.
type plan struct {
	Mode       string
	Bugs       bool
	Blueprints bool
	Update     bool
	Verify     bool
}

// selectMode validates the mode flags. Conflicts are usage errors raised
// before anything is read or written.
func selectMode(cmd *cobra.Command) (plan, error) {
	onlyBugs, _ := cmd.Flags().GetBool("only-bugs")
	onlyBlueprints, _ := cmd.Flags().GetBool("only-blueprints")
	update, _ := cmd.Flags().GetBool("update-bugs")
	verify, _ := cmd.Flags().GetBool("verify-update")

	if verify && (onlyBugs || onlyBlueprints || update) {
		return plan{}, cmdErr(errors.New("--verify-update must be used alone"), output.ErrUsage)
	}
	if onlyBugs && onlyBlueprints {
		return plan{}, cmdErr(errors.New("use only one of --only-bugs or --only-blueprints"), output.ErrUsage)
	}

	if verify {
		return plan{Mode: "verify", Verify: true}, nil
	}
	p := plan{Mode: "export", Bugs: !onlyBlueprints, Blueprints: !onlyBugs, Update: update}
	switch {
	case onlyBugs:
		p.Mode = "only-bugs"
	case onlyBlueprints:
		p.Mode = "only-blueprints"
	}
	if update {
		p.Mode += "+update"
	}
	return p, nil
}

type migrationResult struct {
	RunID       string            `json:"run_id"`
	Mode        string            `json:"mode"`
	Summaries   []export.Summary  `json:"summaries,omitempty"`
	Compile     *compile.Stats    `json:"compile,omitempty"`
	Update      *reconcile.Stats  `json:"update,omitempty"`
	Verify      *reconcile.Report `json:"verify,omitempty"`
	Interrupted bool              `json:"interrupted,omitempty"`
}

// summaryLine condenses a result for the run ledger.
func (r *migrationResult) summaryLine() string {
	var parts []string
	for _, s := range r.Summaries {
		parts = append(parts, fmt.Sprintf("%s %d/%d", s.Phase, s.Exported(), s.Total))
	}
	if r.Compile != nil {
		parts = append(parts, fmt.Sprintf("compiled %d issues", r.Compile.Issues))
	}
	if r.Update != nil {
		parts = append(parts, fmt.Sprintf("update %d new, %d changed", r.Update.NotFound, r.Update.Changed))
	}
	if r.Verify != nil {
		parts = append(parts, fmt.Sprintf("verify %d/%d ok", r.Verify.OK, r.Verify.Checked))
	}
	return strings.Join(parts, "; ")
}

func runMigration(cmd *cobra.Command, args []string) error {
	p, err := selectMode(cmd)
	if err != nil {
		return err
	}
	w := getWriter(cmd)
	cfg := getCfg(cmd)
	logger := getLogger(cmd)
	ledger := getLedger(cmd)
	ctx := cmd.Context()

	if err := cfg.Validate(); err != nil {
		return cmdErr(err, output.ErrValidation)
	}
	if p.Update || p.Verify {
		if err := cfg.ValidateTracker(); err != nil {
			return cmdErr(err, output.ErrValidation)
		}
	}
	if err := cfg.EnsureDirs(); err != nil {
		return cmdErr(err, output.ErrGeneral)
	}

	tr, err := translate.Load(cfg.MappingPaths(), logger)
	if err != nil {
		return cmdErr(fmt.Errorf("loading mapping tables: %w", err), output.ErrValidation)
	}

	run, err := db.StartRun(ledger, p.Mode)
	if err != nil {
		return cmdErr(err, output.ErrGeneral)
	}
	logger.Info("run started", "run", run.ID, "mode", p.Mode)
	recorder := db.NewRecorder(ledger, run.ID)
	res := &migrationResult{RunID: run.ID, Mode: p.Mode}

	runErr := migrate(ctx, cmd, p, tr, recorder, res)

	status := db.StatusCompleted
	switch {
	case runErr != nil:
		status = db.StatusFailed
	case res.Interrupted:
		status = db.StatusInterrupted
	}
	if err := db.FinishRun(ledger, run.ID, status, res.summaryLine()); err != nil {
		logger.Warn("ledger update failed", "run", run.ID, "err", err)
	}
	logger.Info("run finished", "run", run.ID, "status", status)
	if runErr != nil {
		return cmdErr(runErr, output.ErrGeneral)
	}

	msg, err := formatResult(res)
	if err != nil {
		return cmdErr(err, output.ErrGeneral)
	}
	w.Success(res, msg)
	if res.Interrupted {
		w.Warn("Export has been stopped by user")
	}
	return nil
}

func migrate(ctx context.Context, cmd *cobra.Command, p plan, tr *translate.Translator, recorder *db.Recorder, res *migrationResult) error {
	w := getWriter(cmd)
	cfg := getCfg(cmd)
	logger := getLogger(cmd)
	store := newStore(cfg)

	if p.Verify {
		w.Step("Verify update")
		rep, err := newReconciler(cfg, store, recorder, logger).Verify(ctx, cfg.IssuesFile(), tr.DefaultBlueprintStatus())
		if err != nil {
			return err
		}
		res.Verify = &rep
		res.Interrupted = rep.Interrupted
		return nil
	}

	exporter := newExporter(cfg, tr, store, recorder, logger)
	phases := []struct {
		enabled bool
		title   string
		run     func(context.Context) (export.Summary, error)
	}{
		{true, "Export: Subscribers", exporter.ExportSubscribers},
		{p.Bugs, "Export: Issues", exporter.ExportBugs},
		{p.Blueprints, "Export: Blueprints", exporter.ExportBlueprints},
	}
	for _, ph := range phases {
		if !ph.enabled {
			continue
		}
		w.Step(ph.title)
		sum, err := ph.run(ctx)
		if err != nil {
			return err
		}
		res.Summaries = append(res.Summaries, sum)
		if sum.Interrupted || ctx.Err() != nil {
			res.Interrupted = true
			return nil
		}
	}

	w.Step("Compile export file")
	stats, err := newCompiler(cfg, store, logger).Compile()
	if err != nil {
		return err
	}
	res.Compile = &stats

	if p.Update {
		w.Step("Update bugs")
		upd, err := newReconciler(cfg, store, recorder, logger).Run(ctx, cfg.IssuesFile(), cfg.UpdateFile())
		if err != nil {
			return err
		}
		res.Update = &upd
		res.Interrupted = upd.Interrupted
	}
	return nil
}

func formatResult(res *migrationResult) (string, error) {
	if res.Verify != nil {
		return render.RenderVerify(*res.Verify)
	}
	parts := []string{render.RenderSummaries(res.Summaries)}
	if res.Compile != nil {
		parts = append(parts, render.CompileMessage(*res.Compile))
	}
	if res.Update != nil {
		parts = append(parts, render.UpdateMessage(*res.Update))
	}
	return strings.TrimRight(strings.Join(parts, "\n\n"), "\n"), nil
}
