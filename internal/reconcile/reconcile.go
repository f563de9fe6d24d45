// Package reconcile compares a compiled export with what already exists in
// Jira and produces the bundle of changes to import.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ALT-F4-LLC/lp2jira/internal/compile"
	"github.com/ALT-F4-LLC/lp2jira/internal/export"
	"github.com/ALT-F4-LLC/lp2jira/internal/fragment"
	"github.com/ALT-F4-LLC/lp2jira/internal/model"
	"github.com/ALT-F4-LLC/lp2jira/internal/tracker"
)

// PhaseUpdate is the ledger phase of reconciled issues.
const PhaseUpdate = "update"

// State is what reconciliation found for one exported issue.
type State int

const (
	NotFound State = iota
	FoundUnchanged
	FoundChanged
)

func (s State) String() string {
	switch s {
	case NotFound:
		return "not found"
	case FoundUnchanged:
		return "unchanged"
	case FoundChanged:
		return "changed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Settings locate issues in the target project.
type Settings struct {
	ProjectKey string
	// ExternalIDField is the custom field, id or name, holding the source id.
	ExternalIDField string
}

// Stats summarizes a reconciliation run.
type Stats struct {
	Total       int    `json:"total"`
	NotFound    int    `json:"not_found"`
	Unchanged   int    `json:"unchanged"`
	Changed     int    `json:"changed"`
	Resumed     int    `json:"resumed"`
	Failed      int    `json:"failed"`
	Interrupted bool   `json:"interrupted,omitempty"`
	Output      string `json:"output"`
}

// Reconciler diffs exported issues against the target tracker.
type Reconciler struct {
	tracker  tracker.Tracker
	store    *fragment.Store
	newBase  func() model.Bundle
	settings Settings
	recorder export.Recorder
	logger   *slog.Logger
}

// New returns a reconciler keeping per-issue results in the update fragments
// of store. recorder may be nil.
func New(t tracker.Tracker, store *fragment.Store, newBase func() model.Bundle, settings Settings, recorder export.Recorder, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		tracker:  t,
		store:    store,
		newBase:  newBase,
		settings: settings,
		recorder: recorder,
		logger:   logger,
	}
}

// lookupKey is the value searched for in the external id field. Sub-tasks are
// searched by their series.
func lookupKey(doc model.Document) string {
	id := doc.String("externalId")
	if model.IssueType(doc.String("issueType")) == model.IssueTypeSubTask {
		return model.SubTaskSeries(id)
	}
	return id
}

func (r *Reconciler) query(doc model.Document) string {
	clauses := []string{tracker.Clause("project", "=", r.settings.ProjectKey)}
	field := tracker.Field(r.settings.ExternalIDField)
	switch model.IssueType(doc.String("issueType")) {
	case model.IssueTypeStory:
		clauses = append(clauses, tracker.Clause("summary", "~", doc.String("summary")))
	case model.IssueTypeSubTask:
		clauses = append(clauses,
			tracker.Clause(field, "~", lookupKey(doc)),
			tracker.Clause("issuetype", "=", string(model.IssueTypeSubTask)))
	default:
		clauses = append(clauses, tracker.Clause(field, "~", lookupKey(doc)))
	}
	return tracker.And(clauses...)
}

// matches reports whether a target issue is the counterpart of doc. Stories
// created before the external id field existed match by summary.
func matches(candidate tracker.Issue, doc model.Document) bool {
	if candidate.ExternalID() != "" {
		return candidate.ExternalID() == doc.String("externalId")
	}
	return model.IssueType(doc.String("issueType")) == model.IssueTypeStory &&
		candidate.Fields.String("summary") == doc.String("summary")
}

// Locate finds the target counterpart of doc and returns its complete
// record. It returns tracker.ErrNotFound when there is none.
func (r *Reconciler) Locate(ctx context.Context, doc model.Document) (tracker.Issue, error) {
	candidates, err := r.tracker.Search(ctx, r.query(doc))
	if err != nil {
		return tracker.Issue{}, fmt.Errorf("search %s: %w", doc.String("externalId"), err)
	}

	if len(candidates) == 1 && matches(candidates[0], doc) {
		return r.tracker.Issue(ctx, candidates[0].Key)
	}

	for _, c := range candidates {
		full, err := r.tracker.Issue(ctx, c.Key)
		if errors.Is(err, tracker.ErrNotFound) {
			continue
		}
		if err != nil {
			return tracker.Issue{}, err
		}
		if matches(full, doc) {
			return full, nil
		}
	}
	return tracker.Issue{}, tracker.ErrNotFound
}

// Reconcile decides what to import for one exported issue. delta is nil when
// nothing changed; users are the people seen on the target issue.
func (r *Reconciler) Reconcile(ctx context.Context, doc model.Document) (State, model.Document, []model.User, error) {
	target, err := r.Locate(ctx, doc)
	if errors.Is(err, tracker.ErrNotFound) {
		return NotFound, doc, nil, nil
	}
	if err != nil {
		return 0, nil, nil, err
	}

	newer, err := ShouldUpdate(doc, target.Fields)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("compare %s with %s: %w", doc.String("externalId"), target.Key, err)
	}
	if !newer {
		return FoundUnchanged, nil, target.Users, nil
	}
	return FoundChanged, Merge(doc, target.Fields), target.Users, nil
}

// Run reconciles every issue of the compiled bundle at bundlePath and writes
// the update bundle to outPath. Issues already reconciled by an earlier,
// interrupted run are not queried again.
func (r *Reconciler) Run(ctx context.Context, bundlePath, outPath string) (Stats, error) {
	var stats Stats
	exported, err := compile.ReadBundle(bundlePath)
	if err != nil {
		return stats, fmt.Errorf("read export bundle: %w", err)
	}
	issues := exported.Issues()
	stats.Total = len(issues)

	for i, doc := range issues {
		if ctx.Err() != nil {
			stats.Interrupted = true
			r.logger.Warn("update interrupted", "done", i, "total", len(issues))
			break
		}
		id := doc.String("externalId")
		done, err := r.store.Exists(fragment.KindUpdate, id)
		if err != nil {
			return stats, err
		}
		if done {
			stats.Resumed++
			continue
		}

		state, delta, users, err := r.Reconcile(ctx, doc)
		if err != nil {
			stats.Failed++
			r.logger.Error("update failed", "id", id, "err", err)
			r.record(ctx, id, export.Failed, err.Error())
			continue
		}

		frag := r.newBase()
		if delta != nil {
			frag.Project().Issues = append(frag.Project().Issues, delta)
		}
		frag.Users = append(frag.Users, users...)
		if _, err := r.store.Write(fragment.KindUpdate, id, frag); err != nil && !errors.Is(err, fragment.ErrExists) {
			stats.Failed++
			r.logger.Error("update not saved", "id", id, "err", err)
			r.record(ctx, id, export.Failed, err.Error())
			continue
		}

		switch state {
		case NotFound:
			stats.NotFound++
		case FoundUnchanged:
			stats.Unchanged++
		case FoundChanged:
			stats.Changed++
		}
		r.logger.Debug("issue reconciled", "id", id, "state", state)
		r.record(ctx, id, export.Success, state.String())
	}

	if err := r.writeBundle(ctx, outPath); err != nil {
		return stats, err
	}
	stats.Output = outPath
	r.logger.Info("update bundle written", "path", outPath, "new", stats.NotFound,
		"changed", stats.Changed, "unchanged", stats.Unchanged, "failed", stats.Failed)
	return stats, nil
}

func (r *Reconciler) writeBundle(ctx context.Context, outPath string) error {
	versions, err := r.tracker.Versions(ctx, r.settings.ProjectKey)
	if err != nil && !errors.Is(err, tracker.ErrNotFound) {
		return fmt.Errorf("list target versions: %w", err)
	}

	merged := compile.NewMerger(r.newBase())
	merged.AddVersions(versions...)

	paths, err := r.store.List(fragment.KindUpdate)
	if err != nil {
		return err
	}
	for _, path := range paths {
		b, err := fragment.ReadFile(path)
		if err != nil {
			r.logger.Error("update fragment skipped", "path", path, "err", err)
			continue
		}
		merged.Add(b)
	}
	return compile.WriteBundle(outPath, merged.Bundle())
}

func (r *Reconciler) record(ctx context.Context, id string, outcome export.Outcome, reason string) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.Record(context.WithoutCancel(ctx), PhaseUpdate, id, outcome, reason); err != nil {
		r.logger.Warn("ledger write failed", "id", id, "err", err)
	}
}
