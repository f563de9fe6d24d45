package export

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ALT-F4-LLC/lp2jira/internal/entity"
	"github.com/ALT-F4-LLC/lp2jira/internal/source"
)

// Phase names used in summaries and the run ledger.
const (
	PhaseSubscribers = "subscribers"
	PhaseBugs        = "bugs"
	PhaseBlueprints  = "blueprints"
)

// Failure identifies an item that could not be exported.
type Failure struct {
	Index  int    `json:"index"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Summary aggregates the outcomes of one batch.
type Summary struct {
	Phase       string    `json:"phase"`
	Total       int       `json:"total"`
	Success     int       `json:"success"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	Failures    []Failure `json:"failures,omitempty"`
	Interrupted bool      `json:"interrupted,omitempty"`
}

// Exported returns how many items have a fragment after the batch.
func (s Summary) Exported() int {
	return s.Success + s.Skipped
}

func (s *Summary) add(index int, id string, res Result) {
	switch res.Outcome {
	case Success:
		s.Success++
	case Skipped:
		s.Skipped++
	case Failed:
		s.Failed++
		s.Failures = append(s.Failures, Failure{Index: index, ID: id, Reason: res.Reason})
	}
}

// Exporter runs the batch exports of a project.
type Exporter struct {
	src      source.Source
	builder  *entity.Builder
	pipeline *Pipeline
	recorder Recorder
	logger   *slog.Logger
}

// NewExporter returns an exporter. recorder may be nil.
func NewExporter(src source.Source, builder *entity.Builder, pipeline *Pipeline, recorder Recorder, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		src:      src,
		builder:  builder,
		pipeline: pipeline,
		recorder: recorder,
		logger:   logger,
	}
}

// ExportSubscribers exports every subscriber of the project as a user.
func (x *Exporter) ExportSubscribers(ctx context.Context) (Summary, error) {
	x.logger.Info("export started", "phase", PhaseSubscribers)
	names, err := x.src.Subscribers(ctx)
	if err != nil {
		return Summary{Phase: PhaseSubscribers}, fmt.Errorf("list subscribers: %w", err)
	}

	jobs := make([]Job, 0, len(names))
	for _, name := range names {
		jobs = append(jobs, x.pipeline.UserJob(name))
	}
	return x.runAll(ctx, PhaseSubscribers, jobs), nil
}

// ExportBugs exports every bug of the project together with its sub-tasks.
func (x *Exporter) ExportBugs(ctx context.Context) (Summary, error) {
	x.logger.Info("export started", "phase", PhaseBugs)
	tasks, err := x.src.SearchTasks(ctx, source.SearchFilter{
		Statuses:         source.BugStatuses,
		InformationTypes: source.InformationTypes,
	})
	if err != nil {
		return Summary{Phase: PhaseBugs}, fmt.Errorf("search bug tasks: %w", err)
	}
	releases, err := x.builder.Releases(ctx)
	if err != nil {
		return Summary{Phase: PhaseBugs}, fmt.Errorf("list releases: %w", err)
	}

	jobs := make([]Job, 0, len(tasks))
	for _, task := range tasks {
		jobs = append(jobs, Job{
			Kind: entity.KindBug,
			Key:  strconv.Itoa(task.BugID),
			Create: func(ctx context.Context) (entity.Entity, error) {
				return x.builder.Bug(ctx, task, releases)
			},
		})
	}
	return x.runAll(ctx, PhaseBugs, jobs), nil
}

// ExportBlueprints exports every blueprint of the project.
func (x *Exporter) ExportBlueprints(ctx context.Context) (Summary, error) {
	x.logger.Info("export started", "phase", PhaseBlueprints)
	names, err := x.src.Specifications(ctx)
	if err != nil {
		return Summary{Phase: PhaseBlueprints}, fmt.Errorf("list blueprints: %w", err)
	}

	jobs := make([]Job, 0, len(names))
	for _, name := range names {
		jobs = append(jobs, Job{
			Kind: entity.KindBlueprint,
			Key:  name,
			Create: func(ctx context.Context) (entity.Entity, error) {
				return x.builder.Blueprint(ctx, name)
			},
		})
	}
	return x.runAll(ctx, PhaseBlueprints, jobs), nil
}

// runAll runs jobs in order. A failed job never stops the batch; a cancelled
// context stops it between jobs.
func (x *Exporter) runAll(ctx context.Context, phase string, jobs []Job) Summary {
	sum := Summary{Phase: phase, Total: len(jobs)}
	for i, job := range jobs {
		if ctx.Err() != nil {
			sum.Interrupted = true
			x.logger.Warn("export interrupted", "phase", phase, "done", i, "total", len(jobs))
			break
		}
		res := x.pipeline.Run(ctx, job)
		sum.add(i, job.Key, res)
		x.record(ctx, phase, job.Key, res)
	}

	x.logger.Info("export finished", "phase", phase,
		"exported", fmt.Sprintf("%d/%d", sum.Exported(), sum.Total))
	for _, f := range sum.Failures {
		x.logger.Warn("export failure", "phase", phase, "index", f.Index, "id", f.ID, "reason", f.Reason)
	}
	return sum
}

func (x *Exporter) record(ctx context.Context, phase, id string, res Result) {
	if x.recorder == nil {
		return
	}
	// Recorded even after cancellation so the in-flight item is kept.
	if err := x.recorder.Record(context.WithoutCancel(ctx), phase, id, res.Outcome, res.Reason); err != nil {
		x.logger.Warn("recording outcome failed", "phase", phase, "id", id, "err", err)
	}
}
