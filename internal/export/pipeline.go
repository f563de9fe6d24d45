// Package export drives entities through create, user resolution and
// persistence, one at a time.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ALT-F4-LLC/lp2jira/internal/entity"
	"github.com/ALT-F4-LLC/lp2jira/internal/fragment"
	"github.com/ALT-F4-LLC/lp2jira/internal/model"
)

// Outcome is the result of exporting one entity.
type Outcome string

const (
	Success Outcome = "success"
	Skipped Outcome = "skipped"
	Failed  Outcome = "failed"
)

// Result reports what happened to a job.
type Result struct {
	Outcome Outcome
	Reason  string
	Path    string
}

// Job describes one entity to export. Create is only called when the entity
// has no fragment yet.
type Job struct {
	Kind   entity.Kind
	Key    string
	Create func(ctx context.Context) (entity.Entity, error)
}

// Recorder receives the outcome of every exported item.
type Recorder interface {
	Record(ctx context.Context, phase, entityID string, outcome Outcome, reason string) error
}

// UserFactory builds a user entity by name.
type UserFactory func(ctx context.Context, name string) (entity.Entity, error)

// Pipeline persists entities as fragments.
type Pipeline struct {
	store    *fragment.Store
	newBase  func() model.Bundle
	users    UserFactory
	recorder Recorder
	logger   *slog.Logger
}

// NewPipeline returns a pipeline writing into store. newBase returns the empty
// bundle each fragment is built on. users builds the users referenced by
// exported entities. recorder may be nil.
func NewPipeline(store *fragment.Store, newBase func() model.Bundle, users UserFactory, recorder Recorder, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:    store,
		newBase:  newBase,
		users:    users,
		recorder: recorder,
		logger:   logger,
	}
}

func fragmentKind(k entity.Kind) fragment.Kind {
	if k == entity.KindUser {
		return fragment.KindUser
	}
	return fragment.KindIssue
}

// Run exports a single entity. An entity whose fragment already exists is
// skipped without any remote work.
func (p *Pipeline) Run(ctx context.Context, job Job) Result {
	kind := fragmentKind(job.Kind)
	exists, err := p.store.Exists(kind, job.Key)
	if err != nil {
		return p.fail(job, fmt.Errorf("check fragment: %w", err))
	}
	if exists {
		p.logger.Info("already exported, skipping", "kind", job.Kind, "key", job.Key)
		return Result{Outcome: Skipped, Path: p.store.Path(kind, job.Key)}
	}

	e, err := job.Create(ctx)
	if err != nil {
		return p.fail(job, err)
	}

	if job.Kind != entity.KindUser {
		p.exportUsers(ctx, job, e.Users())
	}

	b, err := e.Fragment(p.newBase())
	if err != nil {
		return p.fail(job, err)
	}
	path, err := p.store.Write(kind, job.Key, b)
	if errors.Is(err, fragment.ErrExists) {
		return Result{Outcome: Skipped, Path: path}
	}
	if err != nil {
		return p.fail(job, err)
	}

	p.logger.Info("exported", "kind", job.Kind, "key", job.Key, "path", path)
	return Result{Outcome: Success, Path: path}
}

// exportUsers exports every referenced user. A failing user is logged and
// does not fail the entity that references it.
func (p *Pipeline) exportUsers(ctx context.Context, parent Job, names []string) {
	for _, name := range names {
		res := p.Run(ctx, p.UserJob(name))
		if res.Outcome == Skipped {
			continue
		}
		p.record(ctx, "users", name, res)
		if res.Outcome == Failed {
			p.logger.Warn("referenced user not exported", "kind", parent.Kind, "key", parent.Key, "user", name, "reason", res.Reason)
		}
	}
}

// UserJob returns the job exporting the named user.
func (p *Pipeline) UserJob(name string) Job {
	return Job{
		Kind: entity.KindUser,
		Key:  name,
		Create: func(ctx context.Context) (entity.Entity, error) {
			return p.users(ctx, name)
		},
	}
}

func (p *Pipeline) fail(job Job, err error) Result {
	p.logger.Error("export failed", "kind", job.Kind, "key", job.Key, "err", err)
	return Result{Outcome: Failed, Reason: err.Error()}
}

func (p *Pipeline) record(ctx context.Context, phase, id string, res Result) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Record(context.WithoutCancel(ctx), phase, id, res.Outcome, res.Reason); err != nil {
		p.logger.Warn("recording outcome failed", "phase", phase, "id", id, "err", err)
	}
}
