package entity

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ALT-F4-LLC/lp2jira/internal/filter"
	"github.com/ALT-F4-LLC/lp2jira/internal/model"
	"github.com/ALT-F4-LLC/lp2jira/internal/source"
	"github.com/ALT-F4-LLC/lp2jira/internal/translate"
)

// AttachmentFetcher downloads the attachments of a bug.
type AttachmentFetcher interface {
	Fetch(ctx context.Context, bug source.Bug) ([]model.Attachment, error)
}

// Settings tune how entities are built.
type Settings struct {
	// Project is the source project being exported.
	Project string
	// Groups are assigned to every exported user.
	Groups []string
	// CustomFields enables custom-field export.
	CustomFields bool
}

// Builder constructs entities from source objects.
type Builder struct {
	src         source.Source
	tr          *translate.Translator
	attachments AttachmentFetcher
	settings    Settings
	logger      *slog.Logger
}

// NewBuilder returns a builder. attachments may be nil to skip attachments.
func NewBuilder(src source.Source, tr *translate.Translator, attachments AttachmentFetcher, settings Settings, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		src:         src,
		tr:          tr,
		attachments: attachments,
		settings:    settings,
		logger:      logger,
	}
}

// User builds the user with the given name.
func (b *Builder) User(ctx context.Context, name string) (*User, error) {
	p, err := b.src.Person(ctx, name)
	if err != nil {
		return nil, err
	}
	u := &User{User: model.User{
		Name:     name,
		FullName: p.DisplayName,
		Groups:   b.settings.Groups,
		Active:   true,
	}}
	if !p.HideEmail && p.PreferredEmail != "" {
		u.Email = p.PreferredEmail
	}
	return u, nil
}

// Releases returns the project's releases as import versions.
func (b *Builder) Releases(ctx context.Context) ([]model.Version, error) {
	rels, err := b.src.Releases(ctx)
	if err != nil {
		return nil, err
	}
	versions := make([]model.Version, 0, len(rels))
	for _, r := range rels {
		v := model.Version{Name: r.Version}
		if r.Released != nil {
			v.Released = true
			v.ReleaseDate = model.FormatTime(*r.Released)
		}
		versions = append(versions, v)
	}
	return versions, nil
}

// Blueprint builds the blueprint with the given name.
func (b *Builder) Blueprint(ctx context.Context, name string) (*Blueprint, error) {
	spec, err := b.src.Specification(ctx, name)
	if err != nil {
		return nil, err
	}

	var parts []string
	for _, p := range []string{spec.Summary, spec.Whiteboard, spec.WorkItems} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}

	return &Blueprint{Issue: Issue{
		ID:       name,
		Status:   b.tr.BlueprintStatus(spec),
		Owner:    spec.Owner,
		Assignee: spec.Assignee,
		Title:    spec.Title,
		Desc:     strings.Join(parts, "\n\n"),
		Priority: b.tr.Priority(spec.Priority),
		Type:     model.IssueTypeStory,
		Created:  spec.Created,
	}}, nil
}

// Bug builds the bug behind task, with its sub-tasks, links and history.
func (b *Builder) Bug(ctx context.Context, task source.Task, releases []model.Version) (*Bug, error) {
	bug, err := b.src.Bug(ctx, task.BugID)
	if err != nil {
		return nil, err
	}
	key := bug.Key()

	msgs, err := b.src.Messages(ctx, bug.ID)
	if err != nil {
		return nil, err
	}

	out := &Bug{
		Issue: Issue{
			ID:       key,
			Status:   b.tr.Status(task.Status),
			Owner:    bug.Owner,
			Assignee: task.Assignee,
			Title:    bug.Title,
			Desc:     bug.Description,
			Priority: b.tr.Priority(task.Importance),
			Type:     model.IssueTypeBug,
			Tags:     bug.Tags,
			Created:  orTime(task.Created, bug.Created),
		},
		Updated:  orTime(task.Updated, bug.Updated),
		Comments: CollectComments(msgs),
		Releases: releases,
	}

	tasks, err := b.src.BugTasks(ctx, bug.ID)
	if err != nil {
		return nil, err
	}
	b.deriveSubTasks(out, bug, tasks)

	dups, err := b.src.Duplicates(ctx, bug.ID)
	if err != nil {
		return nil, err
	}
	for _, d := range dups {
		out.Links = append(out.Links, model.Link{
			Name:          model.LinkDuplicate,
			SourceID:      strconv.Itoa(d),
			DestinationID: key,
		})
	}

	acts, err := b.src.Activity(ctx, bug.ID)
	if err != nil {
		return nil, err
	}
	b.applyActivity(out, acts)

	if b.settings.CustomFields {
		out.CustomFields = b.customFields(key, task, bug)
	}

	if b.attachments != nil {
		atts, err := b.attachments.Fetch(ctx, bug)
		if err != nil {
			return nil, err
		}
		out.Attachments = atts
	}
	return out, nil
}

// CollectComments converts messages into comments. Consecutive messages with
// the same change tag are copies of one edit and only the first is kept.
func CollectComments(msgs []source.Message) []model.Comment {
	comments := make([]model.Comment, 0, len(msgs))
	prevTag := ""
	for _, m := range msgs {
		if m.ChangeTag != "" && m.ChangeTag == prevTag {
			continue
		}
		prevTag = m.ChangeTag
		comments = append(comments, model.Comment{
			Body:    m.Content,
			Created: model.FormatTime(m.Created),
			Author:  m.Owner,
		})
	}
	return comments
}

func (b *Builder) deriveSubTasks(out *Bug, bug source.Bug, tasks []source.Task) {
	project := b.settings.Project
	for _, t := range tasks {
		switch filter.ClassifyTarget(t.Target, project) {
		case filter.ScopeProject:
			if t.Milestone != "" {
				out.FixedVersions = filter.Union(out.FixedVersions, []string{t.Milestone})
			}
		case filter.ScopeSeries:
			series := filter.SeriesName(t.Target)
			sub := SubTask{
				Issue: Issue{
					ID:               out.ID + "/" + series,
					Status:           b.tr.Status(t.Status),
					Owner:            t.Owner,
					Assignee:         t.Assignee,
					Title:            fmt.Sprintf("[%s] %s", t.Target, bug.Title),
					Priority:         b.tr.Priority(t.Importance),
					Type:             model.IssueTypeSubTask,
					Created:          t.Created,
					AffectedVersions: []string{series},
				},
				Parent: out.ID,
				Target: t.Target,
			}
			out.SubTasks = append(out.SubTasks, sub)
			out.AffectedVersions = filter.Union(out.AffectedVersions, []string{series})
			out.Links = append(out.Links, model.Link{
				Name:          model.LinkSubTask,
				SourceID:      sub.ID,
				DestinationID: out.ID,
			})
			if t.Milestone != "" {
				out.FixedVersions = filter.Union(out.FixedVersions, []string{t.Milestone})
			}
		case filter.ScopeForeign:
			out.Links = append(out.Links, model.Link{
				Name:          model.LinkRelated,
				SourceID:      out.ID,
				DestinationID: t.Target + ":" + out.ID,
			})
		default:
			b.logger.Debug("task target ignored", "bug", out.ID, "target", t.Target)
		}
	}
}

// historyLog groups consecutive changes by the same author at the same time
// into one entry.
type historyLog []model.HistoryEntry

func (h *historyLog) add(author string, at time.Time, item model.HistoryItem) {
	created := model.FormatTime(at)
	if n := len(*h); n > 0 {
		last := &(*h)[n-1]
		if last.Author == author && last.Created == created {
			last.Items = append(last.Items, item)
			return
		}
	}
	*h = append(*h, model.HistoryEntry{Author: author, Created: created, Items: []model.HistoryItem{item}})
}

func (b *Builder) applyActivity(out *Bug, acts []source.Activity) {
	subTasks := make(map[string]*SubTask, len(out.SubTasks))
	subLogs := make(map[string]*historyLog, len(out.SubTasks))
	for i := range out.SubTasks {
		target := out.SubTasks[i].Target
		subTasks[target] = &out.SubTasks[i]
		subLogs[target] = &historyLog{}
	}
	var bugLog historyLog

	for _, a := range acts {
		if a.WhatChanged == "tags" {
			bugLog.add(a.Person, a.Changed, model.NewHistoryItem("labels", a.OldValue, a.NewValue))
			continue
		}
		if !strings.Contains(a.WhatChanged, ":") {
			continue
		}

		target, field, ok := ParseDescriptor(a.WhatChanged)
		if !ok {
			b.logger.Warn("malformed change descriptor skipped", "bug", out.ID, "descriptor", a.WhatChanged)
			continue
		}
		name, tracked := historyFields[field]
		if !tracked {
			continue
		}
		item := b.historyItem(name, a.OldValue, a.NewValue)

		switch {
		case target == b.settings.Project:
			bugLog.add(a.Person, a.Changed, item)
		case subLogs[target] != nil:
			subLogs[target].add(a.Person, a.Changed, item)
		default:
			b.logger.Debug("change for untracked target skipped", "bug", out.ID, "target", target, "field", field)
		}
	}

	out.History = bugLog
	for target, sub := range subTasks {
		sub.History = *subLogs[target]
	}
}

func (b *Builder) historyItem(field, from, to string) model.HistoryItem {
	switch field {
	case "status":
		return model.NewHistoryItem(field, b.tr.Status(from), b.tr.Status(to))
	case "priority":
		return model.NewHistoryItem(field, b.tr.Priority(from), b.tr.Priority(to))
	case "assignee":
		item := model.NewHistoryItem(field, from, to)
		if id := personKey(from); id != "" {
			item.From = &id
		}
		if id := personKey(to); id != "" {
			item.To = &id
		}
		return item
	default:
		return model.NewHistoryItem(field, from, to)
	}
}

// personKey extracts the user name from a value such as "Alice (alice)".
func personKey(v string) string {
	v = strings.TrimSpace(v)
	open := strings.LastIndex(v, "(")
	if open < 0 || !strings.HasSuffix(v, ")") {
		return ""
	}
	return v[open+1 : len(v)-1]
}

func (b *Builder) customFields(key string, task source.Task, bug source.Bug) []model.CustomFieldValue {
	var values []model.CustomFieldValue
	for _, f := range b.tr.CustomFields() {
		raw, ok := task.Attr(f.Name)
		if !ok {
			raw, ok = bug.Attr(f.Name)
		}
		if !ok {
			continue
		}
		v, err := translate.ConvertCustomField(f.Type, raw)
		if err != nil {
			b.logger.Warn("custom field skipped", "bug", key, "field", f.Name, "err", err)
			continue
		}
		values = append(values, model.CustomFieldValue{
			FieldName: f.Name,
			FieldType: f.Type,
			Value:     v,
		})
	}
	return values
}

// orTime returns t, or fallback when t is unset.
func orTime(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}
