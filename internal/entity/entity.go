// Package entity holds the exportable entities and the rules for building
// them from source objects.
package entity

import (
	"fmt"
	"time"

	"github.com/ALT-F4-LLC/lp2jira/internal/model"
)

// Kind identifies an entity variant.
type Kind string

const (
	KindUser      Kind = "user"
	KindBug       Kind = "bug"
	KindBlueprint Kind = "blueprint"
)

// Entity is anything that is persisted as one fragment.
type Entity interface {
	Kind() Kind
	// Key is the stable identifier the fragment is stored under.
	Key() string
	// Fragment returns base filled with the entity's documents.
	Fragment(base model.Bundle) (model.Bundle, error)
	// Users lists the names of every user the entity references.
	Users() []string
}

// Issue carries the fields shared by every issue variant.
type Issue struct {
	ID               string
	Status           string
	Owner            string
	Assignee         string
	Title            string
	Desc             string
	Priority         string
	Type             model.IssueType
	Tags             []string
	Created          time.Time
	CustomFields     []model.CustomFieldValue
	AffectedVersions []string
}

func (i Issue) dump() model.Issue {
	labels := i.Tags
	if labels == nil {
		labels = []string{}
	}
	affected := i.AffectedVersions
	if affected == nil {
		affected = []string{}
	}
	return model.Issue{
		ExternalID:        i.ID,
		Status:            i.Status,
		Reporter:          i.Owner,
		Summary:           i.Title,
		Description:       i.Desc,
		Priority:          i.Priority,
		IssueType:         i.Type,
		Created:           model.FormatTime(i.Created),
		Assignee:          i.Assignee,
		Labels:            labels,
		AffectedVersions:  affected,
		CustomFieldValues: i.CustomFields,
	}
}

// Bug is a bug report together with its per-series sub-tasks.
type Bug struct {
	Issue
	Updated       time.Time
	Comments      []model.Comment
	History       []model.HistoryEntry
	FixedVersions []string
	Attachments   []model.Attachment
	SubTasks      []SubTask
	Links         []model.Link
	Releases      []model.Version
}

// SubTask tracks a bug on one series of the project.
type SubTask struct {
	Issue
	Parent  string
	Target  string
	History []model.HistoryEntry
}

// Blueprint is a design proposal exported as a story.
type Blueprint struct {
	Issue
}

// User is a person referenced by exported issues.
type User struct {
	model.User
}

func (b *Bug) Kind() Kind { return KindBug }

func (b *Bug) Key() string { return b.ID }

func (s *Blueprint) Kind() Kind { return KindBlueprint }

func (s *Blueprint) Key() string { return s.ID }

func (u *User) Kind() Kind { return KindUser }

func (u *User) Key() string { return u.Name }

func (u *User) Users() []string { return nil }

// Dump returns the import document of the bug itself.
func (b *Bug) Dump() model.Issue {
	doc := b.Issue.dump()
	doc.Updated = model.FormatTime(b.Updated)
	doc.Comments = b.Comments
	doc.History = b.History
	doc.FixedVersions = b.FixedVersions
	doc.Attachments = b.Attachments
	return doc
}

// Dump returns the import document of the sub-task.
func (s *SubTask) Dump() model.Issue {
	doc := s.Issue.dump()
	doc.History = s.History
	return doc
}

// Fragment places the bug, its sub-tasks, their links and the project
// releases into base.
func (b *Bug) Fragment(base model.Bundle) (model.Bundle, error) {
	issues := make([]model.Issue, 0, len(b.SubTasks)+1)
	issues = append(issues, b.Dump())
	for i := range b.SubTasks {
		issues = append(issues, b.SubTasks[i].Dump())
	}
	if err := addIssues(&base, issues...); err != nil {
		return model.Bundle{}, fmt.Errorf("bug %s: %w", b.ID, err)
	}
	for _, l := range b.Links {
		if err := model.ValidateLinkName(l.Name); err != nil {
			return model.Bundle{}, fmt.Errorf("bug %s: %w", b.ID, err)
		}
	}
	p := base.Project()
	p.Versions = append(p.Versions, b.Releases...)
	base.Links = append(base.Links, b.Links...)
	return base, nil
}

// Users returns every user referenced by the bug and its sub-tasks.
func (b *Bug) Users() []string {
	var names []string
	names = append(names, b.Owner, b.Assignee)
	for _, c := range b.Comments {
		names = append(names, c.Author)
	}
	for _, h := range b.History {
		names = append(names, h.Author)
	}
	for _, a := range b.Attachments {
		names = append(names, a.Attacher)
	}
	for _, s := range b.SubTasks {
		names = append(names, s.Owner, s.Assignee)
		for _, h := range s.History {
			names = append(names, h.Author)
		}
	}
	return uniqueNames(names)
}

// Fragment places the blueprint into base.
func (s *Blueprint) Fragment(base model.Bundle) (model.Bundle, error) {
	if err := addIssues(&base, s.Issue.dump()); err != nil {
		return model.Bundle{}, fmt.Errorf("blueprint %s: %w", s.ID, err)
	}
	return base, nil
}

// Users returns the owner and assignee of the blueprint.
func (s *Blueprint) Users() []string {
	return uniqueNames([]string{s.Owner, s.Assignee})
}

// Fragment places the user into base.
func (u *User) Fragment(base model.Bundle) (model.Bundle, error) {
	base.Users = append(base.Users, u.User)
	return base, nil
}

func addIssues(b *model.Bundle, issues ...model.Issue) error {
	p := b.Project()
	for _, issue := range issues {
		if err := model.ValidateIssueType(issue.IssueType); err != nil {
			return err
		}
		doc, err := model.ToDocument(issue)
		if err != nil {
			return err
		}
		p.Issues = append(p.Issues, doc)
	}
	return nil
}

func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	var out []string
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
