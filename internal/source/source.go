// Package source defines the read-only view of the bug tracker that projects
// are exported from.
package source

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"
)

// ErrNotFound is returned when a requested object does not exist.
var ErrNotFound = errors.New("not found")

// BugStatuses is every task status the export searches for.
var BugStatuses = []string{
	"New", "Incomplete", "Opinion", "Invalid", "Won't Fix", "Expired",
	"Confirmed", "Triaged", "In Progress", "Fix Committed", "Fix Released",
	"Incomplete (with response)", "Incomplete (without response)",
}

// InformationTypes is every visibility class the export searches for.
var InformationTypes = []string{
	"Public", "Public Security", "Private Security",
	"Private", "Proprietary", "Embargoed",
}

// SearchFilter narrows a task search.
type SearchFilter struct {
	Statuses         []string
	InformationTypes []string
}

// Attrs holds the raw attributes of a source object by name. It backs custom
// field extraction and blueprint rule matching.
type Attrs map[string]any

// Attr returns the named attribute.
func (a Attrs) Attr(name string) (any, bool) {
	v, ok := a[name]
	return v, ok
}

// Person is a user of the source tracker.
type Person struct {
	Name           string
	DisplayName    string
	HideEmail      bool
	PreferredEmail string
}

// Task is a bug as seen from one target: the project itself or one of its
// series, or another project the bug also affects.
type Task struct {
	BugID      int
	Target     string
	Status     string
	Importance string
	Owner      string
	Assignee   string
	Milestone  string
	Created    time.Time
	Updated    time.Time
	Attrs      Attrs
}

// Attr returns a raw task attribute.
func (t Task) Attr(name string) (any, bool) { return t.Attrs.Attr(name) }

// Bug is the report shared by all of its tasks.
type Bug struct {
	ID          int
	Title       string
	Description string
	Tags        []string
	Owner       string
	Created     time.Time
	Updated     time.Time
	Attrs       Attrs
}

// Key returns the bug id as used for external ids.
func (b Bug) Key() string { return strconv.Itoa(b.ID) }

// Attr returns a raw bug attribute.
func (b Bug) Attr(name string) (any, bool) { return b.Attrs.Attr(name) }

// Message is a bug comment. ChangeTag identifies the edit that produced it;
// the API can deliver the same edit more than once.
type Message struct {
	Content   string
	Created   time.Time
	Owner     string
	ChangeTag string
}

// Activity is one entry of a bug's change log.
type Activity struct {
	WhatChanged string
	OldValue    string
	NewValue    string
	Changed     time.Time
	Person      string
}

// Attachment is a file attached to a bug.
type Attachment struct {
	Title    string
	FileName string
	Owner    string
	Created  time.Time
	DataLink string
	// Err is set when the attachment could not be described. Such
	// attachments are skipped.
	Err error
}

// Release is a published version of the project.
type Release struct {
	Version  string
	Released *time.Time
}

// Specification is a blueprint.
type Specification struct {
	Name       string
	Title      string
	Summary    string
	Whiteboard string
	WorkItems  string
	Priority   string
	Owner      string
	Assignee   string
	Created    time.Time
	Attrs      Attrs
}

// Attr returns a raw specification attribute.
func (s Specification) Attr(name string) (any, bool) { return s.Attrs.Attr(name) }

// Source is the remote tracker a project is exported from.
type Source interface {
	SearchTasks(ctx context.Context, f SearchFilter) ([]Task, error)
	Bug(ctx context.Context, id int) (Bug, error)
	BugTasks(ctx context.Context, bugID int) ([]Task, error)
	Messages(ctx context.Context, bugID int) ([]Message, error)
	Activity(ctx context.Context, bugID int) ([]Activity, error)
	Attachments(ctx context.Context, bugID int) ([]Attachment, error)
	OpenAttachment(ctx context.Context, a Attachment) (io.ReadCloser, error)
	Duplicates(ctx context.Context, bugID int) ([]int, error)
	Person(ctx context.Context, name string) (Person, error)
	Subscribers(ctx context.Context) ([]string, error)
	Releases(ctx context.Context) ([]Release, error)
	Specification(ctx context.Context, name string) (Specification, error)
	Specifications(ctx context.Context) ([]string, error)
}
