package reconcile

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ALT-F4-LLC/lp2jira/internal/compile"
	"github.com/ALT-F4-LLC/lp2jira/internal/fragment"
	"github.com/ALT-F4-LLC/lp2jira/internal/model"
	"github.com/ALT-F4-LLC/lp2jira/internal/tracker"
)

type fakeTracker struct {
	issues   map[string]tracker.Issue
	versions []model.Version
	failOn   string
	searches int
	fetches  int
}

func (f *fakeTracker) Search(_ context.Context, jql string) ([]tracker.Issue, error) {
	f.searches++
	if f.failOn != "" && strings.Contains(jql, f.failOn) {
		return nil, errors.New("jira API returned 500")
	}
	var out []tracker.Issue
	for _, key := range []string{"PRJ-1", "PRJ-2", "PRJ-3", "PRJ-4"} {
		if is, ok := f.issues[key]; ok {
			// Search results carry only a summary of the issue.
			out = append(out, tracker.Issue{Key: is.Key, Fields: model.Document{"summary": is.Fields["summary"]}})
		}
	}
	return out, nil
}

func (f *fakeTracker) Issue(_ context.Context, key string) (tracker.Issue, error) {
	f.fetches++
	is, ok := f.issues[key]
	if !ok {
		return tracker.Issue{}, tracker.ErrNotFound
	}
	is.Fields = is.Fields.Clone()
	return is, nil
}

func (f *fakeTracker) Versions(_ context.Context, _ string) ([]model.Version, error) {
	return f.versions, nil
}

func millis(s string) int64 {
	t, _ := time.Parse(time.RFC3339, s)
	return t.UnixMilli()
}

func targetIssue(key, externalID, status, updated string, users ...string) tracker.Issue {
	is := tracker.Issue{Key: key, Fields: model.Document{
		"externalId": externalID,
		"summary":    "target " + externalID,
		"status":     status,
		"issueType":  "Bug",
		"updated":    millis(updated),
		"labels":     []any{"old"},
		"comments": []any{
			map[string]any{"body": "first", "created": "2024-01-01T00:00:00.000+0000", "author": "alice"},
		},
	}}
	for _, u := range users {
		is.Users = append(is.Users, model.User{Name: u, FullName: u, Active: true})
	}
	return is
}

func exportedIssue(id, status, updated string) model.Document {
	return model.Document{
		"externalId": id,
		"summary":    "exported " + id,
		"status":     status,
		"issueType":  "Bug",
		"updated":    updated,
		"labels":     []any{"new"},
		"comments": []any{
			map[string]any{"body": "first", "created": "2024-01-01T00:00:00Z", "author": "alice"},
			map[string]any{"body": "second", "created": "2024-01-03T00:00:00Z", "author": "bob"},
		},
	}
}

func newBase() model.Bundle { return model.NewBundle("Proj", "PRJ") }

func setup(t *testing.T, ft *fakeTracker, docs ...model.Document) (*Reconciler, string, string) {
	t.Helper()
	dir := t.TempDir()
	store := fragment.NewStore(filepath.Join(dir, "users"), filepath.Join(dir, "issues"), filepath.Join(dir, "updates"))
	b := newBase()
	b.Project().Issues = docs
	in := filepath.Join(dir, "export", "jira-import.json")
	if err := compile.WriteBundle(in, b); err != nil {
		t.Fatal(err)
	}
	r := New(ft, store, newBase, Settings{ProjectKey: "PRJ", ExternalIDField: "Launchpad ID"}, nil, nil)
	return r, in, filepath.Join(dir, "export", "jira-update.json")
}

func TestShouldUpdate(t *testing.T) {
	tests := []struct {
		name   string
		source string
		target any
		want   bool
	}{
		{"target newer", "2024-01-01T00:00:00Z", millis("2024-01-02T00:00:00Z"), false},
		{"source newer", "2024-01-02T00:00:00Z", millis("2024-01-01T00:00:00Z"), true},
		{"same second", "2024-01-01T00:00:00Z", millis("2024-01-01T00:00:00Z") + 999, false},
		{"decoded millis", "2024-01-02T00:00:00Z", float64(millis("2024-01-01T00:00:00Z")), true},
		{"no source time", "", millis("2024-01-01T00:00:00Z"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ShouldUpdate(model.Document{"updated": tt.source}, model.Document{"updated": tt.target})
			if err != nil {
				t.Fatalf("ShouldUpdate: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldUpdateInvalidTime(t *testing.T) {
	if _, err := ShouldUpdate(model.Document{"updated": "yesterday"}, model.Document{"updated": int64(0)}); err == nil {
		t.Error("expected error for unparseable time")
	}
}

func TestMerge(t *testing.T) {
	source := exportedIssue("3", "Fix Released", "2024-01-03T00:00:00Z")
	source["history"] = []any{
		map[string]any{"author": "bob", "created": "2024-01-02T00:00:00Z", "items": []any{
			map[string]any{"field": "status", "fromString": "New", "toString": "Fix Released"},
		}},
	}
	source["fixedVersions"] = []any{"2.0"}
	target := targetIssue("PRJ-3", "3", "New", "2024-01-01T00:00:00Z").Fields
	target["assignee"] = "carol"
	target["history"] = []any{
		map[string]any{"author": "bob", "created": "2024-01-02T00:00:00.000+0000", "items": []any{
			map[string]any{"field": "status", "fromString": "New", "toString": "Fix Released"},
		}},
	}

	got := Merge(source, target)

	if got.String("status") != "Fix Released" || got.String("summary") != "exported 3" {
		t.Errorf("shared fields not replaced: %v", got)
	}
	if got.String("assignee") != "carol" {
		t.Errorf("target-only field lost: %v", got["assignee"])
	}
	if got.Has("fixedVersions") {
		t.Errorf("source-only field added: %v", got["fixedVersions"])
	}
	if labels := got.List("labels"); len(labels) != 1 || labels[0] != "new" {
		t.Errorf("labels = %v", labels)
	}
	comments := got.List("comments")
	if len(comments) != 1 || comments[0].(map[string]any)["body"] != "second" {
		t.Errorf("comments = %v", comments)
	}
	if history := got.List("history"); len(history) != 0 {
		t.Errorf("history = %v", history)
	}
	if got.String("updated") != "2024-01-03T00:00:00Z" {
		t.Errorf("updated = %v", got["updated"])
	}
	if target.String("status") != "New" {
		t.Error("target document was modified")
	}
}

func TestHasCommentBodylessTarget(t *testing.T) {
	target := []any{map[string]any{"created": "2020-01-01T00:00:00Z"}}
	if !hasComment(target, map[string]any{"body": "anything", "created": "2024-01-01T00:00:00Z"}) {
		t.Error("a target comment without a body should count as present")
	}
	target = []any{map[string]any{"body": "other", "created": "2024-01-01T00:00:00Z"}}
	if hasComment(target, map[string]any{"body": "anything", "created": "2024-01-01T00:00:00Z"}) {
		t.Error("different body matched")
	}
}

func TestQuery(t *testing.T) {
	r := New(&fakeTracker{}, nil, newBase, Settings{ProjectKey: "PRJ", ExternalIDField: "Launchpad ID"}, nil, nil)
	tests := []struct {
		doc  model.Document
		want string
	}{
		{model.Document{"externalId": "42", "issueType": "Bug"}, `project = "PRJ" AND "Launchpad ID" ~ "42"`},
		{model.Document{"externalId": "42/focal", "issueType": "Sub-task"}, `project = "PRJ" AND "Launchpad ID" ~ "focal" AND issuetype = "Sub-task"`},
		{model.Document{"externalId": "spec", "issueType": "Story", "summary": `Say "hi"`}, `project = "PRJ" AND summary ~ "Say \"hi\""`},
	}
	for _, tt := range tests {
		if got := r.query(tt.doc); got != tt.want {
			t.Errorf("query(%v) = %s, want %s", tt.doc, got, tt.want)
		}
	}
}

func TestLocateDisambiguates(t *testing.T) {
	ft := &fakeTracker{issues: map[string]tracker.Issue{
		"PRJ-1": targetIssue("PRJ-1", "42/bionic", "New", "2024-01-01T00:00:00Z"),
		"PRJ-2": targetIssue("PRJ-2", "42/focal", "New", "2024-01-01T00:00:00Z"),
		"PRJ-3": targetIssue("PRJ-3", "7/focal", "New", "2024-01-01T00:00:00Z"),
	}}
	r, _, _ := setup(t, ft)

	got, err := r.Locate(context.Background(), model.Document{"externalId": "42/focal", "issueType": "Sub-task"})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if got.Key != "PRJ-2" {
		t.Errorf("located %s, want PRJ-2", got.Key)
	}

	_, err = r.Locate(context.Background(), model.Document{"externalId": "99", "issueType": "Bug"})
	if !errors.Is(err, tracker.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRunStatesAndResume(t *testing.T) {
	ft := &fakeTracker{
		issues: map[string]tracker.Issue{
			"PRJ-2": targetIssue("PRJ-2", "2", "New", "2024-01-05T00:00:00Z", "alice"),
			"PRJ-3": targetIssue("PRJ-3", "3", "New", "2024-01-01T00:00:00Z", "alice", "bob"),
		},
		versions: []model.Version{{Name: "1.0"}, {Name: "target-only"}},
	}
	r, in, out := setup(t, ft,
		exportedIssue("1", "New", "2024-01-02T00:00:00Z"),
		exportedIssue("2", "New", "2024-01-02T00:00:00Z"),
		exportedIssue("3", "Fix Released", "2024-01-03T00:00:00Z"),
	)

	stats, err := r.Run(context.Background(), in, out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.NotFound != 1 || stats.Unchanged != 1 || stats.Changed != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}

	update, err := compile.ReadBundle(out)
	if err != nil {
		t.Fatalf("read update bundle: %v", err)
	}
	issues := update.Issues()
	if len(issues) != 2 {
		t.Fatalf("update has %d issues, want 2", len(issues))
	}
	byID := map[string]model.Document{}
	for _, doc := range issues {
		byID[doc.String("externalId")] = doc
	}
	if byID["1"].String("summary") != "exported 1" {
		t.Errorf("new issue not kept as exported: %v", byID["1"])
	}
	if byID["3"].String("status") != "Fix Released" || len(byID["3"].List("comments")) != 1 {
		t.Errorf("changed issue not merged: %v", byID["3"])
	}
	if len(update.Users) != 2 {
		t.Errorf("users = %+v, want alice and bob once", update.Users)
	}
	if len(update.Project().Versions) != 2 {
		t.Errorf("versions = %+v", update.Project().Versions)
	}

	searches := ft.searches
	stats, err = r.Run(context.Background(), in, out)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if stats.Resumed != 3 || ft.searches != searches {
		t.Errorf("resume: stats = %+v, searches %d -> %d", stats, searches, ft.searches)
	}
}

func TestRunInterrupted(t *testing.T) {
	ft := &fakeTracker{}
	r, in, out := setup(t, ft, exportedIssue("1", "New", "2024-01-02T00:00:00Z"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := r.Run(ctx, in, out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !stats.Interrupted || ft.searches != 0 {
		t.Errorf("stats = %+v, searches = %d", stats, ft.searches)
	}
}

func TestVerify(t *testing.T) {
	story := model.Document{"externalId": "spec-a", "issueType": "Story", "summary": "target spec-a", "status": ""}
	ft := &fakeTracker{
		issues: map[string]tracker.Issue{
			"PRJ-1": targetIssue("PRJ-1", "1", "New", "2024-01-01T00:00:00Z"),
			"PRJ-2": targetIssue("PRJ-2", "2", "Closed", "2024-01-01T00:00:00Z"),
			"PRJ-4": {Key: "PRJ-4", Fields: model.Document{"summary": "target spec-a", "status": "New"}},
		},
		failOn: `"5"`,
	}
	r, in, _ := setup(t, ft,
		exportedIssue("1", "New", "2024-01-02T00:00:00Z"),
		exportedIssue("2", "New", "2024-01-02T00:00:00Z"),
		exportedIssue("3", "New", "2024-01-02T00:00:00Z"),
		exportedIssue("5", "New", "2024-01-02T00:00:00Z"),
		story,
	)

	rep, err := r.Verify(context.Background(), in, "New")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if rep.Checked != 5 || rep.OK != 2 || rep.NotFound != 1 || rep.StatusMismatch != 1 || rep.Exceptions != 1 {
		t.Errorf("report = %+v", rep)
	}
	if len(rep.Mismatches) != 1 || rep.Mismatches[0].Key != "PRJ-2" || rep.Mismatches[0].Actual != "Closed" {
		t.Errorf("mismatches = %+v", rep.Mismatches)
	}
	if len(rep.Missing) != 1 || rep.Missing[0] != "3" {
		t.Errorf("missing = %v", rep.Missing)
	}
}
