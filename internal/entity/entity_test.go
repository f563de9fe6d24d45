package entity

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ALT-F4-LLC/lp2jira/internal/model"
	"github.com/ALT-F4-LLC/lp2jira/internal/source"
	"github.com/ALT-F4-LLC/lp2jira/internal/source/sourcetest"
	"github.com/ALT-F4-LLC/lp2jira/internal/translate"
)

var (
	t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
)

func newTranslator() *translate.Translator {
	return translate.New(translate.Tables{
		Status:       map[string]string{"Triaged": "Open", "Fix Released": "Done", "New": "To Do"},
		Priority:     map[string]string{"High": "Major", "Low": "Minor"},
		CustomFields: map[string]string{"heat": "com.example:float", "security_related": "com.example:bool"},
	}, nil)
}

func seedBug(src *sourcetest.Fake) source.Task {
	task := source.Task{BugID: 100, Target: "proj", Status: "Triaged", Importance: "High", Assignee: "bob", Milestone: "1.0"}
	src.Bugs[100] = source.Bug{
		ID:          100,
		Title:       "Crash on start",
		Description: "Boom",
		Tags:        []string{"crash"},
		Owner:       "alice",
		Created:     t0,
		Updated:     t1,
		Attrs:       source.Attrs{"heat": 12.0, "security_related": false},
	}
	src.BugTaskLists[100] = []source.Task{
		task,
		{BugID: 100, Target: "proj/bionic", Status: "Fix Released", Importance: "Low", Owner: "carol", Milestone: "1.1", Created: t0},
		{BugID: 100, Target: "proj/focal", Status: "New", Importance: "High", Owner: "dave", Created: t1},
		{BugID: 100, Target: "otherproj", Status: "New"},
		{BugID: 100, Target: "otherproj/trusty", Status: "New"},
	}
	src.MessageLists[100] = []source.Message{
		{Content: "first", Owner: "alice", ChangeTag: "abc-1", Created: t0},
		{Content: "first", Owner: "alice", ChangeTag: "abc-1", Created: t0},
		{Content: "second", Owner: "erin", ChangeTag: "xyz-2", Created: t1},
	}
	src.DuplicateIDs[100] = []int{101, 102}
	src.ActivityLists[100] = []source.Activity{
		{WhatChanged: "tags", OldValue: "", NewValue: "crash", Person: "alice", Changed: t0},
		{WhatChanged: "proj/bionic: assignee", OldValue: "", NewValue: "Carol (carol)", Person: "carol", Changed: t0},
		{WhatChanged: "proj/bionic: status", OldValue: "New", NewValue: "Fix Released", Person: "carol", Changed: t0},
		{WhatChanged: "proj: importance", OldValue: "Low", NewValue: "High", Person: "bob", Changed: t1},
		{WhatChanged: "proj/xenial: status", OldValue: "New", NewValue: "Triaged", Person: "bob", Changed: t1},
		{WhatChanged: "a: b: c", Person: "bob", Changed: t1},
		{WhatChanged: "description", Person: "bob", Changed: t1},
	}
	return task
}

func TestCollectCommentsDedup(t *testing.T) {
	msgs := []source.Message{
		{Content: "a", ChangeTag: "abc-1"},
		{Content: "a again", ChangeTag: "abc-1"},
		{Content: "b", ChangeTag: "xyz-2"},
	}
	got := CollectComments(msgs)
	if len(got) != 2 {
		t.Fatalf("len(comments) = %d, want 2", len(got))
	}
	if got[0].Body != "a" || got[1].Body != "b" {
		t.Errorf("comments = %+v", got)
	}
}

func TestCollectCommentsKeepsUntagged(t *testing.T) {
	got := CollectComments([]source.Message{{Content: "a"}, {Content: "b"}})
	if len(got) != 2 {
		t.Errorf("len(comments) = %d, want 2", len(got))
	}
}

func TestParseDescriptor(t *testing.T) {
	tests := []struct {
		input  string
		target string
		field  string
		ok     bool
	}{
		{"proj/bionic: assignee", "proj/bionic", "assignee", true},
		{"proj: status", "proj", "status", true},
		{"tags", "", "", false},
		{"a: b: c", "", "", false},
		{": status", "", "", false},
		{"proj/bionic:", "", "", false},
		{"my proj: status", "", "", false},
		{"proj//x: status", "", "", false},
	}
	for _, tt := range tests {
		target, field, ok := ParseDescriptor(tt.input)
		if target != tt.target || field != tt.field || ok != tt.ok {
			t.Errorf("ParseDescriptor(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.input, target, field, ok, tt.target, tt.field, tt.ok)
		}
	}
}

func TestBuildBug(t *testing.T) {
	src := sourcetest.New()
	task := seedBug(src)
	b := NewBuilder(src, newTranslator(), nil, Settings{Project: "proj", CustomFields: true}, nil)

	releases := []model.Version{{Name: "1.0", Released: true}}
	bug, err := b.Bug(context.Background(), task, releases)
	if err != nil {
		t.Fatalf("Bug: %v", err)
	}

	if bug.ID != "100" || bug.Status != "Open" || bug.Priority != "Major" || bug.Assignee != "bob" {
		t.Errorf("bug core = %+v", bug.Issue)
	}
	if len(bug.Comments) != 2 {
		t.Errorf("len(comments) = %d, want 2", len(bug.Comments))
	}

	if len(bug.SubTasks) != 2 {
		t.Fatalf("len(subtasks) = %d, want 2", len(bug.SubTasks))
	}
	wantTitles := []string{"[proj/bionic] Crash on start", "[proj/focal] Crash on start"}
	for i, s := range bug.SubTasks {
		if s.Title != wantTitles[i] {
			t.Errorf("subtask[%d].Title = %q, want %q", i, s.Title, wantTitles[i])
		}
		if s.Type != model.IssueTypeSubTask || s.Parent != "100" {
			t.Errorf("subtask[%d] = %+v", i, s)
		}
	}
	if bug.SubTasks[0].ID != "100/bionic" || bug.SubTasks[0].Status != "Done" || bug.SubTasks[0].Priority != "Minor" {
		t.Errorf("bionic subtask = %+v", bug.SubTasks[0].Issue)
	}
	if !reflect.DeepEqual(bug.SubTasks[1].AffectedVersions, []string{"focal"}) {
		t.Errorf("focal affected = %v", bug.SubTasks[1].AffectedVersions)
	}
	if !reflect.DeepEqual(bug.AffectedVersions, []string{"bionic", "focal"}) {
		t.Errorf("bug affected = %v", bug.AffectedVersions)
	}
	if !reflect.DeepEqual(bug.FixedVersions, []string{"1.0", "1.1"}) {
		t.Errorf("fixed = %v", bug.FixedVersions)
	}

	var subLinks, related, dups []model.Link
	for _, l := range bug.Links {
		switch l.Name {
		case model.LinkSubTask:
			subLinks = append(subLinks, l)
		case model.LinkRelated:
			related = append(related, l)
		case model.LinkDuplicate:
			dups = append(dups, l)
		}
	}
	if len(subLinks) != 2 || subLinks[0].DestinationID != "100" || subLinks[1].SourceID != "100/focal" {
		t.Errorf("sub-task links = %+v", subLinks)
	}
	if len(related) != 1 || related[0].DestinationID != "otherproj:100" {
		t.Errorf("related links = %+v", related)
	}
	if len(dups) != 2 || dups[0].SourceID != "101" || dups[0].DestinationID != "100" {
		t.Errorf("duplicate links = %+v", dups)
	}

	// tags at t0 by alice, importance at t1 by bob
	if len(bug.History) != 2 {
		t.Fatalf("bug history = %+v", bug.History)
	}
	if bug.History[0].Items[0].Field != "labels" || bug.History[0].Items[0].ToString != "crash" {
		t.Errorf("tag history = %+v", bug.History[0])
	}
	prio := bug.History[1].Items[0]
	if prio.Field != "priority" || prio.FromString != "Minor" || prio.ToString != "Major" {
		t.Errorf("priority history = %+v", prio)
	}

	bionic := bug.SubTasks[0].History
	if len(bionic) != 1 || len(bionic[0].Items) != 2 {
		t.Fatalf("bionic history = %+v", bionic)
	}
	assignee := bionic[0].Items[0]
	if assignee.Field != "assignee" || assignee.To == nil || *assignee.To != "carol" || assignee.From != nil {
		t.Errorf("assignee item = %+v", assignee)
	}
	if bionic[0].Items[1].ToString != "Done" {
		t.Errorf("status item = %+v", bionic[0].Items[1])
	}
	if len(bug.SubTasks[1].History) != 0 {
		t.Errorf("focal history = %+v", bug.SubTasks[1].History)
	}

	wantFields := []model.CustomFieldValue{
		{FieldName: "heat", FieldType: "com.example:float", Value: 12.0},
		{FieldName: "security_related", FieldType: "com.example:bool", Value: false},
	}
	if !reflect.DeepEqual(bug.CustomFields, wantFields) {
		t.Errorf("custom fields = %+v", bug.CustomFields)
	}

	wantUsers := []string{"alice", "bob", "erin", "carol", "dave"}
	if got := bug.Users(); !reflect.DeepEqual(got, wantUsers) {
		t.Errorf("Users() = %v, want %v", got, wantUsers)
	}
}

func TestBuildBugCustomFieldsOmitted(t *testing.T) {
	src := sourcetest.New()
	task := seedBug(src)
	bugObj := src.Bugs[100]
	bugObj.Attrs = source.Attrs{"heat": "very hot"}
	src.Bugs[100] = bugObj

	b := NewBuilder(src, newTranslator(), nil, Settings{Project: "proj", CustomFields: true}, nil)
	bug, err := b.Bug(context.Background(), task, nil)
	if err != nil {
		t.Fatalf("Bug: %v", err)
	}
	if len(bug.CustomFields) != 0 {
		t.Errorf("custom fields = %+v, want none", bug.CustomFields)
	}

	b = NewBuilder(src, newTranslator(), nil, Settings{Project: "proj"}, nil)
	bug, err = b.Bug(context.Background(), task, nil)
	if err != nil {
		t.Fatalf("Bug: %v", err)
	}
	if bug.CustomFields != nil {
		t.Errorf("custom fields exported while disabled: %+v", bug.CustomFields)
	}
}

func TestBuildBugMissing(t *testing.T) {
	src := sourcetest.New()
	b := NewBuilder(src, newTranslator(), nil, Settings{Project: "proj"}, nil)
	_, err := b.Bug(context.Background(), source.Task{BugID: 9}, nil)
	if !errors.Is(err, source.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

type stubFetcher struct {
	atts []model.Attachment
	err  error
}

func (s stubFetcher) Fetch(context.Context, source.Bug) ([]model.Attachment, error) {
	return s.atts, s.err
}

func TestBuildBugAttachments(t *testing.T) {
	src := sourcetest.New()
	task := seedBug(src)
	fetch := stubFetcher{atts: []model.Attachment{{Name: "log.txt", Attacher: "zoe"}}}

	b := NewBuilder(src, newTranslator(), fetch, Settings{Project: "proj"}, nil)
	bug, err := b.Bug(context.Background(), task, nil)
	if err != nil {
		t.Fatalf("Bug: %v", err)
	}
	if len(bug.Attachments) != 1 {
		t.Errorf("attachments = %+v", bug.Attachments)
	}
	found := false
	for _, u := range bug.Users() {
		if u == "zoe" {
			found = true
		}
	}
	if !found {
		t.Error("attacher missing from referenced users")
	}

	b = NewBuilder(src, newTranslator(), stubFetcher{err: errors.New("boom")}, Settings{Project: "proj"}, nil)
	if _, err := b.Bug(context.Background(), task, nil); err == nil {
		t.Error("expected error when attachments cannot be listed")
	}
}

func TestBugFragment(t *testing.T) {
	src := sourcetest.New()
	task := seedBug(src)
	b := NewBuilder(src, newTranslator(), nil, Settings{Project: "proj"}, nil)
	releases := []model.Version{{Name: "1.0"}, {Name: "1.1"}}
	bug, err := b.Bug(context.Background(), task, releases)
	if err != nil {
		t.Fatalf("Bug: %v", err)
	}

	frag, err := bug.Fragment(model.NewBundle("Proj", "PRJ"))
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	issues := frag.Project().Issues
	if len(issues) != 3 {
		t.Fatalf("len(issues) = %d, want 3", len(issues))
	}
	if issues[0].String("externalId") != "100" || issues[0].String("issueType") != "Bug" {
		t.Errorf("bug document = %v", issues[0])
	}
	if issues[0].String("updated") != "2024-01-02T00:00:00Z" {
		t.Errorf("updated = %v", issues[0]["updated"])
	}
	if issues[1].String("issueType") != "Sub-task" || issues[1].Has("updated") {
		t.Errorf("sub-task document = %v", issues[1])
	}
	if len(frag.Links) != len(bug.Links) {
		t.Errorf("links = %d, want %d", len(frag.Links), len(bug.Links))
	}
	if len(frag.Project().Versions) != 2 {
		t.Errorf("versions = %+v", frag.Project().Versions)
	}
}

func TestBuildBugPrefersTaskDates(t *testing.T) {
	src := sourcetest.New()
	task := seedBug(src)
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	updated := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	task.Created, task.Updated = created, updated
	b := NewBuilder(src, newTranslator(), nil, Settings{Project: "proj"}, nil)

	bug, err := b.Bug(context.Background(), task, nil)
	if err != nil {
		t.Fatalf("Bug: %v", err)
	}
	if !bug.Created.Equal(created) || !bug.Updated.Equal(updated) {
		t.Errorf("dates = %v, %v; want task dates", bug.Created, bug.Updated)
	}

	bug, err = b.Bug(context.Background(), source.Task{BugID: 100, Target: "proj"}, nil)
	if err != nil {
		t.Fatalf("Bug: %v", err)
	}
	if !bug.Created.Equal(t0) || !bug.Updated.Equal(t1) {
		t.Errorf("dates = %v, %v; want bug dates", bug.Created, bug.Updated)
	}
}

func TestBugFragmentRejectsUnknownLink(t *testing.T) {
	src := sourcetest.New()
	task := seedBug(src)
	b := NewBuilder(src, newTranslator(), nil, Settings{Project: "proj"}, nil)
	bug, err := b.Bug(context.Background(), task, nil)
	if err != nil {
		t.Fatalf("Bug: %v", err)
	}
	bug.Links = append(bug.Links, model.Link{Name: "Blocks", SourceID: "100", DestinationID: "7"})

	if _, err := bug.Fragment(model.NewBundle("Proj", "PRJ")); err == nil {
		t.Fatal("expected error for unknown link name")
	}
}

func TestBuildUser(t *testing.T) {
	src := sourcetest.New()
	src.People["alice"] = source.Person{Name: "alice", DisplayName: "Alice", PreferredEmail: "alice@example.com"}
	src.People["bob"] = source.Person{Name: "bob", DisplayName: "Bob", HideEmail: true, PreferredEmail: "bob@example.com"}

	b := NewBuilder(src, newTranslator(), nil, Settings{Groups: []string{"jira-users", "devs"}}, nil)

	alice, err := b.User(context.Background(), "alice")
	if err != nil {
		t.Fatalf("User(alice): %v", err)
	}
	if alice.Email != "alice@example.com" || !alice.Active || alice.FullName != "Alice" {
		t.Errorf("alice = %+v", alice)
	}
	if !reflect.DeepEqual(alice.Groups, []string{"jira-users", "devs"}) {
		t.Errorf("groups = %v", alice.Groups)
	}

	bob, err := b.User(context.Background(), "bob")
	if err != nil {
		t.Fatalf("User(bob): %v", err)
	}
	if bob.Email != "" {
		t.Errorf("hidden email exported: %q", bob.Email)
	}

	frag, err := bob.Fragment(model.NewBundle("P", "P"))
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	if len(frag.Users) != 1 || frag.Users[0].Name != "bob" {
		t.Errorf("user fragment = %+v", frag.Users)
	}
}

func TestBuildBlueprint(t *testing.T) {
	src := sourcetest.New()
	src.Specs["new-ui"] = source.Specification{
		Name:      "new-ui",
		Title:     "New UI",
		Summary:   "Redo it",
		WorkItems: "Work items:\nfoo: TODO",
		Priority:  "High",
		Owner:     "alice",
		Assignee:  "alice",
		Created:   t0,
		Attrs:     source.Attrs{"is_complete": true, "is_started": true},
	}
	b := NewBuilder(src, newTranslator(), nil, Settings{Project: "proj"}, nil)

	bp, err := b.Blueprint(context.Background(), "new-ui")
	if err != nil {
		t.Fatalf("Blueprint: %v", err)
	}
	if bp.Status != "Done" || bp.Type != model.IssueTypeStory || bp.Priority != "Major" {
		t.Errorf("blueprint = %+v", bp.Issue)
	}
	if bp.Desc != "Redo it\n\nWork items:\nfoo: TODO" {
		t.Errorf("desc = %q", bp.Desc)
	}
	if !reflect.DeepEqual(bp.Users(), []string{"alice"}) {
		t.Errorf("users = %v", bp.Users())
	}

	frag, err := bp.Fragment(model.NewBundle("P", "P"))
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	doc := frag.Project().Issues[0]
	if doc.String("issueType") != "Story" {
		t.Errorf("doc = %v", doc)
	}
	if labels, ok := doc["labels"].([]any); !ok || len(labels) != 0 {
		t.Errorf("labels = %v, want empty list", doc["labels"])
	}
}

func TestReleases(t *testing.T) {
	src := sourcetest.New()
	src.ReleaseList = []source.Release{{Version: "1.0", Released: &t0}, {Version: "2.0"}}
	b := NewBuilder(src, newTranslator(), nil, Settings{}, nil)

	got, err := b.Releases(context.Background())
	if err != nil {
		t.Fatalf("Releases: %v", err)
	}
	want := []model.Version{
		{Name: "1.0", Released: true, ReleaseDate: "2024-01-01T00:00:00Z"},
		{Name: "2.0"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Releases = %+v, want %+v", got, want)
	}
}
