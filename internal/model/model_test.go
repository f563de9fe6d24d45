package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCleanID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://api.launchpad.net/devel/~alice", "alice"},
		{"~bob", "bob"},
		{"carol", "carol"},
		{"https://api.launchpad.net/devel/~dave/", "dave"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := CleanID(tt.input); got != tt.want {
			t.Errorf("CleanID(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestValidateIssueType(t *testing.T) {
	for _, it := range []IssueType{IssueTypeBug, IssueTypeSubTask, IssueTypeStory} {
		if err := ValidateIssueType(it); err != nil {
			t.Errorf("ValidateIssueType(%q) unexpected error: %v", it, err)
		}
	}
	if err := ValidateIssueType("Epic"); err == nil {
		t.Error("ValidateIssueType('Epic') expected error, got nil")
	}
}

func TestValidateLinkName(t *testing.T) {
	for _, n := range []LinkName{LinkSubTask, LinkDuplicate, LinkRelated} {
		if err := ValidateLinkName(n); err != nil {
			t.Errorf("ValidateLinkName(%q) unexpected error: %v", n, err)
		}
	}
	if err := ValidateLinkName("Blocks"); err == nil {
		t.Error("ValidateLinkName('Blocks') expected error, got nil")
	}
}

func TestSubTaskSeries(t *testing.T) {
	if got := SubTaskSeries("1234/bionic"); got != "bionic" {
		t.Errorf("SubTaskSeries = %q, want %q", got, "bionic")
	}
	if got := SubTaskSeries("1234"); got != "1234" {
		t.Errorf("SubTaskSeries = %q, want %q", got, "1234")
	}
}

func TestNewBundleTemplate(t *testing.T) {
	b := NewBundle("Example", "EX")
	data, err := b.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"users", "links", "projects"} {
		if _, ok := raw[key].([]any); !ok {
			t.Errorf("%s = %v, want array", key, raw[key])
		}
	}
	project := raw["projects"].([]any)[0].(map[string]any)
	if project["type"] != "software" {
		t.Errorf("project type = %v, want software", project["type"])
	}
	if project["key"] != "EX" || project["name"] != "Example" {
		t.Errorf("project = %v", project)
	}
	if _, ok := project["issues"].([]any); !ok {
		t.Errorf("issues = %v, want empty array", project["issues"])
	}
}

func TestDecodeBundleNormalizesNulls(t *testing.T) {
	b, err := DecodeBundle([]byte(`{"users": null, "projects": [{"name": "x", "issues": null}]}`))
	if err != nil {
		t.Fatalf("DecodeBundle: %v", err)
	}
	if b.Users == nil || b.Links == nil {
		t.Error("expected users and links to be normalized to empty slices")
	}
	if b.Project().Issues == nil || b.Project().Versions == nil {
		t.Error("expected project slices to be normalized")
	}
}

func TestToDocument(t *testing.T) {
	issue := Issue{
		ExternalID: "42",
		Status:     "Open",
		IssueType:  IssueTypeBug,
		Labels:     []string{"ui"},
		Comments:   []Comment{{Body: "hi", Created: "2024-01-01T00:00:00Z", Author: "alice"}},
	}
	doc, err := ToDocument(issue)
	if err != nil {
		t.Fatalf("ToDocument: %v", err)
	}
	if doc.String("externalId") != "42" {
		t.Errorf("externalId = %v", doc["externalId"])
	}
	if len(doc.List("comments")) != 1 {
		t.Errorf("comments = %v", doc["comments"])
	}
	if doc.Has("assignee") {
		t.Error("assignee should be omitted when empty")
	}
}

func TestDocumentCloneIsDeep(t *testing.T) {
	doc := Document{"labels": []any{"a"}, "nested": map[string]any{"k": "v"}}
	clone := doc.Clone()
	clone["labels"].([]any)[0] = "b"
	clone["nested"].(map[string]any)["k"] = "w"

	if doc["labels"].([]any)[0] != "a" {
		t.Error("clone shares list storage with the original")
	}
	if doc["nested"].(map[string]any)["k"] != "v" {
		t.Error("clone shares map storage with the original")
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	inputs := []string{
		"2024-01-01T00:00:00Z",
		"2024-01-01T00:00:00+00:00",
		"2024-01-01T01:00:00+01:00",
		"2024-01-01T00:00:00.000+0000",
		"2024-01-01T00:00:00",
	}
	for _, in := range inputs {
		got, err := ParseTime(in)
		if err != nil {
			t.Errorf("ParseTime(%q) error: %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseTime(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseTime("yesterday"); err == nil {
		t.Error("ParseTime('yesterday') expected error")
	}
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2024, 3, 5, 10, 30, 0, 0, time.FixedZone("CET", 3600))
	if got := FormatTime(ts); got != "2024-03-05T09:30:00Z" {
		t.Errorf("FormatTime = %q", got)
	}
}
