package attachment

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ALT-F4-LLC/lp2jira/internal/source"
	"github.com/ALT-F4-LLC/lp2jira/internal/source/sourcetest"
)

func TestLocalName(t *testing.T) {
	tests := []struct {
		bug  string
		file string
		want string
	}{
		{"42", "log.txt", "42_log.txt"},
		{"42", "crash dump: 1.txt", "42_crash_dump__1.txt"},
	}
	for _, tt := range tests {
		if got := LocalName(tt.bug, tt.file); got != tt.want {
			t.Errorf("LocalName(%q, %q) = %q, want %q", tt.bug, tt.file, got, tt.want)
		}
	}
}

func TestFetchSkipsExistingAndDropsFailures(t *testing.T) {
	src := sourcetest.New()
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	src.AttachmentList[42] = []source.Attachment{
		{Title: "new.txt", FileName: "new.txt", Owner: "alice", Created: created, DataLink: "lp://new"},
		{Title: "old.txt", FileName: "old.txt", Owner: "alice", Created: created, DataLink: "lp://old"},
		{Title: "broken.txt", FileName: "broken.txt", Owner: "bob", Created: created, DataLink: "lp://broken"},
	}
	src.Payloads["lp://new"] = "new payload"
	src.Payloads["lp://old"] = "old payload"

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "42_old.txt"), []byte("kept"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(src, dir, "https://files.example.com/att/", nil)
	got, err := f.Fetch(context.Background(), source.Bug{ID: 42})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("len(attachments) = %d, want 1: %+v", len(got), got)
	}
	a := got[0]
	if a.Name != "new.txt" || a.Attacher != "alice" || a.Created != "2024-01-01T12:00:00Z" {
		t.Errorf("attachment = %+v", a)
	}
	if a.URI != "https://files.example.com/att/42_new.txt" {
		t.Errorf("uri = %q", a.URI)
	}

	data, err := os.ReadFile(filepath.Join(dir, "42_new.txt"))
	if err != nil || string(data) != "new payload" {
		t.Errorf("new.txt = %q, %v", data, err)
	}
	kept, _ := os.ReadFile(filepath.Join(dir, "42_old.txt"))
	if string(kept) != "kept" {
		t.Errorf("existing file was overwritten: %q", kept)
	}
	if _, err := os.Stat(filepath.Join(dir, "42_broken.txt")); !os.IsNotExist(err) {
		t.Errorf("failed attachment left a file behind: %v", err)
	}
	if n := src.Calls("OpenAttachment"); n != 2 {
		t.Errorf("OpenAttachment calls = %d, want 2", n)
	}
}

func TestFetchListError(t *testing.T) {
	src := sourcetest.New()
	src.Errs["Attachments"] = errors.New("timeout")

	f := NewFetcher(src, t.TempDir(), "https://files.example.com", nil)
	if _, err := f.Fetch(context.Background(), source.Bug{ID: 1}); err == nil {
		t.Error("expected error when attachments cannot be listed")
	}
}

func TestFetchDropsUndescribedAttachment(t *testing.T) {
	src := sourcetest.New()
	src.AttachmentList[7] = []source.Attachment{
		{Title: "good.txt", FileName: "good.txt", Owner: "alice", DataLink: "lp://good"},
		{Title: "bad.log", FileName: "bad.log", DataLink: "lp://bad", Err: source.ErrNotFound},
	}
	src.Payloads["lp://good"] = "good payload"
	src.Payloads["lp://bad"] = "bad payload"

	dir := t.TempDir()
	f := NewFetcher(src, dir, "https://files.example.com", nil)
	got, err := f.Fetch(context.Background(), source.Bug{ID: 7})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 1 || got[0].Name != "good.txt" {
		t.Fatalf("attachments = %+v, want only good.txt", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "7_bad.log")); !os.IsNotExist(err) {
		t.Error("undescribed attachment should not be downloaded")
	}
}
