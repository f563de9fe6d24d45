package config

import (
	"os"
	"path/filepath"
	"testing"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

const sample = `
launchpad:
  project: widget
jira:
  project: Widget
  key: WDG
  groups: "jira-users, launchpad"
  export_custom_fields: true
local:
  export: out
mapping:
  status: status.yaml
`

func TestLoadFileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Launchpad.Project != "widget" || cfg.Jira.Key != "WDG" || !cfg.Jira.ExportCustomFields {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Launchpad.APIURL != "https://api.launchpad.net/devel" {
		t.Errorf("api_url default = %q", cfg.Launchpad.APIURL)
	}
	if cfg.IssuesFile() != filepath.Join("out", "jira-import.json") {
		t.Errorf("IssuesFile = %q", cfg.IssuesFile())
	}
	if got := cfg.Groups(); len(got) != 2 || got[1] != "launchpad" {
		t.Errorf("Groups = %v", got)
	}
	if cfg.MappingPaths().Status != "status.yaml" {
		t.Errorf("mapping = %+v", cfg.MappingPaths())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	b := cfg.NewBundle()
	if b.Project().Key != "WDG" {
		t.Errorf("bundle project = %+v", b.Project())
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	if err := os.WriteFile(filepath.Join(dir, DefaultFile), []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LP2JIRA_JIRA_TOKEN", "secret")
	t.Setenv("LP2JIRA_JIRA_KEY", "ENV")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Jira.Token != "secret" || cfg.Jira.Key != "ENV" {
		t.Errorf("jira = %+v", cfg.Jira)
	}
	if cfg.File != DefaultFile {
		t.Errorf("File = %q", cfg.File)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("LP2JIRA_JIRA_USERNAME=bot\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LP2JIRA_JIRA_USERNAME", "")
	os.Unsetenv("LP2JIRA_JIRA_USERNAME")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Jira.Username != "bot" {
		t.Errorf("username = %q, want value from .env", cfg.Jira.Username)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	chdir(t, t.TempDir())
	if _, err := Load("nope.yaml"); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestValidateMissing(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error without project settings")
	}
	if err := cfg.ValidateTracker(); err == nil {
		t.Error("expected tracker validation error without jira.url")
	}
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{Local: Local{
		Issues:  filepath.Join(dir, "a", "issues"),
		Users:   filepath.Join(dir, "a", "users"),
		Export:  filepath.Join(dir, "out"),
		Updates: filepath.Join(dir, "out", "updates"),
	}}
	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	for _, d := range []string{cfg.Local.Issues, cfg.Local.Users, cfg.Local.Export, cfg.Local.Updates} {
		if fi, err := os.Stat(d); err != nil || !fi.IsDir() {
			t.Errorf("%s not created: %v", d, err)
		}
	}
}
