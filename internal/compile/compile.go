// Package compile merges per-entity fragments into the bundles handed to the
// Jira importer.
package compile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ALT-F4-LLC/lp2jira/internal/fragment"
	"github.com/ALT-F4-LLC/lp2jira/internal/model"
)

// Stats counts what went into the compiled bundles.
type Stats struct {
	Fragments int    `json:"fragments"`
	Corrupt   int    `json:"corrupt"`
	Issues    int    `json:"issues"`
	Links     int    `json:"links"`
	Users     int    `json:"users"`
	Versions  int    `json:"versions"`
	IssuesOut string `json:"issues_file"`
	LinksOut  string `json:"links_file"`
}

// Merger accumulates bundles into one. Versions and users are kept once per
// name; issues and links are concatenated.
type Merger struct {
	out      model.Bundle
	versions map[string]struct{}
	users    map[string]struct{}
}

// NewMerger returns a merger building on base.
func NewMerger(base model.Bundle) *Merger {
	m := &Merger{
		out:      base,
		versions: map[string]struct{}{},
		users:    map[string]struct{}{},
	}
	m.out.Normalize()
	p := m.out.Project()
	for _, v := range p.Versions {
		m.versions[v.Name] = struct{}{}
	}
	for _, u := range m.out.Users {
		m.users[u.Name] = struct{}{}
	}
	return m
}

// Add merges b.
func (m *Merger) Add(b model.Bundle) {
	p := m.out.Project()
	for _, src := range b.Projects {
		p.Issues = append(p.Issues, src.Issues...)
		m.AddVersions(src.Versions...)
	}
	m.out.Links = append(m.out.Links, b.Links...)
	m.AddUsers(b.Users...)
}

// AddVersions merges versions not seen yet.
func (m *Merger) AddVersions(vs ...model.Version) {
	p := m.out.Project()
	for _, v := range vs {
		if _, ok := m.versions[v.Name]; ok {
			continue
		}
		m.versions[v.Name] = struct{}{}
		p.Versions = append(p.Versions, v)
	}
}

// AddUsers merges users not seen yet.
func (m *Merger) AddUsers(us ...model.User) {
	for _, u := range us {
		if _, ok := m.users[u.Name]; ok {
			continue
		}
		m.users[u.Name] = struct{}{}
		m.out.Users = append(m.out.Users, u)
	}
}

// Bundle returns the merged bundle.
func (m *Merger) Bundle() model.Bundle {
	return m.out
}

// Compiler reads the fragment store and writes the import bundles.
type Compiler struct {
	store     *fragment.Store
	newBase   func() model.Bundle
	issuesOut string
	linksOut  string
	logger    *slog.Logger
}

// New returns a compiler writing the issues bundle to issuesOut and the links
// bundle to linksOut.
func New(store *fragment.Store, newBase func() model.Bundle, issuesOut, linksOut string, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{
		store:     store,
		newBase:   newBase,
		issuesOut: issuesOut,
		linksOut:  linksOut,
		logger:    logger,
	}
}

// Compile merges every issue and user fragment. A fragment that cannot be
// parsed is logged and skipped.
func (c *Compiler) Compile() (Stats, error) {
	merged := NewMerger(c.newBase())
	var stats Stats

	for _, kind := range []fragment.Kind{fragment.KindIssue, fragment.KindUser} {
		paths, err := c.store.List(kind)
		if err != nil {
			return stats, err
		}
		for _, path := range paths {
			b, err := readFragment(path)
			if err != nil {
				stats.Corrupt++
				c.logger.Error("fragment skipped", "kind", kind, "path", path, "err", err)
				continue
			}
			stats.Fragments++
			merged.Add(b)
		}
	}

	out := merged.Bundle()
	links := c.newBase()
	links.Links = out.Links
	out.Links = []model.Link{}

	if err := WriteBundle(c.issuesOut, out); err != nil {
		return stats, err
	}
	if err := WriteBundle(c.linksOut, links); err != nil {
		return stats, err
	}

	p := out.Project()
	stats.Issues = len(p.Issues)
	stats.Versions = len(p.Versions)
	stats.Users = len(out.Users)
	stats.Links = len(links.Links)
	stats.IssuesOut = c.issuesOut
	stats.LinksOut = c.linksOut

	c.logger.Info("compiled", "issues", stats.Issues, "links", stats.Links,
		"users", stats.Users, "versions", stats.Versions, "corrupt", stats.Corrupt)
	return stats, nil
}

// readFragment parses a fragment. User fragments written by older versions
// hold a bare user document instead of a bundle.
func readFragment(path string) (model.Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Bundle{}, err
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return model.Bundle{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	_, hasUsers := probe["users"]
	_, hasProjects := probe["projects"]
	if _, isUser := probe["name"]; isUser && !hasUsers && !hasProjects {
		var u model.User
		if err := json.Unmarshal(data, &u); err != nil {
			return model.Bundle{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
		return model.Bundle{Users: []model.User{u}}, nil
	}
	return model.DecodeBundle(data)
}

// ReadBundle loads a compiled bundle.
func ReadBundle(path string) (model.Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Bundle{}, err
	}
	return model.DecodeBundle(data)
}

// WriteBundle stores b at path atomically, creating the directory if needed.
func WriteBundle(path string, b model.Bundle) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	data, err := b.Encode()
	if err != nil {
		return err
	}
	return fragment.WriteFile(path, data)
}
