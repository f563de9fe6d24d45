package model

import (
	"encoding/json"
	"fmt"
)

// ProjectType is the Jira project type every exported project is created as.
const ProjectType = "software"

// Version is a release of the project as understood by the Jira importer.
type Version struct {
	Name        string `json:"name"`
	Released    bool   `json:"released,omitempty"`
	ReleaseDate string `json:"releaseDate,omitempty"`
}

// Project is the single project entry of a bundle.
type Project struct {
	Name     string     `json:"name"`
	Key      string     `json:"key"`
	Type     string     `json:"type"`
	Versions []Version  `json:"versions"`
	Issues   []Document `json:"issues"`
}

// Bundle is the envelope shared by every persisted fragment and by the
// compiled import files.
type Bundle struct {
	Users    []User    `json:"users"`
	Links    []Link    `json:"links"`
	Projects []Project `json:"projects"`
}

// NewBundle returns an empty bundle for the given Jira project.
func NewBundle(name, key string) Bundle {
	return Bundle{
		Users: []User{},
		Links: []Link{},
		Projects: []Project{{
			Name:     name,
			Key:      key,
			Type:     ProjectType,
			Versions: []Version{},
			Issues:   []Document{},
		}},
	}
}

// Project returns the first project of the bundle, creating an empty one
// when the bundle has none.
func (b *Bundle) Project() *Project {
	if len(b.Projects) == 0 {
		b.Projects = append(b.Projects, Project{Type: ProjectType, Versions: []Version{}, Issues: []Document{}})
	}
	return &b.Projects[0]
}

// Issues returns the issues of every project in the bundle.
func (b *Bundle) Issues() []Document {
	var out []Document
	for _, p := range b.Projects {
		out = append(out, p.Issues...)
	}
	return out
}

// Normalize replaces nil slices with empty ones so the JSON output always
// carries arrays instead of null.
func (b *Bundle) Normalize() {
	if b.Users == nil {
		b.Users = []User{}
	}
	if b.Links == nil {
		b.Links = []Link{}
	}
	for i := range b.Projects {
		if b.Projects[i].Versions == nil {
			b.Projects[i].Versions = []Version{}
		}
		if b.Projects[i].Issues == nil {
			b.Projects[i].Issues = []Document{}
		}
	}
}

// Encode marshals the bundle into its on-disk form.
func (b Bundle) Encode() ([]byte, error) {
	b.Normalize()
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding bundle: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeBundle parses a bundle document.
func DecodeBundle(data []byte) (Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return Bundle{}, fmt.Errorf("decoding bundle: %w", err)
	}
	b.Normalize()
	return b, nil
}
