package jira

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ALT-F4-LLC/lp2jira/internal/model"
	"github.com/ALT-F4-LLC/lp2jira/internal/tracker"
)

type fieldReader struct {
	fields map[string]json.RawMessage
}

func (r fieldReader) decode(id string, v any) bool {
	raw, ok := r.fields[id]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func (r fieldReader) str(id string) string {
	var s string
	r.decode(id, &s)
	return s
}

func (r fieldReader) name(id string) string {
	var n namedField
	r.decode(id, &n)
	return n.Name
}

func (r fieldReader) names(id string) []string {
	var ns []namedField
	r.decode(id, &ns)
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Name)
	}
	return out
}

func (r fieldReader) user(id string) *apiUser {
	var u apiUser
	if !r.decode(id, &u) || u.Name == "" {
		return nil
	}
	return &u
}

// normalizeTime rewrites a Jira timestamp in the form used by the export.
// Unparseable values are kept as they are.
func normalizeTime(s string) string {
	if s == "" {
		return ""
	}
	t, err := model.ParseTime(s)
	if err != nil {
		return s
	}
	return model.FormatTime(t)
}

func (c *Client) isExternalID(id, name string) bool {
	if c.ExternalIDField == "" {
		return false
	}
	return id == c.ExternalIDField || strings.EqualFold(name, c.ExternalIDField)
}

// convert turns a REST issue into the import document shape.
func (c *Client) convert(raw apiIssue) (tracker.Issue, error) {
	r := fieldReader{fields: raw.Fields}
	users := map[string]model.User{}
	addUser := func(u *apiUser) string {
		if u == nil {
			return ""
		}
		users[u.Name] = model.User{Name: u.Name, FullName: u.DisplayName, Email: u.EmailAddress, Active: u.Active}
		return u.Name
	}

	issue := model.Issue{
		Status:           r.name("status"),
		Reporter:         addUser(r.user("reporter")),
		Summary:          r.str("summary"),
		Description:      r.str("description"),
		Priority:         r.name("priority"),
		IssueType:        model.IssueType(r.name("issuetype")),
		Created:          normalizeTime(r.str("created")),
		Assignee:         addUser(r.user("assignee")),
		AffectedVersions: r.names("versions"),
		FixedVersions:    r.names("fixVersions"),
	}
	r.decode("labels", &issue.Labels)
	if issue.Labels == nil {
		issue.Labels = []string{}
	}

	var comments struct {
		Comments []struct {
			Body    string   `json:"body"`
			Created string   `json:"created"`
			Author  *apiUser `json:"author"`
		} `json:"comments"`
	}
	hasComments := r.decode("comment", &comments)
	for _, cm := range comments.Comments {
		issue.Comments = append(issue.Comments, model.Comment{
			Body:    cm.Body,
			Created: normalizeTime(cm.Created),
			Author:  addUser(cm.Author),
		})
	}

	var attachments []struct {
		Filename string   `json:"filename"`
		Created  string   `json:"created"`
		Content  string   `json:"content"`
		Author   *apiUser `json:"author"`
	}
	r.decode("attachment", &attachments)
	for _, a := range attachments {
		issue.Attachments = append(issue.Attachments, model.Attachment{
			Name:     a.Filename,
			Attacher: addUser(a.Author),
			Created:  normalizeTime(a.Created),
			URI:      a.Content,
		})
	}

	if raw.Changelog != nil {
		for _, h := range raw.Changelog.Histories {
			entry := model.HistoryEntry{Author: addUser(h.Author), Created: normalizeTime(h.Created)}
			for _, it := range h.Items {
				entry.Items = append(entry.Items, model.HistoryItem{
					FieldType:  it.FieldType,
					Field:      it.Field,
					From:       it.From,
					FromString: deref(it.FromString),
					To:         it.To,
					ToString:   deref(it.ToString),
				})
			}
			issue.History = append(issue.History, entry)
		}
	}

	externalID := ""
	ids := make([]string, 0, len(raw.Fields))
	for id := range raw.Fields {
		if strings.HasPrefix(id, "customfield_") {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		var v any
		if !r.decode(id, &v) {
			continue
		}
		name := raw.Names[id]
		if name == "" {
			name = id
		}
		if c.isExternalID(id, name) {
			externalID = scalar(v)
			continue
		}
		issue.CustomFieldValues = append(issue.CustomFieldValues, model.CustomFieldValue{
			FieldName: name,
			FieldType: raw.Schema[id].Custom,
			Value:     v,
		})
	}
	issue.ExternalID = externalID

	doc, err := model.ToDocument(issue)
	if err != nil {
		return tracker.Issue{}, fmt.Errorf("convert issue %s: %w", raw.Key, err)
	}
	if updated := r.str("updated"); updated != "" {
		t, err := model.ParseTime(updated)
		if err != nil {
			return tracker.Issue{}, fmt.Errorf("issue %s: %w", raw.Key, err)
		}
		doc["updated"] = t.UnixMilli()
	}
	// An issue without comments or history still carries both fields, so
	// they are merged rather than left out of an update.
	if hasComments && !doc.Has("comments") {
		doc["comments"] = []any{}
	}
	if raw.Changelog != nil && !doc.Has("history") {
		doc["history"] = []any{}
	}

	out := tracker.Issue{Key: raw.Key, Fields: doc}
	for _, name := range sortedUserNames(users) {
		out.Users = append(out.Users, users[name])
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// scalar returns the text of a custom field value. Option fields carry it
// under "value".
func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%v", t)
	case map[string]any:
		if s, ok := t["value"].(string); ok {
			return s
		}
	}
	return ""
}

func sortedUserNames(users map[string]model.User) []string {
	names := make([]string, 0, len(users))
	for n := range users {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
