package model

import (
	"fmt"
	"strings"
)

// IssueType is the Jira issue type an exported issue is created as.
type IssueType string

const (
	IssueTypeBug     IssueType = "Bug"
	IssueTypeSubTask IssueType = "Sub-task"
	IssueTypeStory   IssueType = "Story"
)

var validIssueTypes = []IssueType{
	IssueTypeBug,
	IssueTypeSubTask,
	IssueTypeStory,
}

// ValidateIssueType returns an error if t is not a recognized issue type.
func ValidateIssueType(t IssueType) error {
	for _, v := range validIssueTypes {
		if t == v {
			return nil
		}
	}
	return fmt.Errorf("invalid issue type %q: must be one of %v", t, validIssueTypes)
}

// Issue is the importer's representation of a single issue.
type Issue struct {
	ExternalID        string             `json:"externalId"`
	Status            string             `json:"status"`
	Reporter          string             `json:"reporter"`
	Summary           string             `json:"summary"`
	Description       string             `json:"description"`
	Priority          string             `json:"priority"`
	IssueType         IssueType          `json:"issueType"`
	Created           string             `json:"created"`
	Assignee          string             `json:"assignee,omitempty"`
	Labels            []string           `json:"labels"`
	Updated           string             `json:"updated,omitempty"`
	Comments          []Comment          `json:"comments,omitempty"`
	History           []HistoryEntry     `json:"history,omitempty"`
	AffectedVersions  []string           `json:"affectedVersions"`
	FixedVersions     []string           `json:"fixedVersions,omitempty"`
	Attachments       []Attachment       `json:"attachments,omitempty"`
	CustomFieldValues []CustomFieldValue `json:"customFieldValues,omitempty"`
}

// Comment is a comment on an exported issue.
type Comment struct {
	Body    string `json:"body"`
	Created string `json:"created"`
	Author  string `json:"author"`
}

// HistoryEntry groups the field changes one person made at one time.
type HistoryEntry struct {
	Author  string        `json:"author"`
	Created string        `json:"created"`
	Items   []HistoryItem `json:"items"`
}

// HistoryItem is a single field change inside a HistoryEntry.
type HistoryItem struct {
	FieldType  string  `json:"fieldType"`
	Field      string  `json:"field"`
	From       *string `json:"from"`
	FromString string  `json:"fromString"`
	To         *string `json:"to"`
	ToString   string  `json:"toString"`
}

// FieldTypeJira marks history items that change built-in Jira fields.
const FieldTypeJira = "jira"

// NewHistoryItem returns a change record for a built-in field.
func NewHistoryItem(field, from, to string) HistoryItem {
	return HistoryItem{
		FieldType:  FieldTypeJira,
		Field:      field,
		FromString: from,
		ToString:   to,
	}
}

// Attachment describes a file already uploaded to the attachment host.
type Attachment struct {
	Name     string `json:"name"`
	Attacher string `json:"attacher"`
	Created  string `json:"created"`
	URI      string `json:"uri"`
}

// CustomFieldValue is one value of a schema-declared custom field.
type CustomFieldValue struct {
	FieldName string `json:"fieldName"`
	FieldType string `json:"fieldType"`
	Value     any    `json:"value"`
}

// SubTaskSeries returns the series part of a sub-task id of the form
// "<bug-id>/<series>", or the id itself when it has no slash.
func SubTaskSeries(externalID string) string {
	if i := strings.Index(externalID, "/"); i >= 0 {
		return externalID[i+1:]
	}
	return externalID
}
