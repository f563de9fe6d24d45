package model

import (
	"fmt"
	"strings"
)

// User is a Jira user created by the importer.
type User struct {
	Name     string   `json:"name"`
	FullName string   `json:"fullname"`
	Email    string   `json:"email,omitempty"`
	Groups   []string `json:"groups,omitempty"`
	Active   bool     `json:"active"`
}

// LinkName is the kind of relation between two exported issues.
type LinkName string

const (
	LinkSubTask   LinkName = "sub-task-link"
	LinkDuplicate LinkName = "Duplicate"
	LinkRelated   LinkName = "Related"
)

var validLinkNames = []LinkName{
	LinkSubTask,
	LinkDuplicate,
	LinkRelated,
}

// ValidateLinkName returns an error if n is not a recognized link name.
func ValidateLinkName(n LinkName) error {
	for _, v := range validLinkNames {
		if n == v {
			return nil
		}
	}
	return fmt.Errorf("invalid link name %q: must be one of %v", n, validLinkNames)
}

// Link is a relation between two issues, referenced by external id.
type Link struct {
	Name          LinkName `json:"name"`
	SourceID      string   `json:"sourceId"`
	DestinationID string   `json:"destinationId"`
}

// CleanID turns a person or object link into its bare identity key: the last
// path segment with any leading "~" removed.
func CleanID(link string) string {
	link = strings.TrimRight(link, "/")
	if i := strings.LastIndex(link, "/"); i >= 0 {
		link = link[i+1:]
	}
	return strings.TrimLeft(link, "~")
}
