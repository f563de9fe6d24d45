// Package tracker defines the view of the target issue tracker used to
// reconcile an export with what was already imported.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ALT-F4-LLC/lp2jira/internal/model"
)

// ErrNotFound is returned when an issue does not exist in the tracker.
var ErrNotFound = errors.New("issue not found")

// Issue is a target issue converted to the import document shape. The
// "updated" field holds epoch milliseconds.
type Issue struct {
	Key    string
	Fields model.Document
	// Users are the people referenced by the issue.
	Users []model.User
}

// ExternalID returns the external id recorded on the issue.
func (i Issue) ExternalID() string {
	return i.Fields.String("externalId")
}

// Tracker searches and fetches target issues.
type Tracker interface {
	// Search runs a JQL query and returns every match, possibly with only a
	// subset of fields populated.
	Search(ctx context.Context, jql string) ([]Issue, error)
	// Issue fetches a complete issue by key.
	Issue(ctx context.Context, key string) (Issue, error)
	// Versions lists the versions of a project.
	Versions(ctx context.Context, projectKey string) ([]model.Version, error)
}

// Quote renders s as a JQL string literal.
func Quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

// Field renders a field name for JQL. Custom field ids are used as they are;
// names are quoted.
func Field(name string) string {
	if strings.HasPrefix(name, "customfield_") || strings.HasPrefix(name, "cf[") {
		return name
	}
	return Quote(name)
}

// And joins clauses into a conjunction.
func And(clauses ...string) string {
	return strings.Join(clauses, " AND ")
}

// Clause builds a single "field op value" clause.
func Clause(field, op, value string) string {
	return fmt.Sprintf("%s %s %s", field, op, Quote(value))
}
