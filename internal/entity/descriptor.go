package entity

import (
	"strings"
	"unicode"
)

// ParseDescriptor splits a scoped change descriptor such as
// "proj/bionic: assignee" into its target and field. ok is false when s does
// not have exactly that shape.
func ParseDescriptor(s string) (target, field string, ok bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return "", "", false
	}
	target = strings.TrimSpace(parts[0])
	field = strings.TrimSpace(parts[1])
	if target == "" || field == "" {
		return "", "", false
	}
	if strings.IndexFunc(target, unicode.IsSpace) >= 0 {
		return "", "", false
	}
	if strings.HasPrefix(target, "/") || strings.HasSuffix(target, "/") || strings.Contains(target, "//") {
		return "", "", false
	}
	return target, field, true
}

// historyFields maps the descriptor fields that are carried into history onto
// the import field names.
var historyFields = map[string]string{
	"assignee":   "assignee",
	"status":     "status",
	"importance": "priority",
}
