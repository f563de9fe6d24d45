package reconcile

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ALT-F4-LLC/lp2jira/internal/model"
)

// ShouldUpdate reports whether the exported issue is newer than its target
// counterpart. Source "updated" is ISO-8601; target "updated" is epoch
// milliseconds. Both are compared in whole seconds. An exported issue without
// a modification time is never newer.
func ShouldUpdate(source, target model.Document) (bool, error) {
	raw := source.String("updated")
	if raw == "" {
		return false, nil
	}
	src, err := model.ParseTime(raw)
	if err != nil {
		return false, err
	}
	millis, ok := epochMillis(target["updated"])
	if !ok {
		return true, nil
	}
	return src.Unix() > millis/1000, nil
}

func epochMillis(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	}
	return 0, false
}

// Merge patches target with source. Every field present on both sides takes
// the source value, lists included. Comments and history instead become the
// source entries the target does not carry yet.
func Merge(source, target model.Document) model.Document {
	out := target.Clone()
	for field, value := range source {
		if !target.Has(field) {
			continue
		}
		switch field {
		case "comments":
			out[field] = missing(source.List(field), target.List(field), hasComment)
		case "history":
			out[field] = missing(source.List(field), target.List(field), hasHistory)
		default:
			out[field] = model.CloneValue(value)
		}
	}
	return out
}

func missing(source, target []any, present func([]any, map[string]any) bool) []any {
	out := []any{}
	for _, entry := range source {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if !present(target, m) {
			out = append(out, m)
		}
	}
	return out
}

// hasComment reports whether comment is already on the target. A target
// comment without a body counts as a match.
// TODO: confirm with the Jira owners whether bodiless comments should still
// suppress new ones; the behaviour is kept as the old tool had it.
func hasComment(target []any, comment map[string]any) bool {
	body := normalizeText(comment["body"])
	created := normalizeTime(comment["created"])
	for _, entry := range target {
		t, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		tb, ok := t["body"].(string)
		if !ok || tb == "" {
			return true
		}
		if normalizeText(tb) == body && normalizeTime(t["created"]) == created {
			return true
		}
	}
	return false
}

// hasHistory reports whether an entry with the same author, time and field
// changes is already on the target.
func hasHistory(target []any, entry map[string]any) bool {
	author, _ := entry["author"].(string)
	created := normalizeTime(entry["created"])
	items := itemsKey(entry["items"])
	for _, e := range target {
		t, ok := e.(map[string]any)
		if !ok {
			continue
		}
		ta, _ := t["author"].(string)
		if ta == author && normalizeTime(t["created"]) == created && itemsKey(t["items"]) == items {
			return true
		}
	}
	return false
}

func itemsKey(v any) string {
	list, _ := v.([]any)
	parts := make([]string, 0, len(list))
	for _, it := range list {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%v|%v|%v", m["field"], m["fromString"], m["toString"]))
	}
	return strings.Join(parts, ";")
}

func normalizeText(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
}

func normalizeTime(v any) string {
	s, _ := v.(string)
	t, err := model.ParseTime(s)
	if err != nil {
		return s
	}
	return model.FormatTime(t)
}
