package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Document is an issue in its loosely typed wire form. The reconciler works on
// documents so that fields are compared and patched by name.
type Document map[string]any

// String returns the value of key when it is a string.
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// List returns the value of key when it is a list.
func (d Document) List(key string) []any {
	l, _ := d[key].([]any)
	return l
}

// Has reports whether key is present, even with a null value.
func (d Document) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies a decoded JSON value.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = CloneValue(vv)
		}
		return m
	case Document:
		return t.Clone()
	case []any:
		l := make([]any, len(t))
		for i, vv := range t {
			l[i] = CloneValue(vv)
		}
		return l
	default:
		return v
	}
}

// ToDocument converts any JSON-serializable value into a Document.
func ToDocument(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return doc, nil
}

// timeLayouts are the ISO-8601 variants produced by the source API and by
// earlier versions of the exporter.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999-07:00",
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// FormatTime renders t the way every timestamp in a bundle is written.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseTime parses an ISO-8601 timestamp. Values without a zone are UTC.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
