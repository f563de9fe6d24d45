// Package translate maps source field values onto the values the Jira importer
// expects: statuses, priorities, blueprint states and custom-field types.
package translate

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/ALT-F4-LLC/lp2jira/internal/filter"
)

// Paths locates the mapping tables on disk. Every table is YAML; JSON files
// are accepted as well since they parse as YAML.
type Paths struct {
	Status       string
	Priority     string
	CustomFields string
	Blueprint    string
}

// Field is one entry of the custom-field schema.
type Field struct {
	Name string
	Type string
}

// Translator holds the mapping tables loaded for one run.
type Translator struct {
	status       map[string]string
	priority     map[string]string
	customFields map[string]string
	rules        RuleSet
	logger       *slog.Logger
}

// Tables is the in-memory form of the mapping files.
type Tables struct {
	Status       map[string]string
	Priority     map[string]string
	CustomFields map[string]string
	Blueprint    *RuleSet
}

// New returns a translator over already loaded tables. A nil blueprint rule
// set selects DefaultRules.
func New(tables Tables, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	rules := DefaultRules()
	if tables.Blueprint != nil {
		rules = *tables.Blueprint
	}
	return &Translator{
		status:       tables.Status,
		priority:     tables.Priority,
		customFields: tables.CustomFields,
		rules:        rules,
		logger:       logger,
	}
}

// Load reads every configured table once and returns a translator over them.
// An empty path leaves that table empty, which makes lookups pass through.
func Load(paths Paths, logger *slog.Logger) (*Translator, error) {
	var tables Tables
	var err error

	if tables.Status, err = loadTable(paths.Status); err != nil {
		return nil, fmt.Errorf("loading status mapping: %w", err)
	}
	if tables.Priority, err = loadTable(paths.Priority); err != nil {
		return nil, fmt.Errorf("loading priority mapping: %w", err)
	}
	if tables.CustomFields, err = loadTable(paths.CustomFields); err != nil {
		return nil, fmt.Errorf("loading custom field mapping: %w", err)
	}
	if paths.Blueprint != "" {
		rs, err := LoadRules(paths.Blueprint)
		if err != nil {
			return nil, fmt.Errorf("loading blueprint rules: %w", err)
		}
		tables.Blueprint = rs
	}
	return New(tables, logger), nil
}

func loadTable(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	table := map[string]string{}
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return table, nil
}

// Status maps a source status onto the target workflow. Unmapped values pass
// through unchanged.
func (t *Translator) Status(raw string) string {
	return lookup(t.status, raw)
}

// Priority maps a source importance onto a target priority. Unmapped values
// pass through unchanged.
func (t *Translator) Priority(raw string) string {
	return lookup(t.priority, raw)
}

func lookup(table map[string]string, raw string) string {
	if v, ok := table[TitleCase(raw)]; ok {
		return v
	}
	if v, ok := table[raw]; ok {
		return v
	}
	return raw
}

// TitleCase upper-cases the first letter of every run of letters and
// lower-cases the rest, so "won't fix" becomes "Won'T Fix".
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

// CustomFields returns the custom-field schema sorted by field name.
func (t *Translator) CustomFields() []Field {
	fields := make([]Field, 0, len(t.customFields))
	for _, name := range filter.SortedKeys(t.customFields) {
		fields = append(fields, Field{Name: name, Type: t.customFields[name]})
	}
	return fields
}

// ConvertCustomField coerces raw into the Go type matching declaredType. Only
// the last colon-delimited token of the declared type is considered. Types
// that are not recognized return raw unchanged.
func ConvertCustomField(declaredType string, raw any) (any, error) {
	kind := declaredType
	if i := strings.LastIndex(kind, ":"); i >= 0 {
		kind = kind[i+1:]
	}
	kind = strings.ToLower(kind)

	switch {
	case strings.Contains(kind, "string"), strings.Contains(kind, "text"):
		return toString(raw), nil
	case strings.Contains(kind, "bool"):
		return toBool(raw), nil
	case strings.Contains(kind, "float"):
		return toFloat(raw)
	case strings.Contains(kind, "int"):
		return toInt(raw)
	default:
		return raw, nil
	}
}

func toString(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func toBool(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
		return v != ""
	default:
		if f, ok := toNumber(v); ok {
			return f != 0
		}
		return true
	}
}

func toFloat(raw any) (float64, error) {
	if s, ok := raw.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("converting %q to float: %w", s, err)
		}
		return f, nil
	}
	if f, ok := toNumber(raw); ok {
		return f, nil
	}
	return 0, fmt.Errorf("converting %v (%T) to float", raw, raw)
}

func toInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("converting %q to int: %w", v, err)
		}
		return n, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	if f, ok := toNumber(raw); ok {
		return int64(f), nil
	}
	return 0, fmt.Errorf("converting %v (%T) to int", raw, raw)
}

func toNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
