package translate

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Attributer exposes named attributes of a source object for rule matching.
type Attributer interface {
	Attr(name string) (any, bool)
}

// Rule yields Status when every condition in When holds.
type Rule struct {
	Status string         `yaml:"status" json:"status"`
	When   map[string]any `yaml:"when" json:"when"`
}

// RuleSet is an ordered list of rules with a fallback status. Statuses are
// source statuses and go through the status table like any other.
type RuleSet struct {
	Default string `yaml:"default" json:"default"`
	Rules   []Rule `yaml:"rules" json:"rules"`
}

// DefaultRules classifies blueprints by their completion flags.
func DefaultRules() RuleSet {
	return RuleSet{
		Default: "New",
		Rules: []Rule{
			{Status: "Fix Released", When: map[string]any{"is_complete": true}},
			{Status: "In Progress", When: map[string]any{"is_started": true}},
		},
	}
}

// LoadRules reads a blueprint rule file.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	for i, r := range rs.Rules {
		if r.Status == "" {
			return nil, fmt.Errorf("rule %d in %s has no status", i, path)
		}
	}
	return &rs, nil
}

// BlueprintStatus returns the translated status of the first rule matching
// obj, or the translated default.
func (t *Translator) BlueprintStatus(obj Attributer) string {
	return t.Status(t.matchRule(obj))
}

// DefaultBlueprintStatus returns the translated fallback status of the rule set.
func (t *Translator) DefaultBlueprintStatus() string {
	return t.Status(t.rules.Default)
}

func (t *Translator) matchRule(obj Attributer) string {
	for i, rule := range t.rules.Rules {
		if t.ruleHolds(i, rule, obj) {
			return rule.Status
		}
	}
	return t.rules.Default
}

func (t *Translator) ruleHolds(index int, rule Rule, obj Attributer) bool {
	for attr, want := range rule.When {
		got, ok := obj.Attr(attr)
		if !ok {
			t.logger.Debug("blueprint rule skipped: attribute missing",
				"rule", index, "attribute", attr)
			return false
		}
		if !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

func valuesEqual(got, want any) bool {
	gs, gIsStr := got.(string)
	ws, wIsStr := want.(string)
	if gIsStr && wIsStr {
		return strings.EqualFold(gs, ws)
	}

	if gb, ok := got.(bool); ok {
		if wb, ok := asBool(want); ok {
			return gb == wb
		}
		return false
	}
	if wb, ok := want.(bool); ok {
		if gb, ok := asBool(got); ok {
			return gb == wb
		}
		return false
	}

	gf, gNum := asNumber(got)
	wf, wNum := asNumber(want)
	if gNum && wNum {
		return gf == wf
	}

	if got == nil || want == nil {
		return got == nil && want == nil
	}
	return strings.EqualFold(fmt.Sprint(got), fmt.Sprint(want))
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(b)
		return parsed, err == nil
	default:
		return false, false
	}
}

func asNumber(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return toNumber(v)
}
