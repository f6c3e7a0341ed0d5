package engine

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Params is the per-rule configuration map. Every YAML scalar is kept as its
// literal text; sequences are flattened to comma-separated lists. Typed
// access happens through the accessors so a malformed value surfaces at
// RuleSet construction, not during a quote.
type Params map[string]string

func (p *Params) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return errors.Errorf("params must be a mapping, got %s", value.Tag)
	}
	out := make(Params, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i].Value
		val := value.Content[i+1]
		switch val.Kind {
		case yaml.ScalarNode:
			out[key] = val.Value
		case yaml.SequenceNode:
			parts := make([]string, 0, len(val.Content))
			for _, c := range val.Content {
				if c.Kind != yaml.ScalarNode {
					return errors.Errorf("param %q: nested collections are not supported", key)
				}
				parts = append(parts, c.Value)
			}
			out[key] = strings.Join(parts, ",")
		default:
			return errors.Errorf("param %q: unsupported value kind", key)
		}
	}
	*p = out
	return nil
}

func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

func (p Params) Str(key, fallback string) string {
	if v, ok := p[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func (p Params) Dec(key string) (decimal.Decimal, error) {
	v, ok := p[key]
	if !ok {
		return decimal.Zero, errors.Errorf("param %q missing", key)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero, errors.Errorf("param %q is not a number: %q", key, v)
	}
	return d, nil
}

// List splits a comma-separated param into trimmed, uppercased entries.
func (p Params) List(key string) []string {
	out := []string{}
	for _, part := range strings.Split(p[key], ",") {
		if s := strings.ToUpper(strings.TrimSpace(part)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// RuleSpec is the declarative shape of one rule. It does not execute itself.
type RuleSpec struct {
	ID      string `yaml:"id"`
	Type    string `yaml:"type"`
	Title   string `yaml:"title"`
	Enabled *bool  `yaml:"enabled"`
	Params  Params `yaml:"params"`
}

func (s RuleSpec) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// RuleSet holds the validated specs plus the constructed rules. Unknown rule
// types survive construction (the runner blocks on them at execution time)
// but known types have their params validated here.
type RuleSet struct {
	Version        string
	ExecutionOrder []string
	Specs          []RuleSpec

	specByID map[string]RuleSpec
	ruleByID map[string]Rule
}

type rulesetDoc struct {
	RuleSetVersion string     `yaml:"ruleSetVersion"`
	Version        string     `yaml:"version"`
	ExecutionOrder []string   `yaml:"executionOrder"`
	Rules          []RuleSpec `yaml:"rules"`
}

// ParseRuleSet parses and fully validates a YAML ruleset document.
func ParseRuleSet(data []byte) (*RuleSet, error) {
	var doc rulesetDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse ruleset yaml")
	}
	version := doc.RuleSetVersion
	if version == "" {
		version = doc.Version
	}
	if version == "" {
		version = "v1"
	}
	return NewRuleSet(version, doc.ExecutionOrder, doc.Rules)
}

// NewRuleSet cross-validates the execution order against the rule ids:
// no duplicates, nothing missing, nothing unlisted, order non-empty.
// Violations fail construction, never at run time.
func NewRuleSet(version string, order []string, specs []RuleSpec) (*RuleSet, error) {
	if dups := duplicates(specIDs(specs)); len(dups) > 0 {
		return nil, errors.Errorf("duplicate rule ids in ruleset: %v", dups)
	}
	if dups := duplicates(order); len(dups) > 0 {
		return nil, errors.Errorf("duplicate rule ids in executionOrder: %v", dups)
	}

	byID := make(map[string]RuleSpec, len(specs))
	for i, s := range specs {
		if strings.TrimSpace(s.ID) == "" {
			return nil, errors.Errorf("rule at index %d has no id", i)
		}
		if s.Title == "" {
			s.Title = s.ID
		}
		byID[s.ID] = s
	}

	missing := []string{}
	for _, id := range order {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, errors.Errorf("executionOrder references unknown rule ids: %v", missing)
	}

	listed := map[string]struct{}{}
	for _, id := range order {
		listed[id] = struct{}{}
	}
	unlisted := []string{}
	for id := range byID {
		if _, ok := listed[id]; !ok {
			unlisted = append(unlisted, id)
		}
	}
	if len(unlisted) > 0 {
		sort.Strings(unlisted)
		return nil, errors.Errorf("rules not listed in executionOrder: %v", unlisted)
	}

	if len(order) == 0 {
		return nil, errors.New("executionOrder must contain at least one rule id")
	}

	rules := make(map[string]Rule, len(byID))
	for id, s := range byID {
		if !knownType(s.Type) {
			// Tolerated here; the runner blocks with UNKNOWN_RULE_TYPE.
			rules[id] = nil
			continue
		}
		r, err := registry[s.Type](s)
		if err != nil {
			return nil, errors.Wrapf(err, "rule %q (%s)", id, s.Type)
		}
		rules[id] = r
	}

	return &RuleSet{
		Version:        version,
		ExecutionOrder: append([]string(nil), order...),
		Specs:          specs,
		specByID:       byID,
		ruleByID:       rules,
	}, nil
}

func (rs *RuleSet) spec(id string) RuleSpec {
	return rs.specByID[id]
}

func (rs *RuleSet) rule(id string) Rule {
	return rs.ruleByID[id]
}

func specIDs(specs []RuleSpec) []string {
	out := make([]string, 0, len(specs))
	for _, s := range specs {
		out = append(out, s.ID)
	}
	return out
}

func duplicates(ids []string) []string {
	seen := map[string]struct{}{}
	dups := []string{}
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			dups = append(dups, id)
			continue
		}
		seen[id] = struct{}{}
	}
	return dups
}
