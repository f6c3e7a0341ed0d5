package engine

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/quotegate/quotegate/pkg/types"
)

// Rule is one executable pricing rule. Apply mutates the line state, returns
// a RuleResult, or returns a Block to stop the whole computation. A rule
// never returns both.
type Rule interface {
	Apply(ctx *Context, line *LineState) (RuleResult, *types.Block)
}

// RuleResult reports what a rule did to one line. Delta is the money change
// the rule believes it caused; the runner measures the authoritative delta
// from the line state itself.
type RuleResult struct {
	Decision         string
	Delta            decimal.Decimal
	Meta             map[string]string
	ApprovalRequired bool
}

func Applied(delta decimal.Decimal, meta map[string]string) RuleResult {
	return RuleResult{Decision: types.DecisionApplied, Delta: delta.Round(2), Meta: meta}
}

func Skipped(meta map[string]string) RuleResult {
	return RuleResult{Decision: types.DecisionSkipped, Delta: decimal.Zero, Meta: meta}
}

// factory builds a rule from its spec, validating params up front so a bad
// ruleset fails at construction, never mid-quote.
type factory func(spec RuleSpec) (Rule, error)

var registry = map[string]factory{}

// register wires a rule type into the closed registry. Called from init
// functions only; a duplicate tag is a programming error.
func register(typeName string, f factory) {
	if _, dup := registry[typeName]; dup {
		panic(fmt.Sprintf("engine: duplicate rule type registration: %s", typeName))
	}
	registry[typeName] = f
}

func knownType(typeName string) bool {
	_, ok := registry[typeName]
	return ok
}

// KnownTypes lists the registered rule type tags, sorted.
func KnownTypes() []string {
	out := make([]string, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
