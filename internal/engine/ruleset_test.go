package engine

import (
	"strings"
	"testing"
)

func mustParse(t *testing.T, doc string) *RuleSet {
	t.Helper()
	rs, err := ParseRuleSet([]byte(doc))
	if err != nil {
		t.Fatalf("parse ruleset: %v", err)
	}
	return rs
}

func TestParseValidRuleSet(t *testing.T) {
	rs := mustParse(t, `
ruleSetVersion: v3
executionOrder: [net_cost, transport]
rules:
  - id: net_cost
    type: net_cost
    title: Net cost
  - id: transport
    type: transport
    params:
      eur_per_km: 1.5
`)
	if rs.Version != "v3" {
		t.Fatalf("version: %q", rs.Version)
	}
	if len(rs.ExecutionOrder) != 2 {
		t.Fatalf("order: %v", rs.ExecutionOrder)
	}
	// Title defaults to the id.
	if rs.spec("transport").Title != "transport" {
		t.Fatalf("title default: %q", rs.spec("transport").Title)
	}
	if rs.rule("net_cost") == nil || rs.rule("transport") == nil {
		t.Fatalf("rules not constructed")
	}
}

func TestDuplicateRuleIDs(t *testing.T) {
	_, err := ParseRuleSet([]byte(`
executionOrder: [a]
rules:
  - {id: a, type: net_cost}
  - {id: a, type: transport}
`))
	if err == nil || !strings.Contains(err.Error(), "duplicate rule ids") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestOrderReferencesUnknownID(t *testing.T) {
	_, err := ParseRuleSet([]byte(`
executionOrder: [a, ghost]
rules:
  - {id: a, type: net_cost}
`))
	if err == nil || !strings.Contains(err.Error(), "unknown rule ids") {
		t.Fatalf("expected unknown id error, got %v", err)
	}
}

func TestRuleNotListedInOrder(t *testing.T) {
	_, err := ParseRuleSet([]byte(`
executionOrder: [a]
rules:
  - {id: a, type: net_cost}
  - {id: b, type: transport}
`))
	if err == nil || !strings.Contains(err.Error(), "not listed in executionOrder") {
		t.Fatalf("expected unlisted rule error, got %v", err)
	}
}

func TestEmptyOrderRejected(t *testing.T) {
	_, err := ParseRuleSet([]byte(`
executionOrder: []
rules: []
`))
	if err == nil || !strings.Contains(err.Error(), "at least one rule") {
		t.Fatalf("expected empty order error, got %v", err)
	}
}

func TestParamsValidatedAtConstruction(t *testing.T) {
	_, err := ParseRuleSet([]byte(`
executionOrder: [t]
rules:
  - id: t
    type: transport
    params:
      eur_per_km: not-a-number
`))
	if err == nil || !strings.Contains(err.Error(), "eur_per_km") {
		t.Fatalf("expected param error, got %v", err)
	}

	_, err = ParseRuleSet([]byte(`
executionOrder: [bc]
rules:
  - id: bc
    type: block_country
`))
	if err == nil || !strings.Contains(err.Error(), "countries") {
		t.Fatalf("expected countries param error, got %v", err)
	}
}

func TestUnknownTypeToleratedAtConstruction(t *testing.T) {
	rs := mustParse(t, `
executionOrder: [mystery]
rules:
  - {id: mystery, type: quantum_pricing}
`)
	if rs.rule("mystery") != nil {
		t.Fatalf("unknown type must construct to nil rule")
	}
}

func TestParamsListFromSequence(t *testing.T) {
	rs := mustParse(t, `
executionOrder: [bc]
rules:
  - id: bc
    type: block_country
    params:
      countries: [de, "RU"]
`)
	got := rs.spec("bc").Params.List("countries")
	if len(got) != 2 || got[0] != "DE" || got[1] != "RU" {
		t.Fatalf("list param: %v", got)
	}
}

func TestEnabledDefaultsTrue(t *testing.T) {
	rs := mustParse(t, `
executionOrder: [a, b]
rules:
  - {id: a, type: net_cost}
  - {id: b, type: net_cost, enabled: false}
`)
	if !rs.spec("a").IsEnabled() {
		t.Fatalf("enabled must default to true")
	}
	if rs.spec("b").IsEnabled() {
		t.Fatalf("explicit enabled false ignored")
	}
}
