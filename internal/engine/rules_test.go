package engine

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/quotegate/quotegate/pkg/types"
)

func articleLine(t *testing.T, ctx *Context, sku string, qty string) *LineState {
	t.Helper()
	ls := newLineState("l1", sku, dec(qty))
	article, ok := ctx.Data.Article(sku)
	if !ok {
		t.Fatalf("fixture article %s missing", sku)
	}
	ls.Article = &article
	return ls
}

func TestNetCostFactorAndMarkup(t *testing.T) {
	ctx := NewContext(types.QuoteInput{Currency: "EUR"}, testBundle(t), "q", testNow)
	line := articleLine(t, ctx, "SKU-001", "2")

	rule := &netCostRule{spec: RuleSpec{ID: "net_cost", Type: "net_cost"}}
	res, blk := rule.Apply(ctx, line)
	if blk != nil {
		t.Fatalf("unexpected block: %+v", blk)
	}
	if res.Decision != types.DecisionApplied {
		t.Fatalf("decision %s", res.Decision)
	}
	// 100.00 * 2 * factor 1.10, zero currency markup.
	if !line.NetCost.Equal(dec("220.00")) {
		t.Fatalf("net cost %s", line.NetCost)
	}
	if !line.NetSell.Equal(dec("220.00")) {
		t.Fatalf("net sell %s", line.NetSell)
	}
}

func TestNetCostSyntheticUsesCostInputs(t *testing.T) {
	input := types.QuoteInput{Currency: "EUR", MaterialCost: dec("700.00"), LaborCost: dec("500.00")}
	ctx := NewContext(input, testBundle(t), "q", testNow)
	line := newLineState("line_1", "", decimal.NewFromInt(1))
	line.Synthetic = true

	rule := &netCostRule{spec: RuleSpec{ID: "net_cost", Type: "net_cost"}}
	if _, blk := rule.Apply(ctx, line); blk != nil {
		t.Fatalf("unexpected block: %+v", blk)
	}
	if !line.NetCost.Equal(dec("1200.00")) {
		t.Fatalf("net cost %s", line.NetCost)
	}
}

func TestTransportZonePath(t *testing.T) {
	input := types.QuoteInput{Currency: "EUR", ShipToPostcode: "1012AB"}
	ctx := NewContext(input, testBundle(t), "q", testNow)
	line := articleLine(t, ctx, "SKU-001", "1")
	line.NetSell = dec("110.00")

	rule := &transportRule{spec: RuleSpec{ID: "transport", Type: "transport"}}
	res, blk := rule.Apply(ctx, line)
	if blk != nil {
		t.Fatalf("unexpected block: %+v", blk)
	}
	// Zone NL1 via prefix 10: 2.0 kg * 0.25 EUR/kg = 0.50.
	if !res.Delta.Equal(dec("0.50")) {
		t.Fatalf("delta %s, meta %+v", res.Delta, res.Meta)
	}
	if !line.TransportCost.Equal(dec("0.50")) {
		t.Fatalf("transport cost %s", line.TransportCost)
	}
	if !line.NetSell.Equal(dec("110.50")) {
		t.Fatalf("net sell %s", line.NetSell)
	}
}

func TestTransportUnknownPostcodeWarnsOnce(t *testing.T) {
	input := types.QuoteInput{Currency: "EUR", ShipToPostcode: "9999ZZ"}
	ctx := NewContext(input, testBundle(t), "q", testNow)
	rule := &transportRule{spec: RuleSpec{ID: "transport", Type: "transport"}}

	for i := 0; i < 3; i++ {
		line := articleLine(t, ctx, "SKU-001", "1")
		res, blk := rule.Apply(ctx, line)
		if blk != nil {
			t.Fatalf("unexpected block: %+v", blk)
		}
		if res.Decision != types.DecisionSkipped {
			t.Fatalf("decision %s", res.Decision)
		}
		if !line.TransportCost.IsZero() {
			t.Fatalf("transport cost %s", line.TransportCost)
		}
	}
	if len(ctx.Warnings) != 1 || ctx.Warnings[0].Code != "POSTCODE_UNKNOWN" {
		t.Fatalf("warnings: %+v", ctx.Warnings)
	}
}

func TestTransportKmFallback(t *testing.T) {
	input := types.QuoteInput{Currency: "EUR", TransportKm: dec("10")}
	ctx := NewContext(input, testBundle(t), "q", testNow)
	line := newLineState("line_1", "", decimal.NewFromInt(1))
	line.Synthetic = true
	line.NetSell = dec("2000.00")

	rule := &transportRule{spec: RuleSpec{ID: "transport", Type: "transport"}, eurPerKm: dec("1.5"), hasKmRate: true}
	res, blk := rule.Apply(ctx, line)
	if blk != nil {
		t.Fatalf("unexpected block: %+v", blk)
	}
	if !res.Delta.Equal(dec("15.00")) {
		t.Fatalf("delta %s", res.Delta)
	}
	if !line.NetSell.Equal(dec("2015.00")) {
		t.Fatalf("net sell %s", line.NetSell)
	}
}

func TestTierDiscountHighestMatchWins(t *testing.T) {
	cases := []struct {
		qty string
		pct string
	}{
		{"1", "0"},
		{"9", "0"},
		{"10", "2.5"},
		{"24", "2.5"},
		{"25", "5"},
		{"1000", "5"},
	}
	ctx := NewContext(types.QuoteInput{Currency: "EUR"}, testBundle(t), "q", testNow)
	rule := &tierDiscountRule{spec: RuleSpec{ID: "tier_discount", Type: "tier_discount", Title: "Tier discount"}}

	for _, tc := range cases {
		line := articleLine(t, ctx, "SKU-001", tc.qty)
		if _, blk := rule.Apply(ctx, line); blk != nil {
			t.Fatalf("qty %s: unexpected block: %+v", tc.qty, blk)
		}
		if !line.TierDiscountPct.Equal(dec(tc.pct)) {
			t.Fatalf("qty %s: pct %s, expected %s", tc.qty, line.TierDiscountPct, tc.pct)
		}
	}
}

func TestCustomerDiscountCapped(t *testing.T) {
	input := types.QuoteInput{Currency: "EUR", CustomerSegment: "B", DiscountPercent: decPtr("5")}
	ctx := NewContext(input, testBundle(t), "q", testNow)
	line := newLineState("line_1", "", decimal.NewFromInt(1))
	line.Synthetic = true
	line.NetSell = dec("100.00")

	rule := &customerDiscountRule{spec: RuleSpec{ID: "customer_discount", Type: "customer_discount"}}
	res, blk := rule.Apply(ctx, line)
	if blk != nil {
		t.Fatalf("unexpected block: %+v", blk)
	}
	// Segment B: 2% profile discount, extra capped from 5% to 2%.
	if !line.NetSell.Equal(dec("96.00")) {
		t.Fatalf("net sell %s", line.NetSell)
	}
	if !res.Delta.Equal(dec("-4.00")) {
		t.Fatalf("delta %s", res.Delta)
	}
	if len(ctx.Warnings) != 1 || ctx.Warnings[0].Code != "DISCOUNT_CAPPED" {
		t.Fatalf("warnings: %+v", ctx.Warnings)
	}
}

func TestCustomerDiscountDatasetCeilingOverridesSegment(t *testing.T) {
	// C-100 allows 5% extra even though segment A allows none.
	input := types.QuoteInput{Currency: "EUR", CustomerID: "C-100", DiscountPercent: decPtr("5")}
	ctx := NewContext(input, testBundle(t), "q", testNow)
	line := newLineState("line_1", "", decimal.NewFromInt(1))
	line.Synthetic = true
	line.NetSell = dec("100.00")

	rule := &customerDiscountRule{spec: RuleSpec{ID: "customer_discount", Type: "customer_discount"}}
	if _, blk := rule.Apply(ctx, line); blk != nil {
		t.Fatalf("unexpected block: %+v", blk)
	}
	if !line.NetSell.Equal(dec("95.00")) {
		t.Fatalf("net sell %s", line.NetSell)
	}
	if len(ctx.Warnings) != 0 {
		t.Fatalf("no warning expected: %+v", ctx.Warnings)
	}
}

func TestMinMarginBlocksBelowFloor(t *testing.T) {
	ctx := NewContext(types.QuoteInput{Currency: "EUR"}, testBundle(t), "q", testNow)
	line := articleLine(t, ctx, "SKU-001", "1")
	line.NetCost = dec("110.00")
	line.NetSell = dec("120.00")

	rule := &minMarginRule{spec: RuleSpec{ID: "min_margin", Type: "min_margin"}, minPct: decimal.NewFromInt(20)}
	_, blk := rule.Apply(ctx, line)
	if blk == nil {
		t.Fatal("expected margin block")
	}
	if blk.Code != "MARGIN_BLOCK" {
		t.Fatalf("code %s", blk.Code)
	}
	if blk.Meta["margin_pct"] != "8.33" {
		t.Fatalf("meta: %+v", blk.Meta)
	}
}

func TestMinMarginZeroFloorPasses(t *testing.T) {
	rs := mustParse(t, `
executionOrder: [min_margin]
rules:
  - id: min_margin
    type: min_margin
    params:
      min_margin_pct: 0
`)
	input := types.QuoteInput{Currency: "EUR", BaseAmount: dec("10.00")}
	out := NewRunner(rs).Run(input, testBundle(t), "q", testNow)
	if out.Status != types.StatusOK {
		t.Fatalf("status %s, blocks %+v", out.Status, out.Blocks)
	}
}

func TestMinMarginCountsTransportAsCost(t *testing.T) {
	ctx := NewContext(types.QuoteInput{Currency: "EUR"}, testBundle(t), "q", testNow)
	line := articleLine(t, ctx, "SKU-001", "1")
	line.NetCost = dec("70.00")
	line.TransportCost = dec("15.00")
	line.NetSell = dec("100.00")

	rule := &minMarginRule{spec: RuleSpec{ID: "min_margin", Type: "min_margin"}, minPct: decimal.NewFromInt(20)}
	_, blk := rule.Apply(ctx, line)
	// (100 - 85) / 100 = 15%: transport pushes the margin under the floor.
	if blk == nil {
		t.Fatalf("expected margin block, margin %s", line.MarginPct)
	}
	if blk.Meta["cost"] != "85.00" {
		t.Fatalf("meta: %+v", blk.Meta)
	}

	// Without transport the same line clears the floor at 30%.
	line.TransportCost = decimal.Zero
	if _, blk = rule.Apply(ctx, line); blk != nil {
		t.Fatalf("unexpected block: %+v", blk)
	}
	if !line.MarginPct.Equal(dec("30.00")) {
		t.Fatalf("margin %s", line.MarginPct)
	}
}

func TestBlockCountry(t *testing.T) {
	rs := mustParse(t, `
executionOrder: [embargo]
rules:
  - id: embargo
    type: block_country
    params:
      countries: [RU, KP]
`)
	input := types.QuoteInput{Currency: "EUR", BaseAmount: dec("100.00"), Country: "ru"}
	out := NewRunner(rs).Run(input, testBundle(t), "q", testNow)

	if out.Status != types.StatusBlocked {
		t.Fatalf("status %s", out.Status)
	}
	if len(out.Blocks) != 1 || out.Blocks[0].Code != "COUNTRY_BLOCK" {
		t.Fatalf("blocks: %+v", out.Blocks)
	}

	input.Country = "NL"
	out = NewRunner(rs).Run(input, testBundle(t), "q", testNow)
	if out.Status != types.StatusOK {
		t.Fatalf("status %s, blocks %+v", out.Status, out.Blocks)
	}
}

func TestApprovalDiscountFlagsOverride(t *testing.T) {
	input := types.QuoteInput{Currency: "EUR", CustomerSegment: "A", DiscountPercent: decPtr("5")}
	ctx := NewContext(input, testBundle(t), "q", testNow)
	line := newLineState("line_1", "", decimal.NewFromInt(1))
	line.Synthetic = true

	rule := &approvalDiscountRule{spec: RuleSpec{ID: "approval_discount", Type: "approval_discount"}}
	res, blk := rule.Apply(ctx, line)
	if blk != nil {
		t.Fatalf("unexpected block: %+v", blk)
	}
	if !res.ApprovalRequired {
		t.Fatal("approval not required")
	}
	if len(ctx.Warnings) != 1 || ctx.Warnings[0].Code != "APPROVAL_REQUIRED" {
		t.Fatalf("warnings: %+v", ctx.Warnings)
	}

	// Second line in the same quote: evaluated once, then skipped.
	res, blk = rule.Apply(ctx, line)
	if blk != nil {
		t.Fatalf("unexpected block: %+v", blk)
	}
	if res.Decision != types.DecisionSkipped || res.ApprovalRequired {
		t.Fatalf("second apply: %+v", res)
	}
}

func TestApprovalDiscountWithinProfile(t *testing.T) {
	input := types.QuoteInput{Currency: "EUR", CustomerSegment: "B", DiscountPercent: decPtr("2")}
	ctx := NewContext(input, testBundle(t), "q", testNow)
	line := newLineState("line_1", "", decimal.NewFromInt(1))
	line.Synthetic = true

	rule := &approvalDiscountRule{spec: RuleSpec{ID: "approval_discount", Type: "approval_discount"}}
	res, blk := rule.Apply(ctx, line)
	if blk != nil {
		t.Fatalf("unexpected block: %+v", blk)
	}
	if res.ApprovalRequired {
		t.Fatal("approval must not be required within profile")
	}
	if len(ctx.Warnings) != 0 {
		t.Fatalf("warnings: %+v", ctx.Warnings)
	}
}

func TestApprovalRequiredSurfacesInOutput(t *testing.T) {
	rs := mustParse(t, `
executionOrder: [approval_discount]
rules:
  - {id: approval_discount, type: approval_discount}
`)
	input := types.QuoteInput{Currency: "EUR", BaseAmount: dec("100.00"), DiscountPercent: decPtr("9")}
	out := NewRunner(rs).Run(input, testBundle(t), "q", testNow)

	if out.Status != types.StatusOK {
		t.Fatalf("status %s, blocks %+v", out.Status, out.Blocks)
	}
	if !out.ApprovalRequired {
		t.Fatal("approval_required not set on output")
	}
	if out.ApprovalStatus != types.ApprovalPending {
		t.Fatalf("approval status %s", out.ApprovalStatus)
	}
}
