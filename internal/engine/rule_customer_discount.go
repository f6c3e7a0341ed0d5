package engine

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quotegate/quotegate/internal/dataset"
	"github.com/quotegate/quotegate/pkg/types"
)

func init() {
	register("customer_discount", func(spec RuleSpec) (Rule, error) {
		return &customerDiscountRule{spec: spec}, nil
	})
}

// customerDiscountRule applies the segment discount plus any requested extra
// discount, capped by the customer's (or segment's) extra-discount ceiling.
type customerDiscountRule struct {
	spec RuleSpec
}

func (r *customerDiscountRule) Apply(ctx *Context, line *LineState) (RuleResult, *types.Block) {
	segment := strings.ToUpper(strings.TrimSpace(ctx.Input.CustomerSegment))
	if segment == "" {
		segment = "A"
	}

	pct := dataset.SegmentDiscountPct(segment)
	maxExtra := dataset.SegmentMaxExtraPct(segment)
	if c, ok := ctx.Data.CustomerByID(ctx.Input.CustomerID); ok {
		maxExtra = c.MaxExtraDiscountPct
	}

	extra := decimal.Zero
	if ctx.Input.DiscountPercent != nil {
		extra = *ctx.Input.DiscountPercent
	}
	if extra.GreaterThan(maxExtra) {
		extra = maxExtra
		if ctx.Once("warn:discount_capped") {
			ctx.Warn("DISCOUNT_CAPPED", "requested discount capped by profile max",
				map[string]string{"segment": segment, "capped_to": maxExtra.String()})
		}
	}

	totalPct := pct.Add(extra).Round(2)
	line.CustomerDiscountPct = totalPct

	if !totalPct.IsPositive() {
		return Skipped(map[string]string{"segment": segment, "pct": "0"}), nil
	}

	before := line.NetSell
	hundred := decimal.NewFromInt(100)
	after := before.Mul(decimal.NewFromInt(1).Sub(totalPct.Div(hundred))).Round(2)
	line.NetSell = after

	_ = line.Explain.AddStep("CUSTOMER_DISCOUNT",
		fmt.Sprintf("Customer discount (%s): -%s%% (%s to %s)",
			segment, totalPct, before.StringFixed(2), after.StringFixed(2)))

	return Applied(after.Sub(before), map[string]string{
		"segment": segment,
		"pct":     totalPct.String(),
		"before":  before.StringFixed(2),
		"after":   after.StringFixed(2),
	}), nil
}
