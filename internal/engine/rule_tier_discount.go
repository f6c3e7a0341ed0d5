package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/quotegate/quotegate/pkg/types"
)

func init() {
	register("tier_discount", func(spec RuleSpec) (Rule, error) {
		return &tierDiscountRule{spec: spec}, nil
	})
}

// tierDiscountRule selects the quantity tier for a line. Selector-only: it
// records the percentage on the line state without changing totals; pricing
// rules downstream may consume it.
type tierDiscountRule struct {
	spec RuleSpec
}

func (r *tierDiscountRule) Apply(ctx *Context, line *LineState) (RuleResult, *types.Block) {
	tiers := ctx.Data.Tiers
	if len(tiers) == 0 {
		return Skipped(map[string]string{"reason": "no_tiers_table"}), nil
	}

	qty := line.Qty
	matched := -1
	for i, t := range tiers {
		if qty.LessThan(decimal.NewFromInt(int64(t.FromQty))) {
			continue
		}
		if t.ToQty != nil && qty.GreaterThan(decimal.NewFromInt(int64(*t.ToQty))) {
			continue
		}
		// Highest matching lower bound wins.
		if matched < 0 || t.FromQty > tiers[matched].FromQty {
			matched = i
		}
	}

	if matched < 0 {
		line.TierDiscountPct = decimal.Zero
		return Skipped(map[string]string{"reason": "no_matching_tier", "qty": qty.String()}), nil
	}

	pct := tiers[matched].DiscountPct.Round(2)
	line.TierDiscountPct = pct
	_ = line.Explain.AddMeta("TIER_DISCOUNT", fmt.Sprintf("%s: %s%% (qty=%s)", r.spec.Title, pct, qty))

	return Applied(decimal.Zero, map[string]string{"pct": pct.String(), "qty": qty.String()}), nil
}
