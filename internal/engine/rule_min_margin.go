package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/quotegate/quotegate/internal/breakdown"
	"github.com/quotegate/quotegate/pkg/types"
)

func init() {
	register("min_margin", func(spec RuleSpec) (Rule, error) {
		r := &minMarginRule{spec: spec, minPct: decimal.NewFromInt(20)}
		if spec.Params.Has("min_margin_pct") {
			pct, err := spec.Params.Dec("min_margin_pct")
			if err != nil {
				return nil, err
			}
			r.minPct = pct
		}
		return r, nil
	})
}

// minMarginRule guards the margin floor. The check is always visible in the
// line explain, OK or BLOCK, and a failed check blocks the whole quote.
type minMarginRule struct {
	spec   RuleSpec
	minPct decimal.Decimal
}

func (r *minMarginRule) Apply(ctx *Context, line *LineState) (RuleResult, *types.Block) {
	sell := line.NetSell

	if !sell.IsPositive() {
		_ = line.Explain.AddCheck("MIN_MARGIN_BLOCK", "Minimum margin: BLOCK (sell <= 0)", breakdown.CheckBlock)
		return RuleResult{}, &types.Block{
			Code:    "MARGIN_BLOCK",
			Message: "sell price must be > 0 to evaluate margin",
			Meta:    map[string]string{"sell": sell.StringFixed(2)},
		}
	}

	cost := line.NetCost.Add(line.TransportCost).Round(2)
	hundred := decimal.NewFromInt(100)
	marginPct := sell.Sub(cost).Div(sell).Mul(hundred).Round(2)
	line.MarginPct = marginPct

	if marginPct.LessThan(r.minPct) {
		_ = line.Explain.AddCheck("MIN_MARGIN_BLOCK",
			fmt.Sprintf("Minimum margin: BLOCK (%s%% < %s%%)", marginPct, r.minPct), breakdown.CheckBlock)
		return RuleResult{}, &types.Block{
			Code:    "MARGIN_BLOCK",
			Message: "minimum margin not met",
			Meta: map[string]string{
				"min_margin_pct": r.minPct.String(),
				"margin_pct":     marginPct.String(),
				"cost":           cost.StringFixed(2),
				"sell":           sell.StringFixed(2),
			},
		}
	}

	_ = line.Explain.AddCheck("MIN_MARGIN_OK",
		fmt.Sprintf("Minimum margin: OK (>=%s%%)", r.minPct), breakdown.CheckOK)

	return Applied(decimal.Zero, map[string]string{
		"min_margin_pct": r.minPct.String(),
		"margin_pct":     marginPct.String(),
	}), nil
}
