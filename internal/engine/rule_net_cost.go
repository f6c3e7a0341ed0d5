package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/quotegate/quotegate/pkg/types"
)

func init() {
	register("net_cost", func(spec RuleSpec) (Rule, error) {
		return &netCostRule{spec: spec}, nil
	})
}

// netCostRule computes the purchase baseline per line: buy price times
// quantity, adjusted by the supplier factor and its currency markup. The
// result seeds net_sell; later rules adjust from there.
type netCostRule struct {
	spec RuleSpec
}

func (r *netCostRule) Apply(ctx *Context, line *LineState) (RuleResult, *types.Block) {
	if line.Synthetic {
		cost := ctx.Input.MaterialCost.Add(ctx.Input.LaborCost).Round(2)
		line.NetCost = cost
		_ = line.Explain.AddStep("NET_COST",
			fmt.Sprintf("Net cost: %s %s (material + labor)", ctx.Input.Currency, cost.StringFixed(2)))
		return Applied(decimal.Zero, map[string]string{"net_cost": cost.StringFixed(2), "source": "cost_inputs"}), nil
	}
	if line.Article == nil {
		_ = line.Explain.AddMeta("NET_COST", "Net cost: SKIP (no article)")
		return Skipped(map[string]string{"reason": "no_article"}), nil
	}

	factor := decimal.NewFromInt(1)
	markupPct := decimal.Zero
	if sf, ok := ctx.Data.SupplierFactorFor(line.Article.Supplier); ok {
		factor = sf.Factor
		markupPct = sf.CurrencyMarkupPct
	}

	base := line.Article.Cost.Mul(line.Qty)
	withFactor := base.Mul(factor)
	hundred := decimal.NewFromInt(100)
	net := withFactor.Mul(decimal.NewFromInt(1).Add(markupPct.Div(hundred))).Round(2)

	line.NetCost = net
	// Baseline: sell starts at net cost, discounts and transport adjust it.
	line.NetSell = net

	_ = line.Explain.AddStep("NET_COST",
		fmt.Sprintf("Net cost: %s %s (factor=%s, markup=%s%%)",
			ctx.Input.Currency, net.StringFixed(2), factor, markupPct))

	return Applied(decimal.Zero, map[string]string{
		"net_cost":   net.StringFixed(2),
		"factor":     factor.String(),
		"markup_pct": markupPct.String(),
	}), nil
}
