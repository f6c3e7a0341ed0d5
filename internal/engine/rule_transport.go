package engine

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quotegate/quotegate/pkg/types"
)

func init() {
	register("transport", func(spec RuleSpec) (Rule, error) {
		r := &transportRule{spec: spec}
		if spec.Params.Has("eur_per_km") {
			rate, err := spec.Params.Dec("eur_per_km")
			if err != nil {
				return nil, err
			}
			r.eurPerKm = rate
			r.hasKmRate = true
		}
		return r, nil
	})
}

// transportRule adds shipping cost. Article lines price by destination zone
// (weight times the zone's EUR/kg rate); lines without an article fall back
// to distance times the eur_per_km param.
type transportRule struct {
	spec      RuleSpec
	eurPerKm  decimal.Decimal
	hasKmRate bool
}

func (r *transportRule) Apply(ctx *Context, line *LineState) (RuleResult, *types.Block) {
	postcode := strings.ToUpper(strings.TrimSpace(ctx.Input.ShipToPostcode))

	if line.Article == nil {
		km := ctx.Input.TransportKm
		if km.IsPositive() && r.hasKmRate {
			cost := km.Mul(r.eurPerKm).Round(2)
			line.TransportCost = cost
			line.NetSell = line.NetSell.Add(cost).Round(2)
			_ = line.Explain.AddStep("TRANSPORT",
				fmt.Sprintf("Transport: +%s (%s km x %s/km)", cost.StringFixed(2), km, r.eurPerKm))
			return Applied(cost, map[string]string{
				"km":   km.String(),
				"rate": r.eurPerKm.String(),
				"cost": cost.StringFixed(2),
			}), nil
		}
		return Skipped(map[string]string{"reason": "no_transport_inputs"}), nil
	}

	if postcode == "" {
		if ctx.Once("warn:postcode_missing") {
			ctx.Warn("POSTCODE_MISSING", "no ship_to_postcode provided; transport set to 0", nil)
		}
		line.TransportCost = decimal.Zero
		return Skipped(map[string]string{"reason": "postcode_missing"}), nil
	}

	zone, ok := ctx.Data.ZoneForPostcode(postcode)
	if !ok {
		if ctx.Once("warn:postcode_unknown:" + postcode) {
			ctx.Warn("POSTCODE_UNKNOWN", "unknown postcode zone for "+postcode+"; transport set to 0",
				map[string]string{"postcode": postcode})
		}
		line.TransportCost = decimal.Zero
		return Skipped(map[string]string{"reason": "postcode_unknown", "postcode": postcode}), nil
	}

	rate := ctx.Data.ZoneRate(zone)
	kg := line.Article.WeightKg.Mul(line.Qty).Round(3)
	cost := kg.Mul(rate).Round(2)

	line.TransportCost = cost
	line.NetSell = line.NetSell.Add(cost).Round(2)

	if cost.IsPositive() {
		_ = line.Explain.AddStep("TRANSPORT",
			fmt.Sprintf("Transport zone %s: +%s (%s kg x %s/kg)", zone, cost.StringFixed(2), kg, rate))
	}

	return Applied(cost, map[string]string{
		"zone": zone,
		"rate": rate.String(),
		"kg":   kg.String(),
		"cost": cost.StringFixed(2),
	}), nil
}
