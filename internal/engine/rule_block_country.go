package engine

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/quotegate/quotegate/pkg/types"
)

func init() {
	register("block_country", func(spec RuleSpec) (Rule, error) {
		countries := spec.Params.List("countries")
		if len(countries) == 0 {
			return nil, errors.New(`param "countries" must list at least one country code`)
		}
		set := make(map[string]struct{}, len(countries))
		for _, c := range countries {
			set[c] = struct{}{}
		}
		return &blockCountryRule{blocked: set}, nil
	})
}

// blockCountryRule blocks quotes shipping to embargoed countries.
type blockCountryRule struct {
	blocked map[string]struct{}
}

func (r *blockCountryRule) Apply(ctx *Context, line *LineState) (RuleResult, *types.Block) {
	country := strings.ToUpper(strings.TrimSpace(ctx.Input.Country))
	if country == "" {
		return Skipped(map[string]string{"reason": "no_country"}), nil
	}
	if _, hit := r.blocked[country]; hit {
		return RuleResult{}, &types.Block{
			Code:    "COUNTRY_BLOCK",
			Message: "country is blocked for selling",
			Meta:    map[string]string{"country": country},
		}
	}
	return Skipped(map[string]string{"country": country}), nil
}
