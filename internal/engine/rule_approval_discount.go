package engine

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quotegate/quotegate/internal/dataset"
	"github.com/quotegate/quotegate/pkg/types"
)

func init() {
	register("approval_discount", func(spec RuleSpec) (Rule, error) {
		return &approvalDiscountRule{spec: spec}, nil
	})
}

// approvalDiscountRule decides whether a requested override discount needs
// manager approval. The engine decides, not the UI. Evaluated once per quote
// even though rules run per line.
type approvalDiscountRule struct {
	spec RuleSpec
}

func (r *approvalDiscountRule) Apply(ctx *Context, line *LineState) (RuleResult, *types.Block) {
	if ctx.Input.DiscountPercent == nil {
		return Skipped(map[string]string{"reason": "no_requested_discount"}), nil
	}
	if !ctx.Once("approval_discount_checked") {
		return Skipped(map[string]string{"reason": "already_checked"}), nil
	}

	segment := strings.ToUpper(strings.TrimSpace(ctx.Input.CustomerSegment))
	if segment == "" {
		segment = "A"
	}
	maxPct := dataset.SegmentMaxExtraPct(segment)
	if c, ok := ctx.Data.CustomerByID(ctx.Input.CustomerID); ok {
		maxPct = c.MaxExtraDiscountPct
	}
	requested := *ctx.Input.DiscountPercent

	// The override request is always visible, also when it fits the profile.
	if requested.GreaterThan(maxPct) {
		_ = line.Explain.AddMeta("OVERRIDE_DISCOUNT",
			fmt.Sprintf("Override discount: -%s%% (profile %s%%), approval required", requested, maxPct))
		ctx.Warn("APPROVAL_REQUIRED",
			fmt.Sprintf("extra discount %s%% > profile %s%%, approval required", requested, maxPct),
			map[string]string{"segment": segment, "requested": requested.String(), "allowed": maxPct.String()})
		res := Applied(decimal.Zero, map[string]string{"requested": requested.String(), "allowed": maxPct.String()})
		res.ApprovalRequired = true
		return res, nil
	}

	_ = line.Explain.AddMeta("OVERRIDE_DISCOUNT",
		fmt.Sprintf("Override discount: -%s%% (profile %s%%), within profile", requested, maxPct))
	return Applied(decimal.Zero, map[string]string{"requested": requested.String(), "allowed": maxPct.String()}), nil
}
