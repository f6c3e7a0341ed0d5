package engine

import (
	"github.com/quotegate/quotegate/pkg/types"
)

func init() {
	register("block", func(spec RuleSpec) (Rule, error) {
		return &blockRule{
			code:    spec.Params.Str("code", "BLOCKED"),
			message: spec.Params.Str("message", "blocked by rule"),
		}, nil
	})
}

// blockRule blocks unconditionally. Used for kill switches and tests.
type blockRule struct {
	code    string
	message string
}

func (r *blockRule) Apply(ctx *Context, line *LineState) (RuleResult, *types.Block) {
	return RuleResult{}, &types.Block{Code: r.code, Message: r.message}
}
