package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quotegate/quotegate/internal/breakdown"
	"github.com/quotegate/quotegate/internal/dataset"
	"github.com/quotegate/quotegate/pkg/types"
)

// Runner executes a validated ruleset over a quote input, line by line, in
// declared order. Given the same (RuleSet, QuoteInput, Bundle) and the same
// injected quote id and clock, two runs produce identical output.
type Runner struct {
	ruleset *RuleSet
}

func NewRunner(rs *RuleSet) *Runner {
	return &Runner{ruleset: rs}
}

// Run computes one quote. quoteID and now are injected so callers (and
// tests) control identity and time.
func (r *Runner) Run(input types.QuoteInput, data *dataset.Bundle, quoteID string, now time.Time) types.QuoteOutput {
	ctx := NewContext(input, data, quoteID, now)

	lines := r.buildLines(ctx)
	if len(ctx.Blocking) > 0 {
		finalizeLineSteps(lines)
		ctx.State.Subtotal = recomputeTotal(lines)
		return r.output(ctx, lines, types.StatusBlocked)
	}

	ctx.State.Subtotal = recomputeTotal(lines)

	for _, ruleID := range r.ruleset.ExecutionOrder {
		spec := r.ruleset.spec(ruleID)

		if !spec.IsEnabled() {
			r.appendBreakdown(ctx, spec, types.DecisionSkipped, decimal.Zero,
				map[string]string{"reason": "disabled", "mode": "per_line"})
			continue
		}

		rule := r.ruleset.rule(ruleID)
		if rule == nil {
			// Configuration error, never silently ignored.
			ctx.Block("UNKNOWN_RULE_TYPE", "unknown rule type: "+spec.Type,
				map[string]string{
					"rule_id":     spec.ID,
					"rule_type":   spec.Type,
					"known_types": strings.Join(KnownTypes(), ","),
				})
			r.appendBreakdown(ctx, spec, types.DecisionBlocked, decimal.Zero,
				map[string]string{"error": "unknown_rule_type", "mode": "per_line"})
			finalizeLineSteps(lines)
			return r.output(ctx, lines, types.StatusBlocked)
		}

		beforeTotal := ctx.State.Subtotal
		appliedAny := false

		for _, ls := range lines {
			beforeLine := ls.NetSell

			res, blk := rule.Apply(ctx, ls)
			if blk != nil {
				meta := map[string]string{
					"rule_id":   spec.ID,
					"rule_type": spec.Type,
					"line_id":   ls.LineID,
				}
				if ls.SKU != "" {
					meta["sku"] = ls.SKU
				}
				for k, v := range blk.Meta {
					meta[k] = v
				}
				ctx.Block(blk.Code, blk.Message, meta)
				// Subtotal frozen at its last known value.
				r.appendBreakdown(ctx, spec, types.DecisionBlocked, decimal.Zero, meta)
				_ = ls.Explain.AddCheck(codeFromRuleID(spec.ID), spec.Title+": "+blk.Message, breakdown.CheckBlock)

				finalizeLineSteps(lines)
				ctx.State.Subtotal = recomputeTotal(lines)
				return r.output(ctx, lines, types.StatusBlocked)
			}

			if res.ApprovalRequired {
				ctx.State.ApprovalRequired = true
				if ctx.State.ApprovalStatus == "" {
					ctx.State.ApprovalStatus = types.ApprovalPending
				}
			}
			if res.Decision == types.DecisionApplied {
				appliedAny = true
			}

			deltaLine := ls.NetSell.Sub(beforeLine).Round(2)
			if !deltaLine.IsZero() {
				_ = ls.Explain.AddStep(codeFromRuleID(spec.ID),
					fmt.Sprintf("%s: %s", spec.Title, signedAmount(deltaLine)))
			}
		}

		ctx.State.Subtotal = recomputeTotal(lines)
		deltaTotal := ctx.State.Subtotal.Sub(beforeTotal).Round(2)

		decision := types.DecisionSkipped
		if appliedAny {
			decision = types.DecisionApplied
		}
		r.appendBreakdown(ctx, spec, decision, deltaTotal,
			map[string]string{"mode": "per_line", "lines": fmt.Sprintf("%d", len(lines))})
	}

	finalizeLineSteps(lines)
	return r.output(ctx, lines, types.StatusOK)
}

// buildLines resolves quote lines against the active bundle. A missing SKU
// blocks the quote. An empty line list with cost inputs prices a single
// synthetic line seeded from base_amount.
func (r *Runner) buildLines(ctx *Context) []*LineState {
	qin := ctx.Input

	if len(qin.Lines) == 0 {
		if qin.BaseAmount.IsZero() && qin.MaterialCost.IsZero() && qin.LaborCost.IsZero() {
			ctx.Block("NO_LINES", "no quote lines and no cost inputs provided", nil)
			return nil
		}
		ls := newLineState("line_1", "", decimal.NewFromInt(1))
		ls.Synthetic = true
		ls.NetSell = qin.BaseAmount.Round(2)
		_ = ls.Explain.AddMeta("INIT", fmt.Sprintf("synthetic line, base=%s", qin.BaseAmount.Round(2)))
		return []*LineState{ls}
	}

	lines := make([]*LineState, 0, len(qin.Lines))
	for _, l := range qin.Lines {
		sku := strings.ToUpper(strings.TrimSpace(l.SKU))
		qty := l.Qty
		if qty.IsZero() {
			qty = decimal.NewFromInt(1)
		}
		ls := newLineState(l.LineID, sku, qty)
		for k, v := range l.Meta {
			ls.Meta[k] = v
		}

		article, ok := ctx.Data.Article(sku)
		if !ok {
			ctx.Block("MISSING_SKU", "SKU not found in active dataset: "+sku,
				map[string]string{"sku": sku, "line_id": l.LineID})
			_ = ls.Explain.AddCheck("MISSING_SKU", "SKU not found: "+sku, breakdown.CheckBlock)
			lines = append(lines, ls)
			continue
		}
		ls.Article = &article
		_ = ls.Explain.AddMeta("INIT",
			fmt.Sprintf("sku=%s, qty=%s, buyPrice=%s", sku, qty, article.Cost))
		lines = append(lines, ls)
	}
	return lines
}

func (r *Runner) appendBreakdown(ctx *Context, spec RuleSpec, decision string, delta decimal.Decimal, meta map[string]string) {
	ctx.State.Breakdown = append(ctx.State.Breakdown, types.PriceBreakdownLine{
		Seq:           len(ctx.State.Breakdown) + 1,
		RuleID:        spec.ID,
		RuleType:      spec.Type,
		Title:         spec.Title,
		Decision:      decision,
		Delta:         ctx.State.Money(delta),
		SubtotalAfter: ctx.State.Money(ctx.State.Subtotal),
		Meta:          meta,
	})
}

func (r *Runner) output(ctx *Context, lines []*LineState, status string) types.QuoteOutput {
	outLines := make([]types.QuoteLineOutput, 0, len(lines))
	for _, ls := range lines {
		outLines = append(outLines, types.QuoteLineOutput{
			LineID:  ls.LineID,
			SKU:     ls.SKU,
			Qty:     ls.Qty,
			NetSell: ctx.State.Money(ls.NetSell),
			Steps:   append([]string(nil), ls.steps...),
			Meta:    ls.Meta,
		})
	}
	return types.QuoteOutput{
		Version:          ctx.ContractVersion,
		QuoteID:          ctx.QuoteID,
		DatasetVersion:   ctx.Data.VersionID,
		Currency:         ctx.State.Currency,
		Status:           status,
		Total:            ctx.State.Money(ctx.State.Subtotal),
		ApprovalRequired: ctx.State.ApprovalRequired,
		ApprovalStatus:   ctx.State.ApprovalStatus,
		PriceBreakdown:   ctx.State.Breakdown,
		Lines:            outLines,
		Blocks:           ctx.Blocking,
		Warnings:         ctx.Warnings,
	}
}

func recomputeTotal(lines []*LineState) decimal.Decimal {
	total := decimal.Zero
	for _, ls := range lines {
		total = total.Add(ls.NetSell)
	}
	return total.Round(2)
}

func finalizeLineSteps(lines []*LineState) {
	for _, ls := range lines {
		ls.steps = breakdown.Render(ls.Explain)
	}
}

// codeFromRuleID maps a rule id to a code the breakdown builder accepts.
func codeFromRuleID(ruleID string) string {
	code := strings.ToUpper(strings.TrimSpace(ruleID))
	code = strings.ReplaceAll(code, "-", "_")
	code = strings.ReplaceAll(code, " ", "_")
	return code
}

func signedAmount(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.StringFixed(2)
	}
	return "+" + d.StringFixed(2)
}
