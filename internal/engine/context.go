package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quotegate/quotegate/internal/breakdown"
	"github.com/quotegate/quotegate/internal/dataset"
	"github.com/quotegate/quotegate/pkg/types"
)

// QuoteState is the running output of one computation: subtotal, the ordered
// breakdown trail, and the approval flags hoisted from rule results.
type QuoteState struct {
	Currency         string
	Subtotal         decimal.Decimal
	Breakdown        []types.PriceBreakdownLine
	ApprovalRequired bool
	ApprovalStatus   string
}

func (s *QuoteState) Money(amount decimal.Decimal) types.Money {
	return types.NewMoney(s.Currency, amount)
}

// Context carries everything one quote computation needs: the input, the
// immutable dataset snapshot, injected identity (quote id, clock) and the
// warning/blocking accumulators. Created once per computation, then
// discarded.
type Context struct {
	Input           types.QuoteInput
	Data            *dataset.Bundle
	ContractVersion string
	QuoteID         string
	Now             time.Time

	Warnings []types.Warning
	Blocking []types.Block
	State    *QuoteState

	memo map[string]struct{}
}

func NewContext(input types.QuoteInput, data *dataset.Bundle, quoteID string, now time.Time) *Context {
	if data == nil {
		data = &dataset.Bundle{}
	}
	return &Context{
		Input:           input,
		Data:            data,
		ContractVersion: types.ContractVersion,
		QuoteID:         quoteID,
		Now:             now,
		Warnings:        []types.Warning{},
		Blocking:        []types.Block{},
		State:           &QuoteState{Currency: input.Currency, Subtotal: decimal.Zero},
		memo:            map[string]struct{}{},
	}
}

func (c *Context) Warn(code, message string, meta map[string]string) {
	c.Warnings = append(c.Warnings, types.Warning{Code: code, Message: message, Meta: meta})
}

func (c *Context) Block(code, message string, meta map[string]string) {
	c.Blocking = append(c.Blocking, types.Block{Code: code, Message: message, Meta: meta})
}

// Once returns true the first time it sees key within this computation.
// Rules that must act once per quote while being applied per line latch here.
func (c *Context) Once(key string) bool {
	if _, ok := c.memo[key]; ok {
		return false
	}
	c.memo[key] = struct{}{}
	return true
}

// LineState is the mutable per-line computation state. net_sell is the money
// carrier: the runner measures every rule's effect as the change in NetSell.
type LineState struct {
	LineID    string
	SKU       string
	Qty       decimal.Decimal
	Synthetic bool
	Article   *dataset.Article
	Meta      map[string]string

	Explain *breakdown.Breakdown
	steps   []string

	NetCost             decimal.Decimal
	TierDiscountPct     decimal.Decimal
	CustomerDiscountPct decimal.Decimal
	TransportCost       decimal.Decimal
	NetSell             decimal.Decimal
	MarginPct           decimal.Decimal
}

func newLineState(lineID, sku string, qty decimal.Decimal) *LineState {
	return &LineState{
		LineID:  lineID,
		SKU:     sku,
		Qty:     qty,
		Explain: breakdown.New(),
		Meta:    map[string]string{},
	}
}
