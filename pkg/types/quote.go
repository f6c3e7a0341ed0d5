package types

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Quote contract version emitted by the engine.
const ContractVersion = "v1"

// Quote statuses.
const (
	StatusOK      = "OK"
	StatusBlocked = "BLOCKED"
)

// Breakdown line decisions.
const (
	DecisionApplied = "APPLIED"
	DecisionSkipped = "SKIPPED"
	DecisionBlocked = "BLOCKED"
)

// Approval statuses.
const (
	ApprovalPending  = "PENDING_APPROVAL"
	ApprovalApproved = "APPROVED"
	ApprovalRejected = "REJECTED"
)

// Money is an amount quantized to cents in a single currency.
type Money struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

// NewMoney quantizes amount to two decimal places, rounding half up.
func NewMoney(currency string, amount decimal.Decimal) Money {
	return Money{Currency: currency, Amount: amount.Round(2)}
}

type moneyJSON struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

// MarshalJSON keeps the cent scale on the wire. decimal's default String
// trims trailing zeros, which would turn 2015.00 into "2015".
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Currency: m.Currency, Amount: m.Amount.StringFixed(2)})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	amount, err := decimal.NewFromString(raw.Amount)
	if err != nil {
		return err
	}
	m.Currency = raw.Currency
	m.Amount = amount
	return nil
}

type QuoteLineInput struct {
	LineID string            `json:"line_id"`
	SKU    string            `json:"sku"`
	Qty    decimal.Decimal   `json:"qty"`
	Meta   map[string]string `json:"meta,omitempty"`
}

// QuoteInput is the caller-supplied request. Lines are optional; when empty
// the engine prices a single synthetic line from the simple cost fields.
type QuoteInput struct {
	Currency   string          `json:"currency"`
	BaseAmount decimal.Decimal `json:"base_amount"`

	MaterialCost decimal.Decimal `json:"material_cost"`
	LaborCost    decimal.Decimal `json:"labor_cost"`
	TransportKm  decimal.Decimal `json:"transport_km"`

	CustomerID      string           `json:"customer_id,omitempty"`
	CustomerSegment string           `json:"customer_segment,omitempty"`
	DiscountPercent *decimal.Decimal `json:"discount_percent,omitempty"`

	ShipToPostcode string `json:"ship_to_postcode,omitempty"`
	Country        string `json:"country,omitempty"`

	Lines []QuoteLineInput  `json:"lines,omitempty"`
	Meta  map[string]string `json:"meta,omitempty"`
}

// PriceBreakdownLine records one executed rule: the quote-level audit trail.
type PriceBreakdownLine struct {
	Seq           int               `json:"seq"`
	RuleID        string            `json:"rule_id"`
	RuleType      string            `json:"rule_type"`
	Title         string            `json:"title"`
	Decision      string            `json:"decision"`
	Delta         Money             `json:"delta"`
	SubtotalAfter Money             `json:"subtotal_after"`
	Meta          map[string]string `json:"meta,omitempty"`
}

// Block is a deterministic business-rule stop.
type Block struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// Warning is a non-fatal signal. Warnings and blocks are disjoint lists.
type Warning struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Meta    map[string]string `json:"meta,omitempty"`
}

type QuoteLineOutput struct {
	LineID  string            `json:"line_id"`
	SKU     string            `json:"sku"`
	Qty     decimal.Decimal   `json:"qty"`
	NetSell Money             `json:"net_sell"`
	Steps   []string          `json:"steps"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// QuoteOutput is the full result of one quote computation. Callers may
// serialize it but must not reinterpret it.
type QuoteOutput struct {
	Version          string               `json:"version"`
	QuoteID          string               `json:"quote_id"`
	DatasetVersion   string               `json:"dataset_version"`
	Currency         string               `json:"currency"`
	Status           string               `json:"status"`
	Total            Money                `json:"total"`
	ApprovalRequired bool                 `json:"approval_required"`
	ApprovalStatus   string               `json:"approval_status,omitempty"`
	PriceBreakdown   []PriceBreakdownLine `json:"price_breakdown"`
	Lines            []QuoteLineOutput    `json:"lines"`
	Blocks           []Block              `json:"blocks"`
	Warnings         []Warning            `json:"warnings"`
}
