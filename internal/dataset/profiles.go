package dataset

import "github.com/shopspring/decimal"

// Profile configuration is the single source of truth for customer discount
// profiles. Customer rows referencing a profile outside this set fail the
// cross-dataset validation pass.
var AllowedProfiles = map[string]struct{}{
	"STANDARD": {},
	"SILVER":   {},
	"GOLD":     {},
	"PLATINUM": {},
}

// ProfileAllowedZones restricts profiles to transport zones. Zones named here
// must exist in transport.csv; the bundle validator enforces that.
var ProfileAllowedZones = map[string][]string{}

// CurrencyWhitelist is the approved currency set across all files.
var CurrencyWhitelist = map[string]struct{}{
	"EUR": {},
	"USD": {},
	"GBP": {},
}

// Extra (override) discount above profile is capped hard at 10 percent.
var MaxExtraDiscountCeiling = decimal.NewFromInt(10)

// Segment fallbacks used by the engine when a customer has no dataset row.
var (
	segmentDiscountPct = map[string]string{"A": "0", "B": "2", "C": "4"}
	segmentMaxExtraPct = map[string]string{"A": "0", "B": "2", "C": "4"}
)

// SegmentDiscountPct returns the default profile discount for a segment.
func SegmentDiscountPct(segment string) decimal.Decimal {
	return segmentPct(segmentDiscountPct, segment)
}

// SegmentMaxExtraPct returns the default override ceiling for a segment.
func SegmentMaxExtraPct(segment string) decimal.Decimal {
	return segmentPct(segmentMaxExtraPct, segment)
}

func segmentPct(m map[string]string, segment string) decimal.Decimal {
	s, ok := m[segment]
	if !ok {
		return decimal.Zero
	}
	d, _ := decimal.NewFromString(s)
	return d
}
