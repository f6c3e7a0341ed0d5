// Package dataset manages versioned pricing reference data: canonical file
// parsing, per-file and cross-dataset validation, and the
// staging -> active -> archive lifecycle with an audited, atomic swap.
package dataset

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Canonical dataset types and their fixed filenames.
const (
	TypeArticles        = "articles"
	TypeTiers           = "tiers"
	TypeSupplierFactors = "supplier_factors"
	TypeTransport       = "transport"
	TypeCustomers       = "customers"
)

// CanonicalFiles lists every file a complete bundle carries, in manifest order.
var CanonicalFiles = []struct {
	Type     string
	Filename string
}{
	{TypeArticles, "articles.csv"},
	{TypeTiers, "tiers.csv"},
	{TypeSupplierFactors, "supplier_factors.csv"},
	{TypeTransport, "transport.csv"},
	{TypeCustomers, "customers.csv"},
}

// FilenameForType returns the canonical filename for a dataset type.
func FilenameForType(datasetType string) (string, bool) {
	for _, cf := range CanonicalFiles {
		if cf.Type == datasetType {
			return cf.Filename, true
		}
	}
	return "", false
}

type Article struct {
	SKU          string
	Description  string
	Cost         decimal.Decimal
	Currency     string
	WeightKg     decimal.Decimal
	Supplier     string
	ProductGroup string
}

// TierRow is one quantity range. ToQty nil means open-ended.
type TierRow struct {
	FromQty     int
	ToQty       *int
	DiscountPct decimal.Decimal
}

type SupplierFactor struct {
	Supplier          string
	Factor            decimal.Decimal
	CurrencyMarkupPct decimal.Decimal
}

type TransportRow struct {
	Postcode string
	Zone     string
	EurPerKg decimal.Decimal
}

type Customer struct {
	CustomerID          string
	DiscountProfile     string
	MaxExtraDiscountPct decimal.Decimal
}

// Bundle is a read-only snapshot of one dataset version. The engine reads it
// once per quote computation and never mutates it.
type Bundle struct {
	VersionID string

	Articles        map[string]Article
	Tiers           []TierRow
	SupplierFactors map[string]SupplierFactor
	Transport       []TransportRow
	Customers       map[string]Customer

	zones     map[string]string
	zoneRates map[string]decimal.Decimal
}

// Article looks up by SKU, case-insensitive.
func (b *Bundle) Article(sku string) (Article, bool) {
	a, ok := b.Articles[strings.ToUpper(strings.TrimSpace(sku))]
	return a, ok
}

// SupplierFactorFor looks up by supplier name, case-insensitive.
func (b *Bundle) SupplierFactorFor(supplier string) (SupplierFactor, bool) {
	sf, ok := b.SupplierFactors[strings.ToLower(strings.TrimSpace(supplier))]
	return sf, ok
}

// CustomerByID looks up by customer id, case-insensitive.
func (b *Bundle) CustomerByID(id string) (Customer, bool) {
	c, ok := b.Customers[strings.ToLower(strings.TrimSpace(id))]
	return c, ok
}

// ZoneForPostcode matches postcode prefixes from most to least specific (4, 3, 2).
func (b *Bundle) ZoneForPostcode(postcode string) (string, bool) {
	pc := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(postcode), " ", ""))
	for _, n := range []int{4, 3, 2} {
		if len(pc) < n {
			continue
		}
		if zone, ok := b.zones[pc[:n]]; ok {
			return zone, true
		}
	}
	return "", false
}

// ZoneRate returns the EUR/kg rate for a zone, zero when unknown.
func (b *Bundle) ZoneRate(zone string) decimal.Decimal {
	return b.zoneRates[zone]
}

func (b *Bundle) indexTransport() {
	b.zones = make(map[string]string, len(b.Transport))
	b.zoneRates = make(map[string]decimal.Decimal)
	for _, row := range b.Transport {
		if row.Postcode != "" {
			b.zones[row.Postcode] = row.Zone
		}
		if row.Zone != "" {
			b.zoneRates[row.Zone] = row.EurPerKg
		}
	}
}

// LoadBundle parses every canonical file in dir into a typed bundle.
// It assumes the directory already passed validation; malformed files still
// fail with a parse error rather than loading partial data.
func LoadBundle(dir string, versionID string) (*Bundle, error) {
	b := &Bundle{
		VersionID:       versionID,
		Articles:        map[string]Article{},
		SupplierFactors: map[string]SupplierFactor{},
		Customers:       map[string]Customer{},
	}

	aRows, err := parseCSV(filepath.Join(dir, "articles.csv"))
	if err != nil {
		return nil, err
	}
	for _, r := range aRows {
		sku := strings.ToUpper(cell(r, headerSKU...))
		if sku == "" {
			continue
		}
		cost, _ := parseDecimalCell(cell(r, headerCost...))
		weight, _ := parseDecimalCell(cell(r, headerWeight...))
		b.Articles[sku] = Article{
			SKU:          sku,
			Description:  cell(r, headerDescription...),
			Cost:         cost,
			Currency:     strings.ToUpper(cell(r, headerCurrency...)),
			WeightKg:     weight,
			Supplier:     cell(r, headerSupplier...),
			ProductGroup: strings.ToUpper(cell(r, headerProductGroup...)),
		}
	}

	tRows, err := parseCSV(filepath.Join(dir, "tiers.csv"))
	if err != nil {
		return nil, err
	}
	for _, r := range tRows {
		from, ok := parseIntCell(cell(r, headerTierFrom...))
		if !ok {
			continue
		}
		var to *int
		if n, ok := parseIntCell(cell(r, headerTierTo...)); ok {
			to = &n
		}
		pct, _ := parseDecimalCell(cell(r, headerTierDiscount...))
		b.Tiers = append(b.Tiers, TierRow{FromQty: from, ToQty: to, DiscountPct: pct})
	}
	sortTiers(b.Tiers)

	sRows, err := parseCSV(filepath.Join(dir, "supplier_factors.csv"))
	if err != nil {
		return nil, err
	}
	for _, r := range sRows {
		name := cell(r, headerSupplierName...)
		if name == "" {
			continue
		}
		factor, err := parseDecimalCell(cell(r, headerFactor...))
		if err != nil {
			factor = decimal.NewFromInt(1)
		}
		markup, _ := parseDecimalCell(cell(r, headerCurrencyMarkup...))
		b.SupplierFactors[strings.ToLower(name)] = SupplierFactor{
			Supplier:          name,
			Factor:            factor,
			CurrencyMarkupPct: markup,
		}
	}

	trRows, err := parseCSV(filepath.Join(dir, "transport.csv"))
	if err != nil {
		return nil, err
	}
	for _, r := range trRows {
		rate, _ := parseDecimalCell(cell(r, headerEurPerKg...))
		b.Transport = append(b.Transport, TransportRow{
			Postcode: strings.ToUpper(strings.ReplaceAll(cell(r, headerPostcode...), " ", "")),
			Zone:     cell(r, headerZone...),
			EurPerKg: rate,
		})
	}
	b.indexTransport()

	cRows, err := parseCSV(filepath.Join(dir, "customers.csv"))
	if err != nil {
		return nil, err
	}
	for _, r := range cRows {
		id := cell(r, headerCustomerID...)
		if id == "" {
			continue
		}
		maxExtra, _ := parseDecimalCell(cell(r, headerMaxExtraDiscount...))
		b.Customers[strings.ToLower(id)] = Customer{
			CustomerID:          id,
			DiscountProfile:     strings.ToUpper(cell(r, headerProfile...)),
			MaxExtraDiscountPct: maxExtra,
		}
	}

	return b, nil
}

func sortTiers(tiers []TierRow) {
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].FromQty < tiers[j].FromQty })
}
