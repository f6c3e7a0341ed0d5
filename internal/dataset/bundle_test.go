package dataset

import (
	"testing"

	"github.com/shopspring/decimal"
)

func loadFixtureBundle(t *testing.T) *Bundle {
	t.Helper()
	dir := t.TempDir()
	writeFixtureBundle(t, dir, nil)
	b, err := LoadBundle(dir, "v-test")
	if err != nil {
		t.Fatalf("load bundle: %v", err)
	}
	return b
}

func TestArticleLookupCaseInsensitive(t *testing.T) {
	b := loadFixtureBundle(t)

	a, ok := b.Article("sku-001")
	if !ok {
		t.Fatalf("lookup by lowercase sku failed")
	}
	if a.Description != "Steel bracket" {
		t.Fatalf("wrong article: %+v", a)
	}
	if !a.Cost.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("comma decimal not parsed: %s", a.Cost)
	}
	if _, ok := b.Article("SKU-404"); ok {
		t.Fatalf("unknown sku must not resolve")
	}
}

func TestArticleCSVWithByteOrderMark(t *testing.T) {
	dir := t.TempDir()
	writeFixtureBundle(t, dir, map[string]string{
		"articles.csv": "\uFEFF" + fixtureFiles["articles.csv"],
	})
	b, err := LoadBundle(dir, "v-test")
	if err != nil {
		t.Fatalf("load bundle with BOM-prefixed export: %v", err)
	}
	a, ok := b.Article("SKU-001")
	if !ok {
		t.Fatalf("first column not recognized when header carries a BOM")
	}
	if a.Description != "Steel bracket" {
		t.Fatalf("wrong article: %+v", a)
	}
}

func TestTiersSortedWithOpenEndLast(t *testing.T) {
	b := loadFixtureBundle(t)

	if len(b.Tiers) != 3 {
		t.Fatalf("expected 3 tiers, got %d", len(b.Tiers))
	}
	if b.Tiers[0].FromQty != 1 || b.Tiers[1].FromQty != 10 || b.Tiers[2].FromQty != 25 {
		t.Fatalf("tiers not sorted by FromQty: %+v", b.Tiers)
	}
	if b.Tiers[2].ToQty != nil {
		t.Fatalf("last tier must be open-ended")
	}
}

func TestZoneForPostcodePrefixes(t *testing.T) {
	dir := t.TempDir()
	writeFixtureBundle(t, dir, map[string]string{
		"transport.csv": "Postcode;Zone;EurPerKg\n" +
			"10;NL1;0,25\n" +
			"101;NL1B;0,30\n" +
			"1012;NL1C;0,35\n",
	})
	b, err := LoadBundle(dir, "v-test")
	if err != nil {
		t.Fatalf("load bundle: %v", err)
	}

	cases := []struct {
		postcode string
		zone     string
	}{
		{"1012AB", "NL1C"}, // 4-char prefix wins
		{"1013AB", "NL1B"}, // falls back to 3-char
		{"1099ZZ", "NL1"},  // falls back to 2-char
		{"10 12 ab", "NL1C"},
	}
	for _, c := range cases {
		zone, ok := b.ZoneForPostcode(c.postcode)
		if !ok || zone != c.zone {
			t.Fatalf("postcode %q: got zone %q ok=%v, want %q", c.postcode, zone, ok, c.zone)
		}
	}
	if _, ok := b.ZoneForPostcode("9999XX"); ok {
		t.Fatalf("unmatched postcode must not resolve")
	}
}

func TestZoneRate(t *testing.T) {
	b := loadFixtureBundle(t)

	if rate := b.ZoneRate("NL2"); !rate.Equal(decimal.RequireFromString("0.4")) {
		t.Fatalf("wrong rate for NL2: %s", rate)
	}
	if rate := b.ZoneRate("XX"); !rate.IsZero() {
		t.Fatalf("unknown zone must rate to zero, got %s", rate)
	}
}

func TestCustomerAndSupplierLookups(t *testing.T) {
	b := loadFixtureBundle(t)

	c, ok := b.CustomerByID("c-100")
	if !ok || c.DiscountProfile != "GOLD" {
		t.Fatalf("customer lookup: %+v ok=%v", c, ok)
	}
	sf, ok := b.SupplierFactorFor("ACME")
	if !ok || !sf.Factor.Equal(decimal.RequireFromString("1.1")) {
		t.Fatalf("supplier factor lookup: %+v ok=%v", sf, ok)
	}
}
