package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

// Default fixture bundle: valid, single currency, full tier coverage.
var fixtureFiles = map[string]string{
	"articles.csv": "SKU;Omschrijving;Inkoopprijs;Valuta;GewichtKg;Leverancier;Productgroep\n" +
		"SKU-001;Steel bracket;12,50;EUR;0,75;acme;fasteners\n" +
		"SKU-002;Copper pipe;8,00;EUR;1,20;acme;piping\n",
	"tiers.csv": "Van;Tot;KortingPct\n" +
		"1;9;0\n" +
		"10;24;2,5\n" +
		"25;;5\n",
	"supplier_factors.csv": "Leverancier;Factor;ValutaOpslagPct\n" +
		"acme;1,10;0\n",
	"transport.csv": "Postcode;Zone;EurPerKg\n" +
		"10;NL1;0,25\n" +
		"20;NL2;0,40\n",
	"customers.csv": "KlantID;Kortingsprofiel;MaxExtraKortingPct\n" +
		"C-100;GOLD;5\n" +
		"C-200;STANDARD;0\n",
}

// writeFixtureBundle writes the default bundle into dir, replacing any files
// named in overrides first.
func writeFixtureBundle(t *testing.T, dir string, overrides map[string]string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir fixture dir: %v", err)
	}
	for name, content := range fixtureFiles {
		if o, ok := overrides[name]; ok {
			content = o
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write fixture %s: %v", name, err)
		}
	}
}

func hasIssue(issues []Issue, dataset, code string) bool {
	for _, i := range issues {
		if i.Dataset == dataset && i.Code == code {
			return true
		}
	}
	return false
}

func issueRows(issues []Issue, dataset, code string) []int {
	rows := []int{}
	for _, i := range issues {
		if i.Dataset == dataset && i.Code == code && i.Row != nil {
			rows = append(rows, *i.Row)
		}
	}
	return rows
}
