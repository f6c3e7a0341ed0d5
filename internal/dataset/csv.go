package dataset

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Canonical file contract: ';' as field delimiter, ',' as decimal separator.
const (
	csvDelimiter     = ';'
	decimalSeparator = ","
)

// ErrParse marks a file that cannot be parsed deterministically under the
// strict contract. Parse errors are file-level: no row-by-row recovery.
var ErrParse = errors.New("parse error")

func parseErrorf(format string, args ...any) error {
	return errors.Wrapf(ErrParse, format, args...)
}

// parseCSV reads a canonical CSV file into header-keyed rows.
// Headers and cells are trimmed, empty lines skipped, the first non-empty row
// is the header and every data row must match its width.
func parseCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path) // #nosec G304 -- path is under the operator-configured data root.
	if err != nil {
		return nil, parseErrorf("csv not found: %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = csvDelimiter
	r.FieldsPerRecord = -1

	raw, err := r.ReadAll()
	if err != nil {
		return nil, parseErrorf("csv unreadable: %s: %v", path, err)
	}

	var headers []string
	rows := []map[string]string{}
	for _, rec := range raw {
		if isEmptyRow(rec) {
			continue
		}
		if headers == nil {
			headers = make([]string, len(rec))
			for i, h := range rec {
				headers[i] = strings.TrimSpace(stripBOM(h))
				if headers[i] == "" {
					return nil, parseErrorf("csv has empty header names: %s", path)
				}
			}
			continue
		}
		if len(rec) != len(headers) {
			return nil, parseErrorf("csv row has %d cols but header has %d cols: %s", len(rec), len(headers), path)
		}
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			row[h] = strings.TrimSpace(rec[i])
		}
		rows = append(rows, row)
	}

	if headers == nil {
		return nil, parseErrorf("csv empty/no header: %s", path)
	}
	return rows, nil
}

func stripBOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
}

func isEmptyRow(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(stripBOM(c)) != "" {
			return false
		}
	}
	return true
}

// requireHeaders fails fast when required headers are missing. Comparison is
// case-insensitive and trims whitespace.
func requireHeaders(row map[string]string, required []string, source string) error {
	normalized := map[string]struct{}{}
	for h := range row {
		normalized[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}
	missing := []string{}
	for _, h := range required {
		if _, ok := normalized[strings.ToLower(strings.TrimSpace(h))]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return parseErrorf("%s: missing required headers: %v", source, missing)
	}
	return nil
}

// cell looks up a value by any of the header aliases, case-insensitive.
func cell(row map[string]string, aliases ...string) string {
	for _, alias := range aliases {
		for k, v := range row {
			if strings.EqualFold(strings.TrimSpace(k), alias) {
				return v
			}
		}
	}
	return ""
}

// parseDecimalCell parses a number written with ',' as the decimal separator.
// '.' is rejected outright so thousands separators can never be misread.
func parseDecimalCell(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, parseErrorf("empty number")
	}
	if strings.Contains(s, ".") {
		return decimal.Zero, parseErrorf("'.' not allowed as decimal separator (use ',')")
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, decimalSeparator, "."))
	if err != nil {
		return decimal.Zero, parseErrorf("invalid decimal: %q", s)
	}
	return d, nil
}

func parseIntCell(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
