package dataset

import (
	"fmt"
	"strings"
)

// ValidateTransport checks postcode prefixes are unique, zones are named, and
// rates are non-negative numbers.
func ValidateTransport(path string) (Result, error) {
	rows, err := parseCSV(path)
	if err != nil {
		return Result{}, err
	}
	if len(rows) == 0 {
		return Result{Errors: []Issue{fileIssue(TypeTransport, "EMPTY_FILE", "file contains no data rows")}}, nil
	}
	if err := requireHeaders(rows[0], requiredTransportHeaders, path); err != nil {
		return Result{}, err
	}

	res := Result{OK: true}
	seen := map[string]struct{}{}

	for i, r := range rows {
		rownum := i + 2

		pc := strings.ToUpper(strings.ReplaceAll(cell(r, headerPostcode...), " ", ""))
		if pc == "" {
			res.Errors = append(res.Errors, issueErr(TypeTransport, rownum, "Postcode", "REQUIRED", "postcode prefix is required"))
		} else {
			if len(pc) < 2 || len(pc) > 4 {
				res.Errors = append(res.Errors, issueErr(TypeTransport, rownum, "Postcode", "OUT_OF_RANGE", "postcode prefix must be 2-4 characters"))
			}
			if _, dup := seen[pc]; dup {
				res.Errors = append(res.Errors, issueErr(TypeTransport, rownum, "Postcode", "DUPLICATE", fmt.Sprintf("postcode prefix %q occurs more than once", pc)))
			}
			seen[pc] = struct{}{}
		}

		if cell(r, headerZone...) == "" {
			res.Errors = append(res.Errors, issueErr(TypeTransport, rownum, "Zone", "REQUIRED", "zone is required"))
		}

		rate, err := parseDecimalCell(cell(r, headerEurPerKg...))
		if err != nil {
			res.Errors = append(res.Errors, issueErr(TypeTransport, rownum, "EurPerKg", "INVALID_NUMBER", "rate must be a number"))
		} else if rate.IsNegative() {
			res.Errors = append(res.Errors, issueErr(TypeTransport, rownum, "EurPerKg", "OUT_OF_RANGE", "rate must be >= 0"))
		}
	}

	res.OK = len(res.Errors) == 0
	return res, nil
}
