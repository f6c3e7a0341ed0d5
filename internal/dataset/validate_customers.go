package dataset

import (
	"fmt"
	"strings"
)

// ValidateCustomers checks customer ids are unique, the discount profile is a
// configured one, and the extra-discount ceiling stays within 0-10.
func ValidateCustomers(path string) (Result, error) {
	rows, err := parseCSV(path)
	if err != nil {
		return Result{}, err
	}
	if len(rows) == 0 {
		return Result{Errors: []Issue{fileIssue(TypeCustomers, "EMPTY_FILE", "file contains no data rows")}}, nil
	}
	if err := requireHeaders(rows[0], requiredCustomerHeaders, path); err != nil {
		return Result{}, err
	}

	res := Result{OK: true}
	seen := map[string]struct{}{}

	for i, r := range rows {
		rownum := i + 2

		id := cell(r, headerCustomerID...)
		if id == "" {
			res.Errors = append(res.Errors, issueErr(TypeCustomers, rownum, "KlantID", "REQUIRED", "customer id is required"))
		} else {
			key := strings.ToLower(id)
			if _, dup := seen[key]; dup {
				res.Errors = append(res.Errors, issueErr(TypeCustomers, rownum, "KlantID", "DUPLICATE", fmt.Sprintf("customer %q occurs more than once", id)))
			}
			seen[key] = struct{}{}
		}

		profile := strings.ToUpper(cell(r, headerProfile...))
		if profile == "" {
			res.Errors = append(res.Errors, issueErr(TypeCustomers, rownum, "Kortingsprofiel", "REQUIRED", "discount profile is required"))
		} else if _, ok := AllowedProfiles[profile]; !ok {
			res.Errors = append(res.Errors, issueErr(TypeCustomers, rownum, "Kortingsprofiel", "UNKNOWN_PROFILE",
				fmt.Sprintf("discount profile %q does not exist in the profile configuration", profile)))
		}

		maxExtra, err := parseDecimalCell(cell(r, headerMaxExtraDiscount...))
		if err != nil {
			res.Errors = append(res.Errors, issueErr(TypeCustomers, rownum, "MaxExtraKortingPct", "INVALID_NUMBER", "max extra discount must be a number"))
		} else if maxExtra.IsNegative() || maxExtra.GreaterThan(MaxExtraDiscountCeiling) {
			res.Errors = append(res.Errors, issueErr(TypeCustomers, rownum, "MaxExtraKortingPct", "OUT_OF_RANGE", "max extra discount must be between 0 and 10"))
		}
	}

	res.OK = len(res.Errors) == 0
	return res, nil
}
