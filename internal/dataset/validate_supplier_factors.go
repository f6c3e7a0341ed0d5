package dataset

import (
	"fmt"
	"strings"
)

// ValidateSupplierFactors checks supplier names are unique and non-empty,
// factors are positive, and currency markup stays within 0-10 percent.
func ValidateSupplierFactors(path string) (Result, error) {
	rows, err := parseCSV(path)
	if err != nil {
		return Result{}, err
	}
	if len(rows) == 0 {
		return Result{Errors: []Issue{fileIssue(TypeSupplierFactors, "EMPTY_FILE", "file contains no data rows")}}, nil
	}
	if err := requireHeaders(rows[0], requiredSupplierFactorHeaders, path); err != nil {
		return Result{}, err
	}

	res := Result{OK: true}
	seen := map[string]struct{}{}

	for i, r := range rows {
		rownum := i + 2

		name := cell(r, headerSupplierName...)
		if name == "" {
			res.Errors = append(res.Errors, issueErr(TypeSupplierFactors, rownum, "Leverancier", "REQUIRED", "supplier name is required"))
		} else {
			key := strings.ToLower(name)
			if _, dup := seen[key]; dup {
				res.Errors = append(res.Errors, issueErr(TypeSupplierFactors, rownum, "Leverancier", "DUPLICATE", fmt.Sprintf("supplier %q occurs more than once", name)))
			}
			seen[key] = struct{}{}
		}

		factor, err := parseDecimalCell(cell(r, headerFactor...))
		if err != nil {
			res.Errors = append(res.Errors, issueErr(TypeSupplierFactors, rownum, "Factor", "INVALID_NUMBER", "factor must be a number"))
		} else if !factor.IsPositive() {
			res.Errors = append(res.Errors, issueErr(TypeSupplierFactors, rownum, "Factor", "OUT_OF_RANGE", "factor must be > 0"))
		}

		if raw := cell(r, headerCurrencyMarkup...); raw != "" {
			markup, err := parseDecimalCell(raw)
			if err != nil {
				res.Errors = append(res.Errors, issueErr(TypeSupplierFactors, rownum, "ValutaOpslagPct", "INVALID_NUMBER", "currency markup must be a number"))
			} else if markup.IsNegative() || markup.GreaterThan(MaxExtraDiscountCeiling) {
				res.Errors = append(res.Errors, issueErr(TypeSupplierFactors, rownum, "ValutaOpslagPct", "OUT_OF_RANGE", "currency markup must be between 0 and 10"))
			}
		}
	}

	res.OK = len(res.Errors) == 0
	return res, nil
}
