package dataset

import (
	"fmt"
	"strings"
)

// ValidateArticles checks the articles file: required fields, unique SKUs,
// approved currency, weight > 0.
func ValidateArticles(path string) (Result, error) {
	rows, err := parseCSV(path)
	if err != nil {
		return Result{}, err
	}
	if len(rows) == 0 {
		return Result{Errors: []Issue{fileIssue(TypeArticles, "EMPTY_FILE", "file contains no data rows")}}, nil
	}
	if err := requireHeaders(rows[0], requiredArticleHeaders, path); err != nil {
		return Result{}, err
	}

	res := Result{OK: true}
	seen := map[string]struct{}{}

	for i, r := range rows {
		rownum := i + 2 // header is row 1

		sku := strings.ToUpper(cell(r, headerSKU...))
		if sku == "" {
			res.Errors = append(res.Errors, issueErr(TypeArticles, rownum, "SKU", "REQUIRED", "SKU is required and may not be empty"))
		} else if _, dup := seen[sku]; dup {
			res.Errors = append(res.Errors, issueErr(TypeArticles, rownum, "SKU", "DUPLICATE", fmt.Sprintf("SKU %q occurs more than once", sku)))
		} else {
			seen[sku] = struct{}{}
		}

		if cell(r, headerDescription...) == "" {
			res.Errors = append(res.Errors, issueErr(TypeArticles, rownum, "Omschrijving", "REQUIRED", "description is required"))
		}

		cur := strings.ToUpper(cell(r, headerCurrency...))
		if cur == "" {
			res.Errors = append(res.Errors, issueErr(TypeArticles, rownum, "Valuta", "REQUIRED", "currency is required"))
		} else if _, ok := CurrencyWhitelist[cur]; !ok {
			res.Errors = append(res.Errors, issueErr(TypeArticles, rownum, "Valuta", "NOT_ALLOWED", fmt.Sprintf("currency %q is not in the approved whitelist", cur)))
		}

		cost, err := parseDecimalCell(cell(r, headerCost...))
		if err != nil {
			res.Errors = append(res.Errors, issueErr(TypeArticles, rownum, "Inkoopprijs", "INVALID_NUMBER", "purchase price must be a number"))
		} else if cost.IsNegative() {
			res.Errors = append(res.Errors, issueErr(TypeArticles, rownum, "Inkoopprijs", "OUT_OF_RANGE", "purchase price must be >= 0"))
		}

		weight, err := parseDecimalCell(cell(r, headerWeight...))
		if err != nil {
			res.Errors = append(res.Errors, issueErr(TypeArticles, rownum, "GewichtKg", "INVALID_NUMBER", "weight must be a number"))
		} else if !weight.IsPositive() {
			res.Errors = append(res.Errors, issueErr(TypeArticles, rownum, "GewichtKg", "OUT_OF_RANGE", "weight must be > 0"))
		}
	}

	res.OK = len(res.Errors) == 0
	return res, nil
}
