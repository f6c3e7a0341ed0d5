package dataset

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

type parsedTier struct {
	from int
	to   *int
	pct  decimal.Decimal
	row  int
}

// ValidateTiers checks the tier ranges: ints, discount 0-100, and full
// coverage from 1 with no gaps and no overlaps. Coverage is only checked once
// every row parses cleanly; range findings always name the offending row.
func ValidateTiers(path string) (Result, error) {
	rows, err := parseCSV(path)
	if err != nil {
		return Result{}, err
	}
	if len(rows) == 0 {
		return Result{Errors: []Issue{fileIssue(TypeTiers, "EMPTY_FILE", "file contains no data rows")}}, nil
	}
	if err := requireHeaders(rows[0], requiredTierHeaders, path); err != nil {
		return Result{}, err
	}

	res := Result{OK: true}
	parsed := []parsedTier{}

	for i, r := range rows {
		rownum := i + 2

		from, ok := parseIntCell(cell(r, headerTierFrom...))
		if !ok {
			res.Errors = append(res.Errors, issueErr(TypeTiers, rownum, "Van", "INVALID_INT", "Van must be an integer >= 1"))
			continue
		}
		if from < 1 {
			res.Errors = append(res.Errors, issueErr(TypeTiers, rownum, "Van", "OUT_OF_RANGE", "Van must be >= 1"))
		}

		var to *int
		if raw := cell(r, headerTierTo...); raw != "" {
			n, ok := parseIntCell(raw)
			if !ok {
				res.Errors = append(res.Errors, issueErr(TypeTiers, rownum, "Tot", "INVALID_INT", "Tot must be an integer or empty for open-ended"))
			} else {
				to = &n
				if n < 1 {
					res.Errors = append(res.Errors, issueErr(TypeTiers, rownum, "Tot", "OUT_OF_RANGE", "Tot must be >= 1 or empty for open-ended"))
				}
				if from > n {
					res.Errors = append(res.Errors, issueErr(TypeTiers, rownum, "Tot", "INVALID_RANGE", "Van must be <= Tot"))
				}
			}
		}

		pct, err := parseDecimalCell(cell(r, headerTierDiscount...))
		if err != nil {
			res.Errors = append(res.Errors, issueErr(TypeTiers, rownum, "KortingPct", "INVALID_NUMBER", "KortingPct must be a number between 0 and 100"))
		} else if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
			res.Errors = append(res.Errors, issueErr(TypeTiers, rownum, "KortingPct", "OUT_OF_RANGE", "KortingPct must be between 0 and 100"))
		}

		parsed = append(parsed, parsedTier{from: from, to: to, pct: pct, row: rownum})
	}

	if len(res.Errors) > 0 {
		res.OK = false
		return res, nil
	}

	sort.Slice(parsed, func(i, j int) bool { return parsed[i].from < parsed[j].from })

	if len(parsed) > 0 && parsed[0].from != 1 {
		res.Errors = append(res.Errors, issueErr(TypeTiers, parsed[0].row, "Van", "COVERAGE_GAP", "first range must start at Van=1"))
	}

	for i := 0; i < len(parsed)-1; i++ {
		cur, next := parsed[i], parsed[i+1]
		if cur.to == nil {
			res.Errors = append(res.Errors, issueErr(TypeTiers, next.row, "Van", "OVERLAP", "a range follows an open-ended range"))
			break
		}
		switch {
		case next.from <= *cur.to:
			res.Errors = append(res.Errors, issueErr(TypeTiers, next.row, "Van", "OVERLAP",
				fmt.Sprintf("ranges overlap: previous ends at %d, next starts at %d", *cur.to, next.from)))
		case next.from != *cur.to+1:
			res.Errors = append(res.Errors, issueErr(TypeTiers, next.row, "Van", "COVERAGE_GAP",
				fmt.Sprintf("gap found: previous ends at %d, next starts at %d", *cur.to, next.from)))
		}
	}

	res.OK = len(res.Errors) == 0
	return res, nil
}
