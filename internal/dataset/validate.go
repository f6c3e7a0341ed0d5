package dataset

import (
	"path/filepath"

	"github.com/pkg/errors"
)

// Issue is one structured validation finding: dataset, row (nil for
// file-level), field (empty for row/file-level) and a machine-readable code.
// Validators never collapse findings into a single opaque failure string.
type Issue struct {
	Dataset string `json:"dataset"`
	Row     *int   `json:"row"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Result struct {
	OK       bool    `json:"ok"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

func (r *Result) merge(other Result) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.OK = len(r.Errors) == 0
}

func issueErr(dataset string, row int, field, code, message string) Issue {
	var rp *int
	if row > 0 {
		rp = &row
	}
	return Issue{Dataset: dataset, Row: rp, Field: field, Code: code, Message: message}
}

// fileIssue reports a file-level finding (no row, no field).
func fileIssue(dataset, code, message string) Issue {
	return Issue{Dataset: dataset, Code: code, Message: message}
}

// ValidateDir runs every per-file schema check over a bundle directory.
// A parse failure in one file is reported as a PARSE_ERROR issue for that
// file; the remaining files are still validated.
func ValidateDir(dir string) Result {
	res := Result{OK: true}

	run := func(dataset string, fn func(string) (Result, error), filename string) {
		fileRes, err := fn(filepath.Join(dir, filename))
		if err != nil {
			if errors.Is(err, ErrParse) {
				res.merge(Result{Errors: []Issue{fileIssue(dataset, "PARSE_ERROR", err.Error())}})
				return
			}
			res.merge(Result{Errors: []Issue{fileIssue(dataset, "IO_ERROR", err.Error())}})
			return
		}
		res.merge(fileRes)
	}

	run(TypeArticles, ValidateArticles, "articles.csv")
	run(TypeTiers, ValidateTiers, "tiers.csv")
	run(TypeSupplierFactors, ValidateSupplierFactors, "supplier_factors.csv")
	run(TypeTransport, ValidateTransport, "transport.csv")
	run(TypeCustomers, ValidateCustomers, "customers.csv")

	res.OK = len(res.Errors) == 0
	return res
}
