package dataset

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ValidateBundle runs the per-file schema pass and, when it is clean, the
// cross-dataset coherence pass:
//   - customer discount profiles exist in the profile configuration,
//   - zones referenced by the profile configuration exist in transport.csv,
//   - currency usage stays within the approved whitelist.
//
// Cross checks are skipped while schema errors remain so a broken file does
// not cascade into noise.
func ValidateBundle(dir string) Result {
	res := ValidateDir(dir)
	if !res.OK {
		return res
	}

	customers, err := parseCSV(filepath.Join(dir, "customers.csv"))
	if err != nil {
		res.merge(Result{Errors: []Issue{fileIssue(TypeCustomers, "PARSE_ERROR", err.Error())}})
		return res
	}
	transport, err := parseCSV(filepath.Join(dir, "transport.csv"))
	if err != nil {
		res.merge(Result{Errors: []Issue{fileIssue(TypeTransport, "PARSE_ERROR", err.Error())}})
		return res
	}
	articles, err := parseCSV(filepath.Join(dir, "articles.csv"))
	if err != nil {
		res.merge(Result{Errors: []Issue{fileIssue(TypeArticles, "PARSE_ERROR", err.Error())}})
		return res
	}

	for i, r := range customers {
		rownum := i + 2
		profile := strings.ToUpper(cell(r, headerProfile...))
		if profile == "" {
			continue
		}
		if _, ok := AllowedProfiles[profile]; !ok {
			res.Errors = append(res.Errors, issueErr(TypeCustomers, rownum, "Kortingsprofiel", "UNKNOWN_PROFILE",
				fmt.Sprintf("discount profile %q does not exist in the profile configuration", profile)))
		}
	}

	zones := map[string]struct{}{}
	for _, r := range transport {
		if z := cell(r, headerZone...); z != "" {
			zones[z] = struct{}{}
		}
	}
	for profile, wanted := range ProfileAllowedZones {
		for _, z := range wanted {
			if _, ok := zones[z]; !ok {
				res.Errors = append(res.Errors, Issue{
					Dataset: TypeTransport,
					Field:   "Zone",
					Code:    "UNKNOWN_ZONE",
					Message: fmt.Sprintf("profile configuration references zone %q for profile %q, but transport.csv does not define it", z, profile),
				})
			}
		}
	}

	currencies := map[string]struct{}{}
	for i, r := range articles {
		rownum := i + 2
		cur := strings.ToUpper(cell(r, headerCurrency...))
		if cur == "" {
			continue
		}
		currencies[cur] = struct{}{}
		if _, ok := CurrencyWhitelist[cur]; !ok {
			res.Errors = append(res.Errors, issueErr(TypeArticles, rownum, "Valuta", "NOT_ALLOWED",
				fmt.Sprintf("currency %q is not in the approved whitelist", cur)))
		}
	}
	if len(currencies) > 1 {
		names := make([]string, 0, len(currencies))
		for c := range currencies {
			names = append(names, c)
		}
		sort.Strings(names)
		res.Warnings = append(res.Warnings, Issue{
			Dataset: TypeArticles,
			Field:   "Valuta",
			Code:    "MULTI_CURRENCY",
			Message: fmt.Sprintf("multiple currencies found in articles.csv: %v", names),
		})
	}

	res.OK = len(res.Errors) == 0
	return res
}
