package dataset

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/mspdash/internal/model"
)

// FilterSpec names the optional predicates a caller can apply to a record
// set. Zero values ("" / TriUnknown / nil) mean "no constraint"; set
// predicates combine conjunctively.
type FilterSpec struct {
	Search       string    `json:"search,omitempty"`
	OKVED        string    `json:"okved,omitempty"`
	UsesUSN      model.Tri `json:"uses_usn,omitempty"`
	IsAccredited model.Tri `json:"is_accredited,omitempty"`
	MinRevenue   *int64    `json:"min_revenue,omitempty"`
	MaxRevenue   *int64    `json:"max_revenue,omitempty"`
	MinTaxes     *int64    `json:"min_taxes,omitempty"`
	MinStaff     *int64    `json:"min_staff,omitempty"`
	TaxYear      *int      `json:"tax_year,omitempty"`
	StaffYear    *int      `json:"staff_year,omitempty"`
}

// Options derives the distinct choice lists for the enumerable filter
// controls: OKVED codes ascending, year columns descending.
func Options(records []model.CompanyRecord) model.FilterOptions {
	okvedSet := make(map[string]struct{})
	taxYearSet := make(map[int]struct{})
	staffYearSet := make(map[int]struct{})

	for i := range records {
		r := &records[i]
		if r.OKVED != nil {
			okvedSet[*r.OKVED] = struct{}{}
		}
		if r.TaxYear != nil {
			taxYearSet[*r.TaxYear] = struct{}{}
		}
		if r.StaffYear != nil {
			staffYearSet[*r.StaffYear] = struct{}{}
		}
	}

	opts := model.FilterOptions{
		OKVEDs:     make([]string, 0, len(okvedSet)),
		TaxYears:   make([]int, 0, len(taxYearSet)),
		StaffYears: make([]int, 0, len(staffYearSet)),
	}
	for okved := range okvedSet {
		opts.OKVEDs = append(opts.OKVEDs, okved)
	}
	for year := range taxYearSet {
		opts.TaxYears = append(opts.TaxYears, year)
	}
	for year := range staffYearSet {
		opts.StaffYears = append(opts.StaffYears, year)
	}

	sort.Strings(opts.OKVEDs)
	sort.Sort(sort.Reverse(sort.IntSlice(opts.TaxYears)))
	sort.Sort(sort.Reverse(sort.IntSlice(opts.StaffYears)))
	return opts
}

// Apply returns the subsequence of records satisfying every set predicate,
// input order preserved. The empty spec returns all records.
func Apply(records []model.CompanyRecord, spec FilterSpec) []model.CompanyRecord {
	filtered := make([]model.CompanyRecord, 0, len(records))
	for i := range records {
		if matches(&records[i], spec) {
			filtered = append(filtered, records[i])
		}
	}
	return filtered
}

func matches(r *model.CompanyRecord, spec FilterSpec) bool {
	if spec.Search != "" && !searchMatches(r, spec.Search) {
		return false
	}
	if spec.OKVED != "" && (r.OKVED == nil || *r.OKVED != spec.OKVED) {
		return false
	}
	// Tri-state equality: a record with unknown USN matches neither the
	// true nor the false filter.
	if spec.UsesUSN.Known() && r.UsesUSN != spec.UsesUSN {
		return false
	}
	if spec.IsAccredited.Known() && model.TriOf(r.Accredited()) != spec.IsAccredited {
		return false
	}
	if !boundOK(r.Revenue, spec.MinRevenue, spec.MaxRevenue) {
		return false
	}
	if !boundOK(r.Taxes, spec.MinTaxes, nil) {
		return false
	}
	if !boundOK(r.Staff, spec.MinStaff, nil) {
		return false
	}
	if spec.TaxYear != nil && (r.TaxYear == nil || *r.TaxYear != *spec.TaxYear) {
		return false
	}
	if spec.StaffYear != nil && (r.StaffYear == nil || *r.StaffYear != *spec.StaffYear) {
		return false
	}
	return true
}

// searchMatches does a case-insensitive substring scan over the space-joined
// name/CEO/OKVED text of a record. A record with no text never matches.
func searchMatches(r *model.CompanyRecord, query string) bool {
	parts := make([]string, 0, 4)
	for _, s := range []string{r.FullName, r.ShortName, r.CEO} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if r.OKVED != nil {
		parts = append(parts, *r.OKVED)
	}
	haystack := strings.ToLower(strings.Join(parts, " "))
	return strings.Contains(haystack, strings.ToLower(query))
}

// boundOK checks an inclusive [min, max] constraint. A nil value fails any
// bound that is set.
func boundOK(value, min, max *int64) bool {
	if min != nil && (value == nil || *value < *min) {
		return false
	}
	if max != nil && (value == nil || *value > *max) {
		return false
	}
	return true
}

// ParseFilterValues builds a FilterSpec from request query parameters.
// Parsing is lenient: blank or malformed values leave the predicate unset.
func ParseFilterValues(q url.Values) FilterSpec {
	return FilterSpec{
		Search:       strings.TrimSpace(q.Get("search")),
		OKVED:        q.Get("okved"),
		UsesUSN:      parseTriParam(q.Get("uses_usn")),
		IsAccredited: parseTriParam(q.Get("is_accredited")),
		MinRevenue:   parseIntParam(q.Get("min_revenue")),
		MaxRevenue:   parseIntParam(q.Get("max_revenue")),
		MinTaxes:     parseIntParam(q.Get("min_taxes")),
		MinStaff:     parseIntParam(q.Get("min_staff")),
		TaxYear:      parseYearParam(q.Get("tax_year")),
		StaffYear:    parseYearParam(q.Get("staff_year")),
	}
}

func parseIntParam(s string) *int64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseYearParam(s string) *int {
	v := parseIntParam(s)
	if v == nil {
		return nil
	}
	y := int(*v)
	return &y
}

func parseTriParam(s string) model.Tri {
	switch strings.ToLower(s) {
	case "yes":
		return model.TriTrue
	case "no":
		return model.TriFalse
	default:
		return model.TriUnknown
	}
}
