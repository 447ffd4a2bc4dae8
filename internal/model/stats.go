package model

// Range holds inclusive min/max over the non-null values of one numeric
// column. Both ends are nil when the column had no values at all.
type Range struct {
	Min *int64 `json:"min"`
	Max *int64 `json:"max"`
}

// DatasetBounds carries per-column ranges used to pre-fill filter controls.
type DatasetBounds struct {
	Revenue  Range `json:"revenue"`
	Expenses Range `json:"expenses"`
	Taxes    Range `json:"taxes"`
	Staff    Range `json:"staff"`
}

// DatasetStats aggregates a record set. Totals and averages are nil when no
// record contributed a value; percentages are nil on an empty set.
type DatasetStats struct {
	Count         int            `json:"count"`
	TotalRevenue  *int64         `json:"total_revenue"`
	TotalExpenses *int64         `json:"total_expenses"`
	TotalTaxes    *int64         `json:"total_taxes"`
	AvgStaff      *float64       `json:"avg_staff"`
	USNShare      *float64       `json:"usn_share"`
	TopCompany    *CompanyRecord `json:"top_company,omitempty"`
	Accredited    int            `json:"accredited"`
}

// FilterOptions lists the distinct values a dataset offers for the
// enumerable filter controls.
type FilterOptions struct {
	OKVEDs     []string `json:"okveds"`
	TaxYears   []int    `json:"tax_years"`
	StaffYears []int    `json:"staff_years"`
}
