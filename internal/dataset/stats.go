package dataset

import (
	"github.com/sells-group/mspdash/internal/model"
)

// Bounds computes per-column inclusive min/max over the non-null values of a
// record set. Columns with no values yield a nil/nil range; an empty input
// yields all-nil bounds.
func Bounds(records []model.CompanyRecord) model.DatasetBounds {
	return model.DatasetBounds{
		Revenue:  fieldRange(records, func(r *model.CompanyRecord) *int64 { return r.Revenue }),
		Expenses: fieldRange(records, func(r *model.CompanyRecord) *int64 { return r.Expenses }),
		Taxes:    fieldRange(records, func(r *model.CompanyRecord) *int64 { return r.Taxes }),
		Staff:    fieldRange(records, func(r *model.CompanyRecord) *int64 { return r.Staff }),
	}
}

func fieldRange(records []model.CompanyRecord, get func(*model.CompanyRecord) *int64) model.Range {
	var bounds model.Range
	for i := range records {
		v := get(&records[i])
		if v == nil {
			continue
		}
		if bounds.Min == nil || *v < *bounds.Min {
			value := *v
			bounds.Min = &value
		}
		if bounds.Max == nil || *v > *bounds.Max {
			value := *v
			bounds.Max = &value
		}
	}
	return bounds
}

// Stats aggregates a record set: count, column totals, average staff, USN
// adoption share, the top company by revenue (first occurrence wins ties),
// and the number of records with a live accreditation.
func Stats(records []model.CompanyRecord) model.DatasetStats {
	stats := model.DatasetStats{
		Count:         len(records),
		TotalRevenue:  fieldTotal(records, func(r *model.CompanyRecord) *int64 { return r.Revenue }),
		TotalExpenses: fieldTotal(records, func(r *model.CompanyRecord) *int64 { return r.Expenses }),
		TotalTaxes:    fieldTotal(records, func(r *model.CompanyRecord) *int64 { return r.Taxes }),
	}

	var staffSum, staffCount int64
	var usnCount int
	topIdx := -1
	for i := range records {
		r := &records[i]
		if r.Staff != nil {
			staffSum += *r.Staff
			staffCount++
		}
		if r.UsesUSN == model.TriTrue {
			usnCount++
		}
		if r.Accredited() {
			stats.Accredited++
		}
		if r.Revenue != nil && (topIdx < 0 || *r.Revenue > *records[topIdx].Revenue) {
			topIdx = i
		}
	}

	if staffCount > 0 {
		avg := float64(staffSum) / float64(staffCount)
		stats.AvgStaff = &avg
	}
	if len(records) > 0 {
		share := float64(usnCount) * 100 / float64(len(records))
		stats.USNShare = &share
	}
	if topIdx >= 0 {
		top := records[topIdx]
		stats.TopCompany = &top
	}
	return stats
}

func fieldTotal(records []model.CompanyRecord, get func(*model.CompanyRecord) *int64) *int64 {
	var sum int64
	seen := false
	for i := range records {
		if v := get(&records[i]); v != nil {
			sum += *v
			seen = true
		}
	}
	if !seen {
		return nil
	}
	return &sum
}
