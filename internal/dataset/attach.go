package dataset

import (
	"github.com/sells-group/mspdash/internal/model"
)

// Attach resolves the accreditation reference of each record from a snapshot
// map keyed by INN. Records without a snapshot keep a nil reference. The
// input slice is modified in place and returned for chaining.
func Attach(records []model.CompanyRecord, snapshots map[string]*model.Accreditation) []model.CompanyRecord {
	if len(snapshots) == 0 {
		return records
	}
	for i := range records {
		records[i].Accreditation = snapshots[records[i].INN]
	}
	return records
}

// INNs collects the non-empty identifiers of a record set in input order.
func INNs(records []model.CompanyRecord) []string {
	inns := make([]string, 0, len(records))
	for i := range records {
		if records[i].INN != "" {
			inns = append(inns, records[i].INN)
		}
	}
	return inns
}
