package model

// Tri is a three-valued flag for columns where the source distinguishes an
// explicit "no" from missing data. The zero value is TriUnknown, so a field
// that was never parsed stays unknown rather than collapsing to false.
type Tri int

const (
	TriUnknown Tri = iota
	TriFalse
	TriTrue
)

// TriOf converts a plain bool to its Tri equivalent.
func TriOf(b bool) Tri {
	if b {
		return TriTrue
	}
	return TriFalse
}

// Known reports whether the flag carries an explicit yes/no.
func (t Tri) Known() bool { return t != TriUnknown }

func (t Tri) String() string {
	switch t {
	case TriTrue:
		return "true"
	case TriFalse:
		return "false"
	default:
		return "unknown"
	}
}

// MarshalJSON renders TriTrue/TriFalse as JSON booleans and TriUnknown as null.
func (t Tri) MarshalJSON() ([]byte, error) {
	switch t {
	case TriTrue:
		return []byte("true"), nil
	case TriFalse:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts true, false, or null.
func (t *Tri) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true":
		*t = TriTrue
	case "false":
		*t = TriFalse
	default:
		*t = TriUnknown
	}
	return nil
}

// CompanyRecord is one normalized row of the MSME dataset. Records are
// rebuilt from the CSV on every load and held in memory only; the single
// mutation after normalization is the accreditation attachment.
type CompanyRecord struct {
	FullName     string  `json:"full_name"`
	ShortName    string  `json:"short_name"`
	INN          string  `json:"inn"`
	RegisteredAt *string `json:"registered_at,omitempty"`
	CEO          string  `json:"ceo"`
	OKVED        *string `json:"okved,omitempty"`

	Revenue  *int64 `json:"revenue,omitempty"`
	Expenses *int64 `json:"expenses,omitempty"`
	Taxes    *int64 `json:"taxes,omitempty"`
	TaxYear  *int   `json:"tax_year,omitempty"`

	Staff     *int64 `json:"staff,omitempty"`
	StaffYear *int   `json:"staff_year,omitempty"`

	UsesUSN Tri     `json:"uses_usn"`
	MSMEAt  *string `json:"msme_at,omitempty"`

	// FinancialResult is revenue minus expenses, derived during
	// normalization and only when both operands are present.
	FinancialResult *int64 `json:"financial_result,omitempty"`

	// Accreditation is resolved once by dataset.Attach; nil means no
	// snapshot exists for this INN.
	Accreditation *Accreditation `json:"accreditation,omitempty"`
}

// Accredited reports whether the record carries a live registry accreditation.
func (r *CompanyRecord) Accredited() bool {
	return r.Accreditation != nil && r.Accreditation.Status == AccreditationActive
}
