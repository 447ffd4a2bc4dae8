// Package dataset loads, normalizes, filters, and aggregates the MSME
// company CSV. All parsing is lenient: a malformed cell degrades to a null
// field, never to a dropped row or an error.
package dataset

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sells-group/mspdash/internal/model"
)

// Column headers of the fixed CSV schema. The file ships with Russian
// headers; they are part of the contract, not configuration.
const (
	colFullName     = "Полное наименование"
	colShortName    = "Сокращенное наименование"
	colINN          = "ИНН"
	colRegisteredAt = "Дата постановки на учёт"
	colCEO          = "ИНН, ФИО руководителя"
	colOKVED        = "Основной ОКВЭД"
	colRevenue      = "Выручка, руб."
	colExpenses     = "Расходы, руб."
	colTaxes        = "Сумма уплаченных налогов, руб."
	colTaxYear      = "Год уплаты налогов"
	colStaff        = "Среднесписочная численность"
	colStaffYear    = "Год данных о численности"
	colUsesUSN      = "Применяет УСН"
	colMSMEAt       = "Дата включения в реестр МСП"
)

// noDataMarkers are the "value present but meaningless" prefixes the source
// uses interchangeably with an empty cell.
var noDataMarkers = []string{"нет данных", "no data"}

// cleanString trims a raw cell and collapses empty or no-data markers to "".
func cleanString(s string) string {
	text := strings.TrimSpace(s)
	if text == "" {
		return ""
	}
	lowered := strings.ToLower(text)
	for _, marker := range noDataMarkers {
		if strings.HasPrefix(lowered, marker) {
			return ""
		}
	}
	return text
}

// strPtr returns the cleaned cell as a pointer, nil when absent.
func strPtr(s string) *string {
	text := cleanString(s)
	if text == "" {
		return nil
	}
	return &text
}

// parseMoney parses a ruble amount like "1 234 567,89 ₽" into whole rubles,
// rounding half-up. Currency sign, regular and non-breaking spaces are
// stripped and the decimal comma normalized before exact decimal parsing.
// Any failure yields nil.
func parseMoney(s string) *int64 {
	text := cleanString(s)
	if text == "" {
		return nil
	}
	replacer := strings.NewReplacer("₽", "", " ", "", " ", "", ",", ".")
	cleaned := replacer.Replace(text)

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil
	}
	// Round(0) rounds half away from zero, which is half-up for the
	// non-negative amounts this column carries.
	v := amount.Round(0).IntPart()
	return &v
}

// parseInt parses a base-10 integer cell, nil when absent or malformed.
func parseInt(s string) *int64 {
	text := cleanString(s)
	if text == "" {
		return nil
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseYear is parseInt narrowed to the int-sized year columns.
func parseYear(s string) *int {
	v := parseInt(s)
	if v == nil {
		return nil
	}
	y := int(*v)
	return &y
}

// parseBool maps the yes/no vocabulary of the source onto a Tri. Anything
// outside the vocabulary is unknown, which is distinct from false.
func parseBool(s string) model.Tri {
	text := cleanString(s)
	if text == "" {
		return model.TriUnknown
	}
	switch strings.ToLower(text) {
	case "да", "yes":
		return model.TriTrue
	case "нет", "no":
		return model.TriFalse
	default:
		return model.TriUnknown
	}
}

// NormalizeRow converts one header-keyed CSV row into a CompanyRecord.
// It never fails: unparsable cells become null fields.
func NormalizeRow(row map[string]string) model.CompanyRecord {
	rec := model.CompanyRecord{
		FullName:     strings.TrimSpace(row[colFullName]),
		ShortName:    strings.TrimSpace(row[colShortName]),
		INN:          strings.TrimSpace(row[colINN]),
		RegisteredAt: strPtr(row[colRegisteredAt]),
		CEO:          strings.TrimSpace(row[colCEO]),
		OKVED:        strPtr(row[colOKVED]),
		Revenue:      parseMoney(row[colRevenue]),
		Expenses:     parseMoney(row[colExpenses]),
		Taxes:        parseMoney(row[colTaxes]),
		TaxYear:      parseYear(row[colTaxYear]),
		Staff:        parseInt(row[colStaff]),
		StaffYear:    parseYear(row[colStaffYear]),
		UsesUSN:      parseBool(row[colUsesUSN]),
		MSMEAt:       strPtr(row[colMSMEAt]),
	}

	if rec.Revenue != nil && rec.Expenses != nil {
		result := *rec.Revenue - *rec.Expenses
		rec.FinancialResult = &result
	}
	return rec
}
