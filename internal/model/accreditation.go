package model

import (
	"encoding/json"
	"time"
)

// Registry status literals as the NSI dictionary emits them.
const (
	// AccreditationActive is the status the registry assigns to companies
	// whose IT accreditation is currently in force.
	AccreditationActive = "Действует"

	// AccreditationNotFound is stored when the registry has no entry for
	// an INN. Not an error: the absence itself is the answer.
	AccreditationNotFound = "Нет записи в реестре"

	// AccreditationUnknown is stored when a registry entry exists but
	// carries no Status attribute.
	AccreditationUnknown = "Неизвестно"
)

// Accreditation is the persisted snapshot of the last registry lookup for a
// single INN. At most one row exists per INN; every sync replaces all fields
// and advances CheckedAt.
type Accreditation struct {
	INN                string          `json:"inn"`
	Name               string          `json:"name"`
	Status             string          `json:"status"`
	DecisionNumber     string          `json:"decision_number,omitempty"`
	DecisionDate       *time.Time      `json:"decision_date,omitempty"`
	RegistryRecordDate *time.Time      `json:"registry_record_date,omitempty"`
	RawPayload         json.RawMessage `json:"raw_payload,omitempty"`
	CheckedAt          time.Time       `json:"checked_at"`
}

// SyncOutcome reports the result of one identifier's lookup within a sync
// batch. Exactly one of Status/Error is set.
type SyncOutcome struct {
	INN     string `json:"inn" yaml:"inn"`
	Success bool   `json:"success" yaml:"success"`
	Status  string `json:"status,omitempty" yaml:"status,omitempty"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

// SyncBatch summarizes one sync run for the batch log.
type SyncBatch struct {
	ID         string    `json:"id"`
	Requested  int       `json:"requested"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
