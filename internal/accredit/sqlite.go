package accredit

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/mspdash/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS accreditation_statuses (
	inn                  TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	status               TEXT NOT NULL,
	decision_number      TEXT NOT NULL DEFAULT '',
	decision_date        DATETIME,
	registry_record_date DATETIME,
	raw_payload          TEXT,
	checked_at           DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS accreditation_sync_log (
	id          TEXT PRIMARY KEY,
	requested   INTEGER NOT NULL,
	succeeded   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_log_finished_at ON accreditation_sync_log(finished_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetByINN(ctx context.Context, inn string) (*model.Accreditation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT inn, name, status, decision_number, decision_date, registry_record_date, raw_payload, checked_at
		 FROM accreditation_statuses WHERE inn = ?`,
		inn,
	)
	snapshot, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get accreditation %s", inn)
	}
	return snapshot, nil
}

func (s *SQLiteStore) GetForINNs(ctx context.Context, inns []string) (map[string]*model.Accreditation, error) {
	result := make(map[string]*model.Accreditation, len(inns))
	if len(inns) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(inns)), ",")
	args := make([]any, len(inns))
	for i, inn := range inns {
		args[i] = inn
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT inn, name, status, decision_number, decision_date, registry_record_date, raw_payload, checked_at
		 FROM accreditation_statuses WHERE inn IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get accreditations")
	}
	defer rows.Close()

	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan accreditation")
		}
		result[snapshot.INN] = snapshot
	}
	return result, eris.Wrap(rows.Err(), "sqlite: get accreditations iterate")
}

func (s *SQLiteStore) Upsert(ctx context.Context, snapshot *model.Accreditation) error {
	var payload any
	if len(snapshot.RawPayload) > 0 {
		payload = string(snapshot.RawPayload)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accreditation_statuses
			(inn, name, status, decision_number, decision_date, registry_record_date, raw_payload, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(inn) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			decision_number = excluded.decision_number,
			decision_date = excluded.decision_date,
			registry_record_date = excluded.registry_record_date,
			raw_payload = excluded.raw_payload,
			checked_at = excluded.checked_at`,
		snapshot.INN, snapshot.Name, snapshot.Status, snapshot.DecisionNumber,
		nullableTime(snapshot.DecisionDate), nullableTime(snapshot.RegistryRecordDate),
		payload, snapshot.CheckedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert accreditation %s", snapshot.INN)
}

func (s *SQLiteStore) LogSync(ctx context.Context, batch model.SyncBatch) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accreditation_sync_log (id, requested, succeeded, failed, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		batch.ID, batch.Requested, batch.Succeeded, batch.Failed, batch.StartedAt, batch.FinishedAt,
	)
	return eris.Wrap(err, "sqlite: log sync")
}

func (s *SQLiteStore) LastSync(ctx context.Context) (*model.SyncBatch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, requested, succeeded, failed, started_at, finished_at
		 FROM accreditation_sync_log ORDER BY finished_at DESC LIMIT 1`,
	)

	var batch model.SyncBatch
	err := row.Scan(&batch.ID, &batch.Requested, &batch.Succeeded, &batch.Failed, &batch.StartedAt, &batch.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: last sync")
	}
	return &batch, nil
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scannable) (*model.Accreditation, error) {
	var snapshot model.Accreditation
	var decisionDate, recordDate sql.NullTime
	var payload sql.NullString

	err := row.Scan(
		&snapshot.INN, &snapshot.Name, &snapshot.Status, &snapshot.DecisionNumber,
		&decisionDate, &recordDate, &payload, &snapshot.CheckedAt,
	)
	if err != nil {
		return nil, err
	}

	if decisionDate.Valid {
		snapshot.DecisionDate = &decisionDate.Time
	}
	if recordDate.Valid {
		snapshot.RegistryRecordDate = &recordDate.Time
	}
	if payload.Valid && payload.String != "" {
		snapshot.RawPayload = json.RawMessage(payload.String)
	}
	return &snapshot, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
