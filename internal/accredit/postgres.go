package accredit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/mspdash/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock implements it
// for tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS accreditation_statuses (
	inn                  TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	status               TEXT NOT NULL,
	decision_number      TEXT NOT NULL DEFAULT '',
	decision_date        DATE,
	registry_record_date DATE,
	raw_payload          JSONB,
	checked_at           TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS accreditation_sync_log (
	id          TEXT PRIMARY KEY,
	requested   INTEGER NOT NULL,
	succeeded   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_log_finished_at ON accreditation_sync_log(finished_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const selectSnapshot = `SELECT inn, name, status, decision_number, decision_date, registry_record_date, raw_payload, checked_at FROM accreditation_statuses`

func (s *PostgresStore) GetByINN(ctx context.Context, inn string) (*model.Accreditation, error) {
	row := s.pool.QueryRow(ctx, selectSnapshot+` WHERE inn = $1`, inn)
	snapshot, err := scanPgSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get accreditation %s", inn)
	}
	return snapshot, nil
}

func (s *PostgresStore) GetForINNs(ctx context.Context, inns []string) (map[string]*model.Accreditation, error) {
	result := make(map[string]*model.Accreditation, len(inns))
	if len(inns) == 0 {
		return result, nil
	}

	rows, err := s.pool.Query(ctx, selectSnapshot+` WHERE inn = ANY($1)`, inns)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get accreditations")
	}
	defer rows.Close()

	for rows.Next() {
		snapshot, err := scanPgSnapshot(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan accreditation")
		}
		result[snapshot.INN] = snapshot
	}
	return result, eris.Wrap(rows.Err(), "postgres: get accreditations iterate")
}

func (s *PostgresStore) Upsert(ctx context.Context, snapshot *model.Accreditation) error {
	var payload any
	if len(snapshot.RawPayload) > 0 {
		payload = string(snapshot.RawPayload)
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO accreditation_statuses
			(inn, name, status, decision_number, decision_date, registry_record_date, raw_payload, checked_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (inn) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			decision_number = EXCLUDED.decision_number,
			decision_date = EXCLUDED.decision_date,
			registry_record_date = EXCLUDED.registry_record_date,
			raw_payload = EXCLUDED.raw_payload,
			checked_at = EXCLUDED.checked_at`,
		snapshot.INN, snapshot.Name, snapshot.Status, snapshot.DecisionNumber,
		snapshot.DecisionDate, snapshot.RegistryRecordDate, payload, snapshot.CheckedAt,
	)
	return eris.Wrapf(err, "postgres: upsert accreditation %s", snapshot.INN)
}

func (s *PostgresStore) LogSync(ctx context.Context, batch model.SyncBatch) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accreditation_sync_log (id, requested, succeeded, failed, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		batch.ID, batch.Requested, batch.Succeeded, batch.Failed, batch.StartedAt, batch.FinishedAt,
	)
	return eris.Wrap(err, "postgres: log sync")
}

func (s *PostgresStore) LastSync(ctx context.Context) (*model.SyncBatch, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, requested, succeeded, failed, started_at, finished_at
		 FROM accreditation_sync_log ORDER BY finished_at DESC LIMIT 1`,
	)

	var batch model.SyncBatch
	err := row.Scan(&batch.ID, &batch.Requested, &batch.Succeeded, &batch.Failed, &batch.StartedAt, &batch.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: last sync")
	}
	return &batch, nil
}

func scanPgSnapshot(row pgx.Row) (*model.Accreditation, error) {
	var snapshot model.Accreditation
	var decisionDate, recordDate *time.Time
	var payload *string

	err := row.Scan(
		&snapshot.INN, &snapshot.Name, &snapshot.Status, &snapshot.DecisionNumber,
		&decisionDate, &recordDate, &payload, &snapshot.CheckedAt,
	)
	if err != nil {
		return nil, err
	}

	snapshot.DecisionDate = decisionDate
	snapshot.RegistryRecordDate = recordDate
	if payload != nil && *payload != "" {
		snapshot.RawPayload = json.RawMessage(*payload)
	}
	return &snapshot, nil
}
