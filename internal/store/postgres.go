package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crm-etl/internal/db"
	"github.com/sells-group/crm-etl/internal/model"
	"github.com/sells-group/crm-etl/internal/report"
	"github.com/sells-group/crm-etl/internal/retry"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	// Scheduled runs may start while the database is briefly unavailable.
	err = retry.Do(ctx, retry.DefaultConfig(), "postgres ping", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; tests use it with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL UNIQUE,
	domain         TEXT NOT NULL UNIQUE,
	industry       TEXT,
	size           TEXT,
	country        TEXT,
	created_date   TIMESTAMPTZ NOT NULL,
	is_customer    BOOLEAN NOT NULL DEFAULT false,
	annual_revenue DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS contacts (
	id            TEXT PRIMARY KEY,
	first_name    TEXT,
	last_name     TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	phone         TEXT UNIQUE,
	title         TEXT,
	status        TEXT,
	company_id    TEXT REFERENCES companies(id) ON DELETE SET NULL,
	created_date  TIMESTAMPTZ NOT NULL,
	last_modified TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS opportunities (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	contact_id   TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
	company_id   TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	amount       DOUBLE PRECISION,
	stage        TEXT NOT NULL,
	probability  DOUBLE PRECISION,
	created_date TIMESTAMPTZ NOT NULL,
	close_date   TIMESTAMPTZ,
	is_closed    BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS activities (
	id               TEXT PRIMARY KEY,
	contact_id       TEXT REFERENCES contacts(id) ON DELETE SET NULL,
	opportunity_id   TEXT REFERENCES opportunities(id) ON DELETE SET NULL,
	type             TEXT NOT NULL,
	subject          TEXT NOT NULL,
	timestamp        TIMESTAMPTZ NOT NULL,
	duration_minutes INTEGER,
	outcome          TEXT,
	notes            TEXT
);

CREATE TABLE IF NOT EXISTS etl_runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	report      JSONB,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_contacts_company_id ON contacts(company_id);
CREATE INDEX IF NOT EXISTS idx_opportunities_contact_id ON opportunities(contact_id);
CREATE INDEX IF NOT EXISTS idx_activities_contact_id ON activities(contact_id);
CREATE INDEX IF NOT EXISTS idx_activities_opportunity_id ON activities(opportunity_id);
CREATE INDEX IF NOT EXISTS idx_etl_runs_started_at ON etl_runs(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.closeFn()
	return nil
}

func (s *PostgresStore) TableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = current_schema() AND table_name = $1
		 ORDER BY ordinal_position`,
		table,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: describe %s", table)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan column of %s", table)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "postgres: describe %s iterate", table)
	}
	if len(cols) == 0 {
		return nil, eris.Errorf("postgres: table %s not found", table)
	}
	return cols, nil
}

// Load truncates the four destination tables and COPYs the record sets
// in, all inside one transaction.
func (s *PostgresStore) Load(ctx context.Context, ds *model.Dataset, tables Tables) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin load tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := db.Truncate(ctx, tx,
		tables[model.EntityCompany], tables[model.EntityContact],
		tables[model.EntityOpportunity], tables[model.EntityActivity],
	); err != nil {
		return eris.Wrap(ErrLoadFailed, err.Error())
	}

	for _, batch := range loadOrder(ds, tables) {
		n, err := db.CopyFrom(ctx, tx, batch.table, batch.columns, batch.rows)
		if err != nil {
			return eris.Wrap(ErrLoadFailed, err.Error())
		}
		zap.L().Debug("postgres: table loaded",
			zap.String("table", batch.table),
			zap.Int64("rows", n),
		)
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(ErrLoadFailed, eris.Wrap(err, "commit").Error())
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO etl_runs (id, status, started_at) VALUES ($1, $2, $3)`,
		id, string(RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &Run{ID: id, Status: RunStatusRunning, StartedAt: now}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status RunStatus, rep *report.Report) error {
	reportJSON, err := json.Marshal(rep)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE etl_runs SET status = $1, report = $2, finished_at = $3 WHERE id = $4`,
		string(status), reportJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, status, report, started_at, finished_at FROM etl_runs
		 ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var reportJSON []byte
		if err := rows.Scan(&r.ID, &r.Status, &reportJSON, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if len(reportJSON) > 0 {
			r.Report = &report.Report{}
			if err := json.Unmarshal(reportJSON, r.Report); err != nil {
				return nil, eris.Wrapf(err, "postgres: unmarshal report of run %s", r.ID)
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
