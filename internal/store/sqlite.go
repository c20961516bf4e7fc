package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/crm-etl/internal/model"
	"github.com/sells-group/crm-etl/internal/report"
)

const sqliteBatchSize = 500

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. Foreign key enforcement is switched on; SQLite defaults it off.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL UNIQUE,
	domain         TEXT NOT NULL UNIQUE,
	industry       TEXT,
	size           TEXT,
	country        TEXT,
	created_date   DATETIME NOT NULL,
	is_customer    BOOLEAN NOT NULL DEFAULT 0,
	annual_revenue REAL
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
	created_date  DATETIME NOT NULL,
	last_modified DATETIME
);

CREATE TABLE IF NOT EXISTS opportunities (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	contact_id   TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
	company_id   TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	amount       REAL,
	stage        TEXT NOT NULL,
	probability  REAL,
	created_date DATETIME NOT NULL,
	close_date   DATETIME,
	is_closed    BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS activities (
	id               TEXT PRIMARY KEY,
	contact_id       TEXT REFERENCES contacts(id) ON DELETE SET NULL,
	opportunity_id   TEXT REFERENCES opportunities(id) ON DELETE SET NULL,
	type             TEXT NOT NULL,
	subject          TEXT NOT NULL,
	timestamp        DATETIME NOT NULL,
	duration_minutes INTEGER,
	outcome          TEXT,
	notes            TEXT
);

CREATE TABLE IF NOT EXISTS etl_runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	report      TEXT,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_contacts_company_id ON contacts(company_id);
CREATE INDEX IF NOT EXISTS idx_opportunities_contact_id ON opportunities(contact_id);
CREATE INDEX IF NOT EXISTS idx_activities_contact_id ON activities(contact_id);
CREATE INDEX IF NOT EXISTS idx_activities_opportunity_id ON activities(opportunity_id);
CREATE INDEX IF NOT EXISTS idx_etl_runs_started_at ON etl_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) TableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM pragma_table_info(?) ORDER BY cid`, table,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: describe %s", table)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan column of %s", table)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "sqlite: describe %s iterate", table)
	}
	if len(cols) == 0 {
		return nil, eris.Errorf("sqlite: table %s not found", table)
	}
	return cols, nil
}

// Load deletes the destination tables' contents and inserts the record
// sets in multi-row batches, all inside one transaction.
func (s *SQLiteStore) Load(ctx context.Context, ds *model.Dataset, tables Tables) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin load tx")
	}
	defer tx.Rollback() //nolint:errcheck

	// Children first so FK enforcement never observes a dangling row.
	for _, entity := range []model.Entity{
		model.EntityActivity, model.EntityOpportunity, model.EntityContact, model.EntityCompany,
	} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM "`+tables[entity]+`"`); err != nil {
			return eris.Wrap(ErrLoadFailed, eris.Wrapf(err, "truncate %s", tables[entity]).Error())
		}
	}

	for _, batch := range loadOrder(ds, tables) {
		if err := s.insertBatched(ctx, tx, batch.table, batch.columns, batch.rows); err != nil {
			return eris.Wrap(ErrLoadFailed, err.Error())
		}
		zap.L().Debug("sqlite: table loaded",
			zap.String("table", batch.table),
			zap.Int("rows", len(batch.rows)),
		)
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(ErrLoadFailed, eris.Wrap(err, "commit").Error())
	}
	return nil
}

func (s *SQLiteStore) insertBatched(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	prefix := `INSERT INTO "` + table + `" (` + strings.Join(columns, ", ") + `) VALUES `

	for start := 0; start < len(rows); start += sqliteBatchSize {
		end := min(start+sqliteBatchSize, len(rows))
		chunk := rows[start:end]

		var args []any
		values := make([]string, len(chunk))
		for i, row := range chunk {
			values[i] = placeholders
			args = append(args, row...)
		}

		if _, err := tx.ExecContext(ctx, prefix+strings.Join(values, ", "), args...); err != nil {
			return eris.Wrapf(err, "insert into %s rows %d-%d", table, start, end-1)
		}
	}
	return nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO etl_runs (id, status, started_at) VALUES (?, ?, ?)`,
		id, string(RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &Run{ID: id, Status: RunStatusRunning, StartedAt: now}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status RunStatus, rep *report.Report) error {
	reportJSON, err := json.Marshal(rep)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE etl_runs SET status = ?, report = ?, finished_at = ? WHERE id = ?`,
		string(status), string(reportJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: run not found: %s", runID)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, report, started_at, finished_at FROM etl_runs
		 ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var reportJSON sql.NullString
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Status, &reportJSON, &r.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		if reportJSON.Valid && reportJSON.String != "" {
			r.Report = &report.Report{}
			if err := json.Unmarshal([]byte(reportJSON.String), r.Report); err != nil {
				return nil, eris.Wrapf(err, "sqlite: unmarshal report of run %s", r.ID)
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}
