package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crm-etl/internal/model"
	"github.com/sells-group/crm-etl/internal/report"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testTables() Tables {
	return Tables{
		model.EntityCompany:     "companies",
		model.EntityContact:     "contacts",
		model.EntityOpportunity: "opportunities",
		model.EntityActivity:    "activities",
	}
}

func testDataset() *model.Dataset {
	created := time.Date(2022, 3, 1, 9, 0, 0, 0, time.UTC)
	return &model.Dataset{
		Companies: []model.Company{
			{ID: "co1", Name: "Acme", Domain: "acme.com", Industry: "Software",
				CreatedDate: &created, IsCustomer: true, AnnualRevenue: 1200000},
		},
		Contacts: []model.Contact{
			{ID: "c1", LastName: "Doe", Email: "doe@acme.com", Phone: "+1-555-111-2222",
				CompanyID: "co1", CreatedDate: &created},
			{ID: "c2", LastName: "Roe", Email: "roe@acme.com", CompanyID: "", CreatedDate: &created},
		},
		Opportunities: []model.Opportunity{
			{ID: "o1", Name: "Deal", ContactID: "c1", CompanyID: "co1",
				Amount: 5000, Stage: "Open", CreatedDate: &created},
		},
		Activities: []model.Activity{
			{ID: "a1", ContactID: "c1", OpportunityID: "o1", Type: "Call",
				Subject: "Intro", Timestamp: &created, DurationMinutes: 30},
			{ID: "a2", ContactID: "", OpportunityID: "", Type: "Email",
				Subject: "News", Timestamp: &created},
		},
	}
}

func countRows(t *testing.T, s *SQLiteStore, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM "`+table+`"`).Scan(&n))
	return n
}

func TestSQLite_TableColumns(t *testing.T) {
	s := newTestSQLite(t)

	cols, err := s.TableColumns(context.Background(), "contacts")
	require.NoError(t, err)
	assert.Equal(t, contactColumns, cols)

	_, err = s.TableColumns(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table nope not found")
}

func TestSQLite_Load(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Load(ctx, testDataset(), testTables()))

	assert.Equal(t, 1, countRows(t, s, "companies"))
	assert.Equal(t, 2, countRows(t, s, "contacts"))
	assert.Equal(t, 1, countRows(t, s, "opportunities"))
	assert.Equal(t, 2, countRows(t, s, "activities"))

	// Empty references are stored as NULL, not empty strings.
	var n int
	require.NoError(t, s.db.QueryRow(
		`SELECT COUNT(*) FROM contacts WHERE company_id IS NULL`).Scan(&n))
	assert.Equal(t, 1, n)
	require.NoError(t, s.db.QueryRow(
		`SELECT COUNT(*) FROM activities WHERE opportunity_id IS NULL`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSQLite_LoadReplacesExisting(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Load(ctx, testDataset(), testTables()))

	ds := testDataset()
	ds.Activities = ds.Activities[:1]
	require.NoError(t, s.Load(ctx, ds, testTables()))

	assert.Equal(t, 1, countRows(t, s, "activities"))
	assert.Equal(t, 2, countRows(t, s, "contacts"))
}

func TestSQLite_LoadRollsBackOnFailure(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Load(ctx, testDataset(), testTables()))

	// A duplicate contact id violates the primary key mid-load; the whole
	// transaction must roll back, keeping the previous load intact.
	bad := testDataset()
	bad.Contacts = append(bad.Contacts, bad.Contacts[0])

	err := s.Load(ctx, bad, testTables())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoadFailed))

	assert.Equal(t, 2, countRows(t, s, "contacts"))
	assert.Equal(t, 1, countRows(t, s, "companies"))
	assert.Equal(t, 2, countRows(t, s, "activities"))
}

func TestSQLite_LoadEmptyDataset(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Load(ctx, testDataset(), testTables()))
	require.NoError(t, s.Load(ctx, &model.Dataset{}, testTables()))

	for _, table := range testTables() {
		assert.Equal(t, 0, countRows(t, s, table))
	}
}

func TestSQLite_RunLog(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)

	rep := report.New(run.ID)
	rep.Linked = 3
	rep.Finish()
	require.NoError(t, s.CompleteRun(ctx, run.ID, RunStatusComplete, rep))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, RunStatusComplete, runs[0].Status)
	require.NotNil(t, runs[0].FinishedAt)
	require.NotNil(t, runs[0].Report)
	assert.Equal(t, 3, runs[0].Report.Linked)
}

func TestSQLite_CompleteRunNotFound(t *testing.T) {
	s := newTestSQLite(t)

	err := s.CompleteRun(context.Background(), "missing", RunStatusFailed, report.New("missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLite_ListRunsOrderAndLimit(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		// started_at must strictly increase for a deterministic order.
		id := time.Now().UTC().Format("20060102150405.000000000")
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO etl_runs (id, status, started_at) VALUES (?, ?, ?)`,
			id, string(RunStatusComplete), time.Now().UTC().Add(time.Duration(i)*time.Second),
		)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
}
