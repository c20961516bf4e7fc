// Package store implements the destination database: schema, the
// all-or-nothing truncate+insert load, and the run log.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-etl/internal/model"
	"github.com/sells-group/crm-etl/internal/report"
)

// ErrLoadFailed marks a failed destination load. The transaction is
// rolled back, leaving the destination in its pre-run state.
var ErrLoadFailed = eris.New("load failed")

// RunStatus is the lifecycle state of an ETL run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one row of the etl_runs log.
type Run struct {
	ID         string         `json:"id"`
	Status     RunStatus      `json:"status"`
	Report     *report.Report `json:"report,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// Tables maps each entity to its destination table name.
type Tables map[model.Entity]string

// Store defines the persistence interface for the ETL pipeline.
type Store interface {
	// TableColumns returns the column names of a destination table, for
	// pre-validation.
	TableColumns(ctx context.Context, table string) ([]string, error)

	// Load truncates the destination tables and inserts the dataset in
	// a single transaction. Either the whole load commits or none of it
	// does.
	Load(ctx context.Context, ds *model.Dataset, tables Tables) error

	// Run log
	CreateRun(ctx context.Context) (*Run, error)
	CompleteRun(ctx context.Context, runID string, status RunStatus, rep *report.Report) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Column orders shared by both store implementations. These must match
// the destination DDL and the mapping defaults.
var (
	companyColumns = []string{
		"id", "name", "domain", "industry", "size", "country",
		"created_date", "is_customer", "annual_revenue",
	}
	contactColumns = []string{
		"id", "first_name", "last_name", "email", "phone", "title",
		"status", "company_id", "created_date", "last_modified",
	}
	opportunityColumns = []string{
		"id", "name", "contact_id", "company_id", "amount", "stage",
		"probability", "created_date", "close_date", "is_closed",
	}
	activityColumns = []string{
		"id", "contact_id", "opportunity_id", "type", "subject",
		"timestamp", "duration_minutes", "outcome", "notes",
	}
)

// nullable maps "" to SQL NULL for optional strings and references.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullableTime maps a nil *time.Time to SQL NULL.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func companyRows(cs []model.Company) [][]any {
	rows := make([][]any, 0, len(cs))
	for _, c := range cs {
		rows = append(rows, []any{
			c.ID, c.Name, c.Domain, nullable(c.Industry), nullable(c.Size),
			nullable(c.Country), nullableTime(c.CreatedDate), c.IsCustomer, c.AnnualRevenue,
		})
	}
	return rows
}

func contactRows(cs []model.Contact) [][]any {
	rows := make([][]any, 0, len(cs))
	for _, c := range cs {
		rows = append(rows, []any{
			c.ID, nullable(c.FirstName), c.LastName, c.Email, nullable(c.Phone),
			nullable(c.Title), nullable(c.Status), nullable(c.CompanyID),
			nullableTime(c.CreatedDate), nullableTime(c.LastModified),
		})
	}
	return rows
}

func opportunityRows(os []model.Opportunity) [][]any {
	rows := make([][]any, 0, len(os))
	for _, o := range os {
		rows = append(rows, []any{
			o.ID, o.Name, o.ContactID, o.CompanyID, o.Amount, o.Stage,
			o.Probability, nullableTime(o.CreatedDate), nullableTime(o.CloseDate), o.IsClosed,
		})
	}
	return rows
}

func activityRows(as []model.Activity) [][]any {
	rows := make([][]any, 0, len(as))
	for _, a := range as {
		rows = append(rows, []any{
			a.ID, nullable(a.ContactID), nullable(a.OpportunityID), a.Type,
			a.Subject, nullableTime(a.Timestamp), a.DurationMinutes,
			nullable(a.Outcome), nullable(a.Notes),
		})
	}
	return rows
}

// loadOrder returns (table, columns, rows) triples in parent-first
// insert order.
func loadOrder(ds *model.Dataset, tables Tables) []struct {
	table   string
	columns []string
	rows    [][]any
} {
	return []struct {
		table   string
		columns []string
		rows    [][]any
	}{
		{tables[model.EntityCompany], companyColumns, companyRows(ds.Companies)},
		{tables[model.EntityContact], contactColumns, contactRows(ds.Contacts)},
		{tables[model.EntityOpportunity], opportunityColumns, opportunityRows(ds.Opportunities)},
		{tables[model.EntityActivity], activityColumns, activityRows(ds.Activities)},
	}
}
