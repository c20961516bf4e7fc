package extract

import (
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-etl/internal/model"
	"github.com/sells-group/crm-etl/internal/report"
)

// Bind converts standardized raw tables into typed record sets. Date
// fields are expected in canonical RFC 3339 form by this point; empty
// strings mean null. Numeric or boolean coercion failures are flagged
// and the field zeroed, never fatal.
func Bind(tables Tables, rep *report.Report) (*model.Dataset, error) {
	for _, entity := range model.Entities {
		if tables[entity] == nil {
			return nil, eris.Errorf("extract: bind: missing %s table", entity)
		}
	}

	ds := &model.Dataset{}

	for _, row := range tables[model.EntityCompany].Rows {
		b := binder{entity: model.EntityCompany, row: row, rep: rep}
		ds.Companies = append(ds.Companies, model.Company{
			ID:            row["id"],
			Name:          row["name"],
			Domain:        row["domain"],
			Industry:      row["industry"],
			Size:          row["size"],
			Country:       row["country"],
			CreatedDate:   b.time("created_date"),
			IsCustomer:    b.bool("is_customer"),
			AnnualRevenue: b.float("annual_revenue"),
		})
	}

	for _, row := range tables[model.EntityContact].Rows {
		b := binder{entity: model.EntityContact, row: row, rep: rep}
		ds.Contacts = append(ds.Contacts, model.Contact{
			ID:           row["id"],
			FirstName:    row["first_name"],
			LastName:     row["last_name"],
			Email:        row["email"],
			Phone:        row["phone"],
			Title:        row["title"],
			Status:       row["status"],
			CompanyID:    row["company_id"],
			CreatedDate:  b.time("created_date"),
			LastModified: b.time("last_modified"),
		})
	}

	for _, row := range tables[model.EntityOpportunity].Rows {
		b := binder{entity: model.EntityOpportunity, row: row, rep: rep}
		ds.Opportunities = append(ds.Opportunities, model.Opportunity{
			ID:          row["id"],
			Name:        row["name"],
			ContactID:   row["contact_id"],
			CompanyID:   row["company_id"],
			Amount:      b.float("amount"),
			Stage:       row["stage"],
			Probability: b.float("probability"),
			CreatedDate: b.time("created_date"),
			CloseDate:   b.time("close_date"),
			IsClosed:    b.bool("is_closed"),
		})
	}

	for _, row := range tables[model.EntityActivity].Rows {
		b := binder{entity: model.EntityActivity, row: row, rep: rep}
		ds.Activities = append(ds.Activities, model.Activity{
			ID:              row["id"],
			ContactID:       row["contact_id"],
			OpportunityID:   row["opportunity_id"],
			Type:            row["type"],
			Subject:         row["subject"],
			Timestamp:       b.time("timestamp"),
			DurationMinutes: b.int("duration_minutes"),
			Outcome:         row["outcome"],
			Notes:           row["notes"],
		})
	}

	return ds, nil
}

// binder coerces one raw row's fields, flagging failures on the report.
type binder struct {
	entity model.Entity
	row    map[string]string
	rep    *report.Report
}

func (b binder) flag(field, value, reason string) {
	if b.rep != nil {
		b.rep.AddFlag(b.entity, b.row["id"], field, value, reason)
	}
}

func (b binder) time(field string) *time.Time {
	v := b.row[field]
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		b.flag(field, v, "unparsable timestamp")
		return nil
	}
	return &t
}

func (b binder) float(field string) float64 {
	v := b.row[field]
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		b.flag(field, v, "unparsable number")
		return 0
	}
	return f
}

func (b binder) int(field string) int {
	v := b.row[field]
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		b.flag(field, v, "unparsable integer")
		return 0
	}
	return n
}

func (b binder) bool(field string) bool {
	v := b.row[field]
	if v == "" {
		return false
	}
	val, err := strconv.ParseBool(v)
	if err != nil {
		b.flag(field, v, "unparsable boolean")
		return false
	}
	return val
}
