// Package model defines the CRM entities carried through the pipeline.
package model

import "time"

// Entity names the four record set types.
type Entity string

const (
	EntityCompany     Entity = "companies"
	EntityContact     Entity = "contacts"
	EntityOpportunity Entity = "opportunities"
	EntityActivity    Entity = "activities"
)

// Entities lists the record set types in load order (parents first).
var Entities = []Entity{EntityCompany, EntityContact, EntityOpportunity, EntityActivity}

// Company is one CRM account record. Reference fields use "" for null;
// ids are opaque non-empty strings.
type Company struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Domain        string     `json:"domain"`
	Industry      string     `json:"industry"`
	Size          string     `json:"size"`
	Country       string     `json:"country"`
	CreatedDate   *time.Time `json:"created_date"`
	IsCustomer    bool       `json:"is_customer"`
	AnnualRevenue float64    `json:"annual_revenue"`
}

// Contact is one CRM person record.
type Contact struct {
	ID           string     `json:"id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	Title        string     `json:"title"`
	Status       string     `json:"status"`
	CompanyID    string     `json:"company_id"`
	CreatedDate  *time.Time `json:"created_date"`
	LastModified *time.Time `json:"last_modified"`
}

// Opportunity is one CRM deal record.
type Opportunity struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	ContactID   string     `json:"contact_id"`
	CompanyID   string     `json:"company_id"`
	Amount      float64    `json:"amount"`
	Stage       string     `json:"stage"`
	Probability float64    `json:"probability"`
	CreatedDate *time.Time `json:"created_date"`
	CloseDate   *time.Time `json:"close_date"`
	IsClosed    bool       `json:"is_closed"`
}

// Activity is one CRM interaction record (call, email, meeting).
type Activity struct {
	ID              string     `json:"id"`
	ContactID       string     `json:"contact_id"`
	OpportunityID   string     `json:"opportunity_id"`
	Type            string     `json:"type"`
	Subject         string     `json:"subject"`
	Timestamp       *time.Time `json:"timestamp"`
	DurationMinutes int        `json:"duration_minutes"`
	Outcome         string     `json:"outcome"`
	Notes           string     `json:"notes"`
}

// Dataset carries all four record sets between pipeline stages.
type Dataset struct {
	Companies     []Company
	Contacts      []Contact
	Opportunities []Opportunity
	Activities    []Activity
}

// Counts returns record counts keyed by entity.
func (d *Dataset) Counts() map[Entity]int {
	return map[Entity]int{
		EntityCompany:     len(d.Companies),
		EntityContact:     len(d.Contacts),
		EntityOpportunity: len(d.Opportunities),
		EntityActivity:    len(d.Activities),
	}
}
