package validate

import (
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crm-etl/internal/model"
	"github.com/sells-group/crm-etl/internal/report"
)

// Rule names recorded on violations.
const (
	RuleDuplicateID       = "duplicate_id"
	RuleDuplicateName     = "duplicate_name"
	RuleDuplicateDomain   = "duplicate_domain"
	RuleDuplicateEmail    = "duplicate_email"
	RuleDuplicatePhone    = "duplicate_phone"
	RuleMissingReference  = "missing_required_reference"
	RuleDanglingReference = "dangling_reference"
	RuleDateRange         = "created_after_close"
)

// Post re-checks referential integrity, uniqueness, and the opportunity
// date-range rule over the final record sets, excluding each offending
// record from the dataset. Entities are processed parents-first, so a
// record whose referent was just excluded is itself caught in the same
// pass. If the total violation count exceeds maxViolations the run
// fails with ErrThresholdExceeded.
func Post(ds *model.Dataset, rep *report.Report, maxViolations int) error {
	before := len(rep.Violations)

	checkCompanies(ds, rep)
	checkContacts(ds, rep)
	checkOpportunities(ds, rep)
	checkActivities(ds, rep)

	violations := len(rep.Violations) - before
	zap.L().Info("validate: post-validation complete",
		zap.Int("violations", violations),
		zap.Int("threshold", maxViolations),
	)

	if violations > maxViolations {
		return eris.Wrapf(ErrThresholdExceeded, "validate: %d violations, threshold %d",
			violations, maxViolations)
	}
	return nil
}

func checkCompanies(ds *model.Dataset, rep *report.Report) {
	ids := map[string]bool{}
	names := map[string]bool{}
	domains := map[string]bool{}

	kept := ds.Companies[:0]
	for _, c := range ds.Companies {
		switch {
		case ids[c.ID]:
			rep.AddViolation(model.EntityCompany, c.ID, RuleDuplicateID, "")
		case c.Name != "" && names[c.Name]:
			rep.AddViolation(model.EntityCompany, c.ID, RuleDuplicateName, c.Name)
		case c.Domain != "" && domains[c.Domain]:
			rep.AddViolation(model.EntityCompany, c.ID, RuleDuplicateDomain, c.Domain)
		default:
			ids[c.ID] = true
			names[c.Name] = true
			domains[c.Domain] = true
			kept = append(kept, c)
			continue
		}
	}
	ds.Companies = kept
}

func checkContacts(ds *model.Dataset, rep *report.Report) {
	companies := companyIndex(ds)

	ids := map[string]bool{}
	emails := map[string]bool{}
	phones := map[string]bool{}

	kept := ds.Contacts[:0]
	for _, c := range ds.Contacts {
		switch {
		case ids[c.ID]:
			rep.AddViolation(model.EntityContact, c.ID, RuleDuplicateID, "")
		case c.Email != "" && emails[c.Email]:
			rep.AddViolation(model.EntityContact, c.ID, RuleDuplicateEmail, c.Email)
		case c.Phone != "" && phones[c.Phone]:
			rep.AddViolation(model.EntityContact, c.ID, RuleDuplicatePhone, c.Phone)
		case c.CompanyID != "" && !companies[c.CompanyID]:
			rep.AddViolation(model.EntityContact, c.ID, RuleDanglingReference,
				fmt.Sprintf("company_id=%s", c.CompanyID))
		default:
			ids[c.ID] = true
			if c.Email != "" {
				emails[c.Email] = true
			}
			if c.Phone != "" {
				phones[c.Phone] = true
			}
			kept = append(kept, c)
			continue
		}
	}
	ds.Contacts = kept
}

func checkOpportunities(ds *model.Dataset, rep *report.Report) {
	companies := companyIndex(ds)
	contacts := contactIndex(ds)

	ids := map[string]bool{}

	kept := ds.Opportunities[:0]
	for _, o := range ds.Opportunities {
		switch {
		case ids[o.ID]:
			rep.AddViolation(model.EntityOpportunity, o.ID, RuleDuplicateID, "")
		case o.ContactID == "":
			rep.AddViolation(model.EntityOpportunity, o.ID, RuleMissingReference, "contact_id")
		case o.CompanyID == "":
			rep.AddViolation(model.EntityOpportunity, o.ID, RuleMissingReference, "company_id")
		case !contacts[o.ContactID]:
			rep.AddViolation(model.EntityOpportunity, o.ID, RuleDanglingReference,
				fmt.Sprintf("contact_id=%s", o.ContactID))
		case !companies[o.CompanyID]:
			rep.AddViolation(model.EntityOpportunity, o.ID, RuleDanglingReference,
				fmt.Sprintf("company_id=%s", o.CompanyID))
		case o.CreatedDate != nil && o.CloseDate != nil && o.CreatedDate.After(*o.CloseDate):
			rep.AddViolation(model.EntityOpportunity, o.ID, RuleDateRange,
				fmt.Sprintf("created_date=%s close_date=%s",
					o.CreatedDate.Format("2006-01-02"), o.CloseDate.Format("2006-01-02")))
		default:
			ids[o.ID] = true
			kept = append(kept, o)
			continue
		}
	}
	ds.Opportunities = kept
}

func checkActivities(ds *model.Dataset, rep *report.Report) {
	contacts := contactIndex(ds)
	opps := make(map[string]bool, len(ds.Opportunities))
	for _, o := range ds.Opportunities {
		opps[o.ID] = true
	}

	ids := map[string]bool{}

	kept := ds.Activities[:0]
	for _, a := range ds.Activities {
		switch {
		case ids[a.ID]:
			rep.AddViolation(model.EntityActivity, a.ID, RuleDuplicateID, "")
		case a.ContactID != "" && !contacts[a.ContactID]:
			rep.AddViolation(model.EntityActivity, a.ID, RuleDanglingReference,
				fmt.Sprintf("contact_id=%s", a.ContactID))
		case a.OpportunityID != "" && !opps[a.OpportunityID]:
			rep.AddViolation(model.EntityActivity, a.ID, RuleDanglingReference,
				fmt.Sprintf("opportunity_id=%s", a.OpportunityID))
		default:
			ids[a.ID] = true
			kept = append(kept, a)
			continue
		}
	}
	ds.Activities = kept
}

func companyIndex(ds *model.Dataset) map[string]bool {
	idx := make(map[string]bool, len(ds.Companies))
	for _, c := range ds.Companies {
		idx[c.ID] = true
	}
	return idx
}

func contactIndex(ds *model.Dataset) map[string]bool {
	idx := make(map[string]bool, len(ds.Contacts))
	for _, c := range ds.Contacts {
		idx[c.ID] = true
	}
	return idx
}
