package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crm-etl/internal/model"
	"github.com/sells-group/crm-etl/internal/report"
)

func ts(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

// consistent builds a dataset that passes every post-validation rule.
func consistent() *model.Dataset {
	return &model.Dataset{
		Companies: []model.Company{
			{ID: "co1", Name: "Acme", Domain: "acme.com", CreatedDate: ts("2020-01-01")},
			{ID: "co2", Name: "Beta", Domain: "beta.io", CreatedDate: ts("2021-01-01")},
		},
		Contacts: []model.Contact{
			{ID: "c1", LastName: "Doe", Email: "doe@acme.com", Phone: "+1-555-111-2222", CompanyID: "co1", CreatedDate: ts("2022-01-01")},
			{ID: "c2", LastName: "Roe", Email: "roe@beta.io", CompanyID: "co2", CreatedDate: ts("2022-02-01")},
		},
		Opportunities: []model.Opportunity{
			{ID: "o1", Name: "Deal", ContactID: "c1", CompanyID: "co1", Stage: "Open",
				CreatedDate: ts("2023-01-01"), CloseDate: ts("2023-06-01")},
		},
		Activities: []model.Activity{
			{ID: "a1", ContactID: "c1", OpportunityID: "o1", Type: "Call", Subject: "Intro", Timestamp: ts("2023-02-01")},
			{ID: "a2", ContactID: "", OpportunityID: "", Type: "Email", Subject: "News", Timestamp: ts("2023-03-01")},
		},
	}
}

func TestPost_CleanDataset(t *testing.T) {
	ds := consistent()
	rep := report.New("test")

	require.NoError(t, Post(ds, rep, 10))
	assert.Empty(t, rep.Violations)
	assert.Len(t, ds.Companies, 2)
	assert.Len(t, ds.Contacts, 2)
	assert.Len(t, ds.Opportunities, 1)
	assert.Len(t, ds.Activities, 2)
}

func TestPost_DateRangeViolation(t *testing.T) {
	ds := consistent()
	ds.Opportunities = append(ds.Opportunities, model.Opportunity{
		ID: "o-bad", Name: "Backwards", ContactID: "c1", CompanyID: "co1", Stage: "Open",
		CreatedDate: ts("2023-06-01"), CloseDate: ts("2023-01-01"),
	})
	rep := report.New("test")

	require.NoError(t, Post(ds, rep, 10))

	require.Len(t, rep.Violations, 1)
	assert.Equal(t, model.EntityOpportunity, rep.Violations[0].Entity)
	assert.Equal(t, "o-bad", rep.Violations[0].RecordID)
	assert.Equal(t, RuleDateRange, rep.Violations[0].Rule)

	// The offender is excluded, the valid record survives.
	require.Len(t, ds.Opportunities, 1)
	assert.Equal(t, "o1", ds.Opportunities[0].ID)
}

func TestPost_DanglingReferenceExcluded(t *testing.T) {
	ds := consistent()
	ds.Opportunities = append(ds.Opportunities, model.Opportunity{
		ID: "o-dangling", Name: "Ghost", ContactID: "c-gone", CompanyID: "co1", Stage: "Open",
		CreatedDate: ts("2023-01-01"),
	})
	ds.Activities = append(ds.Activities, model.Activity{
		ID: "a-dangling", ContactID: "c1", OpportunityID: "o-gone", Type: "Call", Subject: "x", Timestamp: ts("2023-01-01"),
	})
	rep := report.New("test")

	require.NoError(t, Post(ds, rep, 10))

	require.Len(t, rep.Violations, 2)
	assert.Len(t, ds.Opportunities, 1)
	assert.Len(t, ds.Activities, 2)
	for _, v := range rep.Violations {
		assert.Equal(t, RuleDanglingReference, v.Rule)
	}
}

func TestPost_CascadeThroughExclusions(t *testing.T) {
	// The duplicate company is excluded; the opportunity referencing it
	// and the activity referencing that opportunity fall in the same pass.
	ds := consistent()
	ds.Companies = append(ds.Companies, model.Company{
		ID: "co-dup", Name: "Acme", Domain: "acme2.com", CreatedDate: ts("2020-01-01"),
	})
	ds.Opportunities = append(ds.Opportunities, model.Opportunity{
		ID: "o2", Name: "Chained", ContactID: "c1", CompanyID: "co-dup", Stage: "Open",
		CreatedDate: ts("2023-01-01"),
	})
	ds.Activities = append(ds.Activities, model.Activity{
		ID: "a3", ContactID: "c1", OpportunityID: "o2", Type: "Call", Subject: "x", Timestamp: ts("2023-01-01"),
	})
	rep := report.New("test")

	require.NoError(t, Post(ds, rep, 10))

	assert.Len(t, ds.Companies, 2)
	assert.Len(t, ds.Opportunities, 1)
	assert.Len(t, ds.Activities, 2)

	rules := map[string]string{}
	for _, v := range rep.Violations {
		rules[v.RecordID] = v.Rule
	}
	assert.Equal(t, RuleDuplicateName, rules["co-dup"])
	assert.Equal(t, RuleDanglingReference, rules["o2"])
	assert.Equal(t, RuleDanglingReference, rules["a3"])
}

func TestPost_UniquenessRules(t *testing.T) {
	ds := consistent()
	ds.Companies = append(ds.Companies, model.Company{
		ID: "co3", Name: "Gamma", Domain: "acme.com", CreatedDate: ts("2020-01-01"),
	})
	ds.Contacts = append(ds.Contacts,
		model.Contact{ID: "c3", LastName: "Poe", Email: "doe@acme.com", CreatedDate: ts("2022-01-01")},
		model.Contact{ID: "c4", LastName: "Noe", Email: "noe@beta.io", Phone: "+1-555-111-2222", CreatedDate: ts("2022-01-01")},
	)
	rep := report.New("test")

	require.NoError(t, Post(ds, rep, 10))

	rules := map[string]string{}
	for _, v := range rep.Violations {
		rules[v.RecordID] = v.Rule
	}
	assert.Equal(t, RuleDuplicateDomain, rules["co3"])
	assert.Equal(t, RuleDuplicateEmail, rules["c3"])
	assert.Equal(t, RuleDuplicatePhone, rules["c4"])
}

func TestPost_MissingRequiredReference(t *testing.T) {
	ds := consistent()
	ds.Opportunities = append(ds.Opportunities, model.Opportunity{
		ID: "o-null", Name: "Orphan", ContactID: "", CompanyID: "co1", Stage: "Open",
		CreatedDate: ts("2023-01-01"),
	})
	rep := report.New("test")

	require.NoError(t, Post(ds, rep, 10))

	require.Len(t, rep.Violations, 1)
	assert.Equal(t, RuleMissingReference, rep.Violations[0].Rule)
	assert.Equal(t, "contact_id", rep.Violations[0].Detail)
}

func TestPost_ThresholdExceeded(t *testing.T) {
	ds := consistent()
	for i := 0; i < 5; i++ {
		ds.Activities = append(ds.Activities, model.Activity{
			ID: "bad" + string(rune('a'+i)), ContactID: "nope", Type: "Call", Subject: "x", Timestamp: ts("2023-01-01"),
		})
	}
	rep := report.New("test")

	err := Post(ds, rep, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrThresholdExceeded))
	assert.Len(t, rep.Violations, 5)
}

func TestPost_ReferentialClosure(t *testing.T) {
	// After post-validation every surviving non-null reference resolves.
	ds := consistent()
	ds.Contacts = append(ds.Contacts, model.Contact{
		ID: "c-bad", LastName: "X", Email: "x@y.com", CompanyID: "co-gone", CreatedDate: ts("2022-01-01"),
	})
	ds.Opportunities = append(ds.Opportunities, model.Opportunity{
		ID: "o-bad", Name: "Y", ContactID: "c-bad", CompanyID: "co1", Stage: "Open", CreatedDate: ts("2023-01-01"),
	})

	require.NoError(t, Post(ds, report.New("test"), 100))

	companies := map[string]bool{}
	for _, c := range ds.Companies {
		companies[c.ID] = true
	}
	contacts := map[string]bool{}
	for _, c := range ds.Contacts {
		contacts[c.ID] = true
		if c.CompanyID != "" {
			assert.True(t, companies[c.CompanyID])
		}
	}
	opps := map[string]bool{}
	for _, o := range ds.Opportunities {
		opps[o.ID] = true
		assert.True(t, contacts[o.ContactID])
		assert.True(t, companies[o.CompanyID])
	}
	for _, a := range ds.Activities {
		if a.ContactID != "" {
			assert.True(t, contacts[a.ContactID])
		}
		if a.OpportunityID != "" {
			assert.True(t, opps[a.OpportunityID])
		}
	}
}
