// Package link infers missing activity-to-opportunity associations from
// contact ownership and temporal proximity.
package link

import (
	"go.uber.org/zap"

	"github.com/sells-group/crm-etl/internal/model"
	"github.com/sells-group/crm-etl/internal/report"
)

// Run fills the opportunity reference on activities that have a contact
// but no opportunity. The chosen candidate is the contact's opportunity
// with the most recent created_date at or before the activity timestamp
// that was not already closed when the activity occurred; ties on
// created_date go to the lowest id. An activity with no eligible
// candidate stays unlinked, which is not an error. No records are
// created or removed.
func Run(ds *model.Dataset, rep *report.Report) {
	byContact := map[string][]*model.Opportunity{}
	for i := range ds.Opportunities {
		opp := &ds.Opportunities[i]
		if opp.ContactID == "" {
			continue
		}
		byContact[opp.ContactID] = append(byContact[opp.ContactID], opp)
	}

	linked, unlinked := 0, 0
	for i := range ds.Activities {
		act := &ds.Activities[i]
		if act.OpportunityID != "" || act.ContactID == "" {
			continue
		}

		best := pick(byContact[act.ContactID], act)
		if best == nil {
			unlinked++
			rep.AddFlag(model.EntityActivity, act.ID, "opportunity_id", "",
				"no opportunity preceding activity for contact")
			continue
		}
		act.OpportunityID = best.ID
		linked++
	}

	rep.Linked = linked
	rep.Unlinked = unlinked

	zap.L().Info("link: opportunity references inferred",
		zap.Int("linked", linked),
		zap.Int("unlinked", unlinked),
	)
}

// pick returns the best candidate opportunity for an activity, or nil.
func pick(candidates []*model.Opportunity, act *model.Activity) *model.Opportunity {
	if act.Timestamp == nil {
		return nil
	}

	var best *model.Opportunity
	for _, opp := range candidates {
		if opp.CreatedDate == nil || opp.CreatedDate.After(*act.Timestamp) {
			continue
		}
		if opp.CloseDate != nil && opp.CloseDate.Before(*act.Timestamp) {
			continue
		}
		if best == nil {
			best = opp
			continue
		}
		switch {
		case opp.CreatedDate.After(*best.CreatedDate):
			best = opp
		case opp.CreatedDate.Equal(*best.CreatedDate) && opp.ID < best.ID:
			best = opp
		}
	}
	return best
}
