// Package dedup collapses duplicate contacts by normalized email and
// repairs the contact references in dependent record sets.
package dedup

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/crm-etl/internal/model"
	"github.com/sells-group/crm-etl/internal/report"
)

// Run deduplicates the contact set in place. Within each email group the
// retained record is the one with the most recent last_modified, ties
// broken by most recent created_date, then lowest id. References to
// discarded contacts in activities and opportunities are rewritten to
// the retained id before any contact is removed, so no dangling
// reference is ever observable. Contacts with an empty email are kept
// as-is; there is nothing to group them on.
func Run(ds *model.Dataset, rep *report.Report) {
	groups := map[string][]int{}
	for i, c := range ds.Contacts {
		if c.Email == "" {
			continue
		}
		groups[c.Email] = append(groups[c.Email], i)
	}

	remap := map[string]string{}
	discarded := map[string]bool{}

	emails := make([]string, 0, len(groups))
	for email := range groups {
		emails = append(emails, email)
	}
	sort.Strings(emails)

	for _, email := range emails {
		idxs := groups[email]
		if len(idxs) < 2 {
			continue
		}

		winner := idxs[0]
		for _, i := range idxs[1:] {
			if prefer(ds.Contacts[i], ds.Contacts[winner]) {
				winner = i
			}
		}

		merge := report.Merge{Email: email, RetainedID: ds.Contacts[winner].ID}
		for _, i := range idxs {
			if i == winner {
				continue
			}
			id := ds.Contacts[i].ID
			remap[id] = ds.Contacts[winner].ID
			discarded[id] = true
			merge.DiscardedID = append(merge.DiscardedID, id)
		}
		sort.Strings(merge.DiscardedID)

		merge.Repointed = repoint(ds, remap, merge.DiscardedID)
		rep.Merges = append(rep.Merges, merge)
	}

	if len(discarded) == 0 {
		return
	}

	retained := ds.Contacts[:0]
	for _, c := range ds.Contacts {
		if !discarded[c.ID] {
			retained = append(retained, c)
		}
	}
	ds.Contacts = retained

	zap.L().Info("dedup: contacts merged",
		zap.Int("groups", len(rep.Merges)),
		zap.Int("discarded", len(discarded)),
		zap.Int("retained", len(ds.Contacts)),
	)
}

// prefer reports whether contact a should be retained over b.
func prefer(a, b model.Contact) bool {
	if !equalTime(a.LastModified, b.LastModified) {
		return after(a.LastModified, b.LastModified)
	}
	if !equalTime(a.CreatedDate, b.CreatedDate) {
		return after(a.CreatedDate, b.CreatedDate)
	}
	return a.ID < b.ID
}

// after reports whether a is more recent than b, with nil oldest.
func after(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.After(*b)
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// repoint rewrites contact references for one merge group and returns
// the number of dependent records touched.
func repoint(ds *model.Dataset, remap map[string]string, discardedIDs []string) int {
	inGroup := make(map[string]bool, len(discardedIDs))
	for _, id := range discardedIDs {
		inGroup[id] = true
	}

	n := 0
	for i := range ds.Activities {
		if inGroup[ds.Activities[i].ContactID] {
			ds.Activities[i].ContactID = remap[ds.Activities[i].ContactID]
			n++
		}
	}
	for i := range ds.Opportunities {
		if inGroup[ds.Opportunities[i].ContactID] {
			ds.Opportunities[i].ContactID = remap[ds.Opportunities[i].ContactID]
			n++
		}
	}
	return n
}
