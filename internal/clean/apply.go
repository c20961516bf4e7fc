package clean

import (
	"go.uber.org/zap"

	"github.com/sells-group/crm-etl/internal/config"
	"github.com/sells-group/crm-etl/internal/extract"
	"github.com/sells-group/crm-etl/internal/report"
)

// Apply standardizes one raw table in place according to the entity's
// field-role mapping. Identifier and reference fields are never part of
// a role mapping, so they pass through untouched. Failures are flagged
// on the report; nothing here is fatal.
func Apply(t *extract.Table, em config.EntityMapping, rep *report.Report) {
	log := zap.L().With(zap.String("entity", string(t.Entity)))
	flagged := 0

	for _, row := range t.Rows {
		id := row["id"]

		for _, f := range em.TextFields {
			row[f] = Text(row[f])
		}

		for _, f := range em.PhoneFields {
			norm, ok := Phone(row[f])
			if !ok {
				rep.AddFlag(t.Entity, id, f, row[f], "invalid phone number")
				flagged++
				continue
			}
			row[f] = norm
		}

		for _, f := range em.EmailFields {
			norm, ok := Email(row[f])
			row[f] = norm
			if !ok {
				rep.AddFlag(t.Entity, id, f, norm, "invalid email address")
				flagged++
			}
		}

		for _, f := range em.DateFields {
			norm, ok := Date(row[f])
			if !ok {
				rep.AddFlag(t.Entity, id, f, row[f], "unparsable date")
				flagged++
			}
			row[f] = norm
		}
	}

	log.Info("clean: standardized",
		zap.Int("rows", len(t.Rows)),
		zap.Int("flagged", flagged),
	)
}

// ApplyAll standardizes every entity table per the mapping.
func ApplyAll(tables extract.Tables, m *config.Mapping, rep *report.Report) {
	for entity, t := range tables {
		Apply(t, m.Entities[entity], rep)
	}
}
