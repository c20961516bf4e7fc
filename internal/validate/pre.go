package validate

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crm-etl/internal/config"
	"github.com/sells-group/crm-etl/internal/extract"
	"github.com/sells-group/crm-etl/internal/model"
)

// TableDescriber is the slice of the store the pre-validator needs.
type TableDescriber interface {
	TableColumns(ctx context.Context, table string) ([]string, error)
}

// PreValidateSource checks that every expected column is present in the
// extracted record set. Extra source columns are tolerated (and reported
// in the error should the check fail on missing ones); missing columns
// abort the run.
func PreValidateSource(tables extract.Tables, m *config.Mapping) error {
	for _, entity := range model.Entities {
		t, ok := tables[entity]
		if !ok {
			return eris.Wrapf(ErrColumnMismatch, "validate: no record set extracted for %s", entity)
		}

		missing, extra := diffColumns(t.Columns, m.Entities[entity].SourceColumns)
		if len(missing) > 0 {
			return eris.Wrapf(ErrColumnMismatch,
				"validate: %s source: missing columns [%s], extra columns [%s]",
				entity, strings.Join(missing, ", "), strings.Join(extra, ", "))
		}
	}
	return nil
}

// PreValidateTables checks that every destination table exposes the
// expected column set.
func PreValidateTables(ctx context.Context, st TableDescriber, m *config.Mapping) error {
	for _, entity := range model.Entities {
		em := m.Entities[entity]

		found, err := st.TableColumns(ctx, em.Table)
		if err != nil {
			return eris.Wrapf(err, "validate: describe table %s", em.Table)
		}

		missing, extra := diffColumns(found, em.TableColumns)
		if len(missing) > 0 {
			return eris.Wrapf(ErrColumnMismatch,
				"validate: %s table %s: missing columns [%s], extra columns [%s]",
				entity, em.Table, strings.Join(missing, ", "), strings.Join(extra, ", "))
		}

		zap.L().Debug("validate: table columns ok",
			zap.String("entity", string(entity)),
			zap.String("table", em.Table),
		)
	}
	return nil
}

// diffColumns returns expected columns absent from found, and found
// columns absent from expected, both sorted.
func diffColumns(found, expected []string) (missing, extra []string) {
	foundSet := make(map[string]bool, len(found))
	for _, c := range found {
		foundSet[c] = true
	}
	expectedSet := make(map[string]bool, len(expected))
	for _, c := range expected {
		expectedSet[c] = true
		if !foundSet[c] {
			missing = append(missing, c)
		}
	}
	for _, c := range found {
		if !expectedSet[c] {
			extra = append(extra, c)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}
