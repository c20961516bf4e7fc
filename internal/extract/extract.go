// Package extract reads CRM source files (CSV or JSON) into raw tabular
// record sets and binds them to typed models after validation.
package extract

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/crm-etl/internal/config"
	"github.com/sells-group/crm-etl/internal/model"
)

// Table is one entity's raw record set: the column names found in the
// source plus rows keyed by column name. Values stay strings until the
// standardizer has run.
type Table struct {
	Entity  model.Entity
	Columns []string
	Rows    []map[string]string
}

// Tables holds the raw record sets for all four entities.
type Tables map[model.Entity]*Table

// ReadFile parses a single source file, choosing the parser by extension.
func ReadFile(entity model.Entity, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: open %s", path)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return readCSV(entity, f)
	case ".json":
		return readJSON(entity, f)
	default:
		return nil, eris.Errorf("extract: %s: unsupported file extension %q", entity, ext)
	}
}

// ReadAll reads the four entity source files named by the mapping. The
// files are independent, so they are read concurrently; each goroutine
// owns its own table and the result map is assembled after all finish.
func ReadAll(dir string, m *config.Mapping) (Tables, error) {
	results := make([]*Table, len(model.Entities))

	var g errgroup.Group
	for i, entity := range model.Entities {
		em := m.Entities[entity]
		path := filepath.Join(dir, em.File)
		g.Go(func() error {
			t, err := ReadFile(entity, path)
			if err != nil {
				return err
			}
			results[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tables := make(Tables, len(results))
	for _, t := range results {
		tables[t.Entity] = t
	}
	return tables, nil
}
