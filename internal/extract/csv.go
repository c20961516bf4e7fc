package extract

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-etl/internal/model"
)

// readCSV parses a CSV source with a header row into a raw table.
func readCSV(entity model.Entity, r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // allow ragged rows, short rows pad to ""

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.Errorf("extract: %s: empty CSV source", entity)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "extract: %s: read CSV header", entity)
	}
	for i, col := range header {
		header[i] = strings.TrimSpace(col)
	}

	t := &Table{Entity: entity, Columns: header}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "extract: %s: read CSV row %d", entity, len(t.Rows)+2)
		}

		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
