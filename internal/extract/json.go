package extract

import (
	"encoding/json"
	"io"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-etl/internal/model"
)

// readJSON parses a JSON array of flat objects into a raw table. The
// decoder streams elements rather than loading the whole array, and
// numbers are kept verbatim via json.Number so values round-trip as the
// source wrote them. Columns are the union of keys seen, sorted for
// determinism.
func readJSON(entity model.Entity, r io.Reader) (*Table, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	tok, err := decoder.Token()
	if err != nil {
		if err == io.EOF {
			return nil, eris.Errorf("extract: %s: empty JSON source", entity)
		}
		return nil, eris.Wrapf(err, "extract: %s: read opening token", entity)
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '[' {
		return nil, eris.Errorf("extract: %s: expected JSON array, got %v", entity, tok)
	}

	t := &Table{Entity: entity}
	seen := map[string]bool{}

	for decoder.More() {
		var obj map[string]any
		if err := decoder.Decode(&obj); err != nil {
			return nil, eris.Wrapf(err, "extract: %s: decode element %d", entity, len(t.Rows))
		}

		row := make(map[string]string, len(obj))
		for k, v := range obj {
			seen[k] = true
			row[k] = stringify(v)
		}
		t.Rows = append(t.Rows, row)
	}

	if _, err := decoder.Token(); err != nil && err != io.EOF {
		return nil, eris.Wrapf(err, "extract: %s: read closing token", entity)
	}

	t.Columns = make([]string, 0, len(seen))
	for k := range seen {
		t.Columns = append(t.Columns, k)
	}
	sort.Strings(t.Columns)

	return t, nil
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		// Nested structures are not part of the extract contract; keep
		// whatever the JSON encoder produces so the value is not lost.
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
