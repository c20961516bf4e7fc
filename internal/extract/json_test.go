package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crm-etl/internal/model"
)

func TestReadJSON(t *testing.T) {
	src := `[
		{"id": "a1", "duration_minutes": 30, "subject": "Intro call"},
		{"id": "a2", "duration_minutes": 45.5, "outcome": null, "is_done": true}
	]`

	table, err := readJSON(model.EntityActivity, strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, model.EntityActivity, table.Entity)
	// Columns are the sorted union of keys across elements.
	assert.Equal(t, []string{"duration_minutes", "id", "is_done", "outcome", "subject"}, table.Columns)
	require.Len(t, table.Rows, 2)

	// Numbers round-trip verbatim, null becomes the empty string.
	assert.Equal(t, "30", table.Rows[0]["duration_minutes"])
	assert.Equal(t, "45.5", table.Rows[1]["duration_minutes"])
	assert.Equal(t, "", table.Rows[1]["outcome"])
	assert.Equal(t, "true", table.Rows[1]["is_done"])
}

func TestReadJSON_NotArray(t *testing.T) {
	_, err := readJSON(model.EntityActivity, strings.NewReader(`{"id": "a1"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected JSON array")
}

func TestReadJSON_Empty(t *testing.T) {
	_, err := readJSON(model.EntityActivity, strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty JSON source")
}

func TestReadJSON_EmptyArray(t *testing.T) {
	table, err := readJSON(model.EntityActivity, strings.NewReader("[]"))
	require.NoError(t, err)
	assert.Empty(t, table.Rows)
	assert.Empty(t, table.Columns)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", stringify(nil))
	assert.Equal(t, "hello", stringify("hello"))
	assert.Equal(t, "false", stringify(false))
	assert.Equal(t, `["x"]`, stringify([]any{"x"}))
}
