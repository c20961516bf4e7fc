package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crm-etl/internal/model"
)

func TestDefaultMapping(t *testing.T) {
	m := DefaultMapping()

	assert.Equal(t, "email", m.DedupKey)
	require.Len(t, m.Entities, 4)
	for _, entity := range model.Entities {
		em, ok := m.Entities[entity]
		require.True(t, ok, "missing %s", entity)
		assert.NotEmpty(t, em.File)
		assert.NotEmpty(t, em.Table)
		assert.NotEmpty(t, em.SourceColumns)
		assert.NotEmpty(t, em.TableColumns)
	}
	assert.Equal(t, "activities.json", m.Entities[model.EntityActivity].File)
	assert.Contains(t, m.Entities[model.EntityContact].PhoneFields, "phone")
	assert.Contains(t, m.Entities[model.EntityContact].EmailFields, "email")
}

func TestLoadMapping_EmptyPathReturnsDefault(t *testing.T) {
	m, err := LoadMapping("")
	require.NoError(t, err)
	assert.Equal(t, DefaultMapping(), m)
}

func TestLoadMapping_File(t *testing.T) {
	content := `
dedup_key: email
entities:
  companies:
    file: orgs.csv
    table: companies
    source_columns: [id, name]
    table_columns: [id, name]
    text_fields: [name]
  contacts:
    file: people.csv
    table: contacts
    source_columns: [id, email]
    table_columns: [id, email]
    email_fields: [email]
  opportunities:
    file: deals.csv
    table: opportunities
    source_columns: [id, name]
    table_columns: [id, name]
  activities:
    file: events.json
    table: activities
    source_columns: [id, type]
    table_columns: [id, type]
`
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := LoadMapping(path)
	require.NoError(t, err)

	assert.Equal(t, "orgs.csv", m.Entities[model.EntityCompany].File)
	assert.Equal(t, []string{"id", "email"}, m.Entities[model.EntityContact].SourceColumns)
}

func TestLoadMapping_MissingFile(t *testing.T) {
	_, err := LoadMapping(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadMapping_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing dedup key",
			content: "entities: {}\n",
			want:    "dedup_key is required",
		},
		{
			name:    "missing entity",
			content: "dedup_key: email\nentities: {}\n",
			want:    "missing entity companies",
		},
		{
			name: "missing file",
			content: `
dedup_key: email
entities:
  companies: {table: companies, source_columns: [id]}
  contacts: {file: c.csv, table: contacts, source_columns: [id]}
  opportunities: {file: o.csv, table: opportunities, source_columns: [id]}
  activities: {file: a.json, table: activities, source_columns: [id]}
`,
			want: "file is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "mapping.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := LoadMapping(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
