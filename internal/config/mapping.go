package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/crm-etl/internal/model"
)

// EntityMapping describes one entity's source file and field roles.
type EntityMapping struct {
	File          string   `yaml:"file"`           // file name under source.dir, extension selects the parser
	Table         string   `yaml:"table"`          // destination table name
	SourceColumns []string `yaml:"source_columns"` // columns the extract must expose
	TableColumns  []string `yaml:"table_columns"`  // columns the destination table must expose
	TextFields    []string `yaml:"text_fields"`
	PhoneFields   []string `yaml:"phone_fields"`
	EmailFields   []string `yaml:"email_fields"`
	DateFields    []string `yaml:"date_fields"`
}

// Mapping is the full per-entity field-role configuration.
type Mapping struct {
	DedupKey string                         `yaml:"dedup_key"`
	Entities map[model.Entity]EntityMapping `yaml:"entities"`
}

// DefaultMapping returns the built-in mapping for the standard CRM
// extract layout. A mapping file overrides it wholesale.
func DefaultMapping() *Mapping {
	return &Mapping{
		DedupKey: "email",
		Entities: map[model.Entity]EntityMapping{
			model.EntityCompany: {
				File:  "companies.csv",
				Table: "companies",
				SourceColumns: []string{
					"id", "name", "domain", "industry", "size", "country",
					"created_date", "is_customer", "annual_revenue",
				},
				TableColumns: []string{
					"id", "name", "domain", "industry", "size", "country",
					"created_date", "is_customer", "annual_revenue",
				},
				TextFields: []string{"name", "industry", "country"},
				DateFields: []string{"created_date"},
			},
			model.EntityContact: {
				File:  "contacts.csv",
				Table: "contacts",
				SourceColumns: []string{
					"id", "first_name", "last_name", "email", "phone", "title",
					"status", "company_id", "created_date", "last_modified",
				},
				TableColumns: []string{
					"id", "first_name", "last_name", "email", "phone", "title",
					"status", "company_id", "created_date", "last_modified",
				},
				TextFields:  []string{"first_name", "last_name", "title", "status"},
				PhoneFields: []string{"phone"},
				EmailFields: []string{"email"},
				DateFields:  []string{"created_date", "last_modified"},
			},
			model.EntityOpportunity: {
				File:  "opportunities.csv",
				Table: "opportunities",
				SourceColumns: []string{
					"id", "name", "contact_id", "company_id", "amount", "stage",
					"probability", "created_date", "close_date", "is_closed",
				},
				TableColumns: []string{
					"id", "name", "contact_id", "company_id", "amount", "stage",
					"probability", "created_date", "close_date", "is_closed",
				},
				TextFields: []string{"name", "stage"},
				DateFields: []string{"created_date", "close_date"},
			},
			model.EntityActivity: {
				File:  "activities.json",
				Table: "activities",
				SourceColumns: []string{
					"id", "contact_id", "opportunity_id", "type", "subject",
					"timestamp", "duration_minutes", "outcome", "notes",
				},
				TableColumns: []string{
					"id", "contact_id", "opportunity_id", "type", "subject",
					"timestamp", "duration_minutes", "outcome", "notes",
				},
				TextFields: []string{"type", "subject", "outcome"},
				DateFields: []string{"timestamp"},
			},
		},
	}
}

// LoadMapping reads an entity mapping from a YAML file, or returns the
// built-in default when path is empty.
func LoadMapping(path string) (*Mapping, error) {
	if path == "" {
		return DefaultMapping(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read mapping %s", path)
	}

	var m Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "config: parse mapping %s", path)
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Mapping) validate() error {
	if m.DedupKey == "" {
		return eris.New("config: mapping: dedup_key is required")
	}
	for _, entity := range model.Entities {
		em, ok := m.Entities[entity]
		if !ok {
			return eris.Errorf("config: mapping: missing entity %s", entity)
		}
		if em.File == "" {
			return eris.Errorf("config: mapping: %s: file is required", entity)
		}
		if em.Table == "" {
			return eris.Errorf("config: mapping: %s: table is required", entity)
		}
		if len(em.SourceColumns) == 0 {
			return eris.Errorf("config: mapping: %s: source_columns is required", entity)
		}
	}
	return nil
}
