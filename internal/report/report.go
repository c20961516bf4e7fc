// Package report accumulates data-quality findings across a pipeline run.
// The report is the principal observable output of a run besides the
// loaded data: every flagged field, excluded record, merge, and link
// outcome lands here rather than in an error return.
package report

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-etl/internal/model"
)

// Flag is a non-fatal annotation on a single field of a record.
type Flag struct {
	Entity   model.Entity `json:"entity"`
	RecordID string       `json:"record_id"`
	Field    string       `json:"field"`
	Value    string       `json:"value,omitempty"`
	Reason   string       `json:"reason"`
}

// Violation records a post-validation rule failure. The offending record
// is excluded from the load.
type Violation struct {
	Entity   model.Entity `json:"entity"`
	RecordID string       `json:"record_id"`
	Rule     string       `json:"rule"`
	Detail   string       `json:"detail,omitempty"`
}

// Merge records one contact collapsed into another during dedup.
type Merge struct {
	Email       string   `json:"email"`
	RetainedID  string   `json:"retained_id"`
	DiscardedID []string `json:"discarded_ids"`
	Repointed   int      `json:"repointed_refs"`
}

// StageTiming records wall time for one pipeline stage.
type StageTiming struct {
	Stage      string `json:"stage"`
	DurationMS int64  `json:"duration_ms"`
}

// Report is the structured outcome of one pipeline run.
type Report struct {
	RunID      string               `json:"run_id"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Flags      []Flag               `json:"flags,omitempty"`
	Violations []Violation          `json:"violations,omitempty"`
	Merges     []Merge              `json:"merges,omitempty"`
	Linked     int                  `json:"activities_linked"`
	Unlinked   int                  `json:"activities_unlinked"`
	Loaded     map[model.Entity]int `json:"loaded,omitempty"`
	Stages     []StageTiming        `json:"stages,omitempty"`
	FatalError string               `json:"fatal_error,omitempty"`
}

// New creates a report for the given run id.
func New(runID string) *Report {
	return &Report{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		Loaded:    map[model.Entity]int{},
	}
}

// AddFlag appends a field-level quality flag.
func (r *Report) AddFlag(entity model.Entity, recordID, field, value, reason string) {
	r.Flags = append(r.Flags, Flag{Entity: entity, RecordID: recordID, Field: field, Value: value, Reason: reason})
}

// AddViolation appends a post-validation violation.
func (r *Report) AddViolation(entity model.Entity, recordID, rule, detail string) {
	r.Violations = append(r.Violations, Violation{Entity: entity, RecordID: recordID, Rule: rule, Detail: detail})
}

// AddStage records a stage timing.
func (r *Report) AddStage(stage string, d time.Duration) {
	r.Stages = append(r.Stages, StageTiming{Stage: stage, DurationMS: d.Milliseconds()})
}

// Finish stamps the end time.
func (r *Report) Finish() {
	r.FinishedAt = time.Now().UTC()
}

// WriteFile writes the report as indented JSON.
func (r *Report) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return eris.Wrap(err, "report: marshal")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "report: write %s", path)
	}
	return nil
}
