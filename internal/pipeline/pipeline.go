// Package pipeline orchestrates the ETL stages: extract, pre-validate,
// standardize, dedup, link, post-validate, load. Stages run strictly in
// order; each consumes the complete output of the previous one.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crm-etl/internal/clean"
	"github.com/sells-group/crm-etl/internal/config"
	"github.com/sells-group/crm-etl/internal/dedup"
	"github.com/sells-group/crm-etl/internal/extract"
	"github.com/sells-group/crm-etl/internal/link"
	"github.com/sells-group/crm-etl/internal/model"
	"github.com/sells-group/crm-etl/internal/report"
	"github.com/sells-group/crm-etl/internal/store"
	"github.com/sells-group/crm-etl/internal/validate"
)

// Pipeline wires the transform stages to a config and a destination
// store. The transform stages operate on in-memory copies only; nothing
// is visible in the destination until the load commits.
type Pipeline struct {
	cfg     *config.Config
	mapping *config.Mapping
	store   store.Store
	// DryRun skips the load stage; everything up to and including
	// post-validation still runs.
	DryRun bool
}

// New creates a Pipeline.
func New(cfg *config.Config, mapping *config.Mapping, st store.Store) *Pipeline {
	return &Pipeline{cfg: cfg, mapping: mapping, store: st}
}

// Run executes one full ETL pass. The returned report is non-nil even
// when err is set; the caller decides where to write it.
func (p *Pipeline) Run(ctx context.Context) (*report.Report, error) {
	log := zap.L().With(zap.String("component", "pipeline"))

	run, err := p.store.CreateRun(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	rep := report.New(run.ID)
	log.Info("pipeline: run started", zap.String("run_id", run.ID))

	ds, err := p.transform(ctx, rep)
	if err == nil && !p.DryRun {
		err = p.load(ctx, rep, ds)
	}

	rep.Finish()

	status := store.RunStatusComplete
	if err != nil {
		status = store.RunStatusFailed
		rep.FatalError = err.Error()
	}
	if logErr := p.store.CompleteRun(ctx, run.ID, status, rep); logErr != nil {
		log.Warn("pipeline: failed to record run outcome", zap.Error(logErr))
	}

	if err != nil {
		log.Error("pipeline: run failed", zap.String("run_id", run.ID), zap.Error(err))
		return rep, err
	}

	log.Info("pipeline: run complete",
		zap.String("run_id", run.ID),
		zap.Int("flags", len(rep.Flags)),
		zap.Int("violations", len(rep.Violations)),
	)
	return rep, nil
}

// transform runs every stage up to and including post-validation.
func (p *Pipeline) transform(ctx context.Context, rep *report.Report) (*model.Dataset, error) {
	var tables extract.Tables
	err := p.stage(rep, "extract", func() error {
		var err error
		tables, err = extract.ReadAll(p.cfg.Source.Dir, p.mapping)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := p.stage(rep, "pre_validate", func() error {
		if err := validate.PreValidateSource(tables, p.mapping); err != nil {
			return err
		}
		return validate.PreValidateTables(ctx, p.store, p.mapping)
	}); err != nil {
		return nil, err
	}

	var ds *model.Dataset
	if err := p.stage(rep, "standardize", func() error {
		clean.ApplyAll(tables, p.mapping, rep)
		var err error
		ds, err = extract.Bind(tables, rep)
		return err
	}); err != nil {
		return nil, err
	}

	_ = p.stage(rep, "dedup", func() error {
		dedup.Run(ds, rep)
		return nil
	})

	_ = p.stage(rep, "link", func() error {
		link.Run(ds, rep)
		return nil
	})

	if err := p.stage(rep, "post_validate", func() error {
		return validate.Post(ds, rep, p.cfg.Validate.MaxViolations)
	}); err != nil {
		return nil, err
	}

	return ds, nil
}

func (p *Pipeline) load(ctx context.Context, rep *report.Report, ds *model.Dataset) error {
	return p.stage(rep, "load", func() error {
		tables := store.Tables{}
		for entity, em := range p.mapping.Entities {
			tables[entity] = em.Table
		}
		if err := p.store.Load(ctx, ds, tables); err != nil {
			return err
		}
		rep.Loaded = ds.Counts()
		return nil
	})
}

// stage runs one pipeline stage, recording its timing on the report.
func (p *Pipeline) stage(rep *report.Report, name string, fn func() error) error {
	log := zap.L().With(zap.String("stage", name))
	start := time.Now()

	err := fn()
	elapsed := time.Since(start)
	rep.AddStage(name, elapsed)

	if err != nil {
		log.Error("pipeline: stage failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return err
	}
	log.Info("pipeline: stage complete", zap.Duration("elapsed", elapsed))
	return nil
}
