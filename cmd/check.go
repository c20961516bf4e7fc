package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crm-etl/internal/config"
	"github.com/sells-group/crm-etl/internal/pipeline"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the pipeline without loading (dry run)",
	Long:  "Extracts, validates, standardizes, dedups, and links, reporting every flag and violation, but leaves the destination untouched.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		mapping, err := config.LoadMapping(cfg.Source.MappingPath)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		p := pipeline.New(cfg, mapping, st)
		p.DryRun = true

		rep, runErr := p.Run(ctx)
		if rep != nil && cfg.Report.Path != "" {
			if err := rep.WriteFile(cfg.Report.Path); err != nil {
				zap.L().Warn("failed to write run report", zap.Error(err))
			}
		}
		if runErr != nil {
			return eris.Wrap(runErr, "check")
		}

		zap.L().Info("check complete",
			zap.String("run_id", rep.RunID),
			zap.Int("flags", len(rep.Flags)),
			zap.Int("violations", len(rep.Violations)),
			zap.Int("unlinked", rep.Unlinked),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
