package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crm-etl/internal/config"
	"github.com/sells-group/crm-etl/internal/pipeline"
)

var runReportPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full ETL pipeline",
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
		rep, runErr := p.Run(ctx)

		reportPath := runReportPath
		if reportPath == "" {
			reportPath = cfg.Report.Path
		}
		if rep != nil && reportPath != "" {
			if err := rep.WriteFile(reportPath); err != nil {
				zap.L().Warn("failed to write run report", zap.Error(err))
			}
		}

		if runErr != nil {
			return eris.Wrap(runErr, "run")
		}

		zap.L().Info("run complete",
			zap.String("run_id", rep.RunID),
			zap.Int("flags", len(rep.Flags)),
			zap.Int("violations", len(rep.Violations)),
			zap.Int("linked", rep.Linked),
			zap.String("report", reportPath),
		)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runReportPath, "report", "", "run report output path (overrides config)")
	rootCmd.AddCommand(runCmd)
}
