package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crm-etl/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "crm-etl",
	Short: "CRM extract cleaning and load pipeline",
	Long:  "Ingests CRM extracts (companies, contacts, opportunities, activities), standardizes fields, merges duplicate contacts, infers missing activity-opportunity links, and loads the result transactionally.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
