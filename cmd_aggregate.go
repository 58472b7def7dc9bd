package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eddielth/sensor-monitor/logger"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Run one aggregation cycle and exit",
	Long: `Aggregate the readings stored during the last interval, persist the
summaries and push the most recent ones to the dashboard.`,
	RunE: runAggregate,
}

func init() {
	rootCmd.AddCommand(aggregateCmd)
}

func runAggregate(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer logger.Close()
	defer a.close()

	if t := strings.ToLower(a.cfg.Storage.Primary.Type); t == "" || t == "memory" {
		logger.Warn("primary storage is in memory, the window will be empty")
	}

	n, err := a.aggregator.RunCycle(cmd.Context())
	if err != nil {
		return fmt.Errorf("aggregation failed: %w", err)
	}

	logger.Info("aggregation produced %d summaries", n)
	return nil
}
