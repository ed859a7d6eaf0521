package main

import (
	"TrialStats/internal/core/model"
	"TrialStats/internal/engine/manager"
	"TrialStats/internal/logger"
	"TrialStats/internal/writer"
	"fmt"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Analyze every protocol and hand the batch to the configured writers.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Build writers and alerter
		mgr, err := manager.NewManager(cfg)
		if err != nil {
			return fmt.Errorf("failed to create manager: %w", err)
		}
		defer func() {
			if err := mgr.Close(); err != nil {
				logger.Errorf("%v", err)
			}
		}()

		// 2. Analyze, write, alert
		batch, err := mgr.Run()
		logger.Infof("Batch %s finished with %d report(s).", batch.ID, len(batch.Reports))
		return err
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary <protocol>",
	Short: "Print the per-condition summary of one protocol.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := analyzeOne(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Protocol: %s\n\n", report.Protocol)
		return writer.WriteConditionTable(cmd.OutOrStdout(), report.Conditions)
	},
}

var bandwidthCmd = &cobra.Command{
	Use:   "bandwidth <protocol>",
	Short: "Print the cumulative bandwidth series of one protocol.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := analyzeOne(args[0])
		if err != nil {
			return err
		}
		return writer.WriteBandwidthTable(cmd.OutOrStdout(), report)
	},
}

func analyzeOne(name string) (*model.Report, error) {
	a := manager.NewAnalyzer(cfg)
	p, ok := a.Protocol(name)
	if !ok {
		return nil, fmt.Errorf("protocol '%s' is not configured", name)
	}
	return a.AnalyzeProtocol(p)
}
