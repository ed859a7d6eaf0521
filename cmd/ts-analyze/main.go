package main

import (
	"TrialStats/internal/config"
	"TrialStats/internal/logger"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ts-analyze",
	Short: "Analyze producer/consumer trial logs.",
	Long: `ts-analyze reads the network counter logs of paired producer/consumer ` +
		`trials, computes payload loss and protocol overhead per network ` +
		`condition, and builds the cumulative bandwidth curve of each protocol.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		level, err := logger.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger.InitLogger(level)
		logger.Info("Configuration loaded successfully.")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to the config file")
	rootCmd.AddCommand(runCmd, summaryCmd, bandwidthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
