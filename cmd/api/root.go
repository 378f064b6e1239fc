package main

import (
	"fmt"

	"carrier-engine/internal/core/config"
	"carrier-engine/internal/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile string
	cfg        *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "carrier-engine",
	Short: "Carrier selection and shipment orchestration",
	Long: `carrier-engine picks a shipping carrier for each order, books the shipment
through the carrier's API, and keeps tracking and NDR records up to date.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			config.SetConfigFile(configFile)
		}

		loaded, err := config.Load(".")
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded

		if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}

		logger.Get().Debug("Configuration loaded",
			zap.String("command", cmd.Name()),
			zap.String("environment", cfg.Environment),
			zap.String("storage_driver", cfg.StorageDriver),
			zap.String("order_source", cfg.OrderSource),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "env file to load instead of ./.env")
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importPincodesCmd)
	rootCmd.AddCommand(refreshTrackingCmd)
	rootCmd.AddCommand(seedCmd)
}
