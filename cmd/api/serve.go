package main

import (
	"os"
	"os/signal"
	"syscall"

	"carrier-engine/internal/core/logger"
	"carrier-engine/internal/core/server"
	carrierhandler "carrier-engine/internal/features/carriers/handler"
	orderhandler "carrier-engine/internal/features/orders/handler"
	settingshandler "carrier-engine/internal/features/settings/handler"
	shipmenthandler "carrier-engine/internal/features/shipments/handler"
	"carrier-engine/internal/jobs"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scheduled jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		l := logger.Get()
		l.Info("Application starting",
			zap.String("environment", cfg.Environment),
			zap.String("log_level", cfg.LogLevel),
		)

		app, err := buildApplication(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.close()

		srv := server.New(cfg)

		orderhandler.NewOrderHandler(app.orders).Register(srv.App)
		settingshandler.NewSettingsHandler(app.settings).Register(srv.App)
		carrierhandler.NewCarrierHandler(app.carriers).Register(srv.App)
		shipmenthandler.NewShipmentHandler(app.orchestrator, app.ndr, app.orders, app.engine, app.rules).Register(srv.App)

		jobManager := jobs.NewJobManager(app.orchestrator, cfg.Jobs.TrackingRefreshSchedule, cfg.Carriers.Timeout*10)
		if err := jobManager.StartAll(); err != nil {
			return err
		}
		defer jobManager.StopAll()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Run()
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if err != nil {
				l.Error("Server failed", zap.Error(err))
				return err
			}
		case sig := <-quit:
			l.Info("Shutting down", zap.String("signal", sig.String()))
			if err := srv.Shutdown(); err != nil {
				l.Error("Server shutdown failed", zap.Error(err))
				return err
			}
		}

		l.Info("Server stopped")
		return nil
	},
}
