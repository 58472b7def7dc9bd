package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eddielth/sensor-monitor/api"
	"github.com/eddielth/sensor-monitor/config"
	"github.com/eddielth/sensor-monitor/logger"
	"github.com/eddielth/sensor-monitor/mqtt"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sensor monitor service",
	Long:  `Subscribe to the configured MQTT topics, ingest readings and run the periodic aggregation.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer logger.Close()
	defer a.close()

	mqttManager, err := mqtt.NewManager(a.cfg.MQTT, a.transformers, a.ingestor)
	if err != nil {
		return err
	}

	if err := a.aggregator.Start(ctx); err != nil {
		return err
	}
	defer a.aggregator.Stop()

	if err := mqttManager.Start(ctx); err != nil {
		return err
	}
	defer func() {
		mqttManager.Stop()
		if dropped := mqttManager.Dropped(); dropped > 0 {
			logger.Warn("%d MQTT messages were dropped because the ingest queue was full", dropped)
		}
	}()

	var server *api.Server
	if a.cfg.API.Enabled {
		server = api.NewServer(a.cfg.API.Addr, a.store, a.evaluator, a.aggregator, a.cfg.Aggregation.Interval)
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
	}

	if err := config.WatchConfig(configPath, a.applyConfig); err != nil {
		logger.Warn("failed to watch config file: %v", err)
	} else {
		logger.Info("watching config file %s for changes", configPath)
	}

	logger.Info("sensor monitor started, waiting for readings...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logger.Info("received %s, shutting down", sig)
	case <-ctx.Done():
	}

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("API server shutdown error: %v", err)
		}
	}

	// deferred calls stop MQTT first, then the scheduler, then storage
	return nil
}
