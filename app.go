package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/eddielth/sensor-monitor/alert"
	"github.com/eddielth/sensor-monitor/config"
	"github.com/eddielth/sensor-monitor/dashboard"
	"github.com/eddielth/sensor-monitor/logger"
	"github.com/eddielth/sensor-monitor/processing"
	"github.com/eddielth/sensor-monitor/storage"
	"github.com/eddielth/sensor-monitor/transformer"
)

// app holds the components shared by every command
type app struct {
	cfg          *config.Config
	store        *storage.Manager
	evaluator    *alert.Evaluator
	ingestor     *processing.Ingestor
	aggregator   *processing.Aggregator
	dashboard    *dashboard.Client
	transformers *transformer.Manager
}

// loadApp reads the configuration, configures logging and builds the pipeline
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.InitFromConfig(cfg.Logger.Level, cfg.Logger.FilePath, cfg.Logger.MaxSize, cfg.Logger.MaxBackups, cfg.Logger.Console); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	store, err := buildStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	transformers, err := transformer.NewManager(cfg.Transformers)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize transformers: %w", err)
	}

	evaluator := alert.NewEvaluator(thresholdsFromConfig(cfg.Alerts))
	dash := dashboard.NewClient(cfg.Dashboard, store, cfg.Aggregation.RecentLimit)
	if !dash.Enabled() {
		logger.Warn("dashboard.url is empty, summaries will not be pushed")
	}

	aggregator, err := processing.NewAggregator(store, processing.NewReducer(store), dash, cfg.Aggregation.Interval)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{
		cfg:          cfg,
		store:        store,
		evaluator:    evaluator,
		ingestor:     processing.NewIngestor(store, evaluator, cfg.Ingest.EvaluateBeforePersist),
		aggregator:   aggregator,
		dashboard:    dash,
		transformers: transformers,
	}, nil
}

// buildStorage opens the primary repository and any enabled mirrors
func buildStorage(ctx context.Context, cfg config.StorageConfig) (*storage.Manager, error) {
	var primary storage.Repository
	switch strings.ToLower(cfg.Primary.Type) {
	case "", "memory":
		logger.Infow("using in-memory primary storage",
			"maxReadings", cfg.Memory.MaxReadings,
			"maxSummaries", cfg.Memory.MaxSummaries)
		primary = storage.NewMemoryStorage(cfg.Memory.MaxReadings, cfg.Memory.MaxSummaries)
	default:
		db, err := storage.NewDatabaseStorage(strings.ToLower(cfg.Primary.Type), cfg.Primary.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize %s storage: %w", cfg.Primary.Type, err)
		}
		primary = db
	}

	manager := storage.NewManager(primary)

	if cfg.File.Enabled {
		fileStorage, err := storage.NewFileStorage(cfg.File.Path)
		if err != nil {
			manager.Close()
			return nil, fmt.Errorf("failed to initialize file storage: %w", err)
		}
		manager.AddMirror(fileStorage)
	}

	if cfg.InfluxDB.Enabled {
		influx, err := storage.NewInfluxDBStorage(ctx, cfg.InfluxDB)
		if err != nil {
			manager.Close()
			return nil, fmt.Errorf("failed to initialize InfluxDB storage: %w", err)
		}
		manager.AddMirror(influx)
	}

	return manager, nil
}

func thresholdsFromConfig(cfg config.AlertsConfig) alert.Thresholds {
	t := alert.Thresholds{
		CriticalBattery: cfg.CriticalBattery,
		Bounds:          make(map[string]alert.Bounds, len(cfg.Thresholds)),
	}
	for sensorType, b := range cfg.Thresholds {
		t.Bounds[sensorType] = alert.Bounds{Min: b.Min, Max: b.Max}
	}
	return t
}

// applyConfig applies the hot-reloadable subset of a changed configuration
func (a *app) applyConfig(newCfg *config.Config) error {
	if err := logger.SetLevel(newCfg.Logger.Level); err != nil {
		logger.Error("invalid logger.level %q: %v", newCfg.Logger.Level, err)
	}

	for sensorType, transformerCfg := range newCfg.Transformers {
		if err := a.transformers.ReloadTransformer(sensorType, transformerCfg); err != nil {
			logger.Error("failed to reload transformer %s: %v", sensorType, err)
		}
	}

	logger.Info("MQTT, storage and threshold changes take effect after restart")
	return nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		logger.Error("failed to close storage: %v", err)
	}
}
