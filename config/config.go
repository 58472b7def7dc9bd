package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/eddielth/sensor-monitor/logger"
)

// EnvPrefix prefixes environment overrides, e.g. SENSORMON_MQTT_BROKER
const EnvPrefix = "SENSORMON"

// ErrMissingBroker is returned when no MQTT broker address is configured
var ErrMissingBroker = errors.New("mqtt.broker is required")

// Config represents the application configuration
type Config struct {
	MQTT         MQTTConfig             `mapstructure:"mqtt"`
	Aggregation  AggregationConfig      `mapstructure:"aggregation"`
	Alerts       AlertsConfig           `mapstructure:"alerts"`
	Ingest       IngestConfig           `mapstructure:"ingest"`
	Dashboard    DashboardConfig        `mapstructure:"dashboard"`
	Storage      StorageConfig          `mapstructure:"storage"`
	API          APIConfig              `mapstructure:"api"`
	Logger       LoggerConfig           `mapstructure:"logger"`
	Transformers map[string]Transformer `mapstructure:"transformers"`
}

// MQTTConfig represents the MQTT connection and dispatch configuration
type MQTTConfig struct {
	Broker         string        `mapstructure:"broker"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	Topics         []string      `mapstructure:"topics"`
	QoS            byte          `mapstructure:"qos"`
	QueueSize      int           `mapstructure:"queue_size"`
	Workers        int           `mapstructure:"workers"`
	EnqueueTimeout time.Duration `mapstructure:"enqueue_timeout"`
}

// AggregationConfig controls the periodic batch job
type AggregationConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	RecentLimit int           `mapstructure:"recent_limit"`
}

// Threshold is a min/max bound for one sensor type
type Threshold struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// AlertsConfig holds per-type bounds and the critical battery level
type AlertsConfig struct {
	CriticalBattery int                  `mapstructure:"critical_battery"`
	Thresholds      map[string]Threshold `mapstructure:"thresholds"`
}

// IngestConfig tunes the ingestion path
type IngestConfig struct {
	EvaluateBeforePersist bool `mapstructure:"evaluate_before_persist"`
}

// DashboardConfig is the outbound analytics endpoint. URL may contain {sensorType}.
type DashboardConfig struct {
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StorageConfig represents storage configuration
type StorageConfig struct {
	Primary  PrimaryStorageConfig  `mapstructure:"primary"`
	Memory   MemoryStorageConfig   `mapstructure:"memory"`
	File     FileStorageConfig     `mapstructure:"file"`
	InfluxDB InfluxDBStorageConfig `mapstructure:"influxdb"`
}

// PrimaryStorageConfig selects the queryable repository: memory, mysql or postgresql
type PrimaryStorageConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

// MemoryStorageConfig bounds the in-process repository
type MemoryStorageConfig struct {
	MaxReadings  int `mapstructure:"max_readings"`
	MaxSummaries int `mapstructure:"max_summaries"`
}

// FileStorageConfig represents the JSON lines archive
type FileStorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// InfluxDBStorageConfig represents the time-series archive
type InfluxDBStorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Org     string `mapstructure:"org"`
	Bucket  string `mapstructure:"bucket"`
}

// APIConfig represents the read/ops HTTP API
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggerConfig represents log configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	Console    bool   `mapstructure:"console"`
}

// Transformer represents a payload normalization script
type Transformer struct {
	ScriptPath string `mapstructure:"script_path"`
	ScriptCode string `mapstructure:"script_code"`
}

// ConfigChangeCallback is called with the new configuration after a file change
type ConfigChangeCallback func(cfg *Config) error

// setDefaults also registers every key that may come only from the
// environment, since AutomaticEnv ignores keys viper has never seen.
func setDefaults(v *viper.Viper) {
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topics", []string{"sensors/#"})
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.queue_size", 256)
	v.SetDefault("mqtt.workers", 4)
	v.SetDefault("mqtt.enqueue_timeout", time.Second)

	v.SetDefault("aggregation.interval", 5*time.Minute)
	v.SetDefault("aggregation.recent_limit", 100)

	v.SetDefault("alerts.critical_battery", 10)
	v.SetDefault("alerts.thresholds.temperature.min", 10.0)
	v.SetDefault("alerts.thresholds.temperature.max", 35.0)
	v.SetDefault("alerts.thresholds.humidity.min", 20.0)
	v.SetDefault("alerts.thresholds.humidity.max", 80.0)
	v.SetDefault("alerts.thresholds.pressure.min", 950.0)
	v.SetDefault("alerts.thresholds.pressure.max", 1050.0)

	v.SetDefault("ingest.evaluate_before_persist", false)

	v.SetDefault("dashboard.url", "")
	v.SetDefault("dashboard.api_key", "")
	v.SetDefault("dashboard.timeout", 10*time.Second)

	v.SetDefault("storage.primary.type", "memory")
	v.SetDefault("storage.primary.dsn", "")
	v.SetDefault("storage.memory.max_readings", 100000)
	v.SetDefault("storage.memory.max_summaries", 10000)
	v.SetDefault("storage.file.enabled", false)
	v.SetDefault("storage.influxdb.enabled", false)
	v.SetDefault("storage.influxdb.url", "")
	v.SetDefault("storage.influxdb.token", "")
	v.SetDefault("storage.influxdb.org", "")
	v.SetDefault("storage.file.path", "./data")
	v.SetDefault("storage.influxdb.bucket", "sensors")

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.addr", ":8080")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.file_path", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.console", true)
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig loads the configuration file at configPath, with environment overrides
func LoadConfig(configPath string) (*Config, error) {
	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}
	return decode(v)
}

// Validate reports configuration errors that must stop startup
func (c *Config) Validate() error {
	if strings.TrimSpace(c.MQTT.Broker) == "" {
		return ErrMissingBroker
	}
	if c.Aggregation.Interval <= 0 {
		return fmt.Errorf("aggregation.interval must be positive, got %s", c.Aggregation.Interval)
	}
	for name, t := range c.Alerts.Thresholds {
		if t.Min > t.Max {
			return fmt.Errorf("alerts.thresholds.%s: min %v greater than max %v", name, t.Min, t.Max)
		}
	}
	return nil
}

// WatchConfig watches the configuration file and calls callback after each write
func WatchConfig(configPath string, callback ConfigChangeCallback) error {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return err
	}

	v := newViper(absPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", absPath, err)
	}

	// editors often emit several writes per save
	var (
		mu               sync.Mutex
		lastChangeTime   time.Time
		debounceInterval = 2 * time.Second
	)

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) {
			return
		}

		mu.Lock()
		now := time.Now()
		if now.Sub(lastChangeTime) < debounceInterval {
			mu.Unlock()
			return
		}
		lastChangeTime = now
		mu.Unlock()

		logger.Info("config file changed: %s", e.Name)

		newConfig, err := decode(v)
		if err != nil {
			logger.Error("failed to parse updated config: %v", err)
			return
		}

		if err := callback(newConfig); err != nil {
			logger.Error("failed to apply updated config: %v", err)
			return
		}

		logger.Info("config updated and applied")
	})
	v.WatchConfig()

	return nil
}
