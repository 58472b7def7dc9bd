package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/eddielth/sensor-monitor/config"
	"github.com/eddielth/sensor-monitor/logger"
	"github.com/eddielth/sensor-monitor/model"
)

const (
	readingMeasurement = "sensor_reading"
	summaryMeasurement = "sensor_summary"
)

// InfluxDBStorage mirrors records into an InfluxDB bucket for dashboards
// that read time series directly.
type InfluxDBStorage struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewInfluxDBStorage connects, checks server health and returns the mirror
func NewInfluxDBStorage(ctx context.Context, cfg config.InfluxDBStorageConfig) (*InfluxDBStorage, error) {
	if cfg.URL == "" {
		return nil, errors.New("influxdb url is required")
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}
	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		client.Close()
		return nil, fmt.Errorf("InfluxDB health check failed: %s", msg)
	}

	logger.Info("connected to InfluxDB %s, bucket %s", cfg.URL, cfg.Bucket)
	return &InfluxDBStorage{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}, nil
}

// StoreReading writes one reading point
func (is *InfluxDBStorage) StoreReading(ctx context.Context, r model.Reading) error {
	return is.writeAPI.WritePoint(ctx, readingPoint(r))
}

// StoreSummary writes one summary point stamped at its EndPeriod
func (is *InfluxDBStorage) StoreSummary(ctx context.Context, s model.Summary) error {
	return is.writeAPI.WritePoint(ctx, summaryPoint(s))
}

func readingPoint(r model.Reading) *write.Point {
	tags := map[string]string{
		"sensor_id":   r.SensorID,
		"sensor_type": strings.ToLower(r.SensorType),
	}
	if r.Status != "" {
		tags["status"] = string(r.Status)
	}
	if r.Unit != "" {
		tags["unit"] = r.Unit
	}

	fields := map[string]interface{}{
		"value": r.Value,
	}
	if r.BatteryLevel != nil {
		fields["battery_level"] = *r.BatteryLevel
	}
	if r.Latitude != nil {
		fields["latitude"] = *r.Latitude
	}
	if r.Longitude != nil {
		fields["longitude"] = *r.Longitude
	}

	return influxdb2.NewPoint(readingMeasurement, tags, fields, r.Timestamp)
}

func summaryPoint(s model.Summary) *write.Point {
	tags := map[string]string{
		"sensor_id":   s.SensorID,
		"sensor_type": strings.ToLower(s.SensorType),
		"area":        s.Area,
	}
	if s.Unit != "" {
		tags["unit"] = s.Unit
	}

	fields := map[string]interface{}{
		"average_value":      s.AverageValue,
		"min_value":          s.MinValue,
		"max_value":          s.MaxValue,
		"standard_deviation": s.StandardDeviation,
		"sample_count":       s.SampleCount,
		"alert_triggered":    s.AlertTriggered,
		"window_seconds":     s.EndPeriod.Sub(s.StartPeriod).Seconds(),
	}

	return influxdb2.NewPoint(summaryMeasurement, tags, fields, s.EndPeriod)
}

// Close closes the InfluxDB client
func (is *InfluxDBStorage) Close() error {
	is.client.Close()
	logger.Info("InfluxDB connection closed")
	return nil
}
