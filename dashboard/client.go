package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/eddielth/sensor-monitor/config"
	"github.com/eddielth/sensor-monitor/logger"
	"github.com/eddielth/sensor-monitor/model"
)

// SensorTypePlaceholder is substituted in the configured URL per partition
const SensorTypePlaceholder = "{sensorType}"

// DefaultRecentLimit is how many summaries one push considers
const DefaultRecentLimit = 100

// SummaryFinder is the query side the client needs
type SummaryFinder interface {
	FindRecentSummaries(ctx context.Context, n int) ([]model.Summary, error)
}

// Record is the wire shape the dashboard ingests. Every non-string field is
// sent as its string representation.
type Record struct {
	SensorID          string `json:"sensorId"`
	SensorType        string `json:"sensorType"`
	AverageValue      string `json:"averageValue"`
	MinValue          string `json:"minValue"`
	MaxValue          string `json:"maxValue"`
	StandardDeviation string `json:"standardDeviation"`
	Unit              string `json:"unit"`
	Area              string `json:"area"`
	StartPeriod       string `json:"startPeriod"`
	EndPeriod         string `json:"endPeriod"`
	SampleCount       string `json:"sampleCount"`
	AlertTriggered    string `json:"alertTriggered"`
}

// NewRecord converts a summary into its wire record
func NewRecord(s model.Summary) Record {
	return Record{
		SensorID:          s.SensorID,
		SensorType:        s.SensorType,
		AverageValue:      formatFloat(s.AverageValue),
		MinValue:          formatFloat(s.MinValue),
		MaxValue:          formatFloat(s.MaxValue),
		StandardDeviation: formatFloat(s.StandardDeviation),
		Unit:              s.Unit,
		Area:              s.Area,
		StartPeriod:       s.StartPeriod.UTC().Format(time.RFC3339Nano),
		EndPeriod:         s.EndPeriod.UTC().Format(time.RFC3339Nano),
		SampleCount:       strconv.Itoa(s.SampleCount),
		AlertTriggered:    strconv.FormatBool(s.AlertTriggered),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Client pushes recent summaries to the dashboard, one request per sensor type
type Client struct {
	http   *resty.Client
	finder SummaryFinder
	url    string
	limit  int
}

// NewClient creates a dashboard client. An empty URL yields a client whose
// pushes are skipped.
func NewClient(cfg config.DashboardConfig, finder SummaryFinder, limit int) *Client {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	httpClient := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		httpClient.SetTimeout(cfg.Timeout)
	}
	if cfg.APIKey != "" {
		httpClient.SetAuthToken(cfg.APIKey)
	}

	return &Client{
		http:   httpClient,
		finder: finder,
		url:    cfg.URL,
		limit:  limit,
	}
}

// Enabled reports whether a dashboard URL is configured
func (c *Client) Enabled() bool {
	return c.url != ""
}

// PublishRecent loads the most recent summaries and sends them. Errors are
// logged, never returned.
func (c *Client) PublishRecent(ctx context.Context) {
	if !c.Enabled() {
		logger.Debug("dashboard url not configured, skipping push")
		return
	}

	summaries, err := c.finder.FindRecentSummaries(ctx, c.limit)
	if err != nil {
		logger.Errorw("failed to load recent summaries", "limit", c.limit, "error", err)
		return
	}

	if err := c.Send(ctx, summaries); err != nil {
		logger.Errorw("dashboard push incomplete", "error", err)
	}
}

// Send posts summaries partitioned by sensor type. A failing partition does
// not stop the others; the returned error joins every partition failure.
func (c *Client) Send(ctx context.Context, summaries []model.Summary) error {
	if len(summaries) == 0 {
		logger.Info("no summaries to send to dashboard")
		return nil
	}

	var errs []error
	types, partitions := partition(summaries)
	for _, sensorType := range types {
		if err := c.post(ctx, sensorType, partitions[sensorType]); err != nil {
			logger.Errorw("dashboard push failed",
				"sensor_type", sensorType,
				"records", len(partitions[sensorType]),
				"error", err)
			errs = append(errs, err)
			continue
		}
		logger.Infow("dashboard push succeeded",
			"sensor_type", sensorType,
			"records", len(partitions[sensorType]))
	}
	return errors.Join(errs...)
}

func (c *Client) post(ctx context.Context, sensorType string, records []Record) error {
	target := strings.ReplaceAll(c.url, SensorTypePlaceholder, url.PathEscape(sensorType))

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(records).
		Post(target)
	if err != nil {
		return fmt.Errorf("post %s: %w", sensorType, err)
	}

	if !resp.IsSuccess() {
		return fmt.Errorf("post %s: unexpected status %d: %s", sensorType, resp.StatusCode(), resp.String())
	}
	return nil
}

// partition groups records by sensor type in first-seen order
func partition(summaries []model.Summary) ([]string, map[string][]Record) {
	var types []string
	out := make(map[string][]Record)
	for _, s := range summaries {
		if _, ok := out[s.SensorType]; !ok {
			types = append(types, s.SensorType)
		}
		out[s.SensorType] = append(out[s.SensorType], NewRecord(s))
	}
	return types, out
}
