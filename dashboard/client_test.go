package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddielth/sensor-monitor/config"
	"github.com/eddielth/sensor-monitor/model"
	"github.com/eddielth/sensor-monitor/storage"
)

var end = time.Date(2024, 5, 10, 8, 5, 0, 0, time.UTC)

type captured struct {
	path    string
	auth    string
	records []map[string]any
}

type fakeDashboard struct {
	mu       sync.Mutex
	requests []captured
	failPath string
}

func (f *fakeDashboard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var records []map[string]any
	_ = json.NewDecoder(r.Body).Decode(&records)

	f.mu.Lock()
	f.requests = append(f.requests, captured{path: r.URL.Path, auth: r.Header.Get("Authorization"), records: records})
	f.mu.Unlock()

	if r.URL.Path == f.failPath {
		http.Error(w, "dataset not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func summary(sensorType, id string, avg float64) model.Summary {
	return model.Summary{
		SensorID:          id,
		SensorType:        sensorType,
		AverageValue:      avg,
		MinValue:          avg - 1,
		MaxValue:          avg + 1,
		StandardDeviation: 0.5,
		Unit:              "C",
		Area:              model.AreaSouthwest,
		StartPeriod:       end.Add(-5 * time.Minute),
		EndPeriod:         end,
		SampleCount:       4,
	}
}

func newServer(t *testing.T, fake *fakeDashboard) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewRecord_StringifiesFields(t *testing.T) {
	rec := NewRecord(summary("temperature", "t1", 20))

	assert.Equal(t, "t1", rec.SensorID)
	assert.Equal(t, "20", rec.AverageValue)
	assert.Equal(t, "19", rec.MinValue)
	assert.Equal(t, "21", rec.MaxValue)
	assert.Equal(t, "0.5", rec.StandardDeviation)
	assert.Equal(t, "4", rec.SampleCount)
	assert.Equal(t, "false", rec.AlertTriggered)
	assert.Equal(t, "2024-05-10T08:05:00Z", rec.EndPeriod)
	assert.Equal(t, "2024-05-10T08:00:00Z", rec.StartPeriod)
}

func TestClient_SendPartitionsBySensorType(t *testing.T) {
	fake := &fakeDashboard{}
	srv := newServer(t, fake)

	c := NewClient(config.DashboardConfig{URL: srv.URL + "/datasets/{sensorType}/rows", APIKey: "secret"}, nil, 0)

	err := c.Send(context.Background(), []model.Summary{
		summary("temperature", "t1", 20),
		summary("humidity", "h1", 55),
		summary("temperature", "t2", 22),
	})
	require.NoError(t, err)

	require.Len(t, fake.requests, 2)
	assert.Equal(t, "/datasets/temperature/rows", fake.requests[0].path)
	assert.Len(t, fake.requests[0].records, 2)
	assert.Equal(t, "/datasets/humidity/rows", fake.requests[1].path)
	assert.Len(t, fake.requests[1].records, 1)

	for _, req := range fake.requests {
		assert.Equal(t, "Bearer secret", req.auth)
		for _, rec := range req.records {
			for field, v := range rec {
				assert.IsType(t, "", v, "field %s must be a string", field)
			}
			assert.Len(t, rec, 12)
		}
	}
}

func TestClient_NoAuthHeaderWithoutKey(t *testing.T) {
	fake := &fakeDashboard{}
	srv := newServer(t, fake)

	c := NewClient(config.DashboardConfig{URL: srv.URL + "/{sensorType}"}, nil, 0)
	require.NoError(t, c.Send(context.Background(), []model.Summary{summary("pressure", "p1", 1000)}))

	require.Len(t, fake.requests, 1)
	assert.Empty(t, fake.requests[0].auth)
}

func TestClient_FailingPartitionDoesNotBlockOthers(t *testing.T) {
	fake := &fakeDashboard{failPath: "/humidity"}
	srv := newServer(t, fake)

	c := NewClient(config.DashboardConfig{URL: srv.URL + "/{sensorType}"}, nil, 0)
	err := c.Send(context.Background(), []model.Summary{
		summary("humidity", "h1", 55),
		summary("temperature", "t1", 20),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	require.Len(t, fake.requests, 2)
	assert.Equal(t, "/temperature", fake.requests[1].path)
}

func TestClient_TransportFailureIsReported(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL + "/{sensorType}"
	srv.Close()

	c := NewClient(config.DashboardConfig{URL: target, Timeout: time.Second}, nil, 0)
	err := c.Send(context.Background(), []model.Summary{
		summary("temperature", "t1", 20),
		summary("humidity", "h1", 55),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "post temperature")
	assert.Contains(t, err.Error(), "post humidity")
}

func TestClient_EmptyInputIsNoop(t *testing.T) {
	fake := &fakeDashboard{}
	srv := newServer(t, fake)

	c := NewClient(config.DashboardConfig{URL: srv.URL + "/{sensorType}"}, nil, 0)
	assert.NoError(t, c.Send(context.Background(), nil))
	assert.Empty(t, fake.requests)
}

func TestClient_EscapesSensorType(t *testing.T) {
	fake := &fakeDashboard{}
	srv := newServer(t, fake)

	c := NewClient(config.DashboardConfig{URL: srv.URL + "/{sensorType}"}, nil, 0)
	require.NoError(t, c.Send(context.Background(), []model.Summary{summary("air quality", "a1", 3)}))

	require.Len(t, fake.requests, 1)
	assert.Equal(t, "/air quality", fake.requests[0].path)
}

func TestClient_PublishRecentUsesNewestSummaries(t *testing.T) {
	ctx := context.Background()
	fake := &fakeDashboard{}
	srv := newServer(t, fake)

	store := storage.NewMemoryStorage(0, 0)
	for i := 0; i < 5; i++ {
		s := summary("temperature", "t1", float64(i))
		s.EndPeriod = end.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveSummary(ctx, s))
	}

	c := NewClient(config.DashboardConfig{URL: srv.URL + "/{sensorType}"}, store, 3)
	c.PublishRecent(ctx)

	require.Len(t, fake.requests, 1)
	records := fake.requests[0].records
	require.Len(t, records, 3)
	assert.Equal(t, "4", records[0]["averageValue"])
	assert.Equal(t, "2", records[2]["averageValue"])
}

type brokenFinder struct{}

func (brokenFinder) FindRecentSummaries(context.Context, int) ([]model.Summary, error) {
	return nil, errors.New("query failed")
}

func TestClient_PublishRecentSwallowsErrors(t *testing.T) {
	fake := &fakeDashboard{}
	srv := newServer(t, fake)

	c := NewClient(config.DashboardConfig{URL: srv.URL + "/{sensorType}"}, brokenFinder{}, 0)
	assert.NotPanics(t, func() { c.PublishRecent(context.Background()) })
	assert.Empty(t, fake.requests)
}

func TestClient_DisabledWithoutURL(t *testing.T) {
	c := NewClient(config.DashboardConfig{}, brokenFinder{}, 0)

	assert.False(t, c.Enabled())
	assert.NotPanics(t, func() { c.PublishRecent(context.Background()) })
}
