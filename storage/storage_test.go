package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddielth/sensor-monitor/model"
)

// MockMirror records what it receives and can be told to fail
type MockMirror struct {
	readings  []model.Reading
	summaries []model.Summary
	err       error
	closed    bool
}

func (m *MockMirror) StoreReading(_ context.Context, r model.Reading) error {
	m.readings = append(m.readings, r)
	return m.err
}

func (m *MockMirror) StoreSummary(_ context.Context, s model.Summary) error {
	m.summaries = append(m.summaries, s)
	return m.err
}

func (m *MockMirror) Close() error {
	m.closed = true
	return m.err
}

// failingRepository wraps MemoryStorage and fails every write
type failingRepository struct {
	*MemoryStorage
}

func (f failingRepository) SaveReading(context.Context, model.Reading) error {
	return errors.New("disk full")
}

func (f failingRepository) SaveSummary(context.Context, model.Summary) error {
	return errors.New("disk full")
}

func TestManager_AssignsIDsAndMirrors(t *testing.T) {
	ctx := context.Background()
	primary := NewMemoryStorage(0, 0)
	mirror := &MockMirror{}
	m := NewManager(primary, mirror)

	require.NoError(t, m.SaveReading(ctx, model.Reading{SensorID: "s", Timestamp: base}))
	require.NoError(t, m.SaveSummary(ctx, model.Summary{SensorID: "s", EndPeriod: base}))

	readings, err := m.FindReadingsBetween(ctx, base, base)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.NotEmpty(t, readings[0].ID)

	require.Len(t, mirror.readings, 1)
	assert.Equal(t, readings[0].ID, mirror.readings[0].ID)

	summaries, err := m.FindRecentSummaries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.NotEmpty(t, summaries[0].ID)
	require.Len(t, mirror.summaries, 1)
}

func TestManager_MirrorFailureIsNotReturned(t *testing.T) {
	ctx := context.Background()
	broken := &MockMirror{err: errors.New("unreachable")}
	healthy := &MockMirror{}
	m := NewManager(NewMemoryStorage(0, 0), broken)
	m.AddMirror(healthy)

	assert.NoError(t, m.SaveReading(ctx, model.Reading{SensorID: "s", Timestamp: base}))
	assert.Len(t, healthy.readings, 1, "later mirrors still receive the record")
}

func TestManager_PrimaryFailureIsReturned(t *testing.T) {
	ctx := context.Background()
	mirror := &MockMirror{}
	m := NewManager(failingRepository{NewMemoryStorage(0, 0)}, mirror)

	assert.Error(t, m.SaveReading(ctx, model.Reading{SensorID: "s"}))
	assert.Error(t, m.SaveSummary(ctx, model.Summary{SensorID: "s"}))
	assert.Len(t, mirror.readings, 1, "archive still receives the record")
}

func TestManager_CloseClosesMirrors(t *testing.T) {
	mirror := &MockMirror{}
	m := NewManager(NewMemoryStorage(0, 0), mirror)

	require.NoError(t, m.Close())
	assert.True(t, mirror.closed)
}

func TestFileStorage_AppendsJSONLines(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	fs, err := NewFileStorage(dir)
	require.NoError(t, err)

	r := model.Reading{SensorID: "t1", SensorType: "Temperature", Value: 21.5, Timestamp: base}
	require.NoError(t, fs.StoreReading(ctx, r))
	require.NoError(t, fs.StoreReading(ctx, r))
	require.NoError(t, fs.StoreSummary(ctx, model.Summary{SensorID: "t1", SensorType: "../etc", EndPeriod: base}))

	data, err := os.ReadFile(filepath.Join(dir, "readings", "temperature", "2024-03-01.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"sensorId":"t1"`)

	_, err = os.Stat(filepath.Join(dir, "summaries", "___etc", "2024-03-01.jsonl"))
	assert.NoError(t, err, "sensor type is sanitized into a single path segment")
}

func TestSafePathSegment(t *testing.T) {
	assert.Equal(t, "humidity", safePathSegment("Humidity"))
	assert.Equal(t, "unknown", safePathSegment(""))
	assert.Equal(t, "unknown", safePathSegment("///"))
	assert.Equal(t, "co2_ppm", safePathSegment("co2 ppm"))
}

func TestInfluxPoints(t *testing.T) {
	battery := 50
	lat := 1.5
	p := readingPoint(model.Reading{
		SensorID:     "t1",
		SensorType:   "Temperature",
		Value:        20,
		BatteryLevel: &battery,
		Latitude:     &lat,
		Timestamp:    base,
		Status:       model.StatusAlert,
	})
	assert.Equal(t, readingMeasurement, p.Name())
	assert.Len(t, p.FieldList(), 3)
	assert.Len(t, p.TagList(), 3)
	assert.Equal(t, base, p.Time())

	sp := summaryPoint(model.Summary{
		SensorID:    "t1",
		SensorType:  "temperature",
		Area:        model.AreaUnknown,
		StartPeriod: base.Add(-time.Minute),
		EndPeriod:   base,
		SampleCount: 3,
	})
	assert.Equal(t, summaryMeasurement, sp.Name())
	assert.Equal(t, base, sp.Time())
	assert.Len(t, sp.FieldList(), 7)
}
