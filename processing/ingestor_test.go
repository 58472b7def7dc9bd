package processing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddielth/sensor-monitor/alert"
	"github.com/eddielth/sensor-monitor/model"
	"github.com/eddielth/sensor-monitor/storage"
)

type recordingStore struct {
	saved []model.Reading
	err   error
}

func (s *recordingStore) SaveReading(_ context.Context, r model.Reading) error {
	s.saved = append(s.saved, r)
	return s.err
}

func TestIngestor_StampsMissingTimestamp(t *testing.T) {
	store := storage.NewMemoryStorage(0, 0)
	ing := NewIngestor(store, alert.NewEvaluator(alert.DefaultThresholds()), false)

	r := &model.Reading{SensorID: "t1", SensorType: "temperature", Value: 20}
	ing.Ingest(context.Background(), r)

	after := time.Now()
	require.False(t, r.Timestamp.IsZero())
	assert.False(t, r.Timestamp.After(after))

	stored, err := store.FindReadingsBetween(context.Background(), r.Timestamp, r.Timestamp)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.False(t, stored[0].Timestamp.IsZero())
	assert.False(t, stored[0].Timestamp.After(after))
}

func TestIngestor_KeepsSourceTimestamp(t *testing.T) {
	store := &recordingStore{}
	ing := NewIngestor(store, alert.NewEvaluator(alert.DefaultThresholds()), false)
	ing.now = func() time.Time { return t0.Add(time.Hour) }

	r := &model.Reading{SensorID: "t1", SensorType: "temperature", Value: 20, Timestamp: t0}
	ing.Ingest(context.Background(), r)

	require.Len(t, store.saved, 1)
	assert.Equal(t, t0, store.saved[0].Timestamp)
}

func TestIngestor_PersistsBeforeEvaluating(t *testing.T) {
	store := &recordingStore{}
	ing := NewIngestor(store, alert.NewEvaluator(alert.DefaultThresholds()), false)

	r := &model.Reading{SensorID: "t1", SensorType: "temperature", Value: 99, Timestamp: t0}
	ing.Ingest(context.Background(), r)

	require.Len(t, store.saved, 1)
	assert.Empty(t, store.saved[0].Status, "stored row is written before evaluation")
	assert.Equal(t, model.StatusAlert, r.Status)
}

func TestIngestor_EvaluateBeforePersist(t *testing.T) {
	store := &recordingStore{}
	ing := NewIngestor(store, alert.NewEvaluator(alert.DefaultThresholds()), true)

	ing.Ingest(context.Background(), &model.Reading{SensorID: "t1", SensorType: "temperature", Value: 99, Timestamp: t0})
	ing.Ingest(context.Background(), &model.Reading{SensorID: "t1", SensorType: "temperature", Value: 20, Timestamp: t0})

	require.Len(t, store.saved, 2)
	assert.Equal(t, model.StatusAlert, store.saved[0].Status)
	assert.Equal(t, model.StatusNormal, store.saved[1].Status)
}

func TestIngestor_StoreFailureIsSwallowed(t *testing.T) {
	store := &recordingStore{err: errors.New("db down")}
	ing := NewIngestor(store, alert.NewEvaluator(alert.DefaultThresholds()), false)

	r := &model.Reading{SensorID: "t1", SensorType: "humidity", Value: 10, Timestamp: t0}
	assert.NotPanics(t, func() { ing.Ingest(context.Background(), r) })
	assert.Equal(t, model.StatusAlert, r.Status, "evaluation still runs")
}
