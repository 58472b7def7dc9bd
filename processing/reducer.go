package processing

import (
	"context"
	"math"

	"github.com/eddielth/sensor-monitor/logger"
	"github.com/eddielth/sensor-monitor/model"
)

// SummaryStore is the write side the reducer needs
type SummaryStore interface {
	SaveSummary(ctx context.Context, s model.Summary) error
}

// Reducer turns one sensor type's window of readings into per-sensor summaries
type Reducer struct {
	store SummaryStore
}

// NewReducer creates a reducer persisting into store
func NewReducer(store SummaryStore) *Reducer {
	return &Reducer{store: store}
}

// Reduce groups readings by sensor ID in first-seen order, summarizes each
// group and persists every summary as soon as it is built. A failed write is
// logged and the summary is left out of the result.
func (rd *Reducer) Reduce(ctx context.Context, sensorType string, readings []model.Reading) []model.Summary {
	ids, groups := groupBy(readings, func(r model.Reading) string { return r.SensorID })

	summaries := make([]model.Summary, 0, len(ids))
	for _, id := range ids {
		s := Summarize(sensorType, id, groups[id])

		if err := rd.store.SaveSummary(ctx, s); err != nil {
			logger.Errorw("failed to persist summary",
				"sensor_type", sensorType,
				"sensor_id", id,
				"error", err)
			continue
		}

		logger.Debugw("summary stored",
			"sensor_type", sensorType,
			"sensor_id", id,
			"samples", s.SampleCount,
			"average", s.AverageValue,
			"area", s.Area)
		summaries = append(summaries, s)
	}
	return summaries
}

// Summarize computes the statistics for one sensor's non-empty readings.
// StandardDeviation is the population deviation. AlertTriggered is never set
// here; aggregation does not re-derive alert state.
func Summarize(sensorType, sensorID string, readings []model.Reading) model.Summary {
	first := readings[0]
	s := model.Summary{
		SensorID:    sensorID,
		SensorType:  sensorType,
		MinValue:    first.Value,
		MaxValue:    first.Value,
		Unit:        first.Unit,
		Area:        DetermineArea(readings),
		StartPeriod: first.Timestamp,
		EndPeriod:   first.Timestamp,
		SampleCount: len(readings),
	}

	var sum float64
	for _, r := range readings {
		sum += r.Value
		s.MinValue = math.Min(s.MinValue, r.Value)
		s.MaxValue = math.Max(s.MaxValue, r.Value)
		if r.Timestamp.Before(s.StartPeriod) {
			s.StartPeriod = r.Timestamp
		}
		if r.Timestamp.After(s.EndPeriod) {
			s.EndPeriod = r.Timestamp
		}
	}
	// rounding in the sum can push the mean just outside [min, max]
	s.AverageValue = math.Max(s.MinValue, math.Min(s.MaxValue, sum/float64(len(readings))))

	var squares float64
	for _, r := range readings {
		d := r.Value - s.AverageValue
		squares += d * d
	}
	s.StandardDeviation = math.Sqrt(squares / float64(len(readings)))

	return s
}

// groupBy partitions readings by key and returns the keys in first-seen order
func groupBy(readings []model.Reading, key func(model.Reading) string) ([]string, map[string][]model.Reading) {
	var keys []string
	groups := make(map[string][]model.Reading)
	for _, r := range readings {
		k := key(r)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], r)
	}
	return keys, groups
}
