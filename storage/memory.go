package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eddielth/sensor-monitor/logger"
	"github.com/eddielth/sensor-monitor/model"
)

const (
	defaultMaxReadings  = 100000
	defaultMaxSummaries = 10000

	// evictions are logged on the first drop and then once per batch
	evictionLogEvery = 1000
)

// MemoryStorage keeps bounded buffers of readings and summaries in process.
// The oldest records are dropped once a buffer is full.
type MemoryStorage struct {
	mu               sync.RWMutex
	readings         []model.Reading
	summaries        []model.Summary
	maxReadings      int
	maxSummaries     int
	evictedReadings  int
	evictedSummaries int
}

// NewMemoryStorage creates a memory repository. Non-positive limits use defaults.
func NewMemoryStorage(maxReadings, maxSummaries int) *MemoryStorage {
	if maxReadings <= 0 {
		maxReadings = defaultMaxReadings
	}
	if maxSummaries <= 0 {
		maxSummaries = defaultMaxSummaries
	}
	return &MemoryStorage{
		maxReadings:  maxReadings,
		maxSummaries: maxSummaries,
	}
}

// SaveReading appends a copy of r
func (s *MemoryStorage) SaveReading(_ context.Context, r model.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.readings) >= s.maxReadings {
		dropped := s.readings[0]
		s.readings = s.readings[1:]
		s.evictedReadings++
		if s.evictedReadings%evictionLogEvery == 1 {
			logger.Warnw("memory storage full, dropping oldest reading",
				"sensorId", dropped.SensorID,
				"timestamp", dropped.Timestamp,
				"capacity", s.maxReadings,
				"evictedTotal", s.evictedReadings)
		}
	}
	s.readings = append(s.readings, r)
	return nil
}

// FindReadingsBetween returns readings inside [start, end]
func (s *MemoryStorage) FindReadingsBetween(_ context.Context, start, end time.Time) ([]model.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Reading
	for _, r := range s.readings {
		if r.Timestamp.Before(start) || r.Timestamp.After(end) {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// SaveSummary appends a copy of sum
func (s *MemoryStorage) SaveSummary(_ context.Context, sum model.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.summaries) >= s.maxSummaries {
		dropped := s.summaries[0]
		s.summaries = s.summaries[1:]
		s.evictedSummaries++
		if s.evictedSummaries%evictionLogEvery == 1 {
			logger.Warnw("memory storage full, dropping oldest summary",
				"sensorId", dropped.SensorID,
				"endPeriod", dropped.EndPeriod,
				"capacity", s.maxSummaries,
				"evictedTotal", s.evictedSummaries)
		}
	}
	s.summaries = append(s.summaries, sum)
	return nil
}

// FindRecentSummaries returns up to n summaries, newest EndPeriod first
func (s *MemoryStorage) FindRecentSummaries(_ context.Context, n int) ([]model.Summary, error) {
	s.mu.RLock()
	out := make([]model.Summary, len(s.summaries))
	copy(out, s.summaries)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EndPeriod.After(out[j].EndPeriod)
	})

	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out, nil
}

// Evicted reports how many readings and summaries were dropped for capacity
func (s *MemoryStorage) Evicted() (readings, summaries int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evictedReadings, s.evictedSummaries
}

// Close implements Repository
func (s *MemoryStorage) Close() error {
	return nil
}
