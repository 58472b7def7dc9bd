package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eddielth/sensor-monitor/logger"
	"github.com/eddielth/sensor-monitor/model"
)

// Repository is the queryable store both the ingestion and the aggregation
// paths share.
type Repository interface {
	// SaveReading appends one raw reading
	SaveReading(ctx context.Context, r model.Reading) error
	// FindReadingsBetween returns readings with start <= timestamp <= end,
	// oldest first, ties in insertion order
	FindReadingsBetween(ctx context.Context, start, end time.Time) ([]model.Reading, error)
	// SaveSummary appends one aggregation result
	SaveSummary(ctx context.Context, s model.Summary) error
	// FindRecentSummaries returns up to n summaries by EndPeriod descending,
	// ties in insertion order
	FindRecentSummaries(ctx context.Context, n int) ([]model.Summary, error)
	// Close releases the underlying connection
	Close() error
}

// Mirror is a write-only archive that receives a copy of every record
type Mirror interface {
	StoreReading(ctx context.Context, r model.Reading) error
	StoreSummary(ctx context.Context, s model.Summary) error
	Close() error
}

// Manager fronts a primary Repository and fans writes out to mirrors.
// Mirror failures are logged and never reach the caller.
type Manager struct {
	primary Repository
	mirrors []Mirror
	mutex   sync.RWMutex
}

// NewManager creates a new storage manager
func NewManager(primary Repository, mirrors ...Mirror) *Manager {
	return &Manager{
		primary: primary,
		mirrors: mirrors,
	}
}

// AddMirror adds a new archive backend
func (m *Manager) AddMirror(mirror Mirror) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.mirrors = append(m.mirrors, mirror)
}

// SaveReading stores the reading in the primary repository and every mirror
func (m *Manager) SaveReading(ctx context.Context, r model.Reading) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	err := m.primary.SaveReading(ctx, r)

	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for _, mirror := range m.mirrors {
		if mErr := mirror.StoreReading(ctx, r); mErr != nil {
			logger.Error("failed to mirror reading %s: %v", r.ID, mErr)
		}
	}

	if err != nil {
		return fmt.Errorf("save reading %s: %w", r.SensorID, err)
	}
	return nil
}

// FindReadingsBetween queries the primary repository
func (m *Manager) FindReadingsBetween(ctx context.Context, start, end time.Time) ([]model.Reading, error) {
	return m.primary.FindReadingsBetween(ctx, start, end)
}

// SaveSummary stores the summary in the primary repository and every mirror
func (m *Manager) SaveSummary(ctx context.Context, s model.Summary) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	err := m.primary.SaveSummary(ctx, s)

	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for _, mirror := range m.mirrors {
		if mErr := mirror.StoreSummary(ctx, s); mErr != nil {
			logger.Error("failed to mirror summary %s: %v", s.ID, mErr)
		}
	}

	if err != nil {
		return fmt.Errorf("save summary %s/%s: %w", s.SensorType, s.SensorID, err)
	}
	return nil
}

// FindRecentSummaries queries the primary repository
func (m *Manager) FindRecentSummaries(ctx context.Context, n int) ([]model.Summary, error) {
	return m.primary.FindRecentSummaries(ctx, n)
}

// Close closes the primary repository and all mirrors
func (m *Manager) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var errs []error
	for _, mirror := range m.mirrors {
		if err := mirror.Close(); err != nil {
			logger.Error("failed to close storage mirror: %v", err)
			errs = append(errs, err)
		}
	}
	if err := m.primary.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
