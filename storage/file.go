package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/eddielth/sensor-monitor/logger"
	"github.com/eddielth/sensor-monitor/model"
)

// FileStorage archives records as JSON lines, one file per kind, sensor
// type and UTC day: <base>/<kind>/<sensorType>/<yyyy-mm-dd>.jsonl
type FileStorage struct {
	basePath string
	mu       sync.Mutex
}

// NewFileStorage creates the base directory and returns the archive
func NewFileStorage(basePath string) (*FileStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create dir %s failed: %w", basePath, err)
	}

	logger.Info("init file storage: %s", basePath)
	return &FileStorage{
		basePath: basePath,
	}, nil
}

// StoreReading appends r to the readings archive
func (fs *FileStorage) StoreReading(_ context.Context, r model.Reading) error {
	return fs.appendLine("readings", r.SensorType, r.Timestamp, r)
}

// StoreSummary appends s to the summaries archive
func (fs *FileStorage) StoreSummary(_ context.Context, s model.Summary) error {
	return fs.appendLine("summaries", s.SensorType, s.EndPeriod, s)
}

func (fs *FileStorage) appendLine(kind, sensorType string, at time.Time, v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("serialize %s failed: %w", kind, err)
	}
	line = append(line, '\n')

	dir := filepath.Join(fs.basePath, kind, safePathSegment(sensorType))
	filename := filepath.Join(dir, at.UTC().Format("2006-01-02")+".jsonl")

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir %s failed: %w", dir, err)
	}

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open file %s failed: %w", filename, err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("write file %s failed: %w", filename, err)
	}

	logger.Debug("appended %s record to %s", kind, filename)
	return nil
}

// safePathSegment keeps sensor types from escaping the archive directory
func safePathSegment(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" || strings.Trim(s, "_") == "" {
		return "unknown"
	}
	return s
}

// Close implements Mirror
func (fs *FileStorage) Close() error {
	return nil
}
