package processing

import (
	"context"
	"time"

	"github.com/eddielth/sensor-monitor/alert"
	"github.com/eddielth/sensor-monitor/logger"
	"github.com/eddielth/sensor-monitor/model"
)

// ReadingStore is the write side the ingestion path needs
type ReadingStore interface {
	SaveReading(ctx context.Context, r model.Reading) error
}

// Ingestor accepts one decoded reading at a time from the transport
type Ingestor struct {
	store         ReadingStore
	evaluator     *alert.Evaluator
	evaluateFirst bool
	now           func() time.Time
}

// NewIngestor creates an ingestor. With evaluateFirst the alert status is
// computed before the reading is persisted, so stored rows carry it.
func NewIngestor(store ReadingStore, evaluator *alert.Evaluator, evaluateFirst bool) *Ingestor {
	return &Ingestor{
		store:         store,
		evaluator:     evaluator,
		evaluateFirst: evaluateFirst,
		now:           time.Now,
	}
}

// Ingest stamps, persists and evaluates r. Failures are logged and never
// returned so a bad message cannot break the subscription.
func (i *Ingestor) Ingest(ctx context.Context, r *model.Reading) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorw("panic while ingesting reading", "panic", rec)
		}
	}()

	if r.Timestamp.IsZero() {
		r.Timestamp = i.now().UTC()
	}

	if i.evaluateFirst {
		i.evaluator.Evaluate(r)
	}

	if err := i.store.SaveReading(ctx, *r); err != nil {
		logger.Errorw("failed to persist reading",
			"sensor_id", r.SensorID,
			"sensor_type", r.SensorType,
			"error", err)
	}

	if !i.evaluateFirst {
		i.evaluator.Evaluate(r)
	}

	logger.Infow("reading received",
		"sensor_id", r.SensorID,
		"value", r.Value,
		"unit", r.Unit,
		"status", r.Status)
}
