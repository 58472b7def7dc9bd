package processing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eddielth/sensor-monitor/logger"
	"github.com/eddielth/sensor-monitor/model"
)

var (
	// ErrNotRunning is returned by Trigger before Start or after Stop
	ErrNotRunning = errors.New("aggregator is not running")
	// ErrCyclePending is returned by Trigger when a request is already queued
	ErrCyclePending = errors.New("aggregation cycle already pending")
)

// ReadingSource is the query side the aggregator needs
type ReadingSource interface {
	FindReadingsBetween(ctx context.Context, start, end time.Time) ([]model.Reading, error)
}

// Sink receives control once per non-empty cycle, after every summary of
// that cycle is persisted.
type Sink interface {
	PublishRecent(ctx context.Context)
}

// Aggregator runs the fixed-interval batch job. All cycles, scheduled or
// triggered, execute on one goroutine so they never overlap.
type Aggregator struct {
	source   ReadingSource
	reducer  *Reducer
	sink     Sink
	interval time.Duration
	now      func() time.Time

	trigger chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// NewAggregator creates an aggregator. sink may be nil.
func NewAggregator(source ReadingSource, reducer *Reducer, sink Sink, interval time.Duration) (*Aggregator, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("aggregation interval must be positive, got %s", interval)
	}
	return &Aggregator{
		source:   source,
		reducer:  reducer,
		sink:     sink,
		interval: interval,
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
	}, nil
}

// RunCycle aggregates the window [now-interval, now] and returns the number
// of summaries produced. A failed window fetch aborts the cycle.
func (a *Aggregator) RunCycle(ctx context.Context) (int, error) {
	end := a.now().UTC()
	start := end.Add(-a.interval)

	readings, err := a.source.FindReadingsBetween(ctx, start, end)
	if err != nil {
		return 0, fmt.Errorf("fetch readings between %s and %s: %w",
			start.Format(time.RFC3339), end.Format(time.RFC3339), err)
	}

	if len(readings) == 0 {
		logger.Infow("no readings in aggregation window", "start", start, "end", end)
		return 0, nil
	}

	types, groups := groupBy(readings, func(r model.Reading) string { return r.SensorType })

	produced := 0
	for _, sensorType := range types {
		summaries := a.reducer.Reduce(ctx, sensorType, groups[sensorType])
		produced += len(summaries)
	}

	logger.Infow("aggregation cycle finished",
		"readings", len(readings),
		"sensor_types", len(types),
		"summaries", produced)

	if a.sink != nil {
		a.sink.PublishRecent(ctx)
	}
	return produced, nil
}

// Start launches the scheduler goroutine. The first cycle runs one interval
// after Start.
func (a *Aggregator) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return errors.New("aggregator already started")
	}

	ctx, a.cancel = context.WithCancel(ctx)
	a.wg.Add(1)
	go a.loop(ctx)

	logger.Info("aggregation scheduled every %s", a.interval)
	return nil
}

// Trigger requests an extra cycle on the scheduler goroutine
func (a *Aggregator) Trigger() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel == nil {
		return ErrNotRunning
	}

	select {
	case a.trigger <- struct{}{}:
		return nil
	default:
		return ErrCyclePending
	}
}

// Stop cancels the scheduler and waits for an in-flight cycle to finish
func (a *Aggregator) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	a.wg.Wait()
	logger.Info("aggregation scheduler stopped")
}

func (a *Aggregator) loop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.safeCycle(ctx)
		case <-a.trigger:
			a.safeCycle(ctx)
		}
	}
}

func (a *Aggregator) safeCycle(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorw("panic in aggregation cycle", "panic", rec)
		}
	}()

	if _, err := a.RunCycle(ctx); err != nil {
		logger.Errorw("aggregation cycle aborted", "error", err)
	}
}
