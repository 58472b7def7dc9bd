package mqtt

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eddielth/sensor-monitor/logger"
)

// Message is one inbound publish handed from the subscription to a worker
type Message struct {
	Topic   string
	Payload []byte
}

// HandlerFunc processes one message on a worker goroutine
type HandlerFunc func(ctx context.Context, msg Message)

// Dispatcher decouples the paho delivery goroutine from ingestion through a
// bounded queue drained by a fixed worker pool.
type Dispatcher struct {
	queue          chan Message
	handler        HandlerFunc
	workers        int
	enqueueTimeout time.Duration

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

// NewDispatcher creates a dispatcher. Non-positive sizes fall back to one.
func NewDispatcher(queueSize, workers int, enqueueTimeout time.Duration, handler HandlerFunc) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		queue:          make(chan Message, queueSize),
		handler:        handler,
		workers:        workers,
		enqueueTimeout: enqueueTimeout,
	}
}

// Start launches the workers. They exit once Stop has closed the queue and
// every queued message has been handled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(ctx, i)
	}
	logger.Debug("dispatcher started with %d workers, queue size %d", d.workers, cap(d.queue))
}

// Enqueue queues msg, waiting at most the enqueue timeout for room. It
// reports false when the message was dropped.
func (d *Dispatcher) Enqueue(msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return d.drop(msg, "dispatcher stopped")
	}

	select {
	case d.queue <- msg:
		return true
	default:
	}

	if d.enqueueTimeout <= 0 {
		return d.drop(msg, "queue full")
	}

	timer := time.NewTimer(d.enqueueTimeout)
	defer timer.Stop()

	select {
	case d.queue <- msg:
		return true
	case <-timer.C:
		return d.drop(msg, "queue full")
	}
}

// Dropped returns how many messages were discarded
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Stop closes the queue and waits for the workers to drain it
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	logger.Debug("dispatcher stopped, %d messages dropped", d.Dropped())
}

func (d *Dispatcher) drop(msg Message, reason string) bool {
	d.dropped.Add(1)
	logger.Warnw("dropping MQTT message", "topic", msg.Topic, "reason", reason)
	return false
}

func (d *Dispatcher) work(ctx context.Context, id int) {
	defer d.wg.Done()
	for msg := range d.queue {
		d.handle(ctx, id, msg)
	}
}

func (d *Dispatcher) handle(ctx context.Context, id int, msg Message) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorw("panic while handling MQTT message",
				"worker", id,
				"topic", msg.Topic,
				"panic", rec)
		}
	}()
	d.handler(ctx, msg)
}
