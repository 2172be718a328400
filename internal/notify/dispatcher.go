package notify

import (
	"context"
	"sync"
	"time"

	"gnarhub-backend/internal/observability"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultQueueSize       = 1024
	defaultWorkers         = 4
	defaultDeliveryTimeout = 5 * time.Second
)

// Options tunes the dispatcher. Zero values fall back to defaults.
type Options struct {
	QueueSize       int
	Workers         int
	DeliveryTimeout time.Duration
}

// Dispatcher is an Emitter backed by a bounded queue and a pool of workers
type Dispatcher struct {
	queue   chan Event
	sinks   []Sink
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts the workers and returns a ready dispatcher
func NewDispatcher(opts Options, sinks ...Sink) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = defaultDeliveryTimeout
	}

	d := &Dispatcher{
		queue:   make(chan Event, opts.QueueSize),
		sinks:   sinks,
		timeout: opts.DeliveryTimeout,
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Emit queues evt. When the queue is full or the dispatcher is closed the event is dropped.
func (d *Dispatcher) Emit(_ context.Context, evt Event) {
	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		log.Warn().Str("event_id", evt.ID).Str("kind", string(evt.Kind)).Msg("Dispatcher closed, dropping event")
		observability.NotificationsDropped.Inc()
		return
	}

	select {
	case d.queue <- evt:
	default:
		log.Warn().Str("event_id", evt.ID).Str("kind", string(evt.Kind)).Msg("Notification queue full, dropping event")
		observability.NotificationsDropped.Inc()
	}
}

// Close stops accepting events and waits for queued ones to be delivered or ctx to expire
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for evt := range d.queue {
		for _, sink := range d.sinks {
			d.deliver(sink, evt)
		}
	}
}

func (d *Dispatcher) deliver(sink Sink, evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("sink", sink.Name()).Str("event_id", evt.ID).Msg("Notification sink panicked")
			observability.NotificationsFailed.WithLabelValues(sink.Name()).Inc()
		}
	}()

	if err := sink.Deliver(ctx, evt); err != nil {
		log.Error().
			Err(err).
			Str("sink", sink.Name()).
			Str("event_id", evt.ID).
			Str("kind", string(evt.Kind)).
			Msg("Failed to deliver notification")
		observability.NotificationsFailed.WithLabelValues(sink.Name()).Inc()
		return
	}
	observability.NotificationsDelivered.WithLabelValues(sink.Name()).Inc()
}
