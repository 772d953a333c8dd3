package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const sendTimeout = 5 * time.Second

// Config controls the dispatcher worker pool
type Config struct {
	Workers      int
	QueueSize    int
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Stats counts dispatcher outcomes since start
type Stats struct {
	Delivered int64
	Failed    int64
	Dropped   int64
}

// Dispatcher fans notifications out to sinks on a bounded worker pool.
// Notify never blocks the caller and never reports sink failures back to it.
type Dispatcher struct {
	cfg    Config
	sinks  []Sink
	queue  chan Notification
	logger zerolog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewDispatcher creates a dispatcher; call Start before notifications flow
func NewDispatcher(cfg Config, logger zerolog.Logger, sinks ...Sink) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	return &Dispatcher{
		cfg:    cfg,
		sinks:  sinks,
		queue:  make(chan Notification, cfg.QueueSize),
		logger: logger.With().Str("component", "notify").Logger(),
	}
}

// Start launches the worker pool. Workers exit once Stop drains the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}

	d.logger.Info().Int("workers", d.cfg.Workers).Int("sinks", len(d.sinks)).Msg("Notification dispatcher started")
}

// Notify enqueues n, dropping it when the queue is full or the dispatcher is stopped
func (d *Dispatcher) Notify(_ context.Context, n Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(n, "dispatcher stopped")
		return
	}

	select {
	case d.queue <- n:
	default:
		d.drop(n, "queue full")
	}
}

func (d *Dispatcher) drop(n Notification, reason string) {
	d.dropped.Add(1)
	d.logger.Warn().
		Str("template", string(n.Template)).
		Str("recipient", n.Recipient).
		Str("reason", reason).
		Msg("Notification dropped")
}

// Stop closes the queue and waits for workers to drain it or for ctx to expire
func (d *Dispatcher) Stop(ctx context.Context) error {
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
		d.logger.Info().Interface("stats", d.Stats()).Msg("Notification dispatcher stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notification dispatcher did not drain: %w", ctx.Err())
	}
}

// Stats returns a snapshot of the counters
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for n := range d.queue {
		for _, sink := range d.sinks {
			if err := d.deliver(ctx, sink, n); err != nil {
				d.failed.Add(1)
				d.logger.Error().Err(err).
					Str("sink", sink.Name()).
					Str("template", string(n.Template)).
					Str("recipient", n.Recipient).
					Msg("Notification delivery failed")
				continue
			}
			d.delivered.Add(1)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sink Sink, n Notification) (err error) {
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		err = d.sendOnce(ctx, sink, n)
		if err == nil {
			return nil
		}
		if attempt == d.cfg.MaxAttempts {
			break
		}

		wait := d.cfg.RetryBackoff * time.Duration(attempt)
		select {
		case <-ctx.Done():
			return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", d.cfg.MaxAttempts, err)
}

func (d *Dispatcher) sendOnce(ctx context.Context, sink Sink, n Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink %s panicked: %v", sink.Name(), r)
		}
	}()

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()
	return sink.Send(sendCtx, n)
}
