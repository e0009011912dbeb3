package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"cardfetch/pkg/logging"
)

// WorkerConfig holds lookup worker tuning.
type WorkerConfig struct {
	// QueueSize caps the number of names waiting for lookup.
	QueueSize int

	// BatchSize is the maximum number of names drained per round.
	BatchSize int

	// Concurrency bounds parallel upstream lookups within a batch.
	Concurrency int

	// RequestDelay is the pause before each upstream lookup, keeping the
	// service polite toward the upstream API.
	RequestDelay time.Duration
}

// DefaultWorkerConfig returns the reference worker parameters.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		QueueSize:    1000,
		BatchSize:    10,
		Concurrency:  5,
		RequestDelay: 100 * time.Millisecond,
	}
}

// Worker drains the lookup queue in batches, resolving uncached names
// through the upstream and caching every outcome, including negative
// ones.
type Worker struct {
	store    CardStore
	upstream *Upstream
	cfg      WorkerConfig
	logger   zerolog.Logger

	queue    chan string
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	busy     atomic.Bool
}

// NewWorker creates a lookup worker. Call Start to begin draining.
func NewWorker(store CardStore, upstream *Upstream, cfg WorkerConfig) *Worker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}

	return &Worker{
		store:    store,
		upstream: upstream,
		cfg:      cfg,
		logger:   logging.NewLogger("worker"),
		queue:    make(chan string, cfg.QueueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the drain loop.
func (w *Worker) Start() {
	go w.run()
	w.logger.Info().
		Int("queue_size", w.cfg.QueueSize).
		Int("batch_size", w.cfg.BatchSize).
		Msg("Queue worker started")
}

// Stop shuts the drain loop down, waiting until the in-flight batch
// finishes or ctx expires. Safe to call more than once.
func (w *Worker) Stop(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.stop) })
	select {
	case <-w.done:
		w.logger.Info().Msg("Queue worker stopped")
		return nil
	case <-ctx.Done():
		w.logger.Warn().Msg("Queue worker did not stop gracefully")
		return ctx.Err()
	}
}

// Enqueue adds a name to the lookup queue. It reports false when the
// queue is full; the caller surfaces that as a "queue full" status.
func (w *Worker) Enqueue(name string) bool {
	select {
	case w.queue <- name:
		queueDepth.Set(float64(len(w.queue)))
		return true
	default:
		queueRejectsTotal.Inc()
		w.logger.Warn().Str("card", name).Msg("Queue full, rejecting")
		return false
	}
}

// QueueSize returns the number of names waiting for lookup.
func (w *Worker) QueueSize() int {
	return len(w.queue)
}

// Busy reports whether a batch is being processed right now. Together
// with QueueSize it backs the /status is_fetching field.
func (w *Worker) Busy() bool {
	return w.busy.Load()
}

// Drain discards everything currently queued.
func (w *Worker) Drain() {
	for {
		select {
		case <-w.queue:
		default:
			queueDepth.Set(float64(len(w.queue)))
			return
		}
	}
}

// run is the drain loop: block for the first queued name, gather a
// batch, process it, repeat.
func (w *Worker) run() {
	defer close(w.done)

	for {
		select {
		case <-w.stop:
			return
		case first := <-w.queue:
			batch := w.gather(first)
			w.busy.Store(true)
			w.processBatch(batch)
			w.busy.Store(false)
			queueDepth.Set(float64(len(w.queue)))
		}
	}
}

// gather collects up to BatchSize names without blocking.
func (w *Worker) gather(first string) []string {
	batch := []string{first}
	for len(batch) < w.cfg.BatchSize {
		select {
		case name := <-w.queue:
			batch = append(batch, name)
		default:
			return batch
		}
	}
	return batch
}

// processBatch resolves every uncached name in the batch, with at most
// Concurrency lookups in flight.
func (w *Worker) processBatch(batch []string) {
	start := time.Now()
	w.logger.Info().Int("cards", len(batch)).Msg("Processing batch")

	ctx := context.Background()
	sem := make(chan struct{}, w.cfg.Concurrency)
	var wg sync.WaitGroup

	for _, name := range batch {
		if _, err := w.store.Get(ctx, name); err == nil {
			w.logger.Debug().Str("card", name).Msg("Already cached, skipping")
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(name string) {
			defer wg.Done()
			defer func() { <-sem }()

			w.resolve(ctx, name)
		}(name)
	}
	wg.Wait()

	w.logger.Info().
		Int("cards", len(batch)).
		Dur("duration", time.Since(start)).
		Msg("Batch complete")
}

// resolve looks one name up and caches the outcome. Exhausted retries
// cache the card as not found, so the client sees a terminal status
// instead of a forever-queued entry.
func (w *Worker) resolve(ctx context.Context, name string) {
	if w.cfg.RequestDelay > 0 {
		select {
		case <-w.stop:
			return
		case <-time.After(w.cfg.RequestDelay):
		}
	}

	card, err := w.upstream.Lookup(ctx, name)
	if err != nil {
		w.logger.Warn().Err(err).Str("card", name).Msg("Lookup failed, caching as not found")
	}

	if err := w.store.Set(ctx, card); err != nil {
		w.logger.Error().Err(err).Str("card", name).Msg("Failed to cache card")
	}
}
