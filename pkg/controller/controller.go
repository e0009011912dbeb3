// Package controller implements the batch submission and polling logic
// that drives a cardfetch client: submit a set of card names, poll
// aggregate progress on a fixed interval, and reconcile the displayed
// list with the service's latest snapshot until the batch completes.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"cardfetch/pkg/api"
	"cardfetch/pkg/client"
	"cardfetch/pkg/logging"
	"cardfetch/pkg/render"
)

// Prometheus metrics for controller operations.
var (
	pollTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardfetch_poll_ticks_total",
		Help: "Total status poll ticks",
	})

	batchesSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardfetch_batches_submitted_total",
		Help: "Total batches accepted for submission",
	})

	batchCardsSubmitted = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cardfetch_batch_cards",
		Help:    "Number of card names per submitted batch",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
	})
)

// ErrPollTimeout is returned when PollTimeout elapses before the
// service reports an empty queue.
var ErrPollTimeout = errors.New("gave up polling before the batch completed")

// Options holds controller tuning knobs.
type Options struct {
	// PollInterval is the delay between status poll ticks.
	PollInterval time.Duration

	// PollTimeout bounds the total time spent polling for one batch.
	// Zero means poll until the service reports no pending work, which
	// against a stuck service means polling forever.
	PollTimeout time.Duration
}

// DefaultOptions returns the reference polling behavior.
func DefaultOptions() Options {
	return Options{
		PollInterval: 1 * time.Second,
		PollTimeout:  0,
	}
}

// Controller owns the batch lifecycle state. All mutable state is
// guarded by mu; the view only ever receives copies.
type Controller struct {
	client   *client.Client
	view     View
	renderer *render.Renderer
	opts     Options
	logger   zerolog.Logger

	mu         sync.Mutex
	progress   Progress
	items      []api.CardRecord
	submitting bool
	polling    bool
	notified   bool
}

// New creates a controller driving the given view through the given
// service client.
func New(c *client.Client, view View, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 1 * time.Second
	}
	if view == nil {
		view = NopView{}
	}
	return &Controller{
		client:   c,
		view:     view,
		renderer: render.New(),
		opts:     opts,
		logger:   logging.NewLogger("controller"),
	}
}

// ParseCardNames splits raw multi-line input into card names, trimming
// whitespace and dropping blank lines. Duplicates are kept as-is.
func ParseCardNames(raw string) []string {
	var names []string
	for _, line := range strings.Split(raw, "\n") {
		name := strings.TrimSpace(line)
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// SubmitBatch validates raw input and submits one batch to the service.
// Empty input is recovered locally: a warning is shown and
// client.ErrNoCards returned without any network call. A submission
// while a batch is still active is a silent no-op. On success the
// returned records are merged into the displayed list; the caller is
// expected to follow up with PollUntilIdle (or use SubmitAndWait).
func (c *Controller) SubmitBatch(ctx context.Context, rawInput string) error {
	names := ParseCardNames(rawInput)
	if len(names) == 0 {
		c.view.Warn("no card names provided")
		return client.ErrNoCards
	}

	c.mu.Lock()
	if c.submitting || c.progress.Active {
		c.mu.Unlock()
		c.logger.Debug().Msg("Batch already active, ignoring submission")
		return nil
	}
	c.submitting = true
	c.notified = false
	c.progress = Progress{Total: len(names), Fetched: 0, Active: true}
	prog := c.progress
	c.mu.Unlock()

	c.view.UpdateProgress(prog)
	batchesSubmittedTotal.Inc()
	batchCardsSubmitted.Observe(float64(len(names)))

	c.logger.Info().Int("cards", len(names)).Msg("Submitting batch")
	records, err := c.client.Fetch(ctx, names)

	c.mu.Lock()
	c.submitting = false
	if err != nil {
		// The batch never started; let the user retry.
		c.progress.Active = false
		prog = c.progress
		c.mu.Unlock()

		c.view.UpdateProgress(prog)
		c.view.Error("fetch failed")
		c.logger.Error().Err(err).Msg("Batch submission failed")
		return err
	}
	c.items = mergeRecords(c.items, records)
	items := append([]api.CardRecord(nil), c.items...)
	c.mu.Unlock()

	queued := 0
	for _, r := range records {
		if r.Status == api.StatusQueued {
			queued++
		}
	}
	c.view.Notice(fmt.Sprintf("%d cards queued for fetching", queued))
	c.renderList(items)

	c.logger.Info().
		Int("cards", len(names)).
		Int("queued", queued).
		Msg("Batch accepted")
	return nil
}

// SubmitAndWait submits a batch and, when accepted, polls until the
// service reports the work complete.
func (c *Controller) SubmitAndWait(ctx context.Context, rawInput string) error {
	if err := c.SubmitBatch(ctx, rawInput); err != nil {
		return err
	}
	return c.PollUntilIdle(ctx)
}

// PollUntilIdle runs the status poll loop: one tick immediately, then
// one tick per PollInterval until the service reports no queued work
// and no active fetching. Each tick fully completes, including its
// reconcile fetch, before the next is scheduled, so ticks never
// overlap. If a second loop is already running the call returns
// immediately.
func (c *Controller) PollUntilIdle(ctx context.Context) error {
	c.mu.Lock()
	if c.polling {
		c.mu.Unlock()
		return nil
	}
	c.polling = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.polling = false
		c.mu.Unlock()
	}()

	var deadline time.Time
	if c.opts.PollTimeout > 0 {
		deadline = time.Now().Add(c.opts.PollTimeout)
	}

	for {
		done, err := c.tick(ctx)
		if done || err != nil {
			return err
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			c.idle()
			c.view.Error("timed out waiting for the batch to complete")
			c.logger.Warn().
				Dur("poll_timeout", c.opts.PollTimeout).
				Msg("Poll loop timed out")
			return ErrPollTimeout
		}

		select {
		case <-ctx.Done():
			c.idle()
			return ctx.Err()
		case <-time.After(c.opts.PollInterval):
		}
	}
}

// tick performs one poll iteration: status query first, then the
// reconcile fetch, then the scheduling decision. It reports done=true
// when the loop should stop.
func (c *Controller) tick(ctx context.Context) (done bool, err error) {
	pollTicksTotal.Inc()

	status, err := c.client.Status(ctx)
	if err != nil {
		// Transient or not, a broken status endpoint must not trap the
		// loop forever. Known limitation: no retry before giving up.
		c.idle()
		c.view.Error("status check failed")
		c.logger.Error().Err(err).Msg("Status poll failed, stopping")
		return true, err
	}

	c.mu.Lock()
	c.progress.Fetched = status.CacheSize
	prog := c.progress
	c.mu.Unlock()

	c.logger.Debug().
		Int("cache_size", status.CacheSize).
		Int("queue_size", status.QueueSize).
		Bool("is_fetching", status.IsFetching).
		Float64("progress_pct", prog.Percent()).
		Msg("Poll tick")

	if status.QueueSize > 0 || status.IsFetching {
		c.view.UpdateProgress(prog)
		// Errors here leave the previous list on screen; polling goes on.
		_ = c.refresh(ctx)
		return false, nil
	}

	// Terminal tick: reconcile once more so the final resolved state is
	// what ends up displayed, then go idle.
	_ = c.refresh(ctx)

	c.mu.Lock()
	c.progress.Active = false
	prog = c.progress
	notify := !c.notified && prog.Total > 0 && prog.Fetched >= prog.Total
	if notify {
		c.notified = true
	}
	c.mu.Unlock()

	c.view.UpdateProgress(prog)
	if notify {
		c.view.Notice("all cards fetched")
		c.logger.Info().Int("cards", prog.Total).Msg("Batch complete")
	}
	return true, nil
}

// refresh fetches the complete current snapshot and re-renders the
// displayed list. On failure the previous list is left untouched.
func (c *Controller) refresh(ctx context.Context) error {
	records, err := c.client.FetchAll(ctx)
	if err != nil {
		c.view.Error("could not refresh card list")
		c.logger.Warn().Err(err).Msg("Snapshot fetch failed, keeping current list")
		return err
	}

	c.mu.Lock()
	c.items = records
	items := append([]api.CardRecord(nil), records...)
	c.mu.Unlock()

	c.renderList(items)
	return nil
}

// Clear drops the service cache and resets client-held progress and
// the displayed list.
func (c *Controller) Clear(ctx context.Context) error {
	if err := c.client.Clear(ctx); err != nil {
		c.view.Error("clear failed")
		return err
	}

	c.mu.Lock()
	c.items = nil
	c.progress = Progress{}
	c.notified = false
	c.mu.Unlock()

	c.view.ReplaceList("")
	c.view.UpdateProgress(Progress{})
	c.view.Notice("all cards cleared")
	return nil
}

// Snapshot returns a copy of the currently displayed records.
func (c *Controller) Snapshot() []api.CardRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]api.CardRecord(nil), c.items...)
}

// ProgressState returns the current batch progress.
func (c *Controller) ProgressState() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// idle marks the batch lifecycle inactive and publishes the change.
func (c *Controller) idle() {
	c.mu.Lock()
	c.progress.Active = false
	prog := c.progress
	c.mu.Unlock()
	c.view.UpdateProgress(prog)
}

// renderList renders records and hands the fragment to the view.
func (c *Controller) renderList(items []api.CardRecord) {
	html, err := c.renderer.CardList(items)
	if err != nil {
		c.view.Error("could not render card list")
		c.logger.Error().Err(err).Msg("Render failed")
		return
	}
	c.view.ReplaceList(html)
}

// mergeRecords folds incoming records into the existing list, updating
// in place by name and appending names not seen before. Existing
// records missing from incoming are kept, so an in-progress display
// never loses cards on submission.
func mergeRecords(existing, incoming []api.CardRecord) []api.CardRecord {
	index := make(map[string]int, len(existing))
	out := append([]api.CardRecord(nil), existing...)
	for i, r := range out {
		index[r.Name] = i
	}
	for _, r := range incoming {
		if i, ok := index[r.Name]; ok {
			out[i] = r
			continue
		}
		out = append(out, r)
		index[r.Name] = len(out) - 1
	}
	return out
}
