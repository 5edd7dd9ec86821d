package core

import (
	"context"
	"time"

	"github.com/ToFood/tofood-zip/internal/types"
)

// ReaperStore is the subset of NotificationStore the reaper needs.
type ReaperStore interface {
	ReleaseStaleClaims(ctx context.Context, lease time.Duration, limit int) ([]int64, error)
	TouchStaleWaiting(ctx context.Context, lease time.Duration, limit int) ([]int64, error)
}

// ReaperConfig tunes a Reaper.
type ReaperConfig struct {
	Interval time.Duration
	Lease    time.Duration
	Batch    int
}

// Reaper hands stuck records back to the queue:
//   - Processing rows claimed longer than the lease ago, left by a worker
//     that died between claim and terminal write, go back to
//     WaitingToBeSent and are re-enqueued.
//   - WaitingToBeSent rows idle longer than the lease, whose enqueue failed
//     or whose message expired, are re-enqueued.
//
// Both queries stamp requeued_at, so a row is re-enqueued at most once per
// lease even if it keeps sitting on the queue.
type Reaper struct {
	store     ReaperStore
	publisher Publisher
	metrics   Metrics
	cfg       ReaperConfig
	logger    types.Logger
}

// NewReaper creates a Reaper. Zero config fields take defaults: one
// minute interval, ten minute lease, batches of 100.
func NewReaper(store ReaperStore, publisher Publisher, metrics Metrics, cfg ReaperConfig, logger types.Logger) *Reaper {
	if logger == nil {
		logger = types.NewSlogLogger(nil)
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 10 * time.Minute
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 100
	}
	return &Reaper{
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run sweeps immediately and then every interval until ctx is done.
// It returns ctx.Err().
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("reaper sweep failed", "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep runs one pass and returns the number of ids re-enqueued.
// Publish failures are logged and skipped; the row is picked up again
// after another lease.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	released, err := r.store.ReleaseStaleClaims(ctx, r.cfg.Lease, r.cfg.Batch)
	if err != nil {
		return 0, err
	}
	if len(released) > 0 {
		r.metrics.RecordClaimsReleased(ctx, len(released))
		r.logger.Warn("released stale claims",
			"count", len(released),
			"lease", r.cfg.Lease.String(),
		)
	}

	waiting, err := r.store.TouchStaleWaiting(ctx, r.cfg.Lease, r.cfg.Batch)
	if err != nil {
		return r.publishAll(ctx, released), err
	}

	return r.publishAll(ctx, append(released, waiting...)), nil
}

func (r *Reaper) publishAll(ctx context.Context, ids []int64) int {
	requeued := 0
	for _, id := range ids {
		if err := r.publisher.Publish(ctx, id); err != nil {
			r.logger.Error("failed to re-enqueue notification",
				"notification_id", id,
				"error", err.Error(),
			)
			continue
		}
		requeued++
	}
	if requeued > 0 {
		r.logger.Info("re-enqueued notifications", "count", requeued)
	}
	return requeued
}
