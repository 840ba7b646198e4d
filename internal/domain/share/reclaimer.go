package share

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"flashshare/internal/pkg/metrics"
)

const (
	DefaultSweepInterval = 5 * time.Minute

	// A blob is written before its record exists, so a fresh blob with
	// no record is usually an upload in flight, not garbage. Only blobs
	// older than this are treated as orphans.
	orphanGracePeriod = time.Minute
)

// Reclaimer reconciles the record store and the blob store in the
// background. All its mutations go through the same store primitives
// the lifecycle service uses, so it is safe next to live traffic; a
// record deleted under its feet is simply absent on the next read.
type Reclaimer struct {
	repo     Repository
	blobs    *BlobStore
	logger   *zap.Logger
	interval time.Duration
}

func NewReclaimer(repo Repository, blobs *BlobStore, logger *zap.Logger, interval time.Duration) *Reclaimer {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Reclaimer{repo: repo, blobs: blobs, logger: logger, interval: interval}
}

// Sweep runs one reconciliation pass: records whose lifecycle has ended
// go first (blob before record), orphaned blobs second. Per-item
// failures are logged and skipped so one bad entry cannot stall the
// pass. Returns how many files were removed.
func (r *Reclaimer) Sweep(ctx context.Context) (int, error) {
	removed := 0

	recs, err := r.repo.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list records: %w", err)
	}

	now := time.Now()
	live := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		var reason string
		switch {
		case rec.Expired(now):
			reason = metrics.ReasonExpired
		case rec.Exhausted():
			reason = metrics.ReasonExhausted
		default:
			live[rec.ID] = struct{}{}
			continue
		}

		if err := r.blobs.Remove(rec.ID); err != nil && !errors.Is(err, ErrNotFound) {
			r.logger.Warn("sweep: remove blob",
				zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		if err := r.repo.Delete(ctx, rec.ID); err != nil {
			r.logger.Warn("sweep: remove record",
				zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		removed++
		metrics.ReclaimedTotal.WithLabelValues(reason).Inc()
		r.logger.Info("sweep: file removed",
			zap.String("id", rec.ID),
			zap.String("name", rec.OriginalName),
			zap.String("reason", reason),
		)
	}

	orphans, err := r.sweepOrphanBlobs(ctx, live, now)
	if err != nil {
		return removed, err
	}
	return removed + orphans, nil
}

func (r *Reclaimer) sweepOrphanBlobs(ctx context.Context, live map[string]struct{}, now time.Time) (int, error) {
	blobs, err := r.blobs.List()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, info := range blobs {
		id := info.Name()
		if _, ok := live[id]; ok {
			continue
		}
		if now.Sub(info.ModTime()) < orphanGracePeriod {
			continue
		}
		// The record may have been created after the listing above.
		if _, err := r.repo.GetByID(ctx, id); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			r.logger.Warn("sweep: recheck record", zap.String("id", id), zap.Error(err))
			continue
		}
		if err := r.blobs.Remove(id); err != nil && !errors.Is(err, ErrNotFound) {
			r.logger.Warn("sweep: remove orphan blob", zap.String("id", id), zap.Error(err))
			continue
		}
		removed++
		metrics.ReclaimedTotal.WithLabelValues(metrics.ReasonOrphaned).Inc()
		r.logger.Info("sweep: orphan blob removed", zap.String("id", id))
	}
	return removed, nil
}

// StartupSweep runs before traffic is admitted. On top of a normal
// sweep it drops records whose blob vanished while the process was
// down; those must never be served.
func (r *Reclaimer) StartupSweep(ctx context.Context) error {
	recs, err := r.repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	for _, rec := range recs {
		exists, err := r.blobs.Exists(rec.ID)
		if err != nil {
			return fmt.Errorf("check blob %s: %w", rec.ID, err)
		}
		if exists {
			continue
		}
		if err := r.repo.Delete(ctx, rec.ID); err != nil {
			r.logger.Warn("startup: remove dangling record",
				zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		metrics.ReclaimedTotal.WithLabelValues(metrics.ReasonDangling).Inc()
		r.logger.Info("startup: dangling record removed",
			zap.String("id", rec.ID), zap.String("name", rec.OriginalName))
	}

	if _, err := r.Sweep(ctx); err != nil {
		return err
	}
	return nil
}

// Run sweeps on a fixed interval until the context is cancelled.
func (r *Reclaimer) Run(ctx context.Context) {
	r.logger.Info("reclaimer started", zap.Duration("interval", r.interval))
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := r.Sweep(ctx)
			if err != nil {
				r.logger.Error("sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				r.logger.Info("sweep completed", zap.Int("removed", n))
			}
		case <-ctx.Done():
			r.logger.Info("reclaimer stopped")
			return
		}
	}
}
