package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"cardsync/internal/catalog"
	"cardsync/internal/logging"
	"cardsync/internal/matchcache"
)

// write upserts pending records in batches, one transaction per batch. It
// sets report.Status to canceled or partial when it stops early; batches
// committed before the failure stay committed.
func (r *Reconciler) write(ctx context.Context, logger *slog.Logger, pending []matchcache.Record, report *Report) error {
	size := r.cfg.Reconcile.BatchSize
	if size <= 0 {
		size = len(pending)
	}
	for start := 0; start < len(pending); start += size {
		if err := ctx.Err(); err != nil {
			report.Status = StatusCanceled
			return err
		}
		end := min(start+size, len(pending))
		if err := r.writeBatch(ctx, pending[start:end]); err != nil {
			if ctx.Err() != nil {
				report.Status = StatusCanceled
				return ctx.Err()
			}
			report.Status = StatusPartial
			logging.ErrorWithContext(logger, "batch write failed; run stopped", "cache_write_failed",
				logging.Int("batch", report.Batches+1),
				logging.Int("written", report.Written),
				logging.Int("remaining", len(pending)-start),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check cache connectivity and rerun; committed batches are kept"),
			)
			return fmt.Errorf("write batch %d: %w", report.Batches+1, err)
		}
		report.Batches++
		report.Written += end - start
		logger.Debug("batch committed",
			logging.Int("batch", report.Batches),
			logging.Int("records", end-start),
		)
	}
	return nil
}

func (r *Reconciler) writeBatch(ctx context.Context, records []matchcache.Record) (err error) {
	batch, err := r.deps.Cache.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = batch.Rollback(context.WithoutCancel(ctx))
		}
	}()
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Upsert(ctx, rec); err != nil {
			return fmt.Errorf("upsert item %d: %w", rec.ItemID, err)
		}
	}
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// prune removes records for items that left the catalog. An empty catalog
// snapshot is treated as suspect and never prunes.
func (r *Reconciler) prune(ctx context.Context, logger *slog.Logger, items []catalog.Item, report *Report) error {
	if len(items) == 0 {
		logging.WarnWithContext(logger, "catalog snapshot empty; prune skipped", "prune_skipped",
			logging.String(logging.FieldImpact, "orphaned records are kept"),
		)
		return nil
	}
	keep := make([]int64, 0, len(items))
	for _, item := range items {
		keep = append(keep, item.ID)
	}
	removed, err := r.deps.Cache.Prune(ctx, keep)
	if err != nil {
		return fmt.Errorf("prune cache: %w", err)
	}
	report.Pruned = removed
	if removed > 0 {
		logger.Info("orphaned records pruned", logging.Int64("removed", removed))
	}
	return nil
}
