package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cardsync/internal/catalog"
	"cardsync/internal/config"
	"cardsync/internal/logging"
	"cardsync/internal/matchcache"
	"cardsync/internal/matching"
	"cardsync/internal/season"
	"cardsync/internal/timeline"
)

const maxWorkers = 64

// Options tune a single run.
type Options struct {
	// Force re-matches items that already hold a matched record.
	Force bool
	// DryRun fetches and matches but writes nothing.
	DryRun bool
	// Limit caps the number of catalog items processed; <= 0 means all.
	Limit int
	// Workers overrides reconcile.workers when > 0.
	Workers int
}

// Dependencies are the collaborators a Reconciler drives.
type Dependencies struct {
	Catalog  catalog.Source
	Timeline timeline.Source
	Cache    matchcache.Cache
	// Engine defaults to NewEngine(cfg, logger).
	Engine *matching.Engine
}

// Reconciler links catalog items to timeline messages and persists the result.
type Reconciler struct {
	cfg     *config.Config
	deps    Dependencies
	seasons season.Deriver
	logger  *slog.Logger
	now     func() time.Time
}

// New validates deps and builds a Reconciler.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Reconciler, error) {
	if cfg == nil {
		return nil, errors.New("reconcile: config required")
	}
	if deps.Catalog == nil || deps.Timeline == nil || deps.Cache == nil {
		return nil, errors.New("reconcile: catalog, timeline and cache are required")
	}
	seasons, err := cfg.SeasonDeriver()
	if err != nil {
		return nil, err
	}
	if deps.Engine == nil {
		deps.Engine = NewEngine(cfg, logger)
	}
	return &Reconciler{
		cfg:     cfg,
		deps:    deps,
		seasons: seasons,
		logger:  logging.NewComponentLogger(logger, "reconcile"),
		now:     time.Now,
	}, nil
}

// Engine returns the matching engine used by the reconciler.
func (r *Reconciler) Engine() *matching.Engine { return r.deps.Engine }

// Run executes one reconciliation pass. The returned report is populated for
// every outcome; the error is non-nil unless the run succeeded.
func (r *Reconciler) Run(ctx context.Context, opts Options) (report Report, err error) {
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger)

	report = Report{
		RunID:      runID,
		DryRun:     opts.DryRun,
		ByStrategy: map[string]int{},
		Started:    r.now(),
	}

	defer func() {
		report.Finished = r.now()
		r.finish(logger, report)
	}()

	if !opts.DryRun {
		lock, lockErr := acquireLock(r.cfg.Paths.LockFile)
		if lockErr != nil {
			report.Status = StatusLocked
			return report, lockErr
		}
		if lock != nil {
			defer func() {
				if unlockErr := lock.Unlock(); unlockErr != nil {
					logger.Warn("release run lock failed", logging.Error(unlockErr))
				}
			}()
		}
	}

	logger.Info("reconciliation started",
		logging.String("timeline", r.deps.Timeline.Name()),
		logging.Bool("force", opts.Force),
		logging.Bool("dry_run", opts.DryRun),
	)

	// Fetch.
	all, messages, err := r.fetch(ctx, logger)
	if err != nil {
		if ctx.Err() != nil {
			report.Status = StatusCanceled
			return report, ctx.Err()
		}
		report.Status = StatusSourceUnavailable
		return report, err
	}
	items := all
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	report.Items = len(items)
	report.Messages = len(messages)
	snap := r.deps.Engine.Snapshot(messages)
	logger.Info("sources loaded",
		logging.Int("items", len(items)),
		logging.Int("messages", snap.Len()),
		logging.Int("unnamed_messages", snap.Unnamed()),
	)

	// Match.
	outcomes := r.matchAll(ctx, logger, snap, items, opts)
	if ctx.Err() != nil {
		report.Status = StatusCanceled
		return report, ctx.Err()
	}

	// Fallback.
	pending := r.plan(outcomes, &report)
	report.Pending = len(pending)
	if opts.DryRun {
		report.Status = StatusSucceeded
		return report, nil
	}

	// Write.
	if err := r.write(ctx, logger, pending, &report); err != nil {
		return report, err
	}

	// Prune.
	if r.cfg.Reconcile.PruneOrphans {
		if err := r.prune(ctx, logger, all, &report); err != nil {
			report.Status = StatusPartial
			if ctx.Err() != nil {
				report.Status = StatusCanceled
			}
			return report, err
		}
	}

	report.Status = StatusSucceeded
	return report, nil
}

func (r *Reconciler) fetch(ctx context.Context, logger *slog.Logger) ([]catalog.Item, []timeline.Message, error) {
	items, err := r.deps.Catalog.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: list catalog: %w", ErrSourceUnavailable, err)
	}
	messages, err := timeline.Fetch(ctx, r.deps.Timeline, r.cfg.Timeline.FetchLimit, RetryPolicy(r.cfg), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: fetch timeline: %w", ErrSourceUnavailable, err)
	}
	for i, msg := range messages {
		if i == 3 {
			break
		}
		logger.Debug("sample message",
			logging.Int64(logging.FieldMessageID, msg.ID),
			logging.Time("timestamp", msg.Timestamp),
			logging.String("text", truncate(msg.Text, 80)),
			logging.Bool("has_media", msg.HasMedia),
		)
	}
	return items, messages, nil
}

type outcomeKind int

const (
	outcomeNoMatch outcomeKind = iota
	outcomeMatched
	outcomeSkipped
	outcomeFailed
)

type outcome struct {
	item     catalog.Item
	existing *matchcache.Record
	kind     outcomeKind
	match    matching.Match
}

func (r *Reconciler) matchAll(ctx context.Context, logger *slog.Logger, snap *matching.Snapshot, items []catalog.Item, opts Options) []outcome {
	workers := r.cfg.Reconcile.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}
	workers = min(max(workers, 1), maxWorkers)

	results := make([]outcome, len(items))
	progress := newProgress(logger, r.cfg.Reconcile.ProgressEvery, len(items))

	// Item errors are recorded in the outcome, so the group never fails and
	// results stay in catalog order regardless of completion order.
	var g errgroup.Group
	g.SetLimit(workers)
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = r.matchOne(ctx, logger, snap, item, opts)
			progress.tick()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Reconciler) matchOne(ctx context.Context, logger *slog.Logger, snap *matching.Snapshot, item catalog.Item, opts Options) outcome {
	out := outcome{item: item}
	existing, err := r.deps.Cache.Get(ctx, item.ID)
	if err != nil {
		out.kind = outcomeFailed
		if ctx.Err() == nil {
			logging.WarnWithContext(logger, "cache read failed; item left unchanged", "cache_read_failed",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "item keeps its previous metadata"),
			)
		}
		return out
	}
	out.existing = existing

	if existing != nil && existing.Status == matchcache.StatusMatched && existing.HasMessage() && !opts.Force {
		out.kind = outcomeSkipped
		return out
	}

	match, err := r.deps.Engine.FindMatch(ctx, snap, item)
	if err != nil {
		out.kind = outcomeFailed
		if ctx.Err() == nil {
			logging.WarnWithContext(logger, "matching failed; item left unchanged", "match_failed",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "item keeps its previous metadata"),
			)
		}
		return out
	}
	if match.Found() {
		out.kind = outcomeMatched
		out.match = match
	}
	return out
}

type progress struct {
	mu      sync.Mutex
	logger  *slog.Logger
	sampler *logging.ProgressSampler
	done    int
	total   int
}

func newProgress(logger *slog.Logger, every, total int) *progress {
	return &progress{logger: logger, sampler: logging.NewProgressSampler(every), total: total}
}

func (p *progress) tick() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	if p.sampler.ShouldLog("match", p.done, p.total) {
		p.logger.Info("match progress", logging.Int("processed", p.done), logging.Int("total", p.total))
	}
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "…"
}

func (r *Reconciler) finish(logger *slog.Logger, report Report) {
	attrs := []logging.Attr{
		logging.String("status", string(report.Status)),
		logging.Int("items", report.Items),
		logging.Int("matched", report.Matched),
		logging.Int("unmatched", report.Unmatched),
		logging.Int("provisional", report.Provisional),
		logging.Int("skipped", report.Skipped),
		logging.Int("failed", report.Failed),
		logging.Int("written", report.Written),
		logging.Int("unchanged", report.Unchanged),
		logging.Int64("pruned", report.Pruned),
		logging.Duration("duration", report.Duration()),
	}
	if report.Succeeded() {
		logger.Info("reconciliation finished", logging.Args(attrs...)...)
	} else {
		logger.Warn("reconciliation stopped early", logging.Args(attrs...)...)
	}

	// A locked run leaves the textfile to the run holding the lock.
	path := r.cfg.Metrics.Textfile
	if path == "" || report.DryRun || report.Status == StatusLocked {
		return
	}
	if err := writeMetrics(path, report); err != nil {
		logging.WarnWithContext(logger, "metrics export failed", "metrics_write_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "textfile collector shows stale values"),
		)
	}
}
