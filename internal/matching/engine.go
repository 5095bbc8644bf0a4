package matching

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"cardsync/internal/catalog"
	"cardsync/internal/logging"
	"cardsync/internal/textutil"
	"cardsync/internal/timeline"
)

// Match is the outcome of FindMatch. The zero value means no match.
type Match struct {
	Message  timeline.Message
	Strategy string
	Score    float64
	found    bool
}

// Found reports whether a message was matched.
func (m Match) Found() bool { return m.found }

// Engine runs the strategy cascade. It is safe for concurrent use.
type Engine struct {
	policy      Policy
	strategies  []Strategy
	logger      *slog.Logger
	invocations atomic.Int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithStrategies replaces the default cascade.
func WithStrategies(strategies ...Strategy) Option {
	return func(e *Engine) {
		e.strategies = append([]Strategy(nil), strategies...)
	}
}

// WithMediaResolver appends the media-identity strategy to the cascade.
func WithMediaResolver(resolver timeline.Resolver) Option {
	return func(e *Engine) {
		if resolver != nil {
			e.strategies = append(e.strategies, MediaStrategy(resolver, e.logger))
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logging.NewComponentLogger(logger, "matching")
		}
	}
}

// NewEngine builds an engine with the default text cascade, adjusted by opts.
// Options apply in order, so pass WithLogger before WithMediaResolver.
func NewEngine(policy Policy, opts ...Option) *Engine {
	policy = policy.normalized()
	e := &Engine{
		policy:     policy,
		strategies: DefaultStrategies(policy),
		logger:     logging.NewComponentLogger(nil, "matching"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the effective thresholds.
func (e *Engine) Policy() Policy { return e.policy }

// Strategies lists strategy names in evaluation order.
func (e *Engine) Strategies() []string {
	names := make([]string, 0, len(e.strategies))
	for _, s := range e.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Snapshot preprocesses messages with the engine's policy.
func (e *Engine) Snapshot(messages []timeline.Message) *Snapshot {
	return NewSnapshot(messages, e.policy)
}

// Invocations counts FindMatch calls since the engine was created.
func (e *Engine) Invocations() int64 { return e.invocations.Load() }

// FindMatch returns the best message for item, or a Match with Found() false.
// Errors are item-level: a strategy could not evaluate this item.
func (e *Engine) FindMatch(ctx context.Context, snap *Snapshot, item catalog.Item) (Match, error) {
	e.invocations.Add(1)
	if snap == nil || snap.Len() == 0 {
		return Match{}, nil
	}

	q := newQuery(item)
	for _, strategy := range e.strategies {
		if err := ctx.Err(); err != nil {
			return Match{}, err
		}
		candidates, err := strategy.TryMatch(ctx, q, snap)
		if err != nil {
			return Match{}, fmt.Errorf("%s strategy: %w", strategy.Name(), err)
		}
		if len(candidates) == 0 {
			continue
		}
		top := best(candidates)
		attrs := append(logging.DecisionAttrs("match_strategy", strategy.Name(), "first strategy with candidates"),
			logging.Int64(logging.FieldItemID, item.ID),
			logging.Int64("message_id", top.Message.ID),
			logging.Int("candidates", len(candidates)),
			logging.Float64("score", top.Score),
		)
		e.logger.Debug("match decision", logging.Args(attrs...)...)
		return Match{Message: top.Message, Strategy: strategy.Name(), Score: top.Score, found: true}, nil
	}
	return Match{}, nil
}

func newQuery(item catalog.Item) Query {
	normalized := textutil.Normalize(item.Name)
	return Query{
		ItemID:     item.ID,
		Name:       item.Name,
		Normalized: normalized,
		Words:      textutil.Words(normalized),
		MediaRef:   item.MediaRef,
	}
}

// best picks the highest score; equal scores go to the most recent message.
func best(candidates []Candidate) Candidate {
	top := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score > top.Score || (c.Score == top.Score && timeline.Newer(c.Message, top.Message)) {
			top = c
		}
	}
	return top
}
