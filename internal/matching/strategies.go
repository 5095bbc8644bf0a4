package matching

import (
	"context"
	"fmt"
	"log/slog"

	"cardsync/internal/logging"
	"cardsync/internal/textutil"
	"cardsync/internal/timeline"
)

// Query is a catalog item prepared for matching.
type Query struct {
	ItemID     int64
	Name       string
	Normalized string
	Words      []string
	MediaRef   string
}

// Candidate is a message accepted by a strategy together with its score.
type Candidate struct {
	Message timeline.Message
	Score   float64
}

// Strategy is one step of the matching cascade. TryMatch returns every
// acceptable candidate; an empty result passes control to the next strategy.
type Strategy interface {
	Name() string
	TryMatch(ctx context.Context, q Query, snap *Snapshot) ([]Candidate, error)
}

// Strategy names as reported in matches and run reports.
const (
	StrategyExact       = "exact"
	StrategyContainment = "containment"
	StrategyWordOverlap = "word_overlap"
	StrategyFuzzy       = "fuzzy"
	StrategyMedia       = "media"
)

// DefaultStrategies returns the text cascade in evaluation order.
func DefaultStrategies(policy Policy) []Strategy {
	policy = policy.normalized()
	return []Strategy{
		exactStrategy{},
		containmentStrategy{policy: policy},
		overlapStrategy{policy: policy},
		fuzzyStrategy{policy: policy},
	}
}

type exactStrategy struct{}

func (exactStrategy) Name() string { return StrategyExact }

func (exactStrategy) TryMatch(_ context.Context, q Query, snap *Snapshot) ([]Candidate, error) {
	if q.Normalized == "" {
		return nil, nil
	}
	var out []Candidate
	for _, e := range snap.entries {
		if e.hasName() && e.name == q.Normalized {
			out = append(out, Candidate{Message: e.msg, Score: 1})
		}
	}
	return out, nil
}

type containmentStrategy struct {
	policy Policy
}

func (containmentStrategy) Name() string { return StrategyContainment }

func (s containmentStrategy) TryMatch(_ context.Context, q Query, snap *Snapshot) ([]Candidate, error) {
	// Single words hit too many unrelated captions as substrings.
	if len(q.Words) < s.policy.MinOverlapWords {
		return nil, nil
	}
	var out []Candidate
	for _, e := range snap.entries {
		if e.normalized == "" {
			continue
		}
		contained := textutil.ContainsPhrase(e.normalized, q.Normalized) ||
			(e.hasName() && textutil.ContainsPhrase(q.Normalized, e.name))
		if !contained {
			continue
		}
		if textutil.Overlap(q.Words, e.words) < s.policy.ContainmentMinOverlap {
			continue
		}
		out = append(out, Candidate{Message: e.msg, Score: 1})
	}
	return out, nil
}

type overlapStrategy struct {
	policy Policy
}

func (overlapStrategy) Name() string { return StrategyWordOverlap }

func (s overlapStrategy) TryMatch(_ context.Context, q Query, snap *Snapshot) ([]Candidate, error) {
	if len(q.Words) < s.policy.MinOverlapWords {
		return nil, nil
	}
	var out []Candidate
	for _, e := range snap.entries {
		score := textutil.Overlap(q.Words, e.compareWords())
		if score >= s.policy.OverlapThreshold {
			out = append(out, Candidate{Message: e.msg, Score: score})
		}
	}
	return out, nil
}

type fuzzyStrategy struct {
	policy Policy
}

func (fuzzyStrategy) Name() string { return StrategyFuzzy }

func (s fuzzyStrategy) TryMatch(ctx context.Context, q Query, snap *Snapshot) ([]Candidate, error) {
	if q.Normalized == "" {
		return nil, nil
	}
	var out []Candidate
	for i, e := range snap.entries {
		if i%256 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		text := e.compareText()
		if text == "" {
			continue
		}
		score := textutil.Ratio(q.Normalized, text)
		if score >= s.policy.FuzzyThreshold {
			out = append(out, Candidate{Message: e.msg, Score: score})
		}
	}
	return out, nil
}

// mediaStrategy compares content signatures. Item resolution failures are
// item-level errors; message resolution failures only drop that message.
type mediaStrategy struct {
	resolver timeline.Resolver
	logger   *slog.Logger
}

// MediaStrategy returns a media-identity strategy backed by resolver.
func MediaStrategy(resolver timeline.Resolver, logger *slog.Logger) Strategy {
	return mediaStrategy{resolver: resolver, logger: logging.NewComponentLogger(logger, "matching.media")}
}

func (mediaStrategy) Name() string { return StrategyMedia }

func (s mediaStrategy) TryMatch(ctx context.Context, q Query, snap *Snapshot) ([]Candidate, error) {
	if q.MediaRef == "" || s.resolver == nil {
		return nil, nil
	}
	itemSig, err := s.resolver.Resolve(ctx, q.MediaRef)
	if err != nil {
		return nil, fmt.Errorf("resolve item %d media: %w", q.ItemID, err)
	}

	var out []Candidate
	for _, e := range snap.entries {
		if !e.msg.HasMedia {
			continue
		}
		sig := e.msg.MediaSignature
		if sig == "" && e.msg.MediaRef != "" {
			sig, err = s.resolver.Resolve(ctx, e.msg.MediaRef)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				s.logger.Debug("message media unavailable",
					logging.Int64("message_id", e.msg.ID),
					logging.Error(err),
				)
				continue
			}
		}
		if sig != "" && sig == itemSig {
			out = append(out, Candidate{Message: e.msg, Score: 1})
		}
	}
	return out, nil
}
