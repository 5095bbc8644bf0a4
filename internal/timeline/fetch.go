package timeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"cardsync/internal/logging"
)

// RetryPolicy bounds how long and how often a fetch is attempted.
type RetryPolicy struct {
	// Timeout applies to each attempt.
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy returns the retry settings used when none are configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Timeout:        2 * time.Minute,
		MaxRetries:     3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.Timeout <= 0 {
		p.Timeout = d.Timeout
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = d.MaxRetries
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = d.InitialBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	return p
}

// Fetch retrieves a snapshot from src. Each attempt runs under the policy
// timeout; transient failures are retried with exponential backoff. The result
// is de-duplicated by id, ordered newest first and capped at limit.
func Fetch(ctx context.Context, src Source, limit int, policy RetryPolicy, logger *slog.Logger) ([]Message, error) {
	if src == nil {
		return nil, errors.New("timeline source unavailable")
	}
	policy = policy.normalized()
	logger = logging.NewComponentLogger(logger, "timeline")

	attempt := 0
	for {
		attempt++
		messages, err := fetchOnce(ctx, src, limit, policy.Timeout)
		if err == nil {
			return finalize(messages, limit), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) || attempt > policy.MaxRetries {
			return nil, fmt.Errorf("fetch %s after %d attempt(s): %w", src.Name(), attempt, err)
		}
		backoff := policy.InitialBackoff * time.Duration(1<<uint(attempt-1))
		if backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
		logging.WarnWithContext(logger, "timeline fetch failed; retrying", "timeline_fetch_retry",
			logging.String("source", src.Name()),
			logging.Int("attempt", attempt),
			logging.Duration("backoff", backoff),
			logging.Error(err),
			logging.String(logging.FieldImpact, "run start delayed"),
		)
		if err := sleepWithContext(ctx, backoff); err != nil {
			return nil, err
		}
	}
}

func fetchOnce(ctx context.Context, src Source, limit int, timeout time.Duration) ([]Message, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return src.Fetch(attemptCtx, limit)
}

func finalize(messages []Message, limit int) []Message {
	seen := make(map[int64]struct{}, len(messages))
	out := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if _, ok := seen[msg.ID]; ok {
			continue
		}
		seen[msg.ID] = struct{}{}
		out = append(out, msg)
	}
	SortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ErrMalformed marks a source payload that cannot be parsed as a whole.
// Such errors are not retried.
var ErrMalformed = errors.New("malformed timeline payload")

func retryable(err error) bool {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, ErrMalformed) {
		return false
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return true
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
