package timeline

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"cardsync/internal/logging"
)

// Message is a single timeline entry.
type Message struct {
	ID        int64
	Timestamp time.Time
	Text      string
	HasMedia  bool
	// MediaRef locates the attached media (URL or file path), if any.
	MediaRef string
	// MediaSignature is a provider-assigned media identity when the source
	// exposes one directly.
	MediaSignature string
}

// Source fetches up to limit messages, newest first. A limit <= 0 means the
// source's own default ceiling.
type Source interface {
	Name() string
	Fetch(ctx context.Context, limit int) ([]Message, error)
}

// Option configures the network-backed sources.
type Option func(*options)

type options struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	userAgent  string
}

func defaultOptions() options {
	return options{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(2), 1),
		logger:     logging.NewNop(),
		userAgent:  "cardsync/1.0",
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithRequestsPerSecond paces outgoing page requests. Values <= 0 disable
// pacing.
func WithRequestsPerSecond(rps float64) Option {
	return func(o *options) {
		if rps <= 0 {
			o.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithLogger sets the logger used for skipped entries and paging progress.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithUserAgent overrides the User-Agent header sent with requests.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// SortNewestFirst orders messages by timestamp descending, then id descending.
func SortNewestFirst(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return Newer(messages[i], messages[j])
	})
}

// Newer reports whether a is more recent than b: later timestamp first, then
// higher id.
func Newer(a, b Message) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.ID > b.ID
}
