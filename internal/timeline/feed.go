package timeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"cardsync/internal/logging"
)

var trailingIDPattern = regexp.MustCompile(`(\d+)/?$`)

// FeedSource reads an RSS or Atom rendition of the channel.
type FeedSource struct {
	feedURL string
	parser  *gofeed.Parser
	opts    options
}

var _ Source = (*FeedSource)(nil)

// NewFeedSource creates a source reading feedURL.
func NewFeedSource(feedURL string, opts ...Option) (*FeedSource, error) {
	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return nil, errors.New("timeline feed url required")
	}
	o := applyOptions(opts)
	o.logger = logging.NewComponentLogger(o.logger, "timeline.feed")
	return &FeedSource{feedURL: feedURL, parser: gofeed.NewParser(), opts: o}, nil
}

// Name identifies the source in logs and reports.
func (s *FeedSource) Name() string { return "feed:" + s.feedURL }

// Fetch downloads and parses the feed. Feeds are not paginated, so limit only
// caps the result.
func (s *FeedSource) Fetch(ctx context.Context, limit int) ([]Message, error) {
	if err := s.opts.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := getBody(ctx, s.opts, s.feedURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	feed, err := s.parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse feed: %w", ErrMalformed, err)
	}

	out := make([]Message, 0, len(feed.Items))
	skipped := 0
	for _, item := range feed.Items {
		msg, ok := feedMessage(item)
		if !ok {
			skipped++
			continue
		}
		out = append(out, msg)
	}
	if skipped > 0 {
		s.opts.logger.Debug("skipped malformed feed items", logging.Int("skipped", skipped))
	}

	SortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	s.opts.logger.Info("fetched channel feed",
		logging.String("feed_url", s.feedURL),
		logging.Int("messages", len(out)),
	)
	return out, nil
}

func feedMessage(item *gofeed.Item) (Message, bool) {
	if item == nil {
		return Message{}, false
	}
	ref := cmp.Or(item.Link, item.GUID)
	match := trailingIDPattern.FindStringSubmatch(strings.TrimSpace(ref))
	if len(match) != 2 {
		return Message{}, false
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil || id <= 0 {
		return Message{}, false
	}

	var ts *time.Time
	switch {
	case item.PublishedParsed != nil:
		ts = item.PublishedParsed
	case item.UpdatedParsed != nil:
		ts = item.UpdatedParsed
	default:
		return Message{}, false
	}

	msg := Message{ID: id, Timestamp: ts.UTC()}
	msg.Text = flattenHTML(cmp.Or(item.Content, item.Description))
	if msg.Text == "" {
		msg.Text = strings.TrimSpace(item.Title)
	}

	for _, enclosure := range item.Enclosures {
		if enclosure == nil || enclosure.URL == "" {
			continue
		}
		msg.HasMedia = true
		if strings.HasPrefix(enclosure.Type, "image/") || msg.MediaRef == "" {
			msg.MediaRef = enclosure.URL
		}
	}
	if msg.MediaRef == "" && item.Image != nil && item.Image.URL != "" {
		msg.HasMedia = true
		msg.MediaRef = item.Image.URL
	}
	return msg, true
}

func flattenHTML(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return htmlText(doc.Find("body"))
}
