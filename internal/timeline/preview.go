package timeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"cardsync/internal/logging"
)

// DefaultPreviewBaseURL is the public web preview endpoint for channels.
const DefaultPreviewBaseURL = "https://t.me/s"

const defaultPreviewLimit = 1000

var backgroundImagePattern = regexp.MustCompile(`background-image:\s*url\(['"]?([^'")]+)['"]?\)`)

// StatusError reports a non-success HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
	Latency    time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned %d (latency=%v)", e.URL, e.StatusCode, e.Latency)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// PreviewSource pages backwards through a public channel's web preview.
type PreviewSource struct {
	channel string
	baseURL string
	opts    options
}

var _ Source = (*PreviewSource)(nil)

// NewPreviewSource creates a web preview source for channel.
func NewPreviewSource(channel, baseURL string, opts ...Option) (*PreviewSource, error) {
	channel = strings.TrimPrefix(strings.TrimSpace(channel), "@")
	if channel == "" {
		return nil, errors.New("timeline channel required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultPreviewBaseURL
	}
	o := applyOptions(opts)
	o.logger = logging.NewComponentLogger(o.logger, "timeline.preview")
	return &PreviewSource{
		channel: channel,
		baseURL: strings.TrimRight(baseURL, "/"),
		opts:    o,
	}, nil
}

// Name identifies the source in logs and reports.
func (s *PreviewSource) Name() string { return "preview:" + s.channel }

// Fetch walks pages from newest to oldest until limit messages are collected
// or the channel history is exhausted.
func (s *PreviewSource) Fetch(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = defaultPreviewLimit
	}
	seen := make(map[int64]struct{}, limit)
	out := make([]Message, 0, limit)
	var before int64
	pages := 0

	for len(out) < limit {
		if err := s.opts.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, skipped, err := s.fetchPage(ctx, before)
		if err != nil {
			return nil, err
		}
		pages++
		if skipped > 0 {
			s.opts.logger.Debug("skipped malformed preview entries",
				logging.Int("skipped", skipped),
				logging.Int64("before", before),
			)
		}

		oldest := before
		added := 0
		for _, msg := range page {
			if oldest == 0 || msg.ID < oldest {
				oldest = msg.ID
			}
			if _, dup := seen[msg.ID]; dup {
				continue
			}
			seen[msg.ID] = struct{}{}
			out = append(out, msg)
			added++
		}
		if added == 0 || oldest <= 1 || oldest == before {
			break
		}
		before = oldest
	}

	SortNewestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	s.opts.logger.Info("fetched channel preview",
		logging.String("channel", s.channel),
		logging.Int("messages", len(out)),
		logging.Int("pages", pages),
	)
	return out, nil
}

func (s *PreviewSource) fetchPage(ctx context.Context, before int64) ([]Message, int, error) {
	endpoint, err := url.Parse(s.baseURL + "/" + url.PathEscape(s.channel))
	if err != nil {
		return nil, 0, fmt.Errorf("parse preview url: %w", err)
	}
	if before > 0 {
		params := url.Values{}
		params.Set("before", strconv.FormatInt(before, 10))
		endpoint.RawQuery = params.Encode()
	}

	body, err := getBody(ctx, s.opts, endpoint.String())
	if err != nil {
		return nil, 0, err
	}
	defer body.Close()

	return parsePreviewPage(body)
}

func getBody(ctx context.Context, o options, target string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", o.userAgent)

	requestStart := time.Now()
	resp, err := o.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{URL: target, StatusCode: resp.StatusCode, Latency: latency}
	}
	return resp.Body, nil
}

// parsePreviewPage extracts messages from one preview page. Entries missing an
// id or a timestamp are skipped and counted.
func parsePreviewPage(r io.Reader) ([]Message, int, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("parse preview html: %w", err)
	}

	var (
		messages []Message
		skipped  int
	)
	doc.Find(".tgme_widget_message[data-post]").Each(func(_ int, sel *goquery.Selection) {
		msg, ok := parsePreviewMessage(sel)
		if !ok {
			skipped++
			return
		}
		messages = append(messages, msg)
	})
	return messages, skipped, nil
}

func parsePreviewMessage(sel *goquery.Selection) (Message, bool) {
	post, _ := sel.Attr("data-post")
	idx := strings.LastIndex(post, "/")
	if idx < 0 {
		return Message{}, false
	}
	id, err := strconv.ParseInt(post[idx+1:], 10, 64)
	if err != nil || id <= 0 {
		return Message{}, false
	}

	stamp := sel.Find(".tgme_widget_message_date time").AttrOr("datetime", "")
	ts, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return Message{}, false
	}

	msg := Message{ID: id, Timestamp: ts.UTC()}
	if textSel := sel.Find(".js-message_text").First(); textSel.Length() > 0 {
		msg.Text = htmlText(textSel)
	}

	if photo := sel.Find(".tgme_widget_message_photo_wrap").First(); photo.Length() > 0 {
		msg.HasMedia = true
		if match := backgroundImagePattern.FindStringSubmatch(photo.AttrOr("style", "")); len(match) == 2 {
			msg.MediaRef = match[1]
		}
	} else if sel.Find(".tgme_widget_message_video_player, .tgme_widget_message_document").Length() > 0 {
		msg.HasMedia = true
	}
	return msg, true
}

// htmlText flattens a caption fragment, keeping line breaks.
func htmlText(sel *goquery.Selection) string {
	clone := sel.Clone()
	clone.Find("br").ReplaceWithHtml("\n")
	return strings.TrimSpace(clone.Text())
}
