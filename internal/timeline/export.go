package timeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cardsync/internal/logging"
)

// exportDateLayout is the local-time layout Telegram Desktop writes in "date".
const exportDateLayout = "2006-01-02T15:04:05"

// ExportSource reads a Telegram Desktop JSON export (result.json).
type ExportSource struct {
	path     string
	location *time.Location
	logger   *slog.Logger
}

var _ Source = (*ExportSource)(nil)

// NewExportSource creates a source over the export file at path. loc
// interprets export dates that carry no unix timestamp; nil means UTC.
func NewExportSource(path string, loc *time.Location, logger *slog.Logger) (*ExportSource, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("timeline export path required")
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, "result.json")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ExportSource{
		path:     path,
		location: loc,
		logger:   logging.NewComponentLogger(logger, "timeline.export"),
	}, nil
}

// Name identifies the source in logs and reports.
func (s *ExportSource) Name() string { return "export:" + s.path }

type exportFile struct {
	Name     string            `json:"name"`
	Messages []json.RawMessage `json:"messages"`
}

type exportMessage struct {
	ID           int64      `json:"id"`
	Type         string     `json:"type"`
	Date         string     `json:"date"`
	DateUnixtime string     `json:"date_unixtime"`
	Text         exportText `json:"text"`
	Photo        string     `json:"photo"`
	File         string     `json:"file"`
	MediaType    string     `json:"media_type"`
}

// exportText accepts both the plain string form and the array of string or
// entity objects Telegram uses for formatted text.
type exportText string

func (t *exportText) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		*t = exportText(plain)
		return nil
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("decode export text: %w", err)
	}
	var b strings.Builder
	for _, part := range parts {
		var s string
		if err := json.Unmarshal(part, &s); err == nil {
			b.WriteString(s)
			continue
		}
		var entity struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(part, &entity); err == nil {
			b.WriteString(entity.Text)
		}
	}
	*t = exportText(b.String())
	return nil
}

// Fetch reads the export from disk. limit caps the newest messages returned.
func (s *ExportSource) Fetch(ctx context.Context, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	var file exportFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: decode export %s: %w", ErrMalformed, s.path, err)
	}

	baseDir := filepath.Dir(s.path)
	out := make([]Message, 0, len(file.Messages))
	skipped := 0
	for _, entry := range file.Messages {
		var raw exportMessage
		if err := json.Unmarshal(entry, &raw); err != nil {
			skipped++
			s.logger.Debug("export message not decodable", logging.Error(err))
			continue
		}
		if raw.Type != "" && raw.Type != "message" {
			continue
		}
		msg, ok := s.convert(raw, baseDir)
		if !ok {
			skipped++
			continue
		}
		out = append(out, msg)
	}
	if skipped > 0 {
		s.logger.Debug("skipped malformed export messages", logging.Int("skipped", skipped))
	}

	SortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	s.logger.Info("loaded channel export",
		logging.String("path", s.path),
		logging.String("channel", file.Name),
		logging.Int("messages", len(out)),
	)
	return out, nil
}

func (s *ExportSource) convert(raw exportMessage, baseDir string) (Message, bool) {
	if raw.ID <= 0 {
		return Message{}, false
	}
	ts, ok := s.parseDate(raw)
	if !ok {
		return Message{}, false
	}
	msg := Message{ID: raw.ID, Timestamp: ts, Text: strings.TrimSpace(string(raw.Text))}
	media := raw.Photo
	if media == "" {
		media = raw.File
	}
	if media != "" {
		msg.HasMedia = true
		// Exports made without media carry a placeholder instead of a path.
		if !strings.HasPrefix(media, "(") {
			if !filepath.IsAbs(media) {
				media = filepath.Join(baseDir, media)
			}
			msg.MediaRef = media
		}
	}
	return msg, true
}

func (s *ExportSource) parseDate(raw exportMessage) (time.Time, bool) {
	if raw.DateUnixtime != "" {
		if secs, err := strconv.ParseInt(raw.DateUnixtime, 10, 64); err == nil {
			return time.Unix(secs, 0).UTC(), true
		}
	}
	if raw.Date == "" {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(exportDateLayout, raw.Date, s.location)
	if err != nil {
		return time.Time{}, false
	}
	return ts.UTC(), true
}
