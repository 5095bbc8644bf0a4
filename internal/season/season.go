package season

import (
	"fmt"
	"strings"
	"time"
)

// Deriver computes season numbers relative to a fixed origin month.
type Deriver struct {
	OriginYear  int
	OriginMonth time.Month
	// Location decides which calendar month a timestamp falls in. Nil means UTC.
	Location *time.Location
}

// New returns a Deriver anchored at the given origin.
func New(year int, month time.Month, loc *time.Location) Deriver {
	return Deriver{OriginYear: year, OriginMonth: month, Location: loc}
}

// ParseOrigin parses an origin in YYYY-MM form, e.g. "2025-01".
func ParseOrigin(value string) (int, time.Month, error) {
	parsed, err := time.Parse("2006-01", strings.TrimSpace(value))
	if err != nil {
		return 0, 0, fmt.Errorf("parse season origin %q: %w", value, err)
	}
	return parsed.Year(), parsed.Month(), nil
}

// For returns the season containing t. The result is never below 1.
func (d Deriver) For(t time.Time) int {
	local := t.In(d.location())
	n := (local.Year()-d.OriginYear)*12 + int(local.Month()-d.OriginMonth) + 1
	if n < 1 {
		return 1
	}
	return n
}

// Start returns the first instant of season n. Seasons below 1 map to the
// origin.
func (d Deriver) Start(n int) time.Time {
	if n < 1 {
		n = 1
	}
	return time.Date(d.OriginYear, d.OriginMonth+time.Month(n-1), 1, 0, 0, 0, 0, d.location())
}

// Origin returns the first instant of the origin month.
func (d Deriver) Origin() time.Time {
	return d.Start(1)
}

func (d Deriver) location() *time.Location {
	if d.Location == nil {
		return time.UTC
	}
	return d.Location
}
