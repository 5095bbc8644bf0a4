package matchcache

import (
	"errors"
	"fmt"
	"time"
)

// Status describes what the last pass decided about an item.
type Status string

const (
	// StatusMatched links the item to a timeline message.
	StatusMatched Status = "matched"
	// StatusUnmatched records that the item was searched and nothing was found.
	StatusUnmatched Status = "unmatched"
	// StatusProvisional carries a timestamp borrowed from neighbouring items.
	StatusProvisional Status = "provisional"
)

// ParseStatus converts a stored or user-supplied string into a Status.
func ParseStatus(value string) (Status, error) {
	switch Status(value) {
	case StatusMatched, StatusUnmatched, StatusProvisional:
		return Status(value), nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidRecord, value)
	}
}

// ErrInvalidRecord reports a record whose fields contradict its status.
var ErrInvalidRecord = errors.New("invalid record")

// Record is the cached reconciliation result for one catalog item.
type Record struct {
	ItemID     int64
	MessageID  *int64
	UploadedAt *time.Time
	Season     *int
	Status     Status
}

// Matched builds a record linking item to a message.
func Matched(itemID, messageID int64, uploadedAt time.Time, season int) Record {
	return Record{
		ItemID:     itemID,
		MessageID:  &messageID,
		UploadedAt: &uploadedAt,
		Season:     &season,
		Status:     StatusMatched,
	}
}

// Unmatched builds a searched-but-not-found record.
func Unmatched(itemID int64) Record {
	return Record{ItemID: itemID, Status: StatusUnmatched}
}

// Provisional builds a record with a borrowed timestamp and no message.
func Provisional(itemID int64, uploadedAt time.Time, season int) Record {
	return Record{
		ItemID:     itemID,
		UploadedAt: &uploadedAt,
		Season:     &season,
		Status:     StatusProvisional,
	}
}

// HasMessage reports whether the record points at a real timeline message.
func (r Record) HasMessage() bool {
	return r.Status == StatusMatched && r.MessageID != nil
}

// Validate checks that the optional fields agree with Status.
func (r Record) Validate() error {
	if r.ItemID <= 0 {
		return fmt.Errorf("%w: item id %d", ErrInvalidRecord, r.ItemID)
	}
	if (r.UploadedAt == nil) != (r.Season == nil) {
		return fmt.Errorf("%w: item %d: uploaded_at and season must be set together", ErrInvalidRecord, r.ItemID)
	}
	if r.Season != nil && *r.Season < 1 {
		return fmt.Errorf("%w: item %d: season %d", ErrInvalidRecord, r.ItemID, *r.Season)
	}
	switch r.Status {
	case StatusMatched:
		if r.MessageID == nil || r.UploadedAt == nil {
			return fmt.Errorf("%w: item %d: matched record needs message and timestamp", ErrInvalidRecord, r.ItemID)
		}
	case StatusUnmatched:
		if r.MessageID != nil || r.UploadedAt != nil {
			return fmt.Errorf("%w: item %d: unmatched record carries values", ErrInvalidRecord, r.ItemID)
		}
	case StatusProvisional:
		if r.MessageID != nil || r.UploadedAt == nil {
			return fmt.Errorf("%w: item %d: provisional record needs timestamp and no message", ErrInvalidRecord, r.ItemID)
		}
	default:
		return fmt.Errorf("%w: item %d: unknown status %q", ErrInvalidRecord, r.ItemID, r.Status)
	}
	return nil
}

// Equal compares records by value. Timestamps compare by instant so a record
// read back in UTC equals the one written in a local zone.
func (r Record) Equal(other Record) bool {
	if r.ItemID != other.ItemID || r.Status != other.Status {
		return false
	}
	if !equalPtr(r.MessageID, other.MessageID) || !equalPtr(r.Season, other.Season) {
		return false
	}
	switch {
	case r.UploadedAt == nil || other.UploadedAt == nil:
		return r.UploadedAt == nil && other.UploadedAt == nil
	default:
		return r.UploadedAt.Equal(*other.UploadedAt)
	}
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
