package reconcile

import (
	"cmp"
	"slices"
	"time"

	"cardsync/internal/matchcache"
)

// anchor is an item with a real (matched) upload timestamp.
type anchor struct {
	itemID int64
	at     time.Time
}

// plan turns match outcomes into the records that must be written and
// updates the report counters. Records equal to the stored state are
// counted as unchanged and dropped.
func (r *Reconciler) plan(outcomes []outcome, report *Report) []matchcache.Record {
	anchors := collectAnchors(outcomes)

	pending := make([]matchcache.Record, 0, len(outcomes))
	for _, out := range outcomes {
		var rec matchcache.Record
		switch out.kind {
		case outcomeSkipped:
			report.Skipped++
			continue
		case outcomeFailed:
			report.Failed++
			continue
		case outcomeMatched:
			report.Matched++
			report.ByStrategy[out.match.Strategy]++
			at := out.match.Message.Timestamp
			rec = matchcache.Matched(out.item.ID, out.match.Message.ID, at, r.seasons.For(at))
		default:
			if r.fallbackEligible(out.existing) {
				report.Provisional++
				at := r.borrowTimestamp(anchors, out.item.ID)
				rec = matchcache.Provisional(out.item.ID, at, r.seasons.For(at))
			} else {
				report.Unmatched++
				rec = matchcache.Unmatched(out.item.ID)
			}
		}

		if out.existing != nil && out.existing.Equal(rec) {
			report.Unchanged++
			continue
		}
		pending = append(pending, rec)
	}
	return pending
}

// fallbackEligible reports whether an unmatched item may receive a
// provisional record: fallback is enabled and the item was never recorded or
// already holds a provisional value.
func (r *Reconciler) fallbackEligible(existing *matchcache.Record) bool {
	if !r.cfg.Reconcile.Fallback {
		return false
	}
	return existing == nil || existing.Status == matchcache.StatusProvisional
}

// collectAnchors returns matched timestamps sorted by item id. Items matched
// in this run and items keeping a stored match both count.
func collectAnchors(outcomes []outcome) []anchor {
	anchors := make([]anchor, 0, len(outcomes))
	for _, out := range outcomes {
		switch {
		case out.kind == outcomeMatched:
			anchors = append(anchors, anchor{itemID: out.item.ID, at: out.match.Message.Timestamp})
		case out.existing != nil && out.existing.HasMessage() && out.existing.UploadedAt != nil:
			if out.kind == outcomeSkipped || out.kind == outcomeFailed {
				anchors = append(anchors, anchor{itemID: out.item.ID, at: *out.existing.UploadedAt})
			}
		}
	}
	slices.SortFunc(anchors, func(a, b anchor) int { return cmp.Compare(a.itemID, b.itemID) })
	return anchors
}

// borrowTimestamp returns the timestamp of the nearest anchor with a lower
// item id, else the nearest with a higher id, else the season origin.
func (r *Reconciler) borrowTimestamp(anchors []anchor, itemID int64) time.Time {
	idx, _ := slices.BinarySearchFunc(anchors, itemID, func(a anchor, id int64) int { return cmp.Compare(a.itemID, id) })
	if idx > 0 {
		return anchors[idx-1].at
	}
	for ; idx < len(anchors); idx++ {
		if anchors[idx].itemID != itemID {
			return anchors[idx].at
		}
	}
	return r.seasons.Origin()
}
