package playout

import (
	"slices"
	"sort"
	"time"

	"github.com/nerrad567/gray-logic-playout/internal/timeline"
)

// HistoryEntry is one accepted snapshot and the time it takes effect.
type HistoryEntry struct {
	Time     time.Time
	Snapshot timeline.Snapshot
}

// History is a time-ordered list of accepted snapshots.
//
// Snapshots rather than projected states are kept, so prior states are
// re-projected under the mapping in effect at each reconciliation.
//
// Thread Safety: not safe for concurrent use. The owning controller
// serialises access.
type History struct {
	entries []HistoryEntry
}

// Record stores snap at t, replacing any entry at exactly t.
func (h *History) Record(snap timeline.Snapshot, t time.Time) {
	i := sort.Search(len(h.entries), func(i int) bool {
		return !h.entries[i].Time.Before(t)
	})
	if i < len(h.entries) && h.entries[i].Time.Equal(t) {
		h.entries[i].Snapshot = snap
		return
	}
	h.entries = append(h.entries, HistoryEntry{})
	copy(h.entries[i+1:], h.entries[i:])
	h.entries[i] = HistoryEntry{Time: t, Snapshot: snap}
}

// Before returns the newest entry strictly earlier than t.
func (h *History) Before(t time.Time) (HistoryEntry, bool) {
	i := sort.Search(len(h.entries), func(i int) bool {
		return !h.entries[i].Time.Before(t)
	})
	if i == 0 {
		return HistoryEntry{}, false
	}
	return h.entries[i-1], true
}

// DropFrom removes every entry at or after t and returns how many.
func (h *History) DropFrom(t time.Time) int {
	i := sort.Search(len(h.entries), func(i int) bool {
		return !h.entries[i].Time.Before(t)
	})
	removed := len(h.entries) - i
	clear(h.entries[i:])
	h.entries = h.entries[:i]
	return removed
}

// PruneBefore removes entries that no Before(t') query with t' >= t can
// return: everything older than the newest entry earlier than t.
func (h *History) PruneBefore(t time.Time) int {
	i := sort.Search(len(h.entries), func(i int) bool {
		return !h.entries[i].Time.Before(t)
	})
	if i <= 1 {
		return 0
	}
	removed := i - 1
	h.entries = slices.Delete(h.entries, 0, removed)
	return removed
}

// CleanUp applies a retention window. A zero bound is ignored. The entry
// still in effect at before is kept.
func (h *History) CleanUp(before, after time.Time) int {
	removed := 0
	if !after.IsZero() {
		removed += h.DropFrom(after)
	}
	if !before.IsZero() {
		removed += h.PruneBefore(before)
	}
	return removed
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Entries returns a copy of all entries, oldest first.
func (h *History) Entries() []HistoryEntry {
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}
