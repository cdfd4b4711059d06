// Package history keeps bounded, time-indexed retention of raw snapshot and
// update-batch messages.
//
// A History is immutable: every mutator returns a new value and leaves the
// receiver untouched, so a reader holding one History always sees a single
// coherent state. Entries are kept in timestamp order; inserts copy the
// entry slice, which is cheap at the configured retention sizes.
package history

import (
	"sort"
	"time"

	"github.com/daviddao/crane_viewer/internal/wire"
)

const (
	// SweepInterval is how often the host should call Evict.
	SweepInterval = 30 * time.Second
	// DefaultMaxAge is the default retention window.
	DefaultMaxAge = 300 * time.Second
	// DefaultMaxCount is the default cap on retained timestamps per history.
	DefaultMaxCount = 1000
)

type (
	// SnapshotEntry is the snapshot stored at one arrival timestamp.
	SnapshotEntry struct {
		Time     int64
		Snapshot wire.Snapshot
	}

	// UpdateEntry holds every update batch that arrived in the same
	// millisecond, in insertion order.
	UpdateEntry struct {
		Time    int64
		Batches []wire.UpdateBatch
	}

	// History is the pair of snapshot and update-batch histories.
	History struct {
		snapshots []SnapshotEntry
		updates   []UpdateEntry
		version   uint64
	}
)

// New returns an empty History.
func New() *History {
	return &History{}
}

// Version increases on every change, so callers can detect a new history
// without comparing contents.
func (h *History) Version() uint64 {
	return h.version
}

func (h *History) clone() *History {
	return &History{
		snapshots: h.snapshots,
		updates:   h.updates,
		version:   h.version + 1,
	}
}

// RecordSnapshot stores snap at ts, replacing any snapshot already there.
func (h *History) RecordSnapshot(ts int64, snap wire.Snapshot) *History {
	n := h.clone()
	i := sort.Search(len(h.snapshots), func(i int) bool { return h.snapshots[i].Time >= ts })
	if i < len(h.snapshots) && h.snapshots[i].Time == ts {
		n.snapshots = make([]SnapshotEntry, len(h.snapshots))
		copy(n.snapshots, h.snapshots)
		n.snapshots[i].Snapshot = snap
		return n
	}
	n.snapshots = make([]SnapshotEntry, 0, len(h.snapshots)+1)
	n.snapshots = append(n.snapshots, h.snapshots[:i]...)
	n.snapshots = append(n.snapshots, SnapshotEntry{Time: ts, Snapshot: snap})
	n.snapshots = append(n.snapshots, h.snapshots[i:]...)
	return n
}

// RecordUpdateBatch appends batch to the batches stored at ts. Batches that
// share a millisecond are all kept, in the order they were recorded.
func (h *History) RecordUpdateBatch(ts int64, batch wire.UpdateBatch) *History {
	n := h.clone()
	i := sort.Search(len(h.updates), func(i int) bool { return h.updates[i].Time >= ts })
	if i < len(h.updates) && h.updates[i].Time == ts {
		n.updates = make([]UpdateEntry, len(h.updates))
		copy(n.updates, h.updates)
		old := h.updates[i].Batches
		batches := make([]wire.UpdateBatch, len(old), len(old)+1)
		copy(batches, old)
		n.updates[i].Batches = append(batches, batch)
		return n
	}
	n.updates = make([]UpdateEntry, 0, len(h.updates)+1)
	n.updates = append(n.updates, h.updates[:i]...)
	n.updates = append(n.updates, UpdateEntry{Time: ts, Batches: []wire.UpdateBatch{batch}})
	n.updates = append(n.updates, h.updates[i:]...)
	return n
}

// Evict drops entries older than now-maxAge, then keeps only the maxCount
// most recent timestamps of each history. A non-positive maxAge or maxCount
// disables that bound. When nothing is dropped the receiver is returned.
//
// Seeking to a time whose snapshot has been evicted resolves against what
// remains; retention must cover the seek range the host allows.
func (h *History) Evict(now int64, maxAge time.Duration, maxCount int) *History {
	cutoff := int64(0)
	hasCutoff := maxAge > 0
	if hasCutoff {
		cutoff = now - maxAge.Milliseconds()
	}

	snapFrom := 0
	if hasCutoff {
		snapFrom = sort.Search(len(h.snapshots), func(i int) bool { return h.snapshots[i].Time >= cutoff })
	}
	if maxCount > 0 && len(h.snapshots)-snapFrom > maxCount {
		snapFrom = len(h.snapshots) - maxCount
	}

	updFrom := 0
	if hasCutoff {
		updFrom = sort.Search(len(h.updates), func(i int) bool { return h.updates[i].Time >= cutoff })
	}
	if maxCount > 0 && len(h.updates)-updFrom > maxCount {
		updFrom = len(h.updates) - maxCount
	}

	if snapFrom == 0 && updFrom == 0 {
		return h
	}
	n := h.clone()
	n.snapshots = append([]SnapshotEntry(nil), h.snapshots[snapFrom:]...)
	n.updates = append([]UpdateEntry(nil), h.updates[updFrom:]...)
	return n
}

// BaseSnapshot returns the snapshot with the greatest timestamp <= t.
func (h *History) BaseSnapshot(t int64) (SnapshotEntry, bool) {
	i := sort.Search(len(h.snapshots), func(i int) bool { return h.snapshots[i].Time > t })
	if i == 0 {
		return SnapshotEntry{}, false
	}
	return h.snapshots[i-1], true
}

// UpdatesBetween returns the update entries with after < Time <= upTo in
// ascending time order. The returned slice must not be modified.
func (h *History) UpdatesBetween(after, upTo int64) []UpdateEntry {
	lo := sort.Search(len(h.updates), func(i int) bool { return h.updates[i].Time > after })
	hi := sort.Search(len(h.updates), func(i int) bool { return h.updates[i].Time > upTo })
	if lo >= hi {
		return nil
	}
	return h.updates[lo:hi]
}

// UpdatesUpTo returns every update entry with Time <= upTo.
func (h *History) UpdatesUpTo(upTo int64) []UpdateEntry {
	hi := sort.Search(len(h.updates), func(i int) bool { return h.updates[i].Time > upTo })
	return h.updates[:hi]
}

// LatestSnapshotTime returns the newest snapshot timestamp.
func (h *History) LatestSnapshotTime() (int64, bool) {
	if len(h.snapshots) == 0 {
		return 0, false
	}
	return h.snapshots[len(h.snapshots)-1].Time, true
}

// LatestUpdateTime returns the newest update-batch timestamp.
func (h *History) LatestUpdateTime() (int64, bool) {
	if len(h.updates) == 0 {
		return 0, false
	}
	return h.updates[len(h.updates)-1].Time, true
}

// Latest returns the newest timestamp across both histories.
func (h *History) Latest() (int64, bool) {
	s, okS := h.LatestSnapshotTime()
	u, okU := h.LatestUpdateTime()
	switch {
	case okS && okU:
		return max(s, u), true
	case okS:
		return s, true
	case okU:
		return u, true
	}
	return 0, false
}

// Oldest returns the oldest timestamp across both histories.
func (h *History) Oldest() (int64, bool) {
	var (
		oldest int64
		ok     bool
	)
	if len(h.snapshots) > 0 {
		oldest, ok = h.snapshots[0].Time, true
	}
	if len(h.updates) > 0 && (!ok || h.updates[0].Time < oldest) {
		oldest, ok = h.updates[0].Time, true
	}
	return oldest, ok
}

// SnapshotCount returns the number of retained snapshot timestamps.
func (h *History) SnapshotCount() int { return len(h.snapshots) }

// UpdateCount returns the number of retained update timestamps.
func (h *History) UpdateCount() int { return len(h.updates) }

// BatchCount returns the number of retained update batches.
func (h *History) BatchCount() int {
	n := 0
	for _, e := range h.updates {
		n += len(e.Batches)
	}
	return n
}

// Snapshots returns the retained snapshots in time order. The returned
// slice must not be modified.
func (h *History) Snapshots() []SnapshotEntry { return h.snapshots }

// Updates returns the retained update entries in time order. The returned
// slice must not be modified.
func (h *History) Updates() []UpdateEntry { return h.updates }
