package index

import (
	"sync/atomic"
	"time"
)

// Snapshot is an Index together with the generation it was published as.
type Snapshot struct {
	Index      *Index
	Generation uint64
	BuiltAt    time.Time
	Skipped    int
}

// Holder publishes the current Snapshot. Readers never block and always see
// a fully built Index; Swap replaces it in one atomic step.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// Load returns the current snapshot, or nil before the first Swap.
func (h *Holder) Load() *Snapshot {
	return h.current.Load()
}

// Swap publishes idx as the next generation and returns its snapshot.
// Generations increase strictly even under concurrent swaps.
func (h *Holder) Swap(idx *Index, skipped int) *Snapshot {
	for {
		old := h.current.Load()
		var gen uint64 = 1
		if old != nil {
			gen = old.Generation + 1
		}
		snap := &Snapshot{
			Index:      idx,
			Generation: gen,
			BuiltAt:    time.Now(),
			Skipped:    skipped,
		}
		if h.current.CompareAndSwap(old, snap) {
			return snap
		}
	}
}
