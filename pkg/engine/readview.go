package engine

import (
	"sort"
	"sync"
)

// ReadView is one open snapshot: a vlsn such that only statements with
// LSN <= vlsn (and without FlagSkipRead) are visible through it.
type ReadView struct {
	vlsn int64
}

func (rv *ReadView) VLSN() int64 { return rv.vlsn }

// Visible reports whether stmt is observable through rv: its LSN must
// not exceed the view's watermark and it must not carry FlagSkipRead,
// which marks a statement invisible to every view regardless of LSN
// (used while a write is still pending rollback).
func (rv *ReadView) Visible(stmt *Statement) bool {
	if stmt.Flags.Has(FlagSkipRead) {
		return false
	}
	return stmt.LSN <= rv.vlsn
}

// ReadViewRegistry (RV) is the ordered set of currently outstanding
// read views, grounded on the teacher's TransactionManager.Begin /
// versionStore.GarbageCollect(minVersion) pairing: Open hands out a
// new view pinned at the current committed vlsn, Close retires one,
// and CommittedVLSN exposes the current write frontier so a new Open
// knows what to pin to.
type ReadViewRegistry struct {
	mu            sync.Mutex
	committedVLSN int64
	open          []*ReadView // kept sorted ascending by vlsn
}

func NewReadViewRegistry() *ReadViewRegistry {
	return &ReadViewRegistry{}
}

// Advance records a newly committed LSN as the registry's write
// frontier. It never retroactively affects already-open views.
func (r *ReadViewRegistry) Advance(lsn int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lsn > r.committedVLSN {
		r.committedVLSN = lsn
	}
}

func (r *ReadViewRegistry) CommittedVLSN() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.committedVLSN
}

// Open pins a new read view at the current committed vlsn.
func (r *ReadViewRegistry) Open() *ReadView {
	r.mu.Lock()
	defer r.mu.Unlock()
	rv := &ReadView{vlsn: r.committedVLSN}
	i := sort.Search(len(r.open), func(i int) bool { return r.open[i].vlsn >= rv.vlsn })
	r.open = append(r.open, nil)
	copy(r.open[i+1:], r.open[i:])
	r.open[i] = rv
	return rv
}

// Snapshot opens a read view pinned at an explicit vlsn rather than
// the current frontier, used to replay history up to a past point.
func (r *ReadViewRegistry) Snapshot(vlsn int64) *ReadView {
	r.mu.Lock()
	defer r.mu.Unlock()
	rv := &ReadView{vlsn: vlsn}
	i := sort.Search(len(r.open), func(i int) bool { return r.open[i].vlsn >= rv.vlsn })
	r.open = append(r.open, nil)
	copy(r.open[i+1:], r.open[i:])
	r.open[i] = rv
	return rv
}

// Close retires rv. It is idempotent against a rv not currently open.
func (r *ReadViewRegistry) Close(rv *ReadView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, o := range r.open {
		if o == rv {
			r.open = append(r.open[:i], r.open[i+1:]...)
			return
		}
	}
}

// MinOpenVLSN returns the lowest vlsn among open views, or -1 if none
// are open. WriteIterator does not call it; its band construction and
// last-level DELETE elision work from Bands.
func (r *ReadViewRegistry) MinOpenVLSN() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.open) == 0 {
		return -1
	}
	return r.open[0].vlsn
}

// Bands returns the sorted, de-duplicated list of vlsns among open
// views, the partition points WI uses to assign a key's version chain
// into bands per §4.7.
func (r *ReadViewRegistry) Bands() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, 0, len(r.open))
	var last int64 = -1
	first := true
	for _, o := range r.open {
		if first || o.vlsn != last {
			out = append(out, o.vlsn)
			last = o.vlsn
			first = false
		}
	}
	return out
}
