package engine

// WIConfig configures a WriteIterator run.
type WIConfig struct {
	CmpDef  *KeyDef
	Format  *Format
	RVs     *ReadViewRegistry
	Squash  uint8 // upsert squash threshold, mirrors Config.UpsertSquashThreshold
	// LastLevel marks this run's output as having no older data beneath
	// it anywhere else (no other Source exists below what was merged
	// here). It gates last-level DELETE elision only; the leading
	// INSERT/DELETE rewrite in processKey is unconditional and runs
	// regardless of LastLevel.
	LastLevel bool
}

// WriteIterator is the Go realization of WI: it merges the per-key
// version chains of every added Source (added newest-to-oldest, fixed
// source priority breaking ties on an identical (key,lsn) pair — see
// the Open Question decision recorded in DESIGN.md) into the minimal
// set of statements a later read view could need, grounded on the
// teacher's k-way sstable merge (pkg/lsm/lsm.go's compact/mergeSSTables)
// generalized from "skip superseded single-version rows" to the full
// per-key band/collapse/elision algorithm.
type WriteIterator struct {
	cfg     WIConfig
	sources []Source
	peek    []*Statement

	outQueue []*Statement
	started  bool
	closed   bool
}

func NewWriteIterator(cfg WIConfig) *WriteIterator {
	return &WriteIterator{cfg: cfg}
}

func (w *WriteIterator) AddSource(s Source) {
	w.sources = append(w.sources, s)
	w.peek = append(w.peek, nil)
}

// Start primes one lookahead statement per source, mirroring the
// teacher's mergeSSTables priming its per-iterator lookahead before
// the first min-key comparison.
func (w *WriteIterator) Start() error {
	for i, s := range w.sources {
		st, err := s.Next()
		if err != nil {
			return newErr(KindSourceRead, "WriteIterator.Start", err)
		}
		w.peek[i] = st
	}
	w.started = true
	return nil
}

func (w *WriteIterator) allExhausted() bool {
	for _, p := range w.peek {
		if p != nil {
			return false
		}
	}
	return true
}

func (w *WriteIterator) minKey() ([]Value, error) {
	var min []Value
	for _, p := range w.peek {
		if p == nil {
			continue
		}
		if min == nil {
			min = p.Key
			continue
		}
		c, err := w.cfg.CmpDef.CompareKeys(p.Key, min)
		if err != nil {
			return nil, err
		}
		if c < 0 {
			min = p.Key
		}
	}
	return min, nil
}

// collectChain pulls every statement matching key off every source's
// lookahead, deduping an identical (key,lsn) pair presented by more
// than one source in favor of the first-added source, and returns the
// merged chain sorted newest (highest LSN) first.
func (w *WriteIterator) collectChain(key []Value) ([]*Statement, error) {
	byLSN := make(map[int64]*Statement)
	order := make([]int64, 0, 4)

	for i, s := range w.sources {
		for w.peek[i] != nil {
			c, err := w.cfg.CmpDef.CompareKeys(w.peek[i].Key, key)
			if err != nil {
				return nil, err
			}
			if c != 0 {
				break
			}
			st := w.peek[i]
			if _, seen := byLSN[st.LSN]; !seen {
				byLSN[st.LSN] = st
				order = append(order, st.LSN)
			}
			next, err := s.Next()
			if err != nil {
				return nil, newErr(KindSourceRead, "WriteIterator.collectChain", err)
			}
			w.peek[i] = next
		}
	}

	// sort order descending by LSN (insertion order from `order` is not
	// guaranteed sorted across interleaved sources, so sort explicitly).
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && order[j] > order[j-1]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}

	chain := make([]*Statement, len(order))
	for i, lsn := range order {
		chain[i] = byLSN[lsn]
	}
	return chain, nil
}

// assignBands partitions chain (newest first) by the registry's open
// vlsns: two statements land in the same band iff no currently open
// read view's vlsn v satisfies older LSN <= v < newer LSN, meaning every
// live read view agrees on their joint visibility and they can be
// safely collapsed to one representative.
func assignBands(chain []*Statement, bounds []int64) [][]*Statement {
	if len(chain) == 0 {
		return nil
	}
	// bounds ascending; bandFor returns the smallest bound >= lsn, or
	// len(bounds) if lsn exceeds every open watermark (the uncommitted
	// "future" band no open read view can observe yet).
	bandFor := func(lsn int64) int {
		for i, b := range bounds {
			if lsn <= b {
				return i
			}
		}
		return len(bounds)
	}

	var bands [][]*Statement
	curBand := bandFor(chain[0].LSN)
	start := 0
	for i := 1; i < len(chain); i++ {
		b := bandFor(chain[i].LSN)
		if b != curBand {
			bands = append(bands, chain[start:i])
			start = i
			curBand = b
		}
	}
	bands = append(bands, chain[start:])
	return bands
}

// processKey runs the full per-key WI algorithm (spec §4.7 steps 1-8)
// over one key's deduped, sorted chain, returning the surviving
// statements in newest-first order.
func (w *WriteIterator) processKey(chain []*Statement) ([]*Statement, error) {
	bounds := w.cfg.RVs.Bands()
	bands := assignBands(chain, bounds)

	reps := make([]*Statement, 0, len(bands))
	for bi, band := range bands {
		isOldestBand := bi == len(bands)-1
		// The suffix from this band's start to the chain's end supplies
		// everything needed to found an UPSERT chain rooted in an older
		// band; ApplyHistory walks it oldest-to-newest internally.
		suffix := chain[indexOf(chain, band[0]):]
		keepDelete := !(w.cfg.LastLevel && isOldestBand)
		rep, _, err := ApplyHistory(suffix, w.cfg.Format, keepDelete)
		if err != nil {
			return nil, err
		}
		if rep == nil {
			continue
		}
		// The representative's identity (LSN, OptimizedGroup) is taken
		// from the band's newest member: that is the LSN at or below
		// which this exact resolved value first became visible.
		rep.LSN = band[0].LSN
		rep.OptimizedGroup = band[0].OptimizedGroup
		reps = append(reps, rep)
	}

	if len(reps) == 0 {
		return nil, nil
	}

	// Leading INSERT/DELETE rewriting (spec §4.7.2 rule 5): this is
	// decided by the true oldest STMT of the whole chain, never by
	// is_last_level — a key's chain carries its own answer to "does an
	// INSERT found this history" regardless of which level is merging.
	oldestInChain := chain[len(chain)-1]
	if oldestInChain.Type == Insert {
		// Every representative older than the first non-DELETE one is
		// part of a tautological tombstone run sitting on top of a real
		// INSERT: discard them, then the first survivor becomes the
		// INSERT itself.
		for len(reps) > 0 && reps[len(reps)-1].Type == Delete {
			reps = reps[:len(reps)-1]
		}
		if len(reps) > 0 {
			reps[len(reps)-1].Type = Insert
		}
	} else if reps[len(reps)-1].Type == Insert {
		// The true founder is not an INSERT (it may be hidden beneath
		// this merge), so the oldest surviving representative must not
		// falsely claim to be one.
		reps[len(reps)-1].Type = Replace
	}

	if len(reps) == 0 {
		return nil, nil
	}

	// Secondary-index optimized-update elision: adjacent representatives
	// sharing a nonzero OptimizedGroup collapse to the newer one, which
	// already carries the group's fully-applied effect.
	out := reps[:1]
	for i := 1; i < len(reps); i++ {
		prev := out[len(out)-1]
		cur := reps[i]
		if prev.OptimizedGroup != 0 && prev.OptimizedGroup == cur.OptimizedGroup {
			continue
		}
		out = append(out, cur)
	}

	return out, nil
}

func indexOf(chain []*Statement, target *Statement) int {
	for i, s := range chain {
		if s == target {
			return i
		}
	}
	return 0
}

// Next returns the next surviving statement across every key this
// WriteIterator's sources span, in ascending key order.
func (w *WriteIterator) Next() (*Statement, bool, error) {
	if w.closed {
		return nil, false, nil
	}
	if !w.started {
		if err := w.Start(); err != nil {
			return nil, false, err
		}
	}

	for len(w.outQueue) == 0 {
		if w.allExhausted() {
			return nil, false, nil
		}
		key, err := w.minKey()
		if err != nil {
			return nil, false, err
		}
		chain, err := w.collectChain(key)
		if err != nil {
			return nil, false, err
		}
		results, err := w.processKey(chain)
		if err != nil {
			return nil, false, err
		}
		w.outQueue = append(w.outQueue, results...)
	}

	out := w.outQueue[0]
	w.outQueue = w.outQueue[1:]
	return out, true, nil
}

func (w *WriteIterator) Close() {
	if w.closed {
		return
	}
	for _, s := range w.sources {
		_ = s.Close()
	}
	w.closed = true
}
