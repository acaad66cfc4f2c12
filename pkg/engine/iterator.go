package engine

// IterKind selects the direction and bound semantics of a MEM
// iterator, mirroring vy_mem's ITER_EQ/GE/GT/LE/LT seek modes.
type IterKind uint8

const (
	IterEQ IterKind = iota
	IterGE
	IterGT
	IterLE
	IterLT
)

// Iterator walks distinct keys of a Mem in the direction given by
// IterKind, visible view, yielding at most one (the newest visible)
// statement per key. It never holds raw node pointers across calls:
// every step re-descends the tree from the last returned key, so a
// concurrent mutation between calls can never leave it dereferencing
// an unlinked node — the same property vy_mem_iterator_restore exists
// to guarantee explicitly, here built into the steady-state walk.
type Iterator struct {
	mem *Mem
	kd  *KeyDef
	kind IterKind
	key  []Value // seek bound supplied by the caller
	rv   *ReadView

	started bool
	done    bool
	lastKey []Value
}

// NewIterator opens an iterator over mem bounded by (kind, key) and
// restricted to statements visible through rv.
func (m *Mem) NewIterator(kind IterKind, key []Value, rv *ReadView) *Iterator {
	return &Iterator{mem: m, kd: m.cmpDef, kind: kind, key: key, rv: rv}
}

func sameKeyNode(kd *KeyDef, n *treeNode, key []Value) (bool, error) {
	if n == nil {
		return false, nil
	}
	c, err := kd.CompareKeys(n.stmt.Key, key)
	if err != nil {
		return false, err
	}
	return c == 0, nil
}

// keyAfter returns the first node whose key is strictly greater than key.
func (it *Iterator) keyAfter(key []Value) (*treeNode, error) {
	return it.mem.tree.upperBound(key, LSNZero)
}

// keyBefore returns the last (oldest-LSN) node of the largest key
// strictly less than key.
func (it *Iterator) keyBefore(key []Value) (*treeNode, error) {
	node, err := it.mem.tree.lowerBound(key, LSNInf)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return it.mem.tree.last(), nil
	}
	return node.backward, nil
}

func (it *Iterator) seekInitial() (*treeNode, error) {
	switch it.kind {
	case IterEQ, IterGE:
		return it.mem.tree.lowerBound(it.key, LSNInf)
	case IterGT:
		return it.keyAfter(it.key)
	case IterLE:
		node, err := it.mem.tree.lowerBound(it.key, LSNInf)
		if err != nil {
			return nil, err
		}
		same, err := sameKeyNode(it.kd, node, it.key)
		if err != nil {
			return nil, err
		}
		if same {
			return node, nil
		}
		return it.keyBefore(it.key)
	case IterLT:
		return it.keyBefore(it.key)
	default:
		return nil, newErr(KindLogicViolation, "Iterator.seekInitial", nil)
	}
}

func (it *Iterator) forward() bool {
	return it.kind == IterGE || it.kind == IterGT || it.kind == IterEQ
}

func (it *Iterator) seekNext() (*treeNode, error) {
	if it.kind == IterEQ {
		return nil, nil
	}
	if it.forward() {
		return it.keyAfter(it.lastKey)
	}
	return it.keyBefore(it.lastKey)
}

// NextKey advances to and returns the next distinct key's newest
// statement visible through rv, skipping keys with no visible version
// (every version newer than rv's watermark, or hidden by FlagSkipRead).
func (it *Iterator) NextKey() (*Statement, bool) {
	m := it.mem
	m.mu.RLock()
	defer m.mu.RUnlock()

	if it.done {
		return nil, false
	}

	var node *treeNode
	var err error
	if !it.started {
		node, err = it.seekInitial()
		it.started = true
	} else {
		node, err = it.seekNext()
	}
	if err != nil {
		it.done = true
		return nil, false
	}

	for node != nil {
		key := node.stmt.Key
		visNode, verr := m.tree.lowerBound(key, it.rv.VLSN())
		if verr != nil {
			it.done = true
			return nil, false
		}
		for visNode != nil && visNode.stmt.Flags.Has(FlagSkipRead) {
			visNode = visNode.forward[0]
		}
		if visNode != nil {
			same, serr := it.kd.CompareKeys(visNode.stmt.Key, key)
			if serr != nil {
				it.done = true
				return nil, false
			}
			if same == 0 && it.rv.Visible(visNode.stmt) {
				it.lastKey = key
				if it.kind == IterEQ {
					it.done = true
				}
				return visNode.stmt, true
			}
		}
		if it.forward() {
			node, err = it.keyAfter(key)
		} else {
			node, err = it.keyBefore(key)
		}
		if err != nil {
			it.done = true
			return nil, false
		}
	}

	it.done = true
	return nil, false
}

// Restore repositions the iterator after the owner suspects a
// concurrent mutation (an Insert, Commit or Rollback) might have
// changed which statement immediately follows last. Because NextKey
// always re-descends from the last returned key rather than a cached
// node pointer, the only state that can go stale is it.done; Restore
// clears it so the next NextKey call re-seeks from last's key. It
// returns false, and changes nothing, when last is nil or the iterator
// has not started; otherwise it returns true. It does not consult the
// Mem's version counter.
func (it *Iterator) Restore(last *Statement) bool {
	if last == nil {
		return false
	}
	if !it.started {
		return false
	}
	it.done = false
	it.lastKey = last.Key
	return true
}

// Close releases the iterator. MEM iterators hold no resources beyond
// the lock taken per call, so Close is a no-op kept for API symmetry
// with WriteIterator.
func (it *Iterator) Close() {}
