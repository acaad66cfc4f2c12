package engine

import "sync"

// Mem is the Go realization of MEM: one generation's worth of
// uncommitted and committed writes, held in a single arena-backed TREE.
// Writers take mu exclusively; readers (iterators, streams, OlderLSN)
// take it shared for the duration of each call.
type Mem struct {
	mu sync.RWMutex

	generation int64
	cmpDef     *KeyDef
	format     *Format
	arena      *Arena
	tree       *tree

	rowCount  int64
	byteCount int64
	minLSN    int64
	maxLSN    int64
	dumpLSN   int64

	squashThreshold uint8
}

// NewMem constructs an empty Mem bound to one Arena and one key
// comparator. generation identifies this Mem among its siblings and is
// reported by Generation; WriteIterator does not read it (its source
// priority is the order sources were added).
func NewMem(arena *Arena, cmpDef *KeyDef, format *Format, generation int64) *Mem {
	return &Mem{
		generation:      generation,
		cmpDef:          cmpDef,
		format:          format,
		arena:           arena,
		tree:            newTree(cmpDef),
		minLSN:          LSNInf,
		squashThreshold: defaultUpsertSquashThreshold,
	}
}

func (m *Mem) Generation() int64 { return m.generation }
func (m *Mem) RowCount() int64   { return m.rowCount }
func (m *Mem) ByteCount() int64  { return m.byteCount }
func (m *Mem) MinLSN() int64     { return m.minLSN }
func (m *Mem) MaxLSN() int64     { return m.maxLSN }
func (m *Mem) DumpLSN() int64    { return m.dumpLSN }
func (m *Mem) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Version()
}

func (m *Mem) touchLSN(lsn int64) {
	if lsn < m.minLSN {
		m.minLSN = lsn
	}
	if lsn > m.maxLSN {
		m.maxLSN = lsn
	}
}

// Insert adds a non-UPSERT statement (INSERT, REPLACE, or DELETE) to
// this Mem. SELECT_KEY statements are never resident in a Mem.
func (m *Mem) Insert(typ Type, lsn int64, key, payload []Value) (*Statement, error) {
	if typ == SelectKey {
		return nil, newErr(KindLogicViolation, "Mem.Insert", nil)
	}
	if err := m.cmpDef.ValidateEQ(key); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stmt := m.arena.Alloc(typ, lsn, key, payload)
	if _, err := m.tree.Insert(stmt); err != nil {
		return nil, err
	}
	m.rowCount++
	m.byteCount = m.arena.UsedBytes()
	m.touchLSN(lsn)
	return stmt, nil
}

// InsertUpsert adds an UPSERT statement, computing its NUpserts squash
// counter from the immediately older entry for the same key: a chain
// of consecutive UPSERTs accumulates a saturating count capped at
// squashThreshold+1, the signal ShouldSquash reads to decide that a
// history application is due instead of growing the chain unbounded.
func (m *Mem) InsertUpsert(lsn int64, key []Value, ops []FieldOp) (*Statement, error) {
	if err := m.cmpDef.ValidateEQ(key); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var nUpserts uint8
	olderNode, err := m.tree.upperBound(key, lsn)
	if err != nil {
		return nil, err
	}
	if olderNode != nil {
		same, err := SameKey(m.cmpDef, olderNode.stmt, &Statement{Key: key})
		if err != nil {
			return nil, err
		}
		if same && olderNode.stmt.Type == Upsert {
			nUpserts = olderNode.stmt.NUpserts + 1
			if nUpserts > m.squashThreshold+1 {
				nUpserts = m.squashThreshold + 1
			}
		}
	}

	stmt := m.arena.Alloc(Upsert, lsn, key, nil)
	stmt.Ops = cloneOps(ops)
	stmt.NUpserts = nUpserts
	if _, err := m.tree.Insert(stmt); err != nil {
		return nil, err
	}
	m.rowCount++
	m.byteCount = m.arena.UsedBytes()
	m.touchLSN(lsn)
	return stmt, nil
}

// Commit marks stmt's LSN as durable within this Mem's dump watermark
// and bumps the version counter: the statement's visibility may change
// for a read view taken after this call even though the tree's shape
// did not, so outstanding iterators must still be told to restore.
func (m *Mem) Commit(stmt *Statement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stmt.LSN > m.dumpLSN {
		m.dumpLSN = stmt.LSN
	}
	m.tree.version++
}

// Rollback removes stmt from this Mem. The arena does not reclaim its
// memory; only freeing the whole Mem does that.
func (m *Mem) Rollback(stmt *Statement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed, err := m.tree.Delete(stmt.Key, stmt.LSN)
	if err != nil {
		return err
	}
	if removed != nil {
		m.rowCount--
	}
	return nil
}

// OlderLSN returns the entry for stmt's key with the highest LSN
// strictly less than stmt.LSN, or nil if none exists. It never returns
// an entry of a different key.
func (m *Mem) OlderLSN(stmt *Statement) (*Statement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	node, err := m.tree.upperBound(stmt.Key, stmt.LSN)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, nil
	}
	same, err := SameKey(m.cmpDef, node.stmt, stmt)
	if err != nil {
		return nil, err
	}
	if !same {
		return nil, nil
	}
	return node.stmt, nil
}
