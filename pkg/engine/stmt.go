package engine

import "sync/atomic"

// Type is the statement kind (STMT).
type Type uint8

const (
	Insert Type = iota
	Replace
	Delete
	Upsert
	// SelectKey is a key-only probe; it is never resident in a Mem and
	// carries no payload, only a Key.
	SelectKey
)

func (t Type) String() string {
	switch t {
	case Insert:
		return "INSERT"
	case Replace:
		return "REPLACE"
	case Delete:
		return "DELETE"
	case Upsert:
		return "UPSERT"
	case SelectKey:
		return "SELECT_KEY"
	default:
		return "UNKNOWN"
	}
}

// Flags are per-statement bits.
type Flags uint8

const (
	// FlagSkipRead marks a statement invisible to any read view, even
	// one whose vlsn would otherwise admit it (used during rollback).
	FlagSkipRead Flags = 1 << iota
	// FlagDeferredDelete is a secondary-index bookkeeping hint carried
	// through the core unchanged; no operation here consumes it.
	FlagDeferredDelete
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Statement is the Go realization of STMT. It is produced in one of two
// shapes (see the Design Notes on ownership):
//
//   - arena-resident: allocated by exactly one Mem's Arena, address
//     stable for the Mem's lifetime, never individually freed, and
//     never reference counted (refs is left at zero and ignored).
//   - Owned: heap allocated and atomically reference counted, used for
//     on-disk Source input to a WriteIterator and for its output.
//
// Both shapes share this layout; only the allocator and who is
// responsible for the pointer's lifetime differ.
type Statement struct {
	Type  Type
	Flags Flags
	LSN   int64

	// NUpserts is a saturating counter of how many consecutive UPSERTs
	// for this key sit directly beneath this one (0 for the first UPSERT
	// of a chain), capped at threshold+1. It drives UPS squash-on-insert.
	NUpserts uint8

	// OptimizedGroup identifies a secondary-index optimized-update group
	// this statement belongs to (0 means none). Replaces LSN-equality +
	// flag matching per the redesign: statements sharing a nonzero
	// OptimizedGroup are treated as one atomic update for WI elision
	// purposes, independent of whether their LSNs happen to coincide.
	OptimizedGroup uint64

	Key     []Value
	Payload []Value   // full tuple; nil for SelectKey probes, nil for UPSERT
	Ops     []FieldOp // field-level update ops; only set on UPSERT statements

	owned bool
	refs  int32
}

// FieldOp is one field-level write an UPSERT applies onto whatever
// tuple it eventually lands on top of.
type FieldOp struct {
	Field int
	Value Value
}

// NewOwned allocates a heap-resident, reference-counted Statement with
// an initial refcount of one.
func NewOwned(typ Type, lsn int64, key, payload []Value) *Statement {
	return &Statement{
		Type:    typ,
		LSN:     lsn,
		Key:     key,
		Payload: payload,
		owned:   true,
		refs:    1,
	}
}

// Ref increments the refcount of an Owned statement. It is a no-op on
// an arena-resident statement, which is unrefable by construction.
func (s *Statement) Ref() {
	if s.owned {
		atomic.AddInt32(&s.refs, 1)
	}
}

// Unref decrements the refcount of an Owned statement and reports
// whether the last reference was just released. Arena-resident
// statements always report false: they are freed only when their
// owning Mem's Arena is freed in bulk.
func (s *Statement) Unref() bool {
	if !s.owned {
		return false
	}
	return atomic.AddInt32(&s.refs, -1) == 0
}

// IsOwned reports whether this statement is reference counted rather
// than arena resident.
func (s *Statement) IsOwned() bool { return s.owned }

// SameKey reports whether two statements share the same key under kd.
func SameKey(kd *KeyDef, a, b *Statement) (bool, error) {
	c, err := kd.CompareKeys(a.Key, b.Key)
	if err != nil {
		return false, err
	}
	return c == 0, nil
}
