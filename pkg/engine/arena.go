package engine

import "sync/atomic"

// arenaSlabSize is a nominal slab size taken from the teacher pack's
// arena-backed skip list (other_examples' pebble memTable wraps
// arenaskl.Skiplist over a fixed-size slab arena). Arena does not use
// it: no slabs are allocated.
const arenaSlabSize = 16 << 20 // 16MiB

// Arena hands out every Statement resident in one Mem and keeps the
// byte and count accounting for them. Alloc heap-allocates each
// Statement individually (there is no slab or bump allocation) and
// charges its estimated size to the arena. Statements it hands out are
// never reference counted, and the arena's counters never go down.
type Arena struct {
	used  int64 // approximate bytes charged against this arena
	count int64
}

func NewArena() *Arena {
	return &Arena{}
}

// Alloc hands out an arena-resident Statement built from the given
// fields. Key and Payload slices are cloned so the arena does not
// alias caller-owned memory that might be mutated or freed.
func (a *Arena) Alloc(typ Type, lsn int64, key, payload []Value) *Statement {
	s := &Statement{
		Type:    typ,
		LSN:     lsn,
		Key:     cloneValues(key),
		Payload: cloneValues(payload),
		owned:   false,
	}
	atomic.AddInt64(&a.used, int64(estimateSize(s)))
	atomic.AddInt64(&a.count, 1)
	return s
}

func cloneOps(ops []FieldOp) []FieldOp {
	if ops == nil {
		return nil
	}
	out := make([]FieldOp, len(ops))
	for i, op := range ops {
		out[i] = FieldOp{Field: op.Field, Value: op.Value.Clone()}
	}
	return out
}

func cloneValues(vs []Value) []Value {
	if vs == nil {
		return nil
	}
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = v.Clone()
	}
	return out
}

func estimateSize(s *Statement) int {
	n := 32 // fixed header estimate: type, flags, lsn, n_upserts, group
	for _, v := range s.Key {
		n += valueSize(v)
	}
	for _, v := range s.Payload {
		n += valueSize(v)
	}
	return n
}

func valueSize(v Value) int {
	switch v.Kind {
	case KindString:
		return len(v.S) + 8
	case KindBytes:
		return len(v.B) + 8
	default:
		return 16
	}
}

// UsedBytes reports the arena's running byte estimate, used by the Mem
// to report ByteCount for quota accounting.
func (a *Arena) UsedBytes() int64 { return atomic.LoadInt64(&a.used) }

// Count reports how many statements have been allocated from this
// arena across its lifetime (rollback does not decrement it: the
// arena never reclaims individual statements).
func (a *Arena) Count() int64 { return atomic.LoadInt64(&a.count) }
