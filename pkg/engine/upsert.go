package engine

// applyOps returns a copy of base with each op's field overwritten. A
// nil base allocates a zero-value tuple of format.FieldCount fields
// first, the "insert if absent" behavior an UPSERT exhibits when no
// older founder statement exists for its key.
func applyOps(base []Value, ops []FieldOp, format *Format) []Value {
	var out []Value
	if base != nil {
		out = make([]Value, len(base))
		copy(out, base)
	} else {
		out = make([]Value, format.FieldCount)
	}
	for _, op := range ops {
		if op.Field >= 0 && op.Field < len(out) {
			out[op.Field] = op.Value
		}
	}
	return out
}

// ApplyOne squashes a single UPSERT onto curr, the statement it
// immediately follows in LSN order for the same key. curr may be nil
// (no founder yet) or a DELETE (founder was removed): both cases fall
// back to applyOps' insert-if-absent path. The result takes upsert's
// LSN, OptimizedGroup, and key.
func ApplyOne(curr *Statement, upsert *Statement, format *Format) *Statement {
	var basePayload []Value
	resultType := Replace
	if curr != nil && curr.Type != Delete {
		basePayload = curr.Payload
	} else {
		resultType = Insert
	}
	return &Statement{
		Type:           resultType,
		LSN:            upsert.LSN,
		OptimizedGroup: upsert.OptimizedGroup,
		Key:            upsert.Key,
		Payload:        applyOps(basePayload, upsert.Ops, format),
		owned:          true,
		refs:           1,
	}
}

// ApplyHistory collapses a per-key version chain, ordered newest first
// (chain[0] is newest, chain[len-1] is oldest), into at most one
// resulting statement, per the UPS rules:
//
//  1. If the chain is empty, there is nothing to apply.
//  2. If the oldest entry is a terminal (non-UPSERT) statement, it
//     founds the result: a DELETE founder yields no result unless
//     keepDelete is set, in which case the DELETE itself is returned
//     unchanged; an INSERT/REPLACE founder supplies the base payload.
//  3. If the oldest entry is itself an UPSERT (no founder in this
//     chain), it is treated as insert-if-absent: its ops are applied
//     to a zero-value tuple.
//  4. Every newer UPSERT is then applied on top, oldest to newest,
//     each squash counted in the returned int.
//
// It returns the resulting statement (nil if there is none) and how
// many UPSERT squashes were performed.
func ApplyHistory(chain []*Statement, format *Format, keepDelete bool) (*Statement, int, error) {
	if len(chain) == 0 {
		return nil, 0, nil
	}

	oldest := chain[len(chain)-1]
	var curr *Statement

	switch {
	case oldest.Type == Delete:
		if keepDelete {
			curr = oldest
		} else {
			curr = nil
		}
	case oldest.Type != Upsert:
		curr = oldest
	default:
		curr = &Statement{
			Type:           Insert,
			LSN:            oldest.LSN,
			OptimizedGroup: oldest.OptimizedGroup,
			Key:            oldest.Key,
			Payload:        applyOps(nil, oldest.Ops, format),
			owned:          true,
			refs:           1,
		}
	}

	applied := 0
	for i := len(chain) - 2; i >= 0; i-- {
		node := chain[i]
		if node.Type != Upsert {
			// A non-UPSERT mid-chain supersedes everything older than
			// it. WriteIterator passes whole chain suffixes here, which
			// routinely contain several terminal statements.
			curr = node
			continue
		}
		curr = ApplyOne(curr, node, format)
		applied++
	}

	if curr != nil && curr.Type == Delete && !keepDelete {
		return nil, applied, nil
	}
	return curr, applied, nil
}

// ShouldSquash reports whether stmt's saturating NUpserts counter has
// reached the point that a reader or WI should force a history
// application rather than keep extending the chain.
func ShouldSquash(stmt *Statement, threshold uint8) bool {
	return stmt.Type == Upsert && stmt.NUpserts > threshold
}
