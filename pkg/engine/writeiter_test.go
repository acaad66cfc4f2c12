package engine

import "testing"

func drainWI(t *testing.T, w *WriteIterator) []*Statement {
	t.Helper()
	var out []*Statement
	for {
		st, ok, err := w.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		out = append(out, st)
	}
	return out
}

// TestWriteIteratorLeadingInsertRewrite mirrors the "leading INSERT
// rewriting" scenario: when the chain's true oldest statement is an
// INSERT, the oldest surviving representative is coerced to INSERT
// even though band collapse resolved it to a REPLACE, and even with
// LastLevel false — the rewrite is unconditional.
func TestWriteIteratorLeadingInsertRewrite(t *testing.T) {
	kd := NewKeyDef(KeyPart{})
	format := NewFormat(1, 2)
	key := strKey("k")
	src := NewSliceSource([]*Statement{
		{Type: Replace, LSN: 3, Key: key, Payload: []Value{StringValue("k"), IntValue(3)}},
		{Type: Insert, LSN: 1, Key: key, Payload: []Value{StringValue("k"), IntValue(1)}},
	})

	w := NewWriteIterator(WIConfig{CmpDef: kd, Format: format, RVs: NewReadViewRegistry(), LastLevel: false})
	w.AddSource(src)
	out := drainWI(t, w)
	if len(out) != 1 {
		t.Fatalf("expected 1 output statement, got %d", len(out))
	}
	if out[0].Type != Insert {
		t.Fatalf("expected the INSERT-founded chain's survivor rewritten to INSERT, got %v", out[0].Type)
	}
}

// TestWriteIteratorLeadingReplaceRewrite mirrors the opposite-direction
// rewrite: when the chain's true oldest statement is NOT an INSERT, a
// surviving representative that band collapse resolved to INSERT must
// be downgraded to REPLACE, since some unseen older source may still
// hold an even older version it has to shadow.
func TestWriteIteratorLeadingReplaceRewrite(t *testing.T) {
	kd := NewKeyDef(KeyPart{})
	format := NewFormat(1, 2)
	key := strKey("k")
	src := NewSliceSource([]*Statement{
		{Type: Insert, LSN: 3, Key: key, Payload: []Value{StringValue("k"), IntValue(3)}},
		{Type: Delete, LSN: 1, Key: key},
	})

	w := NewWriteIterator(WIConfig{CmpDef: kd, Format: format, RVs: NewReadViewRegistry(), LastLevel: false})
	w.AddSource(src)
	out := drainWI(t, w)
	if len(out) != 1 {
		t.Fatalf("expected 1 output statement, got %d", len(out))
	}
	if out[0].Type != Replace {
		t.Fatalf("expected the DELETE-founded chain's INSERT survivor downgraded to REPLACE, got %v", out[0].Type)
	}
}

// TestWriteIteratorScenario5LeadingRewrite reproduces spec.md §8
// scenario 5 literally: content, lsns, and rv_list exactly as given,
// asserting the full 3-representative output including the leading
// INSERT rewrite at LSN 7 and the complete elision of everything
// older than it.
func TestWriteIteratorScenario5LeadingRewrite(t *testing.T) {
	kd := NewKeyDef(KeyPart{})
	format := NewFormat(1, 2)
	key := strKey("k")
	src := NewSliceSource([]*Statement{
		{Type: Replace, LSN: 9, Key: key, Payload: []Value{StringValue("k"), IntValue(6)}},
		{Type: Insert, LSN: 8, Key: key, Payload: []Value{StringValue("k"), IntValue(5)}},
		{Type: Replace, LSN: 7, Key: key, Payload: []Value{StringValue("k"), IntValue(4)}},
		{Type: Replace, LSN: 6, Key: key, Payload: []Value{StringValue("k"), IntValue(3)}},
		{Type: Delete, LSN: 5, Key: key},
		{Type: Replace, LSN: 4, Key: key, Payload: []Value{StringValue("k"), IntValue(2)}},
		{Type: Delete, LSN: 3, Key: key},
		{Type: Insert, LSN: 2, Key: key, Payload: []Value{StringValue("k"), IntValue(0)}},
	})

	reg := NewReadViewRegistry()
	reg.Advance(9)
	for _, lsn := range []int64{3, 5, 7, 8, 9} {
		_ = reg.Snapshot(lsn)
	}

	w := NewWriteIterator(WIConfig{CmpDef: kd, Format: format, RVs: reg, LastLevel: false})
	w.AddSource(src)
	out := drainWI(t, w)

	if len(out) != 3 {
		t.Fatalf("expected exactly 3 surviving representatives, got %d: %v", len(out), out)
	}
	if out[0].LSN != 9 || out[0].Type != Replace || out[0].Payload[1].I != 6 {
		t.Fatalf("expected (9,REPLACE,v=6), got %+v", out[0])
	}
	if out[1].LSN != 8 || out[1].Type != Insert || out[1].Payload[1].I != 5 {
		t.Fatalf("expected (8,INSERT,v=5), got %+v", out[1])
	}
	if out[2].LSN != 7 || out[2].Type != Insert || out[2].Payload[1].I != 4 {
		t.Fatalf("expected the leading rewrite (7,INSERT,v=4), got %+v", out[2])
	}
}

// TestWriteIteratorDeleteElisionAtLastLevel mirrors the "DELETE
// elision at last level" scenario: a DELETE with nothing surviving
// beneath it, at the last level, is dropped entirely rather than
// carried forward as a tombstone.
func TestWriteIteratorDeleteElisionAtLastLevel(t *testing.T) {
	kd := NewKeyDef(KeyPart{})
	format := NewFormat(1, 2)
	key := strKey("k")
	src := NewSliceSource([]*Statement{
		{Type: Delete, LSN: 5, Key: key},
	})

	w := NewWriteIterator(WIConfig{CmpDef: kd, Format: format, RVs: NewReadViewRegistry(), LastLevel: true})
	w.AddSource(src)
	out := drainWI(t, w)
	if len(out) != 0 {
		t.Fatalf("expected DELETE to be elided at the last level, got %v", out)
	}
}

// TestWriteIteratorDeleteKeptWhenRVCouldObserveIt mirrors the
// conservative resolution of the last-level elision ambiguity: a live
// read view pinned below the DELETE's lsn, with an older surviving
// statement beneath it, forces the DELETE to be kept.
func TestWriteIteratorDeleteKeptWhenRVCouldObserveIt(t *testing.T) {
	kd := NewKeyDef(KeyPart{})
	format := NewFormat(1, 2)
	key := strKey("k")
	src := NewSliceSource([]*Statement{
		{Type: Delete, LSN: 5, Key: key},
		{Type: Insert, LSN: 1, Key: key, Payload: []Value{StringValue("k"), IntValue(1)}},
	})

	reg := NewReadViewRegistry()
	reg.Advance(5)
	rv := reg.Snapshot(3) // pinned between the insert and the delete
	_ = rv

	w := NewWriteIterator(WIConfig{CmpDef: kd, Format: format, RVs: reg, LastLevel: true})
	w.AddSource(src)
	out := drainWI(t, w)

	foundDelete := false
	for _, st := range out {
		if st.Type == Delete {
			foundDelete = true
		}
	}
	if !foundDelete {
		t.Fatalf("expected the DELETE to survive for the read view pinned beneath it, got %v", out)
	}
}

// TestWriteIteratorUpsertSquashingAcrossBands mirrors the "UPSERT
// squashing across bands" scenario: a chain of UPSERTs split across
// two bands by an intervening open read view must produce one
// representative per band, each correctly resolved.
func TestWriteIteratorUpsertSquashingAcrossBands(t *testing.T) {
	kd := NewKeyDef(KeyPart{})
	format := NewFormat(1, 2)
	key := strKey("k")
	src := NewSliceSource([]*Statement{
		{Type: Upsert, LSN: 4, Key: key, Ops: []FieldOp{{Field: 1, Value: IntValue(40)}}},
		{Type: Upsert, LSN: 3, Key: key, Ops: []FieldOp{{Field: 1, Value: IntValue(30)}}},
		{Type: Upsert, LSN: 2, Key: key, Ops: []FieldOp{{Field: 1, Value: IntValue(20)}}},
		{Type: Replace, LSN: 1, Key: key, Payload: []Value{StringValue("k"), IntValue(1)}},
	})

	reg := NewReadViewRegistry()
	reg.Advance(4)
	rv := reg.Snapshot(2) // splits the chain into band [LSN<=2] and band (2,+inf)
	_ = rv

	w := NewWriteIterator(WIConfig{CmpDef: kd, Format: format, RVs: reg, LastLevel: true})
	w.AddSource(src)
	out := drainWI(t, w)

	if len(out) != 2 {
		t.Fatalf("expected 2 band representatives, got %d: %v", len(out), out)
	}
	// newest band first: lsn 4 resolves to 40.
	if out[0].LSN != 4 || out[0].Payload[1].I != 40 {
		t.Fatalf("expected newest band rep lsn=4 value=40, got %+v", out[0])
	}
	// oldest band: lsn 2 resolves on top of the replace founder.
	if out[1].LSN != 2 || out[1].Payload[1].I != 20 {
		t.Fatalf("expected oldest band rep lsn=2 value=20, got %+v", out[1])
	}
}

// TestWriteIteratorOptimizedUpdateGroupElision mirrors the
// secondary-index "optimized update" scenario: statements tagged with
// the same nonzero OptimizedGroup collapse to the newest member.
func TestWriteIteratorOptimizedUpdateGroupElision(t *testing.T) {
	kd := NewKeyDef(KeyPart{})
	format := NewFormat(1, 2)
	key := strKey("k")
	src := NewSliceSource([]*Statement{
		{Type: Replace, LSN: 2, OptimizedGroup: 7, Key: key, Payload: []Value{StringValue("k"), IntValue(2)}},
		{Type: Replace, LSN: 1, OptimizedGroup: 7, Key: key, Payload: []Value{StringValue("k"), IntValue(1)}},
	})

	w := NewWriteIterator(WIConfig{CmpDef: kd, Format: format, RVs: NewReadViewRegistry(), LastLevel: true})
	w.AddSource(src)
	out := drainWI(t, w)
	if len(out) != 1 {
		t.Fatalf("expected the optimized-update group to collapse to 1 statement, got %d: %v", len(out), out)
	}
	if out[0].LSN != 2 {
		t.Fatalf("expected the newer group member lsn=2 to survive, got %+v", out[0])
	}
}

func TestWriteIteratorMergesMultipleSourcesBySourceAddOrder(t *testing.T) {
	kd := NewKeyDef(KeyPart{})
	format := NewFormat(1, 2)
	key := strKey("k")
	// two sources disagree on the payload for the identical (key,lsn)
	// pair; the first-added source must win per the recorded tie-break.
	newer := NewSliceSource([]*Statement{
		{Type: Insert, LSN: 1, Key: key, Payload: []Value{StringValue("k"), IntValue(100)}},
	})
	older := NewSliceSource([]*Statement{
		{Type: Insert, LSN: 1, Key: key, Payload: []Value{StringValue("k"), IntValue(999)}},
	})

	w := NewWriteIterator(WIConfig{CmpDef: kd, Format: format, RVs: NewReadViewRegistry(), LastLevel: true})
	w.AddSource(newer)
	w.AddSource(older)
	out := drainWI(t, w)
	if len(out) != 1 {
		t.Fatalf("expected exactly 1 deduped statement, got %d", len(out))
	}
	if out[0].Payload[1].I != 100 {
		t.Fatalf("expected the first-added source's value 100 to win, got %v", out[0].Payload[1])
	}
}
