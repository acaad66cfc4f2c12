package engine

import "testing"

func strKey(s string) []Value { return []Value{StringValue(s)} }

func TestTreeInsertOrdersByKeyThenLSNDescending(t *testing.T) {
	kd := NewKeyDef(KeyPart{})
	tr := newTree(kd)

	mustInsert := func(key string, lsn int64) {
		if _, err := tr.Insert(&Statement{Type: Insert, Key: strKey(key), LSN: lsn}); err != nil {
			t.Fatalf("insert %s@%d: %v", key, lsn, err)
		}
	}

	mustInsert("b", 5)
	mustInsert("a", 3)
	mustInsert("a", 7)
	mustInsert("c", 1)

	var got []string
	for n := tr.first(); n != nil; n = n.forward[0] {
		got = append(got, n.stmt.Key[0].S)
	}
	want := []string{"a", "a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	// within key "a", lsn 7 must come before lsn 3.
	first := tr.first()
	if first.stmt.Key[0].S != "a" || first.stmt.LSN != 7 {
		t.Fatalf("expected first node a@7, got %s@%d", first.stmt.Key[0].S, first.stmt.LSN)
	}
	second := first.forward[0]
	if second.stmt.Key[0].S != "a" || second.stmt.LSN != 3 {
		t.Fatalf("expected second node a@3, got %s@%d", second.stmt.Key[0].S, second.stmt.LSN)
	}
}

func TestTreeBackwardPointerMatchesForwardOrder(t *testing.T) {
	kd := NewKeyDef(KeyPart{})
	tr := newTree(kd)
	for i, k := range []string{"m", "a", "z", "c"} {
		if _, err := tr.Insert(&Statement{Type: Insert, Key: strKey(k), LSN: int64(i + 1)}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	last := tr.last()
	if last == nil {
		t.Fatal("expected a last node")
	}
	var reversed []string
	for n := last; n != nil; n = n.backward {
		reversed = append(reversed, n.stmt.Key[0].S)
	}
	var forward []string
	for n := tr.first(); n != nil; n = n.forward[0] {
		forward = append(forward, n.stmt.Key[0].S)
	}
	if len(reversed) != len(forward) {
		t.Fatalf("reverse walk length %d != forward walk length %d", len(reversed), len(forward))
	}
	for i := range forward {
		if forward[i] != reversed[len(reversed)-1-i] {
			t.Fatalf("backward traversal mismatch: forward=%v reversed=%v", forward, reversed)
		}
	}
}

func TestTreeLowerUpperBound(t *testing.T) {
	kd := NewKeyDef(KeyPart{})
	tr := newTree(kd)
	for _, k := range []string{"a", "c", "e"} {
		if _, err := tr.Insert(&Statement{Type: Insert, Key: strKey(k), LSN: 1}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	lb, err := tr.lowerBound(strKey("b"), LSNInf)
	if err != nil {
		t.Fatal(err)
	}
	if lb == nil || lb.stmt.Key[0].S != "c" {
		t.Fatalf("lowerBound(b) = %v, want c", lb)
	}

	ub, err := tr.upperBound(strKey("c"), LSNZero)
	if err != nil {
		t.Fatal(err)
	}
	if ub == nil || ub.stmt.Key[0].S != "e" {
		t.Fatalf("upperBound(c) = %v, want e", ub)
	}
}

func TestTreeDelete(t *testing.T) {
	kd := NewKeyDef(KeyPart{})
	tr := newTree(kd)
	if _, err := tr.Insert(&Statement{Type: Insert, Key: strKey("x"), LSN: 1}); err != nil {
		t.Fatal(err)
	}
	removed, err := tr.Delete(strKey("x"), 1)
	if err != nil {
		t.Fatal(err)
	}
	if removed == nil {
		t.Fatal("expected a removed statement")
	}
	if tr.Size() != 0 {
		t.Fatalf("expected size 0 after delete, got %d", tr.Size())
	}
}
