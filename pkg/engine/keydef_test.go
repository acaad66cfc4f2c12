package engine

import "testing"

func TestKeyDefCompareKeysPrefixOrdering(t *testing.T) {
	kd := NewKeyDef(KeyPart{}, KeyPart{})
	full := []Value{StringValue("a"), IntValue(1)}
	prefix := []Value{StringValue("a")}

	c, err := kd.CompareKeys(prefix, full)
	if err != nil {
		t.Fatal(err)
	}
	if c >= 0 {
		t.Fatalf("expected a prefix to sort before a longer key sharing it, got %d", c)
	}
}

func TestKeyDefCompareKeysDescField(t *testing.T) {
	kd := NewKeyDef(KeyPart{Desc: true})
	c, err := kd.CompareKeys([]Value{IntValue(1)}, []Value{IntValue(2)})
	if err != nil {
		t.Fatal(err)
	}
	if c <= 0 {
		t.Fatalf("expected descending field to reverse order, got %d", c)
	}
}

func TestKeyDefValidateEQRejectsPrefix(t *testing.T) {
	kd := NewKeyDef(KeyPart{}, KeyPart{})
	if err := kd.ValidateEQ([]Value{StringValue("a")}); err == nil {
		t.Fatal("expected ValidateEQ to reject a partial key")
	}
	if err := kd.ValidateEQ([]Value{StringValue("a"), IntValue(1)}); err != nil {
		t.Fatalf("expected a full key to validate, got %v", err)
	}
}

func TestCompareKeyLSNNewerSortsFirst(t *testing.T) {
	kd := NewKeyDef(KeyPart{})
	c, err := compareKeyLSN(kd, strKey("k"), 5, strKey("k"), 3)
	if err != nil {
		t.Fatal(err)
	}
	if c >= 0 {
		t.Fatalf("expected lsn 5 to sort before lsn 3 for the same key, got %d", c)
	}
}

func TestLSNBoundsPositionAroundAllVersions(t *testing.T) {
	kd := NewKeyDef(KeyPart{})
	key := strKey("k")

	c1, err := compareKeyLSN(kd, key, LSNInf, key, 100)
	if err != nil {
		t.Fatal(err)
	}
	if c1 >= 0 {
		t.Fatalf("expected the infinite-lsn probe to sort before any real version, got %d", c1)
	}

	c2, err := compareKeyLSN(kd, key, LSNZero, key, 1)
	if err != nil {
		t.Fatal(err)
	}
	if c2 <= 0 {
		t.Fatalf("expected the zero-lsn probe to sort after any real version, got %d", c2)
	}
}
