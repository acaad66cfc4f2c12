package engine

import "math"

// Synthetic LSN bounds used by the comparator to position a search probe
// strictly before or after every version of a key, per the tree's
// (Key ascending, LSN descending) total order: a probe carrying the
// infinite LSN compares less than any real statement sharing its key
// (it lands on the newest version), and a probe carrying LSN zero
// compares greater than any real statement sharing its key (it lands
// just past the oldest version).
const (
	LSNInf  int64 = math.MaxInt64
	LSNZero int64 = 0
)

// KeyPart describes one field of a composite key.
type KeyPart struct {
	Desc bool // true reverses this field's contribution to the order
}

// KeyDef is the comparator (CMP): a composite key shape plus per-field
// ordering direction. It never inspects payload fields.
type KeyDef struct {
	Parts []KeyPart
}

func NewKeyDef(parts ...KeyPart) *KeyDef {
	return &KeyDef{Parts: parts}
}

// CompareKeys orders two key tuples. A shorter key is treated as a
// prefix and sorts before any longer key sharing that prefix — this is
// what lets a range-bound key be a strict prefix of the comparator's
// full key shape while an EQ probe must supply every field.
func (kd *KeyDef) CompareKeys(a, b []Value) (int, error) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		c, err := a[i].Compare(b[i])
		if err != nil {
			return 0, newErr(KindInvalidKey, "KeyDef.CompareKeys", err)
		}
		if i < len(kd.Parts) && kd.Parts[i].Desc {
			c = -c
		}
		if c != 0 {
			return c, nil
		}
	}
	if len(a) < len(b) {
		return -1, nil
	}
	if len(a) > len(b) {
		return 1, nil
	}
	return 0, nil
}

// ValidateEQ rejects a key that is not a full, exact match for this
// comparator's shape: EQ point lookups require every field, unlike
// range bounds which may supply a strict prefix.
func (kd *KeyDef) ValidateEQ(key []Value) error {
	if len(key) != len(kd.Parts) {
		return newErr(KindInvalidKey, "KeyDef.ValidateEQ", nil)
	}
	return nil
}

// compareKeyLSN is the full TREE order: key order first, then LSN
// descending (a newer LSN sorts before an older one for the same key).
func compareKeyLSN(kd *KeyDef, akey []Value, alsn int64, bkey []Value, blsn int64) (int, error) {
	c, err := kd.CompareKeys(akey, bkey)
	if err != nil {
		return 0, err
	}
	if c != 0 {
		return c, nil
	}
	if alsn == blsn {
		return 0, nil
	}
	if alsn > blsn {
		return -1, nil
	}
	return 1, nil
}

// Format describes the payload shape of a Statement: how many leading
// fields form the key and the total field count, enough for the wire
// codec to lay out offsets without a schema language.
type Format struct {
	KeyParts   int
	FieldCount int
}

func NewFormat(keyParts, fieldCount int) *Format {
	return &Format{KeyParts: keyParts, FieldCount: fieldCount}
}
