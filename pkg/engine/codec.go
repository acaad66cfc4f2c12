package engine

import (
	"encoding/binary"
	"io"
	"math"
)

// Wire layout per spec.md §6: a self-describing record —
//
//	type byte | flags byte | lsn varint | n_upserts byte |
//	optimized_group varint | key field count varint | key fields... |
//	body (payload field count + fields, or op count + field-ops for
//	an UPSERT)
//
// each Value is tagged (kind byte) then its raw form, so a decoder
// never needs an external schema beyond the Format's field count.
func EncodeStatement(w io.Writer, stmt *Statement) error {
	var hdr [2]byte
	hdr[0] = byte(stmt.Type)
	hdr[1] = byte(stmt.Flags)
	if _, err := w.Write(hdr[:]); err != nil {
		return newErr(KindBadEncoding, "EncodeStatement", err)
	}
	if err := writeVarint(w, stmt.LSN); err != nil {
		return err
	}
	if _, err := w.Write([]byte{stmt.NUpserts}); err != nil {
		return newErr(KindBadEncoding, "EncodeStatement", err)
	}
	if err := writeUvarint(w, stmt.OptimizedGroup); err != nil {
		return err
	}
	if err := writeValues(w, stmt.Key); err != nil {
		return err
	}
	if stmt.Type == Upsert {
		if err := writeUvarint(w, uint64(len(stmt.Ops))); err != nil {
			return err
		}
		for _, op := range stmt.Ops {
			if err := writeUvarint(w, uint64(op.Field)); err != nil {
				return err
			}
			if err := writeValue(w, op.Value); err != nil {
				return err
			}
		}
		return nil
	}
	return writeValues(w, stmt.Payload)
}

func DecodeStatement(r io.Reader) (*Statement, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, newErr(KindBadEncoding, "DecodeStatement", err)
	}
	typ := Type(hdr[0])
	if typ > SelectKey {
		return nil, newErr(KindBadEncoding, "DecodeStatement", nil)
	}
	flags := Flags(hdr[1])

	lsn, err := readVarint(r)
	if err != nil {
		return nil, err
	}
	var nu [1]byte
	if _, err := io.ReadFull(r, nu[:]); err != nil {
		return nil, newErr(KindBadEncoding, "DecodeStatement", err)
	}
	group, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	key, err := readValues(r)
	if err != nil {
		return nil, err
	}

	stmt := &Statement{
		Type:           typ,
		Flags:          flags,
		LSN:            lsn,
		NUpserts:       nu[0],
		OptimizedGroup: group,
		Key:            key,
		owned:          true,
		refs:           1,
	}

	if typ == Upsert {
		n, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		ops := make([]FieldOp, n)
		for i := range ops {
			field, err := readUvarint(r)
			if err != nil {
				return nil, err
			}
			val, err := readValue(r)
			if err != nil {
				return nil, err
			}
			ops[i] = FieldOp{Field: int(field), Value: val}
		}
		stmt.Ops = ops
		return stmt, nil
	}

	payload, err := readValues(r)
	if err != nil {
		return nil, err
	}
	stmt.Payload = payload
	return stmt, nil
}

// EncodeValues and DecodeValues expose the tagged-value list encoding
// used for a Statement's Key/Payload so pkg/runstore can frame a run's
// min/max key bounds with the same wire format.
func EncodeValues(w io.Writer, vs []Value) error {
	return writeValues(w, vs)
}

func DecodeValues(r io.Reader) ([]Value, error) {
	return readValues(r)
}

func writeValues(w io.Writer, vs []Value) error {
	if err := writeUvarint(w, uint64(len(vs))); err != nil {
		return err
	}
	for _, v := range vs {
		if err := writeValue(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readValues(r io.Reader) ([]Value, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	vs := make([]Value, n)
	for i := range vs {
		v, err := readValue(r)
		if err != nil {
			return nil, err
		}
		vs[i] = v
	}
	return vs, nil
}

func writeValue(w io.Writer, v Value) error {
	if _, err := w.Write([]byte{byte(v.Kind)}); err != nil {
		return newErr(KindBadEncoding, "writeValue", err)
	}
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		_, err := w.Write([]byte{b})
		if err != nil {
			return newErr(KindBadEncoding, "writeValue", err)
		}
		return nil
	case KindInt:
		return writeVarint(w, v.I)
	case KindFloat:
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(v.F))
		if _, err := w.Write(buf[:]); err != nil {
			return newErr(KindBadEncoding, "writeValue", err)
		}
		return nil
	case KindString:
		return writeBytes(w, []byte(v.S))
	case KindBytes:
		return writeBytes(w, v.B)
	default:
		return newErr(KindBadEncoding, "writeValue", nil)
	}
}

func readValue(r io.Reader) (Value, error) {
	var kb [1]byte
	if _, err := io.ReadFull(r, kb[:]); err != nil {
		return Value{}, newErr(KindBadEncoding, "readValue", err)
	}
	kind := ValueKind(kb[0])
	switch kind {
	case KindNull:
		return Value{Kind: KindNull}, nil
	case KindBool:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Value{}, newErr(KindBadEncoding, "readValue", err)
		}
		return Value{Kind: KindBool, Bool: b[0] != 0}, nil
	case KindInt:
		i, err := readVarint(r)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindInt, I: i}, nil
	case KindFloat:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return Value{}, newErr(KindBadEncoding, "readValue", err)
		}
		return Value{Kind: KindFloat, F: math.Float64frombits(binary.BigEndian.Uint64(buf[:]))}, nil
	case KindString:
		b, err := readBytes(r)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindString, S: string(b)}, nil
	case KindBytes:
		b, err := readBytes(r)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindBytes, B: b}, nil
	default:
		return Value{}, newErr(KindBadEncoding, "readValue", nil)
	}
}

func writeBytes(w io.Writer, b []byte) error {
	if err := writeUvarint(w, uint64(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	if _, err := w.Write(b); err != nil {
		return newErr(KindBadEncoding, "writeBytes", err)
	}
	return nil
}

func readBytes(r io.Reader) ([]byte, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, newErr(KindBadEncoding, "readBytes", err)
	}
	return buf, nil
}

func writeVarint(w io.Writer, v int64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutVarint(buf[:], v)
	if _, err := w.Write(buf[:n]); err != nil {
		return newErr(KindBadEncoding, "writeVarint", err)
	}
	return nil
}

func writeUvarint(w io.Writer, v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	if _, err := w.Write(buf[:n]); err != nil {
		return newErr(KindBadEncoding, "writeUvarint", err)
	}
	return nil
}

func readVarint(r io.Reader) (int64, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufByteReader{r}
	}
	v, err := binary.ReadVarint(br)
	if err != nil {
		return 0, newErr(KindBadEncoding, "readVarint", err)
	}
	return v, nil
}

func readUvarint(r io.Reader) (uint64, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufByteReader{r}
	}
	v, err := binary.ReadUvarint(br)
	if err != nil {
		return 0, newErr(KindBadEncoding, "readUvarint", err)
	}
	return v, nil
}

// bufByteReader adapts a plain io.Reader to io.ByteReader for callers
// (bytes.Reader, bytes.Buffer, bufio.Reader) that already satisfy it,
// this wrapper is bypassed.
type bufByteReader struct{ io.Reader }

func (b bufByteReader) ReadByte() (byte, error) {
	var buf [1]byte
	_, err := io.ReadFull(b.Reader, buf[:])
	return buf[0], err
}
