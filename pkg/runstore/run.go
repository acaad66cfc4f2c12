// Package runstore implements an on-disk run: an append-only,
// block-compressed file holding a sorted sequence of statements,
// grounded on the teacher's pkg/lsm/sstable.go (binary.Write framed
// records, sparse index, footer) but generalized from single-version
// key/value entries to the full Statement wire encoding.
//
// A run is immutable once finalized. It implements engine.Source so a
// WriteIterator can merge it alongside a sealed Mem's stream, and it is
// itself typically produced by draining a WriteIterator.
package runstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/mnohosten/storeiter/pkg/engine"
)

// blockStatements caps how many statements are buffered into one
// compressed block before it is flushed, trading index granularity
// for compression ratio the way the teacher's indexInterval trades
// index size for seek cost.
const blockStatements = 128

// blockIndexEntry is one sparse-index row: the first key and LSN of a
// block, and the block's offset in the data section.
type blockIndexEntry struct {
	key    []engine.Value
	lsn    int64
	offset int64
	length int64
}

// Writer appends statements, in the ascending (key, LSN-descending)
// order a Source must produce, into compressed blocks.
type Writer struct {
	file   *os.File
	path   string
	codec  *blockCodec
	cmpDef *engine.KeyDef

	pending    bytes.Buffer
	pendingN   int
	offset     int64
	numEntries int
	minKey     []engine.Value
	maxKey     []engine.Value
	index      []blockIndexEntry
}

func NewWriter(path string, cmpDef *engine.KeyDef) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("runstore: create run file: %w", err)
	}
	codec, err := newBlockCodec()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Writer{file: f, path: path, codec: codec, cmpDef: cmpDef}, nil
}

// Write appends one statement. Statements must arrive in the run's
// sort order; the writer does not re-sort.
func (w *Writer) Write(stmt *engine.Statement) error {
	if w.minKey == nil {
		w.minKey = stmt.Key
	}
	w.maxKey = stmt.Key

	if w.pendingN == 0 {
		w.index = append(w.index, blockIndexEntry{key: stmt.Key, lsn: stmt.LSN, offset: w.offset})
	}
	if err := engine.EncodeStatement(&w.pending, stmt); err != nil {
		return err
	}
	w.pendingN++
	w.numEntries++

	if w.pendingN >= blockStatements {
		return w.flushBlock()
	}
	return nil
}

func (w *Writer) flushBlock() error {
	if w.pendingN == 0 {
		return nil
	}
	raw := w.pending.Bytes()
	compressed := w.codec.compress(raw)

	var hdr [8]byte
	binary.LittleEndian.PutUint64(hdr[:], uint64(len(compressed)))
	n1, err := w.file.Write(hdr[:])
	if err != nil {
		return fmt.Errorf("runstore: write block header: %w", err)
	}
	n2, err := w.file.Write(compressed)
	if err != nil {
		return fmt.Errorf("runstore: write block: %w", err)
	}

	w.index[len(w.index)-1].length = int64(n1 + n2)
	w.offset += int64(n1 + n2)
	w.pending.Reset()
	w.pendingN = 0
	return nil
}

// Finalize flushes any buffered block, writes the footer (entry count,
// min/max key, sparse index), and closes the underlying file.
func (w *Writer) Finalize() (*Run, error) {
	if err := w.flushBlock(); err != nil {
		return nil, err
	}
	dataEnd := w.offset

	footer := new(bytes.Buffer)
	if err := binary.Write(footer, binary.LittleEndian, uint32(w.numEntries)); err != nil {
		return nil, err
	}
	if err := writeOptionalKey(footer, w.minKey); err != nil {
		return nil, err
	}
	if err := writeOptionalKey(footer, w.maxKey); err != nil {
		return nil, err
	}
	if err := binary.Write(footer, binary.LittleEndian, uint32(len(w.index))); err != nil {
		return nil, err
	}
	for _, ie := range w.index {
		if err := writeOptionalKey(footer, ie.key); err != nil {
			return nil, err
		}
		if err := binary.Write(footer, binary.LittleEndian, ie.lsn); err != nil {
			return nil, err
		}
		if err := binary.Write(footer, binary.LittleEndian, ie.offset); err != nil {
			return nil, err
		}
		if err := binary.Write(footer, binary.LittleEndian, ie.length); err != nil {
			return nil, err
		}
	}
	footerSize := uint32(footer.Len())
	if _, err := w.file.Write(footer.Bytes()); err != nil {
		return nil, fmt.Errorf("runstore: write footer: %w", err)
	}
	if err := binary.Write(w.file, binary.LittleEndian, footerSize); err != nil {
		return nil, fmt.Errorf("runstore: write footer size: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return nil, fmt.Errorf("runstore: sync run file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return nil, fmt.Errorf("runstore: close run file: %w", err)
	}
	w.codec.close()

	return Open(w.path, w.cmpDef)
}

func writeOptionalKey(buf *bytes.Buffer, key []engine.Value) error {
	if key == nil {
		return binary.Write(buf, binary.LittleEndian, int32(-1))
	}
	if err := binary.Write(buf, binary.LittleEndian, int32(len(key))); err != nil {
		return err
	}
	return engine.EncodeValues(buf, key)
}

func readOptionalKey(r io.Reader) ([]engine.Value, error) {
	var n int32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}
	return engine.DecodeValues(r)
}

// Run is an opened, immutable on-disk run. It holds only the footer
// (sparse index, min/max key) in memory; block bodies are read from
// disk on demand by the runReader that NewSource returns.
type Run struct {
	path       string
	cmpDef     *engine.KeyDef
	numEntries int
	minKey     []engine.Value
	maxKey     []engine.Value
	index      []blockIndexEntry
	dataEnd    int64
}

// Open reads an existing run's footer and returns a handle to it.
func Open(path string, cmpDef *engine.KeyDef) (*Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("runstore: open run: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("runstore: stat run: %w", err)
	}
	size := stat.Size()

	if _, err := f.Seek(size-4, io.SeekStart); err != nil {
		return nil, err
	}
	var footerSize uint32
	if err := binary.Read(f, binary.LittleEndian, &footerSize); err != nil {
		return nil, err
	}
	footerStart := size - int64(footerSize) - 4
	if _, err := f.Seek(footerStart, io.SeekStart); err != nil {
		return nil, err
	}

	var numEntries uint32
	if err := binary.Read(f, binary.LittleEndian, &numEntries); err != nil {
		return nil, err
	}
	minKey, err := readOptionalKey(f)
	if err != nil {
		return nil, err
	}
	maxKey, err := readOptionalKey(f)
	if err != nil {
		return nil, err
	}
	var numIndex uint32
	if err := binary.Read(f, binary.LittleEndian, &numIndex); err != nil {
		return nil, err
	}
	index := make([]blockIndexEntry, numIndex)
	for i := range index {
		key, err := readOptionalKey(f)
		if err != nil {
			return nil, err
		}
		var lsn, offset, length int64
		if err := binary.Read(f, binary.LittleEndian, &lsn); err != nil {
			return nil, err
		}
		if err := binary.Read(f, binary.LittleEndian, &offset); err != nil {
			return nil, err
		}
		if err := binary.Read(f, binary.LittleEndian, &length); err != nil {
			return nil, err
		}
		index[i] = blockIndexEntry{key: key, lsn: lsn, offset: offset, length: length}
	}

	return &Run{
		path:       path,
		cmpDef:     cmpDef,
		numEntries: int(numEntries),
		minKey:     minKey,
		maxKey:     maxKey,
		index:      index,
		dataEnd:    footerStart,
	}, nil
}

func (r *Run) NumEntries() int       { return r.numEntries }
func (r *Run) MinKey() []engine.Value { return r.minKey }
func (r *Run) MaxKey() []engine.Value { return r.maxKey }

// NewSource opens a forward-scanning engine.Source over every
// statement in the run, decompressing one block at a time.
func (r *Run) NewSource() (engine.Source, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("runstore: open run for scan: %w", err)
	}
	codec, err := newBlockCodec()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &runReader{file: f, codec: codec, dataEnd: r.dataEnd}, nil
}

// runReader streams statements out of a run's data section, block by
// decompressed block, implementing engine.Source.
type runReader struct {
	file    *os.File
	codec   *blockCodec
	dataEnd int64
	pos     int64
	block   *bytes.Reader
}

func (r *runReader) Next() (*engine.Statement, error) {
	for {
		if r.block != nil {
			stmt, err := engine.DecodeStatement(r.block)
			if err != nil {
				return nil, err
			}
			if stmt != nil {
				return stmt, nil
			}
			r.block = nil
		}
		if r.pos >= r.dataEnd {
			return nil, nil
		}
		var hdr [8]byte
		if _, err := io.ReadFull(r.file, hdr[:]); err != nil {
			return nil, fmt.Errorf("runstore: read block header: %w", err)
		}
		blockLen := binary.LittleEndian.Uint64(hdr[:])
		compressed := make([]byte, blockLen)
		if _, err := io.ReadFull(r.file, compressed); err != nil {
			return nil, fmt.Errorf("runstore: read block: %w", err)
		}
		r.pos += int64(8 + blockLen)
		raw, err := r.codec.decompress(compressed)
		if err != nil {
			return nil, err
		}
		r.block = bytes.NewReader(raw)
	}
}

func (r *runReader) Close() error {
	r.codec.close()
	return r.file.Close()
}
