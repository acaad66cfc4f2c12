package runstore

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// blockCodec compresses whole blocks of encoded statements with zstd,
// narrowed from the teacher's compression.Compressor (which menus
// snappy/zstd/gzip/zlib) down to the one algorithm this run format
// uses: blocks, not individual fields, are the unit of compression,
// so there is no need for the teacher's per-call algorithm switch.
type blockCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// defaultZstdLevel mirrors the teacher's DefaultConfig (Zstd level 3):
// a balanced default between ratio and encode speed for run blocks.
const defaultZstdLevel = 3

func newBlockCodec() (*blockCodec, error) {
	encLevel := zstd.EncoderLevelFromZstd(defaultZstdLevel)
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
	if err != nil {
		return nil, fmt.Errorf("runstore: create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("runstore: create zstd decoder: %w", err)
	}
	return &blockCodec{enc: enc, dec: dec}, nil
}

func (c *blockCodec) compress(data []byte) []byte {
	return c.enc.EncodeAll(data, nil)
}

func (c *blockCodec) decompress(data []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("runstore: decompress block: %w", err)
	}
	return out, nil
}

func (c *blockCodec) close() {
	c.enc.Close()
	c.dec.Close()
}
