package compress

import (
	"fmt"

	"github.com/klauspost/compress/s2"
)

// S2Compressor provides S2 block compression, a faster Snappy extension.
//
// Payloads are encoded with the "better" level: dictionaries and records are
// written once at build time and decoded on every load, so the extra encode
// cost buys a smaller file without slowing reads.
type S2Compressor struct{}

var _ Codec = (*S2Compressor)(nil)

// NewS2Compressor creates a new S2 compressor.
func NewS2Compressor() S2Compressor {
	return S2Compressor{}
}

// Compress encodes data as a single S2 block.
func (c S2Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return s2.EncodeBetter(nil, data), nil
}

// Decompress decodes an S2 block. Blocks that claim more than
// maxDecodedSize bytes are rejected before anything is allocated.
func (c S2Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	n, err := s2.DecodedLen(data)
	if err != nil {
		return nil, fmt.Errorf("s2 decompression failed: %w", err)
	}
	if n > maxDecodedSize {
		return nil, fmt.Errorf("s2 decompression failed: block claims %d bytes", n)
	}

	return s2.Decode(make([]byte, n), data)
}
