package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"
)

// maxDecodedSize bounds the output of a single Decompress call.
const maxDecodedSize = 128 << 20

var errLZ4Header = errors.New("lz4: invalid size header")

// lz4CompressorPool pools lz4.Compressor instances, whose hash tables are
// costly to allocate.
var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

// LZ4Compressor provides LZ4 block compression.
//
// Raw LZ4 blocks do not record their decoded size, so every payload starts
// with the size as a uvarint. Decompress allocates exactly that much and
// rejects sizes beyond maxDecodedSize.
type LZ4Compressor struct{}

var _ Codec = (*LZ4Compressor)(nil)

// NewLZ4Compressor creates a new LZ4 compressor.
func NewLZ4Compressor() LZ4Compressor {
	return LZ4Compressor{}
}

// Compress writes the size header followed by one LZ4 block.
//
// Parameters:
//   - data: Input data to compress
//
// Returns:
//   - []byte: Compressed data (nil if input is empty)
//   - error: Compression error if any
func (c LZ4Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) > maxDecodedSize {
		return nil, fmt.Errorf("lz4: payload of %d bytes exceeds %d", len(data), maxDecodedSize)
	}

	dst := make([]byte, binary.MaxVarintLen64+lz4.CompressBlockBound(len(data)))
	hdr := binary.PutUvarint(dst, uint64(len(data)))

	lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	n, err := lc.CompressBlock(data, dst[hdr:])
	if err != nil {
		return nil, err
	}

	return dst[:hdr+n], nil
}

// Decompress reads the size header and decodes the block after it.
//
// Parameters:
//   - data: Compressed data to decompress
//
// Returns:
//   - []byte: Decompressed data (nil if input is empty)
//   - error: A header error, or an LZ4 error when the block is corrupt or does
//     not decode to the announced size
func (c LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	size, hdr := binary.Uvarint(data)
	if hdr <= 0 || size == 0 || size > maxDecodedSize {
		return nil, errLZ4Header
	}

	buf := make([]byte, size)
	n, err := lz4.UncompressBlock(data[hdr:], buf)
	if err != nil {
		return nil, err
	}
	if n != len(buf) {
		return nil, fmt.Errorf("lz4: block decoded to %d bytes, header says %d", n, size)
	}

	return buf, nil
}
