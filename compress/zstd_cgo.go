//go:build gozstd && cgo

package compress

import (
	"fmt"

	"github.com/valyala/gozstd"
)

// zstdLevel matches zstd.SpeedDefault of the pure Go build, so both builds
// produce dictionaries and records of similar size.
const zstdLevel = 3

// Compress compresses the input data with libzstd.
func (c ZstdCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) > maxDecodedSize {
		return nil, fmt.Errorf("zstd: input of %d bytes exceeds %d", len(data), maxDecodedSize)
	}

	return gozstd.CompressLevel(nil, data, zstdLevel), nil
}

// Decompress decompresses Zstd-compressed data with libzstd.
//
// Output larger than maxDecodedSize is rejected, the same bound the pure Go
// decoder enforces while decoding.
func (c ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	decompressed, err := gozstd.Decompress(nil, data)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	if len(decompressed) > maxDecodedSize {
		return nil, fmt.Errorf("zstd: decoded size %d exceeds %d", len(decompressed), maxDecodedSize)
	}

	return decompressed, nil
}
