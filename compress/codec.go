package compress

import (
	"fmt"

	"github.com/arloliu/mws/errs"
	"github.com/arloliu/mws/format"
)

// Compressor compresses a complete payload in one call.
//
// Payloads are meaning dictionaries embedded in an arena and the formula and
// crawl records kept in a formula database: small to medium byte slices that
// are written once and read many times.
type Compressor interface {
	// Compress returns the compressed form of data.
	//
	// The returned slice is owned by the caller and data is not modified.
	// Codecs may return data itself when they do not transform it.
	Compress(data []byte) ([]byte, error)
}

// Decompressor restores payloads produced by the matching Compressor.
//
// Thread Safety: implementations must be safe for concurrent use.
type Decompressor interface {
	// Decompress returns the original payload.
	//
	// It returns an error if data is corrupted or was produced by a different
	// algorithm. An empty input yields an empty output.
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both compression and decompression capabilities.
type Codec interface {
	Compressor
	Decompressor
}

// CreateCodec returns a new Codec for the given compression type.
//
// Parameters:
//   - compressionType: Type of compression (None, Zstd, S2, or LZ4)
//   - target: Description of target usage (for error messages)
//
// Returns:
//   - Codec: Codec instance for the specified type
//   - error: errs.ErrInvalidCompression for an unknown type
func CreateCodec(compressionType format.CompressionType, target string) (Codec, error) {
	switch compressionType {
	case format.CompressionNone:
		return NewNoOpCompressor(), nil
	case format.CompressionZstd:
		return NewZstdCompressor(), nil
	case format.CompressionS2:
		return NewS2Compressor(), nil
	case format.CompressionLZ4:
		return NewLZ4Compressor(), nil
	default:
		return nil, fmt.Errorf("%w: %s for %s", errs.ErrInvalidCompression, compressionType, target)
	}
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoOpCompressor(),
	format.CompressionZstd: NewZstdCompressor(),
	format.CompressionS2:   NewS2Compressor(),
	format.CompressionLZ4:  NewLZ4Compressor(),
}

// GetCodec retrieves a shared built-in Codec for the specified compression type.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("%w: %s", errs.ErrInvalidCompression, compressionType)
}

// Ratio returns compressed/original for a payload, or 0 for an empty payload.
func Ratio(original, compressed int) float64 {
	if original == 0 {
		return 0
	}

	return float64(compressed) / float64(original)
}
