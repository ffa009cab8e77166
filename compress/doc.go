// Package compress provides the byte-level codecs used for persisted payloads.
//
// Four codecs are built in, selected by format.CompressionType:
//
//   - None: payload stored as is
//   - Zstd: best ratio, used by default for embedded dictionaries
//   - S2: fast Snappy-compatible compression
//   - LZ4: fastest decompression
//
// Zstd is implemented by klauspost/compress unless the binary is built with
// the gozstd tag and cgo, in which case the libzstd binding from
// valyala/gozstd is used. Both produce standard zstd frames, so data written
// by one is readable by the other.
//
// Example:
//
//	codec, err := compress.GetCodec(format.CompressionZstd)
//	if err != nil {
//		return err
//	}
//	packed, err := codec.Compress(raw)
package compress
