package section

import (
	"fmt"

	"github.com/arloliu/mws/endian"
	"github.com/arloliu/mws/errs"
	"github.com/arloliu/mws/format"
)

// Header is the fixed 40-byte prefix of an arena image.
type Header struct {
	Magic   uint32 // 4 bytes, offset 0-3
	Version uint16 // 2 bytes, offset 4-5
	Flags   uint8  // 1 byte, offset 6
	// DictCompression is the compression applied to the embedded dictionary payload.
	DictCompression format.CompressionType // 1 byte, offset 7

	// Cursor is the allocator position: bytes [0, Cursor) are in use.
	Cursor uint32 // 4 bytes, offset 8-11
	// Capacity is the fixed size the arena was created with.
	Capacity uint32 // 4 bytes, offset 12-15
	// Root is the offset of the root node.
	Root int32 // 4 bytes, offset 16-19
	// MeaningDict is the offset of the embedded dictionary blob, or NullOffset.
	MeaningDict int32 // 4 bytes, offset 20-23
	// URLDict is reserved for a url dictionary blob and always NullOffset.
	URLDict int32 // 4 bytes, offset 24-27

	Reserved [4]byte // must be zero, offset 28-31

	// Checksum is the xxHash64 of bytes [HeaderSize, Cursor).
	Checksum uint64 // 8 bytes, offset 32-39
}

// NewHeader creates a header for an empty arena of the given capacity.
func NewHeader(capacity uint32) *Header {
	return &Header{
		Magic:           MagicNumber,
		Version:         Version,
		DictCompression: format.CompressionNone,
		Cursor:          HeaderSize,
		Capacity:        capacity,
	}
}

// Parse parses the header from a byte slice.
//
// It returns an error if data is shorter than HeaderSize, if the magic number or
// version is unknown, or if the cursor does not fit the capacity.
func (h *Header) Parse(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("%w: %d bytes", errs.ErrInvalidHeaderSize, len(data))
	}

	engine := endian.GetLittleEndianEngine()

	h.Magic = engine.Uint32(data[0:4])
	if h.Magic != MagicNumber {
		return fmt.Errorf("%w: 0x%08X", errs.ErrInvalidMagicNumber, h.Magic)
	}
	h.Version = engine.Uint16(data[4:6])
	if h.Version != Version {
		return fmt.Errorf("%w: %d", errs.ErrUnsupportedVersion, h.Version)
	}

	h.Flags = data[6]
	h.DictCompression = format.CompressionType(data[7])
	h.Cursor = engine.Uint32(data[8:12])
	h.Capacity = engine.Uint32(data[12:16])
	h.Root = int32(engine.Uint32(data[16:20]))        //nolint:gosec
	h.MeaningDict = int32(engine.Uint32(data[20:24])) //nolint:gosec
	h.URLDict = int32(engine.Uint32(data[24:28]))     //nolint:gosec
	copy(h.Reserved[:], data[28:32])
	h.Checksum = engine.Uint64(data[32:40])

	if h.Cursor < HeaderSize || h.Cursor > h.Capacity {
		return fmt.Errorf("%w: cursor %d, capacity %d", errs.ErrInvalidHeaderSize, h.Cursor, h.Capacity)
	}

	return nil
}

// Bytes serializes the header into a new byte slice.
func (h *Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	h.Put(b)

	return b
}

// Put serializes the header into the first HeaderSize bytes of b.
func (h *Header) Put(b []byte) {
	engine := endian.GetLittleEndianEngine()

	engine.PutUint32(b[0:4], h.Magic)
	engine.PutUint16(b[4:6], h.Version)
	b[6] = h.Flags
	b[7] = uint8(h.DictCompression)
	engine.PutUint32(b[8:12], h.Cursor)
	engine.PutUint32(b[12:16], h.Capacity)
	engine.PutUint32(b[16:20], uint32(h.Root))        //nolint:gosec
	engine.PutUint32(b[20:24], uint32(h.MeaningDict)) //nolint:gosec
	engine.PutUint32(b[24:28], uint32(h.URLDict))     //nolint:gosec
	copy(b[28:32], h.Reserved[:])
	engine.PutUint64(b[32:40], h.Checksum)
}

// HasDictionary reports whether an embedded meaning dictionary is present.
func (h *Header) HasDictionary() bool {
	return h.Flags&FlagDictionary != 0 && h.MeaningDict != NullOffset
}
