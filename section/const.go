package section

const (
	// MagicNumber identifies an arena image.
	MagicNumber uint32 = 0x88CAFE88
	// Version is the current layout version.
	Version uint16 = 1
)

// Header flags.
const (
	FlagDictionary uint8 = 0x01 // an embedded meaning dictionary is present
)

// Sizes of the fixed parts of an image, in bytes.
const (
	HeaderSize         = 40
	NodeWordSize       = 4
	InternalHeaderSize = NodeWordSize
	EntrySize          = 8
	LeafSize           = NodeWordSize + 4
	BlobHeaderSize     = NodeWordSize

	// Alignment is the granularity of every record.
	Alignment = 4
)

// Node word layout.
const (
	typeBits  = 2
	typeMask  = 1<<typeBits - 1
	countBits = 32 - typeBits

	// MaxCount is the largest child count, hit count or blob length a node word holds.
	MaxCount = 1<<countBits - 1
)

// NullOffset is the offset that denotes "no node".
const NullOffset int32 = 0
