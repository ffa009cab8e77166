package format

type (
	NodeType        uint8
	CompressionType uint8
)

const (
	NodeInternal NodeType = 0x1 // NodeInternal is a node with a sorted (token, offset) table.
	NodeBlob     NodeType = 0x2 // NodeBlob is a length-prefixed auxiliary payload.
	NodeLeaf     NodeType = 0x3 // NodeLeaf is a terminal node with hit count and formula id.

	CompressionNone CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.
)

func (n NodeType) String() string {
	switch n {
	case NodeInternal:
		return "Internal"
	case NodeBlob:
		return "Blob"
	case NodeLeaf:
		return "Leaf"
	default:
		return "Unknown"
	}
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

// ParseCompression maps a configuration name ("none", "zstd", "s2", "lz4") to a CompressionType.
func ParseCompression(name string) (CompressionType, bool) {
	switch name {
	case "none", "None", "":
		return CompressionNone, true
	case "zstd", "Zstd":
		return CompressionZstd, true
	case "s2", "S2":
		return CompressionS2, true
	case "lz4", "LZ4":
		return CompressionLZ4, true
	default:
		return 0, false
	}
}
