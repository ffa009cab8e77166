package section

import (
	"fmt"
	"sort"

	"github.com/arloliu/mws/endian"
	"github.com/arloliu/mws/errs"
	"github.com/arloliu/mws/format"
	"github.com/arloliu/mws/token"
)

// PackNodeWord combines a type tag and a 30-bit count.
func PackNodeWord(t format.NodeType, count uint32) (uint32, error) {
	if count > MaxCount {
		return 0, fmt.Errorf("%w: %d", errs.ErrCountOverflow, count)
	}

	return uint32(t)&typeMask | count<<typeBits, nil
}

// UnpackNodeWord splits a node word into its type tag and count.
func UnpackNodeWord(w uint32) (format.NodeType, uint32) {
	return format.NodeType(w & typeMask), w >> typeBits
}

// Entry is one (token, child offset) pair of an internal node.
type Entry struct {
	Token token.Token
	Child int32
}

// InternalSize returns the record size of an internal node with n children.
func InternalSize(n int) int {
	return InternalHeaderSize + n*EntrySize
}

// BlobSize returns the record size of a blob of n bytes, padded to Alignment.
func BlobSize(n int) int {
	return align(BlobHeaderSize + n)
}

func align(n int) int {
	return (n + Alignment - 1) &^ (Alignment - 1)
}

// PutInternal writes an internal node record into b.
//
// The entries must already be sorted by token order.
func PutInternal(b []byte, entries []Entry) error {
	word, err := PackNodeWord(format.NodeInternal, uint32(len(entries))) //nolint:gosec
	if err != nil {
		return err
	}

	engine := endian.GetLittleEndianEngine()
	engine.PutUint32(b[0:4], word)
	for i, e := range entries {
		PutEntry(b[InternalHeaderSize+i*EntrySize:], e)
	}

	return nil
}

// PutEntry writes one entry into the first EntrySize bytes of b.
func PutEntry(b []byte, e Entry) {
	engine := endian.GetLittleEndianEngine()
	engine.PutUint32(b[0:4], e.Token.Uint32())
	engine.PutUint32(b[4:8], uint32(e.Child)) //nolint:gosec
}

// PutLeaf writes a leaf record into b.
func PutLeaf(b []byte, hits, formulaID uint32) error {
	word, err := PackNodeWord(format.NodeLeaf, hits)
	if err != nil {
		return err
	}

	engine := endian.GetLittleEndianEngine()
	engine.PutUint32(b[0:4], word)
	engine.PutUint32(b[4:8], formulaID)

	return nil
}

// PutBlob writes a blob record holding payload into b.
func PutBlob(b []byte, payload []byte) error {
	word, err := PackNodeWord(format.NodeBlob, uint32(len(payload))) //nolint:gosec
	if err != nil {
		return err
	}

	endian.GetLittleEndianEngine().PutUint32(b[0:4], word)
	copy(b[BlobHeaderSize:], payload)

	return nil
}

// Node is a decoded view of one record. The tag is decoded once; the entry
// table of an internal node stays in place and is read lazily.
type Node struct {
	Type format.NodeType
	// Count is the child count of an internal node, the hit count of a leaf or
	// the payload length of a blob.
	Count uint32
	// FormulaID is set for leaves.
	FormulaID uint32

	body []byte
}

// ParseNode decodes the record at the start of data.
//
// data must extend at least to the end of the record; it usually runs to the
// arena cursor.
//
// Returns:
//   - Node: Decoded record
//   - error: errs.ErrInvalidNodeType or errs.ErrOffsetOutOfRange if the record is truncated
func ParseNode(data []byte) (Node, error) {
	if len(data) < NodeWordSize {
		return Node{}, fmt.Errorf("%w: node word truncated", errs.ErrOffsetOutOfRange)
	}

	engine := endian.GetLittleEndianEngine()
	typ, count := UnpackNodeWord(engine.Uint32(data))
	n := Node{Type: typ, Count: count}

	var size int
	switch typ {
	case format.NodeInternal:
		size = InternalSize(int(count))
	case format.NodeLeaf:
		size = LeafSize
	case format.NodeBlob:
		size = BlobHeaderSize + int(count)
	default:
		return Node{}, fmt.Errorf("%w: tag %d", errs.ErrInvalidNodeType, typ)
	}
	if len(data) < size {
		return Node{}, fmt.Errorf("%w: %s record needs %d bytes, %d available", errs.ErrOffsetOutOfRange, typ, size, len(data))
	}

	if typ == format.NodeLeaf {
		n.FormulaID = engine.Uint32(data[4:8])
	}
	n.body = data[NodeWordSize:size]

	return n, nil
}

// IsLeaf reports whether the record is a leaf.
func (n Node) IsLeaf() bool {
	return n.Type == format.NodeLeaf
}

// Len returns the number of entries of an internal node.
func (n Node) Len() int {
	if n.Type != format.NodeInternal {
		return 0
	}

	return int(n.Count)
}

// EntryAt returns the i-th entry of an internal node.
func (n Node) EntryAt(i int) Entry {
	b := n.body[i*EntrySize:]
	engine := endian.GetLittleEndianEngine()

	return Entry{
		Token: token.Token(engine.Uint32(b[0:4])),
		Child: int32(engine.Uint32(b[4:8])), //nolint:gosec
	}
}

// Find binary-searches the entry table for tok.
func (n Node) Find(tok token.Token) (Entry, bool) {
	count := n.Len()
	engine := endian.GetLittleEndianEngine()
	i := sort.Search(count, func(i int) bool {
		return token.Token(engine.Uint32(n.body[i*EntrySize:])) >= tok
	})
	if i == count {
		return Entry{}, false
	}

	e := n.EntryAt(i)
	if e.Token != tok {
		return Entry{}, false
	}

	return e, true
}

// Payload returns the bytes of a blob record.
func (n Node) Payload() []byte {
	if n.Type != format.NodeBlob {
		return nil
	}

	return n.body
}
