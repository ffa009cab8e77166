// Package memsector implements the arena ("memory sector") that holds an
// exported index: one contiguous byte region with a bump-pointer allocator
// and 32-bit offsets in place of pointers.
//
// Because every reference inside the region is an offset from its start, an
// arena written once can later be memory-mapped read-only at any address and
// used without fix-up:
//
//	a, _ := memsector.New(trie.ArenaSize())
//	off, _ := a.Allocate(section.LeafSize)
//	...
//	a.SetRoot(rootOff)
//	_ = a.Save("index.arena")
//
//	loaded, _ := memsector.Load("index.arena") // mmap, read-only
//	defer loaded.Close()
//
// Arenas never grow; callers must presize them.
package memsector

import (
	"fmt"
	"io"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/arloliu/mws/errs"
	"github.com/arloliu/mws/format"
	"github.com/arloliu/mws/section"
)

// Offset is a byte offset from the start of the arena that issued it.
type Offset int32

// NullOffset denotes "no node". It lies inside the header, so no record can start there.
const NullOffset = Offset(section.NullOffset)

// IsNull reports whether o is the null offset.
func (o Offset) IsNull() bool {
	return o == NullOffset
}

// MaxCapacity is the largest arena addressable by a signed 32-bit offset.
const MaxCapacity = math.MaxInt32

// Arena is a fixed-capacity byte region with a bump allocator.
//
// A writable arena is filled by a single writer and then sealed. A sealed or
// loaded arena is immutable and safe for concurrent readers.
type Arena struct {
	data   []byte
	header section.Header
	sealed bool
	unmap  func() error
}

// New creates an empty, writable, heap-backed arena.
//
// Parameters:
//   - capacity: Total size in bytes, header included
//
// Returns:
//   - *Arena: Writable arena
//   - error: errs.ErrArenaFull if capacity cannot even hold the header or exceeds MaxCapacity
func New(capacity int) (*Arena, error) {
	if capacity < section.HeaderSize || capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: capacity %d outside [%d, %d]", errs.ErrArenaFull, capacity, section.HeaderSize, MaxCapacity)
	}

	a := &Arena{
		data:   make([]byte, capacity),
		header: *section.NewHeader(uint32(capacity)), //nolint:gosec
	}

	return a, nil
}

// Allocate reserves n bytes, rounded up to section.Alignment.
//
// Returns:
//   - Offset: Start of the reserved block
//   - error: errs.ErrArenaFull if the block does not fit, errs.ErrArenaSealed
//     after Seal or on a loaded arena
func (a *Arena) Allocate(n int) (Offset, error) {
	if a.sealed {
		return NullOffset, errs.ErrArenaSealed
	}
	if n <= 0 {
		return NullOffset, fmt.Errorf("%w: allocation of %d bytes", errs.ErrOffsetOutOfRange, n)
	}

	size := uint64(n+section.Alignment-1) &^ (section.Alignment - 1)
	start := uint64(a.header.Cursor)
	if start+size > uint64(a.header.Capacity) {
		return NullOffset, fmt.Errorf("%w: need %d bytes at %d, capacity %d", errs.ErrArenaFull, size, start, a.header.Capacity)
	}
	a.header.Cursor = uint32(start + size) //nolint:gosec

	return Offset(start), nil //nolint:gosec
}

// Bytes returns the writable block [off, off+n) of an allocated region.
func (a *Arena) Bytes(off Offset, n int) ([]byte, error) {
	if a.sealed {
		return nil, errs.ErrArenaSealed
	}
	if err := a.check(off, n); err != nil {
		return nil, err
	}

	return a.data[off : int(off)+n], nil
}

// Record returns the bytes from off to the end of the allocated region, for
// decoding a record in place.
func (a *Arena) Record(off Offset) ([]byte, error) {
	if err := a.check(off, section.NodeWordSize); err != nil {
		return nil, err
	}

	return a.data[off:a.header.Cursor], nil
}

// Node decodes the record at off.
func (a *Arena) Node(off Offset) (section.Node, error) {
	rec, err := a.Record(off)
	if err != nil {
		return section.Node{}, err
	}

	return section.ParseNode(rec)
}

func (a *Arena) check(off Offset, n int) error {
	if off < section.HeaderSize || n < 0 || int64(off)+int64(n) > int64(a.header.Cursor) || off%section.Alignment != 0 {
		return fmt.Errorf("%w: [%d, +%d) outside [%d, %d)", errs.ErrOffsetOutOfRange, off, n, section.HeaderSize, a.header.Cursor)
	}

	return nil
}

// SetRoot records the root node offset.
func (a *Arena) SetRoot(off Offset) error {
	if a.sealed {
		return errs.ErrArenaSealed
	}
	if err := a.check(off, section.NodeWordSize); err != nil {
		return err
	}
	a.header.Root = int32(off)

	return nil
}

// Root returns the root node offset, or NullOffset for an arena without a root.
func (a *Arena) Root() Offset {
	return Offset(a.header.Root)
}

// EmbedDictionary stores an (optionally compressed) dictionary payload as a
// blob record and references it from the header.
func (a *Arena) EmbedDictionary(payload []byte, compression format.CompressionType) error {
	off, err := a.Allocate(section.BlobHeaderSize + len(payload))
	if err != nil {
		return err
	}
	buf, err := a.Bytes(off, section.BlobHeaderSize+len(payload))
	if err != nil {
		return err
	}
	if err := section.PutBlob(buf, payload); err != nil {
		return err
	}

	a.header.MeaningDict = int32(off)
	a.header.Flags |= section.FlagDictionary
	a.header.DictCompression = compression

	return nil
}

// Dictionary returns the embedded dictionary payload and its compression.
func (a *Arena) Dictionary() ([]byte, format.CompressionType, bool) {
	if !a.header.HasDictionary() {
		return nil, format.CompressionNone, false
	}

	n, err := a.Node(Offset(a.header.MeaningDict))
	if err != nil || n.Type != format.NodeBlob {
		return nil, format.CompressionNone, false
	}

	return n.Payload(), a.header.DictCompression, true
}

// Header returns a copy of the arena header.
func (a *Arena) Header() section.Header {
	return a.header
}

// Cursor returns the number of bytes in use, header included.
func (a *Arena) Cursor() int {
	return int(a.header.Cursor)
}

// Capacity returns the fixed arena size.
func (a *Arena) Capacity() int {
	return int(a.header.Capacity)
}

// Sealed reports whether the arena is immutable.
func (a *Arena) Sealed() bool {
	return a.sealed
}

// Seal computes the checksum, writes the header and makes the arena read-only.
// Sealing twice is a no-op.
func (a *Arena) Seal() {
	if a.sealed {
		return
	}

	a.header.Checksum = xxhash.Sum64(a.data[section.HeaderSize:a.header.Cursor])
	a.header.Put(a.data[:section.HeaderSize])
	a.sealed = true
}

// Image returns the used part of a sealed arena, header included.
func (a *Arena) Image() []byte {
	a.Seal()
	return a.data[:a.header.Cursor]
}

// WriteTo seals the arena and writes its image to w.
func (a *Arena) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(a.Image())
	return int64(n), err
}

// Verify recomputes the payload checksum and compares it with the header.
func (a *Arena) Verify() error {
	sum := xxhash.Sum64(a.data[section.HeaderSize:a.header.Cursor])
	if sum != a.header.Checksum {
		return fmt.Errorf("%w: header 0x%016X, payload 0x%016X", errs.ErrChecksumMismatch, a.header.Checksum, sum)
	}

	return nil
}

// FromBytes opens an arena image held in memory.
//
// The image is validated (magic, version, size, checksum) and the returned
// arena is sealed. data must not be modified while the arena is in use.
func FromBytes(data []byte) (*Arena, error) {
	a := &Arena{}
	if err := a.open(data); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *Arena) open(data []byte) error {
	if err := a.header.Parse(data); err != nil {
		return err
	}
	if int(a.header.Cursor) > len(data) {
		return fmt.Errorf("%w: image has %d bytes, header claims %d", errs.ErrInvalidHeaderSize, len(data), a.header.Cursor)
	}

	a.data = data[:a.header.Cursor]
	if err := a.Verify(); err != nil {
		return err
	}
	if !a.Root().IsNull() {
		if err := a.check(a.Root(), section.NodeWordSize); err != nil {
			return err
		}
	}
	a.sealed = true

	return nil
}

// Close releases a memory mapping. It is safe to call on heap-backed arenas.
func (a *Arena) Close() error {
	if a.unmap == nil {
		return nil
	}

	err := a.unmap()
	a.unmap = nil
	a.data = nil

	return err
}
