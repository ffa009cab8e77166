// Package dict implements the meaning dictionary: an append-only, bidirectional
// mapping between a constant's meaning ("tag#text") and a dense 1-based id.
//
// A dictionary is mutable while an index is being built and frozen once it
// is loaded next to a serving index. The persisted form is the sequence of
// meanings in insertion order, each terminated by a NUL byte; the n-th key
// (1-based) has id n, so loading replays insertion order and reproduces the
// same ids.
package dict

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/arloliu/mws/errs"
)

// NotFound is the id reported for an absent meaning.
const NotFound uint32 = 0

// Dictionary maps meanings to ids and back.
//
// Note: Dictionary is NOT safe for concurrent mutation. A frozen dictionary is
// immutable and safe for concurrent readers.
type Dictionary struct {
	ids    map[string]uint32
	keys   []string
	frozen bool
}

// New creates an empty, mutable dictionary.
func New() *Dictionary {
	return &Dictionary{ids: make(map[string]uint32)}
}

// Put returns the id of meaning, assigning the next free id if it is new.
//
// Meanings must not contain NUL, the terminator of the persisted form.
//
// Returns:
//   - uint32: Id of the meaning (>= 1)
//   - error: errs.ErrDictionaryFrozen if the meaning is new and the dictionary is frozen,
//     errs.ErrInvalidDictionary if it contains NUL
func (d *Dictionary) Put(meaning string) (uint32, error) {
	if id, ok := d.ids[meaning]; ok {
		return id, nil
	}
	if strings.IndexByte(meaning, 0) >= 0 {
		return NotFound, fmt.Errorf("%w: meaning %q contains NUL", errs.ErrInvalidDictionary, meaning)
	}
	if d.frozen {
		return NotFound, fmt.Errorf("%w: cannot add %q", errs.ErrDictionaryFrozen, meaning)
	}

	d.keys = append(d.keys, meaning)
	id := uint32(len(d.keys)) //nolint:gosec
	d.ids[meaning] = id

	return id, nil
}

// Get returns the id of meaning, or NotFound.
func (d *Dictionary) Get(meaning string) (uint32, bool) {
	id, ok := d.ids[meaning]
	return id, ok
}

// Meaning performs the reverse lookup of id.
//
// Returns:
//   - string: The meaning registered under id
//   - error: errs.ErrUnknownMeaning if id was never assigned
func (d *Dictionary) Meaning(id uint32) (string, error) {
	if id == NotFound || int(id) > len(d.keys) {
		return "", fmt.Errorf("%w: id %d", errs.ErrUnknownMeaning, id)
	}

	return d.keys[id-1], nil
}

// Len returns the number of meanings.
func (d *Dictionary) Len() int {
	return len(d.keys)
}

// Freeze makes the dictionary read-only.
func (d *Dictionary) Freeze() {
	d.frozen = true
}

// Frozen reports whether the dictionary is read-only.
func (d *Dictionary) Frozen() bool {
	return d.frozen
}

// Keys returns the meanings in insertion order. The slice must not be modified.
func (d *Dictionary) Keys() []string {
	return d.keys
}

// EncodedSize returns the byte length of the persisted form.
func (d *Dictionary) EncodedSize() int {
	size := 0
	for _, k := range d.keys {
		size += len(k) + 1
	}

	return size
}

// AppendBinary appends the NUL-terminated keys to dst.
func (d *Dictionary) AppendBinary(dst []byte) []byte {
	for _, k := range d.keys {
		dst = append(dst, k...)
		dst = append(dst, 0)
	}

	return dst
}

// WriteTo writes the persisted form to w.
func (d *Dictionary) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)

	var n int64
	for _, k := range d.keys {
		written, err := bw.WriteString(k)
		n += int64(written)
		if err != nil {
			return n, err
		}
		if err := bw.WriteByte(0); err != nil {
			return n, err
		}
		n++
	}

	return n, bw.Flush()
}

// Parse rebuilds a dictionary from its persisted form.
//
// The returned dictionary is mutable, so an index build can resume from it;
// call Freeze before sharing it with readers.
//
// Returns:
//   - *Dictionary: Dictionary with the same ids as the one that was saved
//   - error: errs.ErrInvalidDictionary if the payload is not NUL-terminated or
//     contains a duplicate key
func Parse(data []byte) (*Dictionary, error) {
	d := New()
	for len(data) > 0 {
		end := bytes.IndexByte(data, 0)
		if end < 0 {
			return nil, fmt.Errorf("%w: missing terminator after key %d", errs.ErrInvalidDictionary, d.Len())
		}

		key := string(data[:end])
		if _, dup := d.ids[key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %q", errs.ErrInvalidDictionary, key)
		}
		_, _ = d.Put(key)
		data = data[end+1:]
	}

	return d, nil
}

// Load reads a persisted dictionary from r and freezes it.
func Load(r io.Reader) (*Dictionary, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}

	d, err := Parse(data)
	if err != nil {
		return nil, err
	}
	d.Freeze()

	return d, nil
}
