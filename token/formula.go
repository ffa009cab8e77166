package token

import (
	"fmt"
	"strings"

	"github.com/arloliu/mws/endian"
	"github.com/arloliu/mws/errs"
)

// Formula is the prefix-order linearization of a formula tree.
//
// The arity of each token tells how many complete subtrees follow it, so the
// sequence needs no separators.
type Formula []Token

// Validate checks that the arity balance returns to zero exactly at the last token.
//
// Returns:
//   - error: errs.ErrEmptyFormula for an empty sequence, errs.ErrMalformedFormula if the
//     sequence is truncated or has trailing tokens
func (f Formula) Validate() error {
	if len(f) == 0 {
		return errs.ErrEmptyFormula
	}

	need := 1
	for i, t := range f {
		if need == 0 {
			return fmt.Errorf("%w: trailing tokens at position %d", errs.ErrMalformedFormula, i)
		}
		need += int(t.Arity()) - 1
	}

	if need != 0 {
		return fmt.Errorf("%w: %d subtrees missing", errs.ErrMalformedFormula, need)
	}

	return nil
}

// SubtreeEnd returns the index one past the subtree that starts at start.
//
// Returns:
//   - int: End index (exclusive)
//   - error: errs.ErrMalformedFormula if the sequence ends before the subtree closes
func (f Formula) SubtreeEnd(start int) (int, error) {
	if start < 0 || start >= len(f) {
		return 0, fmt.Errorf("%w: start %d outside formula of length %d", errs.ErrMalformedFormula, start, len(f))
	}

	need := 1
	for i := start; i < len(f); i++ {
		need += int(f[i].Arity()) - 1
		if need == 0 {
			return i + 1, nil
		}
	}

	return 0, fmt.Errorf("%w: subtree at %d is truncated", errs.ErrMalformedFormula, start)
}

// Subterm returns the subtree starting at start.
func (f Formula) Subterm(start int) (Formula, error) {
	end, err := f.SubtreeEnd(start)
	if err != nil {
		return nil, err
	}

	return f[start:end], nil
}

// HasVars reports whether the formula contains any variable or range token.
func (f Formula) HasVars() bool {
	for _, t := range f {
		if !t.IsConstant() {
			return true
		}
	}

	return false
}

// Clone returns a copy that does not share the backing array.
func (f Formula) Clone() Formula {
	if f == nil {
		return nil
	}

	out := make(Formula, len(f))
	copy(out, f)

	return out
}

// Equal reports whether both formulas hold the same tokens.
func (f Formula) Equal(other Formula) bool {
	if len(f) != len(other) {
		return false
	}
	for i := range f {
		if f[i] != other[i] {
			return false
		}
	}

	return true
}

func (f Formula) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, t := range f {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.String())
	}
	sb.WriteByte(']')

	return sb.String()
}

// AppendBinary appends the little-endian wire form of the formula: a uint32 token
// count followed by the packed tokens.
func (f Formula) AppendBinary(dst []byte) []byte {
	engine := endian.GetLittleEndianEngine()
	dst = engine.AppendUint32(dst, uint32(len(f))) //nolint:gosec
	for _, t := range f {
		dst = engine.AppendUint32(dst, t.Uint32())
	}

	return dst
}

// ParseFormula decodes a formula written by AppendBinary.
//
// Returns:
//   - Formula: Decoded tokens
//   - int: Number of bytes consumed
//   - error: errs.ErrMalformedFormula if the buffer is short
func ParseFormula(data []byte) (Formula, int, error) {
	engine := endian.GetLittleEndianEngine()
	if len(data) < 4 {
		return nil, 0, fmt.Errorf("%w: missing length prefix", errs.ErrMalformedFormula)
	}

	n := int(engine.Uint32(data))
	size := 4 + 4*n
	if n < 0 || len(data) < size {
		return nil, 0, fmt.Errorf("%w: need %d bytes, have %d", errs.ErrMalformedFormula, size, len(data))
	}

	f := make(Formula, n)
	for i := range f {
		f[i] = Token(engine.Uint32(data[4+4*i:]))
	}

	return f, size, nil
}
