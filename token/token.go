// Package token implements the fixed-width encoded token used for formula
// sequences, trie keys and the arena's on-disk entries.
//
// A token packs an 8-bit arity and a 24-bit identifier into one uint32:
//
//	bits 31..24  arity
//	bits 23..0   identifier
//
// The identifier space is partitioned into reserved ranges. Whether a token is a
// variable, a range or a constant is decided from the identifier alone:
//
//	1   - 32   named hvar (generalization variable inserted at build time)
//	33  - 64   anonymous hvar
//	65  - 96   named qvar (free query variable)
//	97  - 128  anonymous qvar
//	129 - 160  numeric range
//	161 -      constant (161 + dictionary id)
//
// Because the arity occupies the high byte, comparing two packed tokens as
// integers yields the total order used to sort trie children: arity first,
// then identifier.
package token

import (
	"fmt"

	"github.com/arloliu/mws/errs"
)

// Token is a packed (arity, identifier) pair.
type Token uint32

// Kind classifies a token by the range its identifier falls in.
type Kind uint8

const (
	KindInvalid  Kind = iota // KindInvalid is the zero token or an unassigned id.
	KindConstant             // KindConstant is a dictionary-backed symbol.
	KindHvar                 // KindHvar is a named generalization variable.
	KindAnonHvar             // KindAnonHvar is an anonymous generalization variable.
	KindQvar                 // KindQvar is a named query variable.
	KindAnonQvar             // KindAnonQvar is an anonymous query variable.
	KindRange                // KindRange is a numeric range placeholder.
)

const (
	ArityBits = 8
	IDBits    = 24

	MaxArity = 1<<ArityBits - 1
	MaxID    = 1<<IDBits - 1

	idMask = MaxID
)

// Reserved identifier ranges.
const (
	HvarIDMin     = 1
	HvarIDMax     = 32
	AnonHvarIDMin = 33
	AnonHvarIDMax = 64
	QvarIDMin     = 65
	QvarIDMax     = 96
	AnonQvarIDMin = 97
	AnonQvarIDMax = 128
	VarIDMax      = AnonQvarIDMax
	RangeIDMin    = 129
	RangeIDMax    = 160
	ConstantIDMin = 161

	// VarRangeSize is the number of ids in each variable and range sub-range.
	VarRangeSize = 32
	// MaxDictID is the largest dictionary id that still fits in a constant token.
	MaxDictID = MaxID - ConstantIDMin
)

// Pack builds a token from an arity and an identifier.
//
// Parameters:
//   - arity: Number of immediate subtrees
//   - id: Identifier, 1..MaxID
//
// Returns:
//   - Token: Packed token
//   - error: errs.ErrInvalidToken if id is zero or wider than 24 bits
func Pack(arity uint8, id uint32) (Token, error) {
	if id == 0 || id > MaxID {
		return 0, fmt.Errorf("%w: id %d", errs.ErrInvalidToken, id)
	}

	return Token(uint32(arity)<<IDBits | id), nil
}

// MustPack is like Pack but panics on an invalid identifier. Intended for constants in tests.
func MustPack(arity uint8, id uint32) Token {
	t, err := Pack(arity, id)
	if err != nil {
		panic(err)
	}

	return t
}

// Arity returns the number of immediate subtrees following the token in prefix order.
func (t Token) Arity() uint8 {
	return uint8(t >> IDBits)
}

// ID returns the 24-bit identifier.
func (t Token) ID() uint32 {
	return uint32(t) & idMask
}

// Uint32 returns the packed wire value.
func (t Token) Uint32() uint32 {
	return uint32(t)
}

// Kind classifies the token by its identifier range.
func (t Token) Kind() Kind {
	id := t.ID()
	switch {
	case id == 0:
		return KindInvalid
	case id <= HvarIDMax:
		return KindHvar
	case id <= AnonHvarIDMax:
		return KindAnonHvar
	case id <= QvarIDMax:
		return KindQvar
	case id <= AnonQvarIDMax:
		return KindAnonQvar
	case id <= RangeIDMax:
		return KindRange
	default:
		return KindConstant
	}
}

// IsVar reports whether the token is a variable of either side.
func (t Token) IsVar() bool {
	id := t.ID()
	return id >= HvarIDMin && id <= VarIDMax
}

// IsHvar reports whether the token is a generalization variable, named or anonymous.
func (t Token) IsHvar() bool {
	id := t.ID()
	return id >= HvarIDMin && id <= AnonHvarIDMax
}

// IsQvar reports whether the token is a query variable, named or anonymous.
func (t Token) IsQvar() bool {
	id := t.ID()
	return id >= QvarIDMin && id <= AnonQvarIDMax
}

// IsAnonymous reports whether the token is an anonymous variable.
func (t Token) IsAnonymous() bool {
	k := t.Kind()
	return k == KindAnonHvar || k == KindAnonQvar
}

// IsRange reports whether the token is a numeric range placeholder.
func (t Token) IsRange() bool {
	id := t.ID()
	return id >= RangeIDMin && id <= RangeIDMax
}

// IsConstant reports whether the token refers to a dictionary meaning.
func (t Token) IsConstant() bool {
	return t.ID() >= ConstantIDMin
}

// VarIndex returns the 0-based position of a variable or range inside its sub-range.
// It returns -1 for constants and invalid tokens.
func (t Token) VarIndex() int {
	id := int(t.ID())
	switch t.Kind() {
	case KindHvar:
		return id - HvarIDMin
	case KindAnonHvar:
		return id - AnonHvarIDMin
	case KindQvar:
		return id - QvarIDMin
	case KindAnonQvar:
		return id - AnonQvarIDMin
	case KindRange:
		return id - RangeIDMin
	default:
		return -1
	}
}

// DictID returns the dictionary id of a constant token, or 0 if the token is not a constant.
func (t Token) DictID() uint32 {
	if !t.IsConstant() {
		return 0
	}

	return t.ID() - ConstantIDMin
}

// Compare orders tokens by arity, then identifier.
func Compare(a, b Token) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Less reports whether a sorts before b.
func Less(a, b Token) bool {
	return a < b
}

// String renders the token as "kind:id/arity".
func (t Token) String() string {
	return fmt.Sprintf("%s:%d/%d", t.Kind(), t.ID(), t.Arity())
}

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "const"
	case KindHvar:
		return "hvar"
	case KindAnonHvar:
		return "anon_hvar"
	case KindQvar:
		return "qvar"
	case KindAnonQvar:
		return "anon_qvar"
	case KindRange:
		return "range"
	default:
		return "invalid"
	}
}

func reserved(base uint32, index int) (Token, error) {
	if index < 0 || index >= VarRangeSize {
		return 0, fmt.Errorf("%w: index %d", errs.ErrVarIndexOverflow, index)
	}

	return Token(base + uint32(index)), nil //nolint:gosec
}

// Hvar returns the named generalization variable with the given per-formula index.
func Hvar(index int) (Token, error) {
	return reserved(HvarIDMin, index)
}

// AnonHvar returns the anonymous generalization variable with the given index.
func AnonHvar(index int) (Token, error) {
	return reserved(AnonHvarIDMin, index)
}

// Qvar returns the named query variable with the given per-formula index.
func Qvar(index int) (Token, error) {
	return reserved(QvarIDMin, index)
}

// AnonQvar returns the anonymous query variable with the given index.
func AnonQvar(index int) (Token, error) {
	return reserved(AnonQvarIDMin, index)
}

// Range returns the range placeholder with the given index.
func Range(index int) (Token, error) {
	return reserved(RangeIDMin, index)
}

// Constant returns the constant token for a dictionary id.
//
// Parameters:
//   - arity: Number of immediate subtrees
//   - dictID: 1-based dictionary id
//
// Returns:
//   - Token: Constant token with id ConstantIDMin + dictID
//   - error: errs.ErrInvalidToken if dictID is zero or too large
func Constant(arity uint8, dictID uint32) (Token, error) {
	if dictID == 0 || dictID > MaxDictID {
		return 0, fmt.Errorf("%w: dictionary id %d", errs.ErrInvalidToken, dictID)
	}

	return Pack(arity, ConstantIDMin+dictID)
}
