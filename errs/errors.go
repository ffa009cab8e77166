// Package errs defines the sentinel errors returned across mws packages.
//
// Callers should test for them with errors.Is, since most call sites wrap the
// sentinel with additional context:
//
//	if errors.Is(err, errs.ErrArenaFull) {
//	    // resize the arena and rebuild
//	}
package errs

import "errors"

// Token and formula errors.
var (
	// ErrInvalidToken indicates a token whose identifier is zero or does not fit in 24 bits.
	ErrInvalidToken = errors.New("invalid token")
	// ErrArityOverflow indicates a node with more children than a token can encode.
	ErrArityOverflow = errors.New("arity exceeds maximum")
	// ErrVarIndexOverflow indicates more distinct variables than the reserved id range holds.
	ErrVarIndexOverflow = errors.New("variable index exceeds reserved range")
	// ErrMalformedFormula indicates a token sequence whose arity balance does not return to zero.
	ErrMalformedFormula = errors.New("malformed formula")
	// ErrEmptyFormula indicates an empty token sequence.
	ErrEmptyFormula = errors.New("empty formula")
)

// Dictionary and codec errors.
var (
	// ErrUnknownMeaning indicates a constant id or meaning that is absent from the dictionary.
	ErrUnknownMeaning = errors.New("unknown meaning")
	// ErrDictionaryFrozen indicates an attempt to add a meaning to a read-only dictionary.
	ErrDictionaryFrozen = errors.New("dictionary is read-only")
	// ErrInvalidDictionary indicates a corrupt dictionary payload.
	ErrInvalidDictionary = errors.New("invalid dictionary payload")
	// ErrInvalidNotation indicates a formula notation string that cannot be parsed.
	ErrInvalidNotation = errors.New("invalid formula notation")
)

// Arena and binary layout errors.
var (
	// ErrArenaFull indicates that an allocation would exceed the fixed arena capacity.
	ErrArenaFull = errors.New("arena capacity exceeded")
	// ErrArenaSealed indicates a write to an arena that has been sealed or loaded read-only.
	ErrArenaSealed = errors.New("arena is sealed")
	// ErrOffsetOutOfRange indicates an offset outside the allocated part of the arena.
	ErrOffsetOutOfRange = errors.New("offset out of range")
	// ErrInvalidHeaderSize indicates a header buffer of the wrong size.
	ErrInvalidHeaderSize = errors.New("invalid header size")
	// ErrInvalidMagicNumber indicates a file that is not an arena image.
	ErrInvalidMagicNumber = errors.New("invalid magic number")
	// ErrUnsupportedVersion indicates an arena image written by an unknown format version.
	ErrUnsupportedVersion = errors.New("unsupported format version")
	// ErrChecksumMismatch indicates that the arena payload does not match its header checksum.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrInvalidNodeType indicates a node word whose type tag is not recognised.
	ErrInvalidNodeType = errors.New("invalid node type")
	// ErrCountOverflow indicates a child count or hit count that does not fit in 30 bits.
	ErrCountOverflow = errors.New("count exceeds 30 bits")
)

// Query errors.
var (
	// ErrStepLimit indicates that a query exhausted its configured step budget.
	ErrStepLimit = errors.New("query step limit exceeded")
	// ErrSinkFailed indicates that the result sink reported an error status.
	ErrSinkFailed = errors.New("result sink failed")
)

// Storage and configuration errors.
var (
	// ErrCorruptRecord indicates a stored occurrence or crawl record that cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt record")
	// ErrCrawlDataNotFound indicates an unknown crawl id.
	ErrCrawlDataNotFound = errors.New("crawl data not found")
	// ErrClosed indicates use of a closed store or index.
	ErrClosed = errors.New("closed")
	// ErrInvalidConfig indicates a configuration value that failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrInvalidCompression indicates an unsupported compression type.
	ErrInvalidCompression = errors.New("invalid compression type")
)
