// Package index exposes an index to the query engine through one read-only
// Accessor interface, whether the index is still the mutable trie of a build
// job or an exported arena that has been memory-mapped by a serving process.
//
// It also owns the export of a trie into an arena:
//
//	arena, err := index.Build(tr, d, index.WithEmbeddedDictionary(format.CompressionZstd))
//	acc, err := index.NewArenaAccessor(arena)
//	err = index.Equivalent(index.NewTrieAccessor(tr), acc) // nil: same structure
package index

import (
	"iter"

	"github.com/arloliu/mws/memsector"
	"github.com/arloliu/mws/section"
	"github.com/arloliu/mws/token"
	"github.com/arloliu/mws/trie"
)

// Node is an opaque handle to an index node.
//
// A Node is only meaningful to the Accessor that returned it. Handing it to a
// different accessor is treated as a missing node rather than resolved against
// the wrong arena.
type Node struct {
	tn    *trie.Node
	arena *memsector.Arena
	off   memsector.Offset
	rec   section.Node
}

// Valid reports whether the handle refers to a node.
func (n Node) Valid() bool {
	return n.tn != nil || n.arena != nil
}

// Accessor is the read-only view of an index used by the query engine.
//
// Implementations are safe for concurrent use once the underlying index is no
// longer being modified.
type Accessor interface {
	// Root returns the root node.
	Root() Node
	// IsLeaf reports whether n terminates a formula.
	IsLeaf(n Node) bool
	// Child returns the child of n reached through tok.
	Child(n Node, tok token.Token) (Node, bool)
	// Children yields the children of n in token order.
	Children(n Node) iter.Seq2[token.Token, Node]
	// NumChildren returns the fan-out of n.
	NumChildren(n Node) int
	// FormulaID returns the formula id of a leaf, or 0.
	FormulaID(n Node) uint32
	// Hits returns the hit count of a leaf, or 0.
	Hits(n Node) uint32
}
