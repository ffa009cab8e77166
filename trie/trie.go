// Package trie implements the mutable indexing trie built while harvesting.
//
// Every formula sequence is a path from the root to a leaf. Because sequences
// are self-delimiting, no sequence is a proper prefix of another, so a node is
// either internal (it has children) or a leaf (it carries a formula id and a
// hit count), never both. Inserting the same sequence again walks the same
// path and increments the same leaf.
package trie

import (
	"fmt"
	"slices"

	"github.com/arloliu/mws/errs"
	"github.com/arloliu/mws/section"
	"github.com/arloliu/mws/token"
)

// Leaf is the terminal node of one distinct formula.
type Leaf struct {
	// ID is the formula id, unique within the trie and stable across reinsertions.
	ID uint32
	// Hits is the number of times the formula was inserted.
	Hits uint32
}

// Node is a trie node. Exactly one of children and leaf is in use.
type Node struct {
	children map[token.Token]*Node
	leaf     *Leaf
}

// Edge is one (token, child) pair of an internal node.
type Edge struct {
	Token token.Token
	Node  *Node
}

// IsLeaf reports whether the node terminates a formula.
func (n *Node) IsLeaf() bool {
	return n.leaf != nil
}

// Leaf returns the leaf payload, or nil for internal nodes.
func (n *Node) Leaf() *Leaf {
	return n.leaf
}

// Child returns the child reached through tok.
func (n *Node) Child(tok token.Token) (*Node, bool) {
	c, ok := n.children[tok]
	return c, ok
}

// NumChildren returns the fan-out of an internal node.
func (n *Node) NumChildren() int {
	return len(n.children)
}

// Edges returns the node's children sorted by token order.
//
// A new slice is built on every call, so concurrent readers of a finished trie
// never share state.
func (n *Node) Edges() []Edge {
	edges := make([]Edge, 0, len(n.children))
	for tok, c := range n.children {
		edges = append(edges, Edge{Token: tok, Node: c})
	}
	slices.SortFunc(edges, func(a, b Edge) int {
		return token.Compare(a.Token, b.Token)
	})

	return edges
}

// Trie is the insert-only index under construction.
//
// Note: Trie is NOT thread-safe. Insertions must come from a single writer;
// once building is finished the trie may be read concurrently.
type Trie struct {
	root      *Node
	nextID    uint32
	internals int
	leaves    int
	edges     int
	hits      uint64
}

// New creates an empty trie. Formula ids start at 1.
func New() *Trie {
	return &Trie{
		root:      &Node{children: make(map[token.Token]*Node)},
		nextID:    1,
		internals: 1,
	}
}

// Root returns the root node, which is always internal.
func (t *Trie) Root() *Node {
	return t.root
}

// Insert adds one occurrence of formula, creating its path if absent.
//
// The first insertion of a sequence creates a leaf with a fresh id; every
// insertion, including the first, increments the leaf's hit count, so k
// insertions leave exactly one leaf with Hits == k.
//
// Parameters:
//   - f: Encoded formula
//
// Returns:
//   - *Leaf: Leaf of the formula
//   - error: errs.ErrEmptyFormula or errs.ErrMalformedFormula
func (t *Trie) Insert(f token.Formula) (*Leaf, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	cur := t.root
	last := len(f) - 1
	for i, tok := range f {
		next, ok := cur.children[tok]
		if !ok {
			next = t.newNode(i == last)
			cur.children[tok] = next
			t.edges++
		} else if next.IsLeaf() != (i == last) {
			return nil, fmt.Errorf("%w: path collides with another formula at token %d", errs.ErrMalformedFormula, i)
		}
		cur = next
	}

	cur.leaf.Hits++
	t.hits++

	return cur.leaf, nil
}

func (t *Trie) newNode(leaf bool) *Node {
	if leaf {
		t.leaves++
		n := &Node{leaf: &Leaf{ID: t.nextID}}
		t.nextID++

		return n
	}

	t.internals++

	return &Node{children: make(map[token.Token]*Node)}
}

// Lookup returns the leaf of an exact formula sequence.
func (t *Trie) Lookup(f token.Formula) (*Leaf, bool) {
	cur := t.root
	for _, tok := range f {
		if cur.IsLeaf() {
			return nil, false
		}
		next, ok := cur.children[tok]
		if !ok {
			return nil, false
		}
		cur = next
	}

	return cur.leaf, cur.IsLeaf()
}

// Stats summarises the shape of a trie.
type Stats struct {
	InternalNodes int
	Leaves        int
	Edges         int
	TotalHits     uint64
}

// Stats returns node, edge and hit counts.
func (t *Trie) Stats() Stats {
	return Stats{
		InternalNodes: t.internals,
		Leaves:        t.leaves,
		Edges:         t.edges,
		TotalHits:     t.hits,
	}
}

// Len returns the number of distinct formulas.
func (t *Trie) Len() int {
	return t.leaves
}

// ArenaSize returns the number of bytes an arena needs to hold the exported
// trie, header included.
func (t *Trie) ArenaSize() int {
	return section.HeaderSize +
		t.internals*section.InternalHeaderSize +
		t.edges*section.EntrySize +
		t.leaves*section.LeafSize
}

// Walk calls fn for every leaf in token order with the path that leads to it.
//
// The path slice is reused between calls; copy it to retain it. A non-nil error
// from fn stops the walk and is returned.
func (t *Trie) Walk(fn func(path token.Formula, leaf *Leaf) error) error {
	type frame struct {
		edges []Edge
		next  int
	}

	path := make(token.Formula, 0, 16)
	stack := []frame{{edges: t.root.Edges()}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next == len(top.edges) {
			stack = stack[:len(stack)-1]
			if len(path) > 0 {
				path = path[:len(path)-1]
			}
			continue
		}

		e := top.edges[top.next]
		top.next++
		path = append(path, e.Token)

		if e.Node.IsLeaf() {
			if err := fn(path, e.Node.leaf); err != nil {
				return err
			}
			path = path[:len(path)-1]
			continue
		}
		stack = append(stack, frame{edges: e.Node.Edges()})
	}

	return nil
}
