package index

import (
	"iter"

	"github.com/arloliu/mws/token"
	"github.com/arloliu/mws/trie"
)

// TrieAccessor reads a mutable trie directly.
type TrieAccessor struct {
	tr *trie.Trie
}

var _ Accessor = (*TrieAccessor)(nil)

// NewTrieAccessor creates an accessor over tr.
//
// Note: queries through a TrieAccessor must not overlap with insertions.
func NewTrieAccessor(tr *trie.Trie) *TrieAccessor {
	return &TrieAccessor{tr: tr}
}

func (a *TrieAccessor) Root() Node {
	return Node{tn: a.tr.Root()}
}

func (a *TrieAccessor) IsLeaf(n Node) bool {
	return n.tn != nil && n.tn.IsLeaf()
}

func (a *TrieAccessor) Child(n Node, tok token.Token) (Node, bool) {
	if n.tn == nil {
		return Node{}, false
	}

	c, ok := n.tn.Child(tok)
	if !ok {
		return Node{}, false
	}

	return Node{tn: c}, true
}

func (a *TrieAccessor) Children(n Node) iter.Seq2[token.Token, Node] {
	return func(yield func(token.Token, Node) bool) {
		if n.tn == nil {
			return
		}
		for _, e := range n.tn.Edges() {
			if !yield(e.Token, Node{tn: e.Node}) {
				return
			}
		}
	}
}

func (a *TrieAccessor) NumChildren(n Node) int {
	if n.tn == nil {
		return 0
	}

	return n.tn.NumChildren()
}

func (a *TrieAccessor) FormulaID(n Node) uint32 {
	if !a.IsLeaf(n) {
		return 0
	}

	return n.tn.Leaf().ID
}

func (a *TrieAccessor) Hits(n Node) uint32 {
	if !a.IsLeaf(n) {
		return 0
	}

	return n.tn.Leaf().Hits
}
