package index

import (
	"fmt"
	"iter"

	"github.com/arloliu/mws/errs"
	"github.com/arloliu/mws/format"
	"github.com/arloliu/mws/memsector"
	"github.com/arloliu/mws/token"
)

// ArenaAccessor reads an exported index from a sealed arena.
//
// Child lookups binary-search the sorted entry table in place, so they cost
// O(log k) in the node's fan-out and never allocate.
type ArenaAccessor struct {
	arena *memsector.Arena
	root  Node
}

var _ Accessor = (*ArenaAccessor)(nil)

// NewArenaAccessor validates the node structure of a and returns an accessor.
//
// Every record reachable from the root is decoded once: type tags must be
// known, entry tables sorted, child offsets inside the arena and leaf ids
// non-zero. An exported index is a tree, so a record referenced by two
// entries is rejected and validation stays linear in the arena size. After
// this check no lookup can fail on a malformed record.
//
// Returns:
//   - *ArenaAccessor: Accessor over a
//   - error: errs.ErrArenaSealed if a is still writable, or the first structural error found
func NewArenaAccessor(a *memsector.Arena) (*ArenaAccessor, error) {
	if !a.Sealed() {
		return nil, fmt.Errorf("%w: seal the arena before reading it", errs.ErrArenaSealed)
	}
	if a.Root().IsNull() {
		return nil, fmt.Errorf("%w: arena has no root", errs.ErrOffsetOutOfRange)
	}

	acc := &ArenaAccessor{arena: a}
	root, err := acc.load(a.Root())
	if err != nil {
		return nil, err
	}
	if root.rec.Type != format.NodeInternal {
		return nil, fmt.Errorf("%w: root is a %s node", errs.ErrInvalidNodeType, root.rec.Type)
	}
	acc.root = root

	if err := acc.validate(); err != nil {
		return nil, err
	}

	return acc, nil
}

// Arena returns the underlying arena.
func (a *ArenaAccessor) Arena() *memsector.Arena {
	return a.arena
}

func (a *ArenaAccessor) load(off memsector.Offset) (Node, error) {
	rec, err := a.arena.Node(off)
	if err != nil {
		return Node{}, fmt.Errorf("node at %d: %w", off, err)
	}

	return Node{arena: a.arena, off: off, rec: rec}, nil
}

func (a *ArenaAccessor) validate() error {
	seen := map[memsector.Offset]struct{}{a.root.off: {}}
	stack := []Node{a.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch n.rec.Type {
		case format.NodeLeaf:
			if n.rec.FormulaID == 0 {
				return fmt.Errorf("%w: leaf at %d has formula id 0", errs.ErrInvalidNodeType, n.off)
			}
			continue
		case format.NodeInternal:
		default:
			return fmt.Errorf("%w: %s node at %d inside the trie", errs.ErrInvalidNodeType, n.rec.Type, n.off)
		}

		var prev token.Token
		for i := range n.rec.Len() {
			e := n.rec.EntryAt(i)
			if i > 0 && e.Token <= prev {
				return fmt.Errorf("%w: entries of node %d are not sorted", errs.ErrInvalidNodeType, n.off)
			}
			prev = e.Token

			child := memsector.Offset(e.Child)
			if child <= n.off {
				return fmt.Errorf("%w: node %d points backwards to %d", errs.ErrOffsetOutOfRange, n.off, child)
			}
			if _, dup := seen[child]; dup {
				return fmt.Errorf("%w: node %d is referenced twice", errs.ErrInvalidNodeType, child)
			}
			seen[child] = struct{}{}
			c, err := a.load(child)
			if err != nil {
				return err
			}
			stack = append(stack, c)
		}
	}

	return nil
}

func (a *ArenaAccessor) owns(n Node) bool {
	return n.arena == a.arena && n.arena != nil
}

func (a *ArenaAccessor) Root() Node {
	return a.root
}

func (a *ArenaAccessor) IsLeaf(n Node) bool {
	return a.owns(n) && n.rec.IsLeaf()
}

func (a *ArenaAccessor) Child(n Node, tok token.Token) (Node, bool) {
	if !a.owns(n) {
		return Node{}, false
	}

	e, ok := n.rec.Find(tok)
	if !ok {
		return Node{}, false
	}

	c, err := a.load(memsector.Offset(e.Child))
	if err != nil {
		return Node{}, false
	}

	return c, true
}

func (a *ArenaAccessor) Children(n Node) iter.Seq2[token.Token, Node] {
	return func(yield func(token.Token, Node) bool) {
		if !a.owns(n) {
			return
		}
		for i := range n.rec.Len() {
			e := n.rec.EntryAt(i)
			c, err := a.load(memsector.Offset(e.Child))
			if err != nil {
				return
			}
			if !yield(e.Token, c) {
				return
			}
		}
	}
}

func (a *ArenaAccessor) NumChildren(n Node) int {
	if !a.owns(n) {
		return 0
	}

	return n.rec.Len()
}

func (a *ArenaAccessor) FormulaID(n Node) uint32 {
	if !a.IsLeaf(n) {
		return 0
	}

	return n.rec.FormulaID
}

func (a *ArenaAccessor) Hits(n Node) uint32 {
	if !a.IsLeaf(n) {
		return 0
	}

	return n.rec.Count
}
