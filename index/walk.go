package index

import (
	"fmt"

	"github.com/arloliu/mws/token"
)

type edge struct {
	tok  token.Token
	node Node
}

func collect(acc Accessor, n Node) []edge {
	edges := make([]edge, 0, acc.NumChildren(n))
	for tok, c := range acc.Children(n) {
		edges = append(edges, edge{tok: tok, node: c})
	}

	return edges
}

// Walk calls fn for every leaf reachable from the root, in token order, with
// the formula sequence that leads to it.
//
// The path slice is reused between calls; copy it to retain it. A non-nil error
// from fn stops the walk and is returned.
func Walk(acc Accessor, fn func(path token.Formula, leaf Node) error) error {
	type frame struct {
		edges []edge
		next  int
	}

	path := make(token.Formula, 0, 16)
	stack := []frame{{edges: collect(acc, acc.Root())}}
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
		path = append(path, e.tok)

		if acc.IsLeaf(e.node) {
			if err := fn(path, e.node); err != nil {
				return err
			}
			path = path[:len(path)-1]
			continue
		}
		stack = append(stack, frame{edges: collect(acc, e.node)})
	}

	return nil
}

// Summary counts the nodes of an index.
type Summary struct {
	InternalNodes int
	Leaves        int
	Edges         int
	TotalHits     uint64
	MaxDepth      int
}

// Summarize visits every node reachable from the root.
func Summarize(acc Accessor) Summary {
	type item struct {
		node  Node
		depth int
	}

	var s Summary
	stack := []item{{node: acc.Root()}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		s.MaxDepth = max(s.MaxDepth, it.depth)
		if acc.IsLeaf(it.node) {
			s.Leaves++
			s.TotalHits += uint64(acc.Hits(it.node))
			continue
		}

		s.InternalNodes++
		for _, c := range acc.Children(it.node) {
			s.Edges++
			stack = append(stack, item{node: c, depth: it.depth + 1})
		}
	}

	return s
}

// Equivalent checks that two accessors expose isomorphic indexes: the same
// child tokens at every node, and the same formula ids and hit counts at every
// leaf.
//
// Returns:
//   - error: nil if the indexes match, otherwise a description of the first difference
func Equivalent(a, b Accessor) error {
	type pair struct {
		x, y Node
		path token.Formula
	}

	stack := []pair{{x: a.Root(), y: b.Root()}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		leafX, leafY := a.IsLeaf(p.x), b.IsLeaf(p.y)
		if leafX != leafY {
			return fmt.Errorf("at %s: leaf %v vs %v", p.path, leafX, leafY)
		}
		if leafX {
			if a.FormulaID(p.x) != b.FormulaID(p.y) || a.Hits(p.x) != b.Hits(p.y) {
				return fmt.Errorf("at %s: leaf (id %d, hits %d) vs (id %d, hits %d)",
					p.path, a.FormulaID(p.x), a.Hits(p.x), b.FormulaID(p.y), b.Hits(p.y))
			}
			continue
		}

		ex, ey := collect(a, p.x), collect(b, p.y)
		if len(ex) != len(ey) {
			return fmt.Errorf("at %s: %d children vs %d", p.path, len(ex), len(ey))
		}
		for i := range ex {
			if ex[i].tok != ey[i].tok {
				return fmt.Errorf("at %s: child %d is %s vs %s", p.path, i, ex[i].tok, ey[i].tok)
			}

			path := make(token.Formula, len(p.path)+1)
			copy(path, p.path)
			path[len(p.path)] = ex[i].tok
			stack = append(stack, pair{x: ex[i].node, y: ey[i].node, path: path})
		}
	}

	return nil
}
