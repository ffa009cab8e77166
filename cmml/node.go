// Package cmml holds the Content MathML formula tree consumed by the encoders.
//
// Parsing MathML documents is left to the caller; trees are either built with
// the constructors below or read from the compact notation understood by Parse:
//
//	apply(csymbol:eq, ci:x, apply(csymbol:plus, ?a, cn:1))
//
// where ?a is a named variable, a bare ? an anonymous one, and [lo,hi] a
// numeric range.
package cmml

import (
	"math"
	"strconv"
	"strings"
)

// Kind distinguishes constant symbols from variables and ranges.
type Kind uint8

const (
	KindConstant Kind = iota // KindConstant is an ordinary MathML element.
	KindVariable             // KindVariable is a named or anonymous variable.
	KindRange                // KindRange is a numeric interval placeholder.
)

const rootXpath = "/*[1]"

// Node is one element of a formula tree.
//
// Note: Node trees are not safe for concurrent mutation.
type Node struct {
	// Tag is the element name, e.g. "apply", "ci", "cn", "csymbol".
	Tag string
	// Text is the element's text content.
	Text string
	// VarName is the variable name; empty for an anonymous variable.
	VarName string
	// Lo and Hi bound a range node. Missing bounds are -Inf and +Inf.
	Lo, Hi float64

	Children []*Node

	kind   Kind
	parent *Node
	pos    int
}

// NewConstant creates a constant element with the given children.
func NewConstant(tag, text string, children ...*Node) *Node {
	n := &Node{Tag: tag, Text: text, kind: KindConstant}
	for _, c := range children {
		n.AddChild(c)
	}

	return n
}

// NewVar creates a variable. An empty name makes the variable anonymous.
func NewVar(name string) *Node {
	return &Node{Tag: "qvar", VarName: name, kind: KindVariable}
}

// NewRange creates a numeric range placeholder covering [lo, hi].
func NewRange(lo, hi float64) *Node {
	return &Node{Tag: "range", Lo: lo, Hi: hi, kind: KindRange}
}

// AddChild appends c to n's children and links it to n.
func (n *Node) AddChild(c *Node) {
	c.parent = n
	c.pos = len(n.Children)
	n.Children = append(n.Children, c)
}

// Kind returns the node's kind.
func (n *Node) Kind() Kind { return n.kind }

// IsVar reports whether the node is a variable.
func (n *Node) IsVar() bool { return n.kind == KindVariable }

// IsRange reports whether the node is a range placeholder.
func (n *Node) IsRange() bool { return n.kind == KindRange }

// Parent returns the enclosing node, or nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Arity returns the number of children.
func (n *Node) Arity() int { return len(n.Children) }

// IsFirstChild reports whether n is the leading child of its parent.
func (n *Node) IsFirstChild() bool {
	return n.parent != nil && n.pos == 0
}

// Meaning returns the dictionary key of a constant: "tag#text".
// The content of mtext elements is discarded.
func (n *Node) Meaning() string {
	if n.Tag == "mtext" {
		return "mtext#"
	}

	return n.Tag + "#" + n.Text
}

// Xpath returns the position of n inside its formula, e.g. "/*[1]/*[2]".
func (n *Node) Xpath() string {
	if n.parent == nil {
		return rootXpath
	}

	return n.parent.Xpath() + "/*[" + strconv.Itoa(n.pos+1) + "]"
}

// XpathRelative returns Xpath without the leading root step.
func (n *Node) XpathRelative() string {
	return strings.TrimPrefix(n.Xpath(), rootXpath)
}

// Contains reports whether v lies within the range bounds.
func (n *Node) Contains(v float64) bool {
	return v >= n.Lo && v <= n.Hi
}

// Size returns the number of nodes in the subtree rooted at n.
func (n *Node) Size() int {
	size := 0
	_ = n.ForeachSubexpression(func(*Node) error {
		size++
		return nil
	})

	return size
}

// ForeachSubexpression calls fn for n and every descendant in prefix order.
//
// The walk uses an explicit stack, so arbitrarily deep trees are safe. A non-nil
// error returned by fn stops the walk and is returned unchanged.
func (n *Node) ForeachSubexpression(fn func(*Node) error) error {
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := fn(cur); err != nil {
			return err
		}

		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}

	return nil
}

// Equal reports whether both trees have the same shape and content.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.kind != o.kind || len(n.Children) != len(o.Children) {
		return false
	}

	switch n.kind {
	case KindVariable:
		return n.VarName == o.VarName
	case KindRange:
		return n.Lo == o.Lo && n.Hi == o.Hi
	}

	if n.Tag != o.Tag || n.Text != o.Text {
		return false
	}
	for i := range n.Children {
		if !n.Children[i].Equal(o.Children[i]) {
			return false
		}
	}

	return true
}

// String renders the node in the notation accepted by Parse.
func (n *Node) String() string {
	var sb strings.Builder
	n.write(&sb)

	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	switch n.kind {
	case KindVariable:
		sb.WriteByte('?')
		sb.WriteString(n.VarName)
		return
	case KindRange:
		sb.WriteByte('[')
		if !math.IsInf(n.Lo, -1) {
			sb.WriteString(strconv.FormatFloat(n.Lo, 'g', -1, 64))
		}
		sb.WriteByte(',')
		if !math.IsInf(n.Hi, 1) {
			sb.WriteString(strconv.FormatFloat(n.Hi, 'g', -1, 64))
		}
		sb.WriteByte(']')
		return
	}

	sb.WriteString(n.Tag)
	if n.Text != "" {
		sb.WriteByte(':')
		if needsQuote(n.Text) {
			sb.WriteString(strconv.Quote(n.Text))
		} else {
			sb.WriteString(n.Text)
		}
	}
	if len(n.Children) == 0 {
		return
	}

	sb.WriteByte('(')
	for i, c := range n.Children {
		if i > 0 {
			sb.WriteString(", ")
		}
		c.write(sb)
	}
	sb.WriteByte(')')
}

func needsQuote(s string) bool {
	for _, r := range s {
		if isDelimiter(r) || r == '"' || r == '\\' {
			return true
		}
	}

	return false
}
