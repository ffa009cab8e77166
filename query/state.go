package query

import "github.com/arloliu/mws/token"

// list is an immutable token stack. Frames share tails, so pushing a frame
// never copies the pending tokens of its parent.
type list struct {
	tok  token.Token
	next *list
}

// prepend returns l with f in front, f[0] on top.
func prepend(l *list, f token.Formula) *list {
	for i := len(f) - 1; i >= 0; i-- {
		l = &list{tok: f[i], next: l}
	}

	return l
}

// subtree splits off the complete subtree on top of l.
//
// Returns false if l ends before the subtree closes.
func (l *list) subtree() (token.Formula, *list, bool) {
	var sub token.Formula
	need := 1
	for cur := l; cur != nil; cur = cur.next {
		sub = append(sub, cur.tok)
		need += int(cur.tok.Arity()) - 1
		if need == 0 {
			return sub, cur.next, true
		}
	}

	return nil, nil, false
}

// reversed returns the tokens of l from bottom to top. Captures are built by
// pushing, so this restores capture order.
func (l *list) reversed() token.Formula {
	n := 0
	for cur := l; cur != nil; cur = cur.next {
		n++
	}

	out := make(token.Formula, n)
	for cur := l; cur != nil; cur = cur.next {
		n--
		out[n] = cur.tok
	}

	return out
}

// bindings is an immutable association list from variable tokens to the
// token sequences they stand for. A variable is bound at most once per branch.
// Anonymous variables are bound too: the encoders number every anonymous
// occurrence separately, so a binding only constrains the values replayed
// through it.
type bindings struct {
	v    token.Token
	val  token.Formula
	next *bindings
}

func (b *bindings) lookup(v token.Token) (token.Formula, bool) {
	for cur := b; cur != nil; cur = cur.next {
		if cur.v == v {
			return cur.val, true
		}
	}

	return nil, false
}

func (b *bindings) with(v token.Token, val token.Formula) *bindings {
	return &bindings{v: v, val: val, next: b}
}

// resolve expands every bound variable inside captured, the candidate value
// for solving.
//
// If captured expands to solving itself the variable just refers to itself:
// self is true and the variable must stay unbound. If solving occurs inside a
// larger term the binding would be infinite and ok is false.
func resolve(captured token.Formula, solving token.Token, b *bindings) (out token.Formula, self bool, ok bool) {
	work := make(token.Formula, 0, len(captured))
	for i := len(captured) - 1; i >= 0; i-- {
		work = append(work, captured[i])
	}

	out = make(token.Formula, 0, len(captured))
	for len(work) > 0 {
		t := work[len(work)-1]
		work = work[:len(work)-1]

		if t.IsVar() {
			if t == solving {
				if len(out) == 0 && len(work) == 0 {
					return nil, true, true
				}

				return nil, false, false
			}
			if val, bound := b.lookup(t); bound {
				for i := len(val) - 1; i >= 0; i-- {
					work = append(work, val[i])
				}
				continue
			}
		}
		out = append(out, t)
	}

	return out, false, true
}

// materialize returns the bindings of named variables with nested variables
// expanded. Anonymous variables are bound while matching but have no name to
// report.
func (b *bindings) materialize() Bindings {
	if b == nil {
		return nil
	}

	out := make(Bindings)
	for cur := b; cur != nil; cur = cur.next {
		if _, dup := out[cur.v]; dup || cur.v.IsAnonymous() {
			continue
		}
		val, _, _ := resolve(cur.val, 0, b)
		out[cur.v] = val
	}

	return out
}
