package query

import (
	"fmt"

	"github.com/arloliu/mws/errs"
	"github.com/arloliu/mws/index"
	"github.com/arloliu/mws/internal/options"
	"github.com/arloliu/mws/token"
)

// frame is one pending alternative of the search.
//
// In match mode the frame pairs the unconsumed query tokens q with an index
// position: the trie node plus pend, index tokens still owed by a bound
// index-side variable whose value is being replayed. In enumeration mode the
// frame is collecting a complete index subtree for the query variable solving.
type frame struct {
	q    *list
	pend *list
	node index.Node
	bind *bindings

	enum     bool
	solving  token.Token
	need     int
	captured *list
}

type run struct {
	acc   index.Accessor
	cfg   *Config
	sink  Sink
	seen  map[uint32]struct{}
	stack []frame
}

// Run unifies the query q with every formula in the index and reports each
// matching leaf to sink, at most once.
//
// Query variables bind to complete index subtrees; variables stored in the
// index bind to complete query subtrees. A variable that occurs more than
// once must take the same value everywhere. Matches are reported in token
// order of the index, so identical queries yield identical sequences.
//
// The search runs on an explicit stack and does not recurse. Run only reads
// acc, so any number of Runs may share one accessor.
//
// Parameters:
//   - acc: Index to search
//   - q: Encoded query
//   - sink: Receives the matches
//   - opts: Run options
//
// Returns:
//   - Status: StatusContinue if the index was exhausted, StatusStop if the sink stopped the search,
//     StatusError otherwise
//   - error: errs.ErrEmptyFormula or errs.ErrMalformedFormula for a bad query (the index is not
//     touched), errs.ErrStepLimit, errs.ErrSinkFailed, or an option error
func Run(acc index.Accessor, q token.Formula, sink Sink, opts ...Option) (Status, error) {
	cfg := &Config{}
	if err := options.Apply(cfg, opts...); err != nil {
		return StatusError, err
	}
	if err := cfg.check(q); err != nil {
		return StatusError, err
	}

	r := &run{
		acc:   acc,
		cfg:   cfg,
		sink:  sink,
		seen:  make(map[uint32]struct{}),
		stack: make([]frame, 0, 64),
	}
	r.push(frame{q: prepend(nil, q), node: acc.Root()})

	steps := 0
	for len(r.stack) > 0 {
		f := r.stack[len(r.stack)-1]
		r.stack = r.stack[:len(r.stack)-1]

		steps++
		if cfg.maxSteps > 0 && steps > cfg.maxSteps {
			return StatusError, fmt.Errorf("%w: %d steps", errs.ErrStepLimit, cfg.maxSteps)
		}

		if f.enum {
			r.enumerate(f)
			continue
		}

		switch st := r.match(f); st {
		case StatusContinue:
		case StatusStop:
			return StatusStop, nil
		case StatusError:
			return StatusError, errs.ErrSinkFailed
		default:
			return StatusError, fmt.Errorf("%w: sink returned status %d", errs.ErrSinkFailed, st)
		}
	}

	return StatusContinue, nil
}

func (r *run) push(f frame) {
	r.stack = append(r.stack, f)
}

func (r *run) match(f frame) Status {
	if f.q == nil {
		if f.pend != nil || !r.acc.IsLeaf(f.node) {
			return StatusContinue
		}

		return r.report(f)
	}

	qt, rest := f.q.tok, f.q.next
	switch {
	case qt.IsVar():
		r.matchQueryVar(f, qt, rest)
	case f.pend != nil:
		r.matchPending(f, qt, rest)
	default:
		r.matchChildren(f, qt, rest)
	}

	return StatusContinue
}

func (r *run) report(f frame) Status {
	id := r.acc.FormulaID(f.node)
	if _, dup := r.seen[id]; dup {
		return StatusContinue
	}
	r.seen[id] = struct{}{}

	m := Match{Node: f.node, FormulaID: id, Hits: r.acc.Hits(f.node)}
	if r.cfg.bindings {
		m.Bindings = f.bind.materialize()
	}

	return r.sink.OnMatch(m)
}

// matchQueryVar handles a variable on the query side. A bound variable is
// replaced by its value; otherwise every complete subtree at the index
// position becomes a candidate value.
func (r *run) matchQueryVar(f frame, v token.Token, rest *list) {
	if val, ok := f.bind.lookup(v); ok {
		r.push(frame{q: prepend(rest, val), pend: f.pend, node: f.node, bind: f.bind})
		return
	}

	if f.pend != nil {
		// pend always holds whole subtrees, so the candidate is unique.
		sub, tail, ok := f.pend.subtree()
		if !ok {
			return
		}
		r.bindAndPush(frame{q: rest, pend: tail, node: f.node, bind: f.bind}, v, sub)

		return
	}

	r.push(frame{enum: true, q: rest, node: f.node, bind: f.bind, solving: v, need: 1})
}

// enumerate extends a partial index subtree by one token, pushing one frame
// per child in reverse so that they are explored in token order.
func (r *run) enumerate(f frame) {
	if f.need == 0 {
		r.bindAndPush(frame{q: f.q, node: f.node, bind: f.bind}, f.solving, f.captured.reversed())
		return
	}

	type child struct {
		tok  token.Token
		node index.Node
	}

	children := make([]child, 0, r.acc.NumChildren(f.node))
	for tok, c := range r.acc.Children(f.node) {
		children = append(children, child{tok: tok, node: c})
	}

	for i := len(children) - 1; i >= 0; i-- {
		c := children[i]
		r.push(frame{
			enum:     true,
			q:        f.q,
			node:     c.node,
			bind:     f.bind,
			solving:  f.solving,
			need:     f.need + int(c.tok.Arity()) - 1,
			captured: &list{tok: c.tok, next: f.captured},
		})
	}
}

// matchPending matches a query constant or range against the next token owed
// by a replayed index-side binding.
func (r *run) matchPending(f frame, qt token.Token, rest *list) {
	it, tail := f.pend.tok, f.pend.next
	if it.IsVar() {
		r.matchIndexVar(frame{q: f.q, pend: tail, node: f.node, bind: f.bind}, it)
		return
	}

	if r.admits(qt, it) {
		r.push(frame{q: rest, pend: tail, node: f.node, bind: f.bind})
	}
}

// matchChildren matches a query constant or range against the children of
// the current node. Besides the direct matches, every variable child is a
// candidate: variables sort before all constants, so they come first.
func (r *run) matchChildren(f frame, qt token.Token, rest *list) {
	type alt struct {
		tok  token.Token
		node index.Node
	}

	var alts []alt
	for tok, c := range r.acc.Children(f.node) {
		if tok.IsVar() {
			alts = append(alts, alt{tok: tok, node: c})
			continue
		}
		if !qt.IsRange() || tok.Arity() != 0 {
			break
		}
		if r.admits(qt, tok) {
			alts = append(alts, alt{tok: tok, node: c})
		}
	}
	if !qt.IsRange() {
		if c, ok := r.acc.Child(f.node, qt); ok {
			alts = append(alts, alt{tok: qt, node: c})
		}
	}

	for i := len(alts) - 1; i >= 0; i-- {
		a := alts[i]
		if a.tok.IsVar() {
			r.matchIndexVar(frame{q: f.q, node: a.node, bind: f.bind}, a.tok)
			continue
		}
		r.push(frame{q: rest, node: a.node, bind: f.bind})
	}
}

// matchIndexVar handles a variable on the index side. next.q still starts at
// the query subtree the variable must cover. A bound variable replays its
// value through pend; otherwise it binds to that query subtree.
func (r *run) matchIndexVar(next frame, v token.Token) {
	if val, ok := next.bind.lookup(v); ok {
		next.pend = prepend(next.pend, val)
		r.push(next)

		return
	}

	sub, remainder, ok := next.q.subtree()
	if !ok {
		return
	}
	next.q = remainder
	r.bindAndPush(next, v, sub)
}

// bindAndPush binds v to captured in next and pushes it. A self-referencing
// variable stays unbound.
func (r *run) bindAndPush(next frame, v token.Token, captured token.Formula) {
	val, self, ok := resolve(captured, v, next.bind)
	if !ok {
		return
	}
	if !self {
		next.bind = next.bind.with(v, val)
	}
	r.push(next)
}

// admits reports whether query token qt matches index token it, both being
// constants or ranges. A range admits arity-0 numeric constants inside its bounds.
func (r *run) admits(qt, it token.Token) bool {
	switch {
	case qt == it:
		return true
	case qt.IsRange() && it.IsConstant() && it.Arity() == 0:
		return r.inRange(qt, it)
	case it.IsRange() && qt.IsConstant() && qt.Arity() == 0:
		return r.inRange(it, qt)
	default:
		return false
	}
}

func (r *run) inRange(rt, ct token.Token) bool {
	bounds, ok := r.cfg.ranges[rt]
	if !ok || r.cfg.decoder == nil {
		return false
	}

	v, ok := r.cfg.decoder.Number(ct)

	return ok && bounds.Contains(v)
}
