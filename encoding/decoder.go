package encoding

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/arloliu/mws/cmml"
	"github.com/arloliu/mws/dict"
	"github.com/arloliu/mws/errs"
	"github.com/arloliu/mws/token"
)

// Decoder maps tokens back to meanings.
//
// A Decoder over a frozen dictionary is safe for concurrent use.
type Decoder struct {
	dict *dict.Dictionary
}

// NewDecoder creates a decoder backed by d.
func NewDecoder(d *dict.Dictionary) *Decoder {
	return &Decoder{dict: d}
}

// Meaning returns the meaning of t.
//
// Variables and ranges decode without the dictionary to "hvar#n",
// "anonymous_hvar#n", "qvar#n", "anonymous_qvar#n" or "range#n".
//
// Returns:
//   - string: Meaning
//   - error: errs.ErrUnknownMeaning for a constant outside the dictionary,
//     errs.ErrInvalidToken for the zero token
func (d *Decoder) Meaning(t token.Token) (string, error) {
	switch t.Kind() {
	case token.KindConstant:
		return d.dict.Meaning(t.DictID())
	case token.KindHvar:
		return "hvar#" + strconv.Itoa(t.VarIndex()), nil
	case token.KindAnonHvar:
		return "anonymous_hvar#" + strconv.Itoa(t.VarIndex()), nil
	case token.KindQvar:
		return "qvar#" + strconv.Itoa(t.VarIndex()), nil
	case token.KindAnonQvar:
		return "anonymous_qvar#" + strconv.Itoa(t.VarIndex()), nil
	case token.KindRange:
		return "range#" + strconv.Itoa(t.VarIndex()), nil
	default:
		return "", fmt.Errorf("%w: %d", errs.ErrInvalidToken, t.ID())
	}
}

// Number returns the numeric value of a "cn" constant of arity 0.
func (d *Decoder) Number(t token.Token) (float64, bool) {
	if !t.IsConstant() || t.Arity() != 0 {
		return 0, false
	}

	meaning, err := d.dict.Meaning(t.DictID())
	if err != nil {
		return 0, false
	}
	text, ok := strings.CutPrefix(meaning, "cn#")
	if !ok {
		return 0, false
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// Tree rebuilds a formula tree from an encoded sequence.
//
// Named variables are rendered with their decoded meaning as name, anonymous
// variables stay anonymous, and ranges become unbounded range nodes.
//
// Returns:
//   - *cmml.Node: Root of the rebuilt tree
//   - error: errs.ErrMalformedFormula or errs.ErrUnknownMeaning
func (d *Decoder) Tree(f token.Formula) (*cmml.Node, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	type open struct {
		node    *cmml.Node
		missing int
	}

	var root *cmml.Node
	stack := make([]open, 0, 8)
	for _, t := range f {
		n, err := d.node(t)
		if err != nil {
			return nil, err
		}

		if len(stack) == 0 {
			root = n
		} else {
			top := &stack[len(stack)-1]
			top.node.AddChild(n)
			top.missing--
		}

		for len(stack) > 0 && stack[len(stack)-1].missing == 0 {
			stack = stack[:len(stack)-1]
		}
		if t.Arity() > 0 {
			stack = append(stack, open{node: n, missing: int(t.Arity())})
		}
	}

	return root, nil
}

func (d *Decoder) node(t token.Token) (*cmml.Node, error) {
	switch {
	case t.IsRange():
		return cmml.NewRange(math.Inf(-1), math.Inf(1)), nil
	case t.IsVar():
		if t.IsAnonymous() {
			return cmml.NewVar(""), nil
		}
		meaning, err := d.Meaning(t)
		if err != nil {
			return nil, err
		}
		return cmml.NewVar(strings.ReplaceAll(meaning, "#", "")), nil
	}

	meaning, err := d.Meaning(t)
	if err != nil {
		return nil, err
	}
	tag, text, _ := strings.Cut(meaning, "#")

	return cmml.NewConstant(tag, text), nil
}
