package encoding

import (
	"fmt"
	"strconv"

	"github.com/arloliu/mws/cmml"
	"github.com/arloliu/mws/dict"
	"github.com/arloliu/mws/errs"
	"github.com/arloliu/mws/internal/options"
	"github.com/arloliu/mws/token"
)

type mode uint8

const (
	modeHarvest mode = iota
	modeQuery
)

// RangeBounds is the closed numeric interval of a range token.
type RangeBounds struct {
	Lo float64
	Hi float64
}

// Contains reports whether v lies within the bounds.
func (b RangeBounds) Contains(v float64) bool {
	return v >= b.Lo && v <= b.Hi
}

// Info describes the variables found while encoding one formula.
type Info struct {
	// VarNames lists named variables by per-formula index.
	VarNames []string
	// VarXpaths holds the relative xpath of each named variable's first occurrence.
	VarXpaths []string
	// Ranges maps each range token to its bounds.
	Ranges map[token.Token]RangeBounds
}

// Encoder turns formula trees into token sequences.
//
// A harvest encoder maps variables to the hvar ranges and allocates meanings
// in the dictionary; a query encoder maps variables to the qvar ranges and
// only looks meanings up.
//
// Note: Encoder is NOT thread-safe. A query encoder over a frozen dictionary
// may be shared once created, since Encode then keeps all state local.
type Encoder struct {
	*EncoderConfig
	dict *dict.Dictionary
	mode mode
}

// NewHarvestEncoder creates an encoder for formulas that are being indexed.
//
// Parameters:
//   - d: Mutable dictionary that receives new meanings
//   - opts: Optional encoder configuration
//
// Returns:
//   - *Encoder: Harvest encoder
//   - error: Configuration error if an option fails
func NewHarvestEncoder(d *dict.Dictionary, opts ...EncoderOption) (*Encoder, error) {
	return newEncoder(d, modeHarvest, opts)
}

// NewQueryEncoder creates an encoder for query formulas.
//
// Constants unknown to the dictionary make Encode fail with errs.ErrUnknownMeaning,
// which callers should treat as "no results".
func NewQueryEncoder(d *dict.Dictionary, opts ...EncoderOption) (*Encoder, error) {
	return newEncoder(d, modeQuery, opts)
}

func newEncoder(d *dict.Dictionary, m mode, opts []EncoderOption) (*Encoder, error) {
	cfg := &EncoderConfig{}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return &Encoder{EncoderConfig: cfg, dict: d, mode: m}, nil
}

// encodeState is the per-formula state of one Encode call.
type encodeState struct {
	named     map[string]int
	anonCount int
	ranges    int
	ciNames   map[string]string
	info      *Info
}

// Encode linearizes the tree rooted at root in prefix order.
//
// The n-th distinct named variable receives variable index n, whatever its
// name; anonymous variables and ranges are numbered in order of appearance.
//
// Parameters:
//   - root: Formula tree
//
// Returns:
//   - token.Formula: Encoded sequence
//   - *Info: Variable names, xpaths and range bounds
//   - error: errs.ErrArityOverflow, errs.ErrVarIndexOverflow, errs.ErrUnknownMeaning
//     (query mode) or errs.ErrDictionaryFrozen (harvest mode on a frozen dictionary)
func (e *Encoder) Encode(root *cmml.Node) (token.Formula, *Info, error) {
	st := &encodeState{
		named: make(map[string]int),
		info:  &Info{},
	}
	formula := make(token.Formula, 0, 16)

	err := root.ForeachSubexpression(func(n *cmml.Node) error {
		tok, err := e.encodeNode(st, n)
		if err != nil {
			return err
		}
		formula = append(formula, tok)

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return formula, st.info, nil
}

func (e *Encoder) encodeNode(st *encodeState, n *cmml.Node) (token.Token, error) {
	switch n.Kind() {
	case cmml.KindVariable:
		return e.encodeVar(st, n)
	case cmml.KindRange:
		if e.mode == modeHarvest {
			return 0, fmt.Errorf("%w: range at %s in an indexed formula", errs.ErrInvalidToken, n.Xpath())
		}
		tok, err := token.Range(st.ranges)
		if err != nil {
			return 0, err
		}
		st.ranges++
		if st.info.Ranges == nil {
			st.info.Ranges = make(map[token.Token]RangeBounds)
		}
		st.info.Ranges[tok] = RangeBounds{Lo: n.Lo, Hi: n.Hi}

		return tok, nil
	}

	if n.Arity() > token.MaxArity {
		return 0, fmt.Errorf("%w: %s has %d children", errs.ErrArityOverflow, n.Xpath(), n.Arity())
	}

	meaning := n.Meaning()
	if e.renameCi && n.Tag == "ci" {
		meaning = st.renamedCi(n)
	}

	var id uint32
	if e.mode == modeHarvest {
		var err error
		if id, err = e.dict.Put(meaning); err != nil {
			return 0, err
		}
	} else {
		var ok bool
		if id, ok = e.dict.Get(meaning); !ok {
			return 0, fmt.Errorf("%w: %q", errs.ErrUnknownMeaning, meaning)
		}
	}

	return token.Constant(uint8(n.Arity()), id) //nolint:gosec
}

func (e *Encoder) encodeVar(st *encodeState, n *cmml.Node) (token.Token, error) {
	if n.VarName == "" {
		idx := st.anonCount
		st.anonCount++
		if e.mode == modeHarvest {
			return token.AnonHvar(idx)
		}

		return token.AnonQvar(idx)
	}

	idx, seen := st.named[n.VarName]
	if !seen {
		idx = len(st.named)
		st.named[n.VarName] = idx
		st.info.VarNames = append(st.info.VarNames, n.VarName)
		st.info.VarXpaths = append(st.info.VarXpaths, n.XpathRelative())
	}

	if e.mode == modeHarvest {
		return token.Hvar(idx)
	}

	return token.Qvar(idx)
}

func (st *encodeState) renamedCi(n *cmml.Node) string {
	meaning := n.Meaning()
	if n.Text == "P" || n.Text == "p" || len(n.Text) != 1 {
		return meaning
	}
	if p := n.Parent(); p != nil && p.Tag == "apply" && n.IsFirstChild() {
		return meaning
	}

	if st.ciNames == nil {
		st.ciNames = make(map[string]string)
	}
	renamed, ok := st.ciNames[meaning]
	if !ok {
		renamed = "ci#~" + strconv.Itoa(len(st.ciNames)+1)
		st.ciNames[meaning] = renamed
	}

	return renamed
}
