// Package search answers formula queries against an opened index.
//
// Search encodes a query tree, runs the unification engine over the index
// arena and pages through the matches: Offset and Limit select a window,
// MaxTotal caps how many matches are counted at all. With IncludeHits every
// match counts once per indexed occurrence instead of once, and the window
// is applied to occurrences.
//
//	set, err := search.Search(ctx, idx, cmml.MustParse("apply(csymbol:plus, ?a, ?a)"), search.DefaultOptions())
//	for _, a := range set.Answers {
//	    fmt.Println(a.FormulaID, a.Substitutions["a"])
//	}
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/mws"
	"github.com/arloliu/mws/cmml"
	"github.com/arloliu/mws/encoding"
	"github.com/arloliu/mws/errs"
	"github.com/arloliu/mws/formuladb"
	"github.com/arloliu/mws/query"
	"github.com/arloliu/mws/token"
)

// Options selects which matches of a query are returned.
type Options struct {
	// Offset skips the first Offset matches, or occurrences with IncludeHits.
	Offset int
	// Limit is the window size. Zero only counts.
	Limit int
	// MaxTotal stops the search once this many are counted. Zero means no cap.
	MaxTotal int
	// IncludeHits counts occurrences rather than distinct formulas.
	IncludeHits bool
	// IncludeIDs fills AnswerSet.IDs with every counted formula id.
	IncludeIDs bool
	// IncludeSubstitutions renders what each query variable matched.
	IncludeSubstitutions bool
	// Occurrences is how many stored occurrences are resolved per answer
	// when IncludeHits is off.
	Occurrences int
	// MaxSteps bounds the engine work per query. Zero means no bound.
	MaxSteps int
}

// DefaultOptions returns the options used by the mwsidx query command.
func DefaultOptions() Options {
	return Options{
		Limit:                30,
		MaxTotal:             10000,
		IncludeSubstitutions: true,
		Occurrences:          5,
	}
}

// Validate rejects negative values.
func (o Options) Validate() error {
	if o.Offset < 0 || o.Limit < 0 || o.MaxTotal < 0 || o.Occurrences < 0 || o.MaxSteps < 0 {
		return fmt.Errorf("%w: search options must not be negative", errs.ErrInvalidConfig)
	}

	return nil
}

// Occurrence is one place a matching formula was indexed.
type Occurrence struct {
	// URL of the document.
	URL string `json:"url,omitempty"`
	// XMLID of the math element inside the document.
	XMLID string `json:"xml_id"`
	// Xpath of the matching subexpression inside the math element.
	Xpath string `json:"xpath"`
	// Data is the stored document payload.
	Data string `json:"data,omitempty"`
}

// Answer is one matching formula.
type Answer struct {
	FormulaID   uint32       `json:"formula_id"`
	Hits        uint32       `json:"hits"`
	Occurrences []Occurrence `json:"occurrences,omitempty"`
	// Substitutions maps query variable names to the subterms they matched.
	Substitutions map[string]string `json:"substitutions,omitempty"`
}

// AnswerSet is the result of one query.
type AnswerSet struct {
	// Total is the number counted, capped at MaxTotal.
	Total   int      `json:"total"`
	Answers []Answer `json:"answers"`
	IDs     []uint32 `json:"ids,omitempty"`
	// QvarNames lists the named query variables in order of appearance.
	QvarNames []string `json:"qvar_names,omitempty"`
	// QvarXpaths holds the xpath of each variable's first occurrence in the query.
	QvarXpaths []string `json:"qvar_xpaths,omitempty"`
}

// Search runs q against idx.
//
// A query that names a constant the index never saw has no matches and
// returns an empty set.
//
// Parameters:
//   - ctx: Cancels the search between matches
//   - idx: Opened index
//   - q: Query tree
//   - opts: Window and rendering options
//
// Returns:
//   - *AnswerSet: Answers in engine order
//   - error: errs.ErrInvalidConfig, encoding errors, errs.ErrStepLimit, or
//     errs.ErrSinkFailed wrapping an occurrence lookup or context error
func Search(ctx context.Context, idx *mws.Index, q *cmml.Node, opts Options) (*AnswerSet, error) {
	start := time.Now()
	ctx, span := startSearchSpan(ctx, opts)
	defer span.End()

	set, err := search(ctx, idx, q, opts)
	setSearchSpanResult(span, set, err)

	total := 0
	if set != nil {
		total = set.Total
	}
	recordSearchMetrics(ctx, time.Since(start), total, err == nil)

	return set, err
}

func search(ctx context.Context, idx *mws.Index, q *cmml.Node, opts Options) (*AnswerSet, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	set := &AnswerSet{Answers: []Answer{}}
	f, info, err := idx.Encode(q)
	if errors.Is(err, errs.ErrUnknownMeaning) {
		return set, nil
	}
	if err != nil {
		return nil, err
	}
	set.QvarNames = info.VarNames
	set.QvarXpaths = info.VarXpaths

	runOpts := []query.Option{query.WithMaxSteps(opts.MaxSteps)}
	if len(info.Ranges) > 0 {
		runOpts = append(runOpts, query.WithRanges(info.Ranges, idx.Decoder()))
	}
	if opts.IncludeSubstitutions && len(info.VarNames) > 0 {
		runOpts = append(runOpts, query.WithBindings())
	}

	c := &collector{ctx: ctx, idx: idx, opts: opts, info: info, set: set}
	if _, err := query.Run(idx.Accessor(), f, c, runOpts...); err != nil {
		if c.err != nil {
			return nil, fmt.Errorf("%w: %w", err, c.err)
		}

		return nil, err
	}
	set.Total = c.found

	return set, nil
}

// collector is the engine sink of one search.
type collector struct {
	ctx   context.Context
	idx   *mws.Index
	opts  Options
	info  *encoding.Info
	set   *AnswerSet
	found int
	err   error
}

var _ query.Sink = (*collector)(nil)

func (c *collector) OnMatch(m query.Match) query.Status {
	if err := c.ctx.Err(); err != nil {
		c.err = err
		return query.StatusError
	}

	n := 1
	if c.opts.IncludeHits {
		n = int(m.Hits)
	}
	if c.opts.IncludeIDs {
		c.set.IDs = append(c.set.IDs, m.FormulaID)
	}

	if c.found < c.end() && c.found+n > c.opts.Offset {
		a, err := c.answer(m)
		if err != nil {
			c.err = err
			return query.StatusError
		}
		c.set.Answers = append(c.set.Answers, a)
	}

	c.found += n
	if c.opts.MaxTotal > 0 && c.found >= c.opts.MaxTotal {
		c.found = c.opts.MaxTotal
		return query.StatusStop
	}

	return query.StatusContinue
}

// end is the exclusive end of the answer window, never past MaxTotal.
func (c *collector) end() int {
	end := c.opts.Offset + c.opts.Limit
	if c.opts.MaxTotal > 0 && end > c.opts.MaxTotal {
		end = c.opts.MaxTotal
	}

	return end
}

// occurrenceWindow returns which stored occurrences of the current match
// fall inside the requested window.
func (c *collector) occurrenceWindow() (offset, limit int) {
	if !c.opts.IncludeHits {
		return 0, c.opts.Occurrences
	}
	if c.opts.Offset < c.found {
		return 0, c.end() - c.found
	}

	return c.opts.Offset - c.found, c.end() - c.opts.Offset
}

func (c *collector) answer(m query.Match) (Answer, error) {
	a := Answer{FormulaID: m.FormulaID, Hits: m.Hits}

	if offset, limit := c.occurrenceWindow(); limit > 0 {
		err := c.idx.Lookup(c.ctx, m.FormulaID, offset, limit, func(p formuladb.FormulaPath, d formuladb.CrawlData) error {
			a.Occurrences = append(a.Occurrences, Occurrence{URL: d.URL, XMLID: p.XMLID, Xpath: p.Xpath, Data: d.Data})
			return nil
		})
		if err != nil {
			return a, fmt.Errorf("resolve formula %d: %w", m.FormulaID, err)
		}
	}

	if m.Bindings != nil {
		subs, err := c.substitutions(m.Bindings)
		if err != nil {
			return a, err
		}
		a.Substitutions = subs
	}

	return a, nil
}

func (c *collector) substitutions(b query.Bindings) (map[string]string, error) {
	subs := make(map[string]string, len(c.info.VarNames))
	for i, name := range c.info.VarNames {
		v, err := token.Qvar(i)
		if err != nil {
			return nil, err
		}
		val, ok := b[v]
		if !ok {
			continue
		}

		tree, err := c.idx.Decoder().Tree(val)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", name, err)
		}
		subs[name] = tree.String()
	}

	return subs, nil
}
