package query

import (
	"github.com/arloliu/mws/index"
	"github.com/arloliu/mws/token"
)

// Status is returned by a Sink after each match, and by Run when it finishes.
type Status int

const (
	// StatusContinue asks for more matches. Run returns it after exhausting the index.
	StatusContinue Status = iota
	// StatusStop ends the search early without error.
	StatusStop
	// StatusError aborts the search.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusContinue:
		return "continue"
	case StatusStop:
		return "stop"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Bindings maps each bound variable token to the fully expanded tokens it
// stands for.
type Bindings map[token.Token]token.Formula

// Match describes one matching leaf.
type Match struct {
	// Node is the leaf, valid for the accessor the query ran against.
	Node index.Node
	// FormulaID identifies the indexed formula.
	FormulaID uint32
	// Hits is the number of times the formula was indexed.
	Hits uint32
	// Bindings is set only when the query runs with WithBindings.
	Bindings Bindings
}

// Sink receives the matches of a query, each distinct leaf once.
type Sink interface {
	OnMatch(m Match) Status
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(m Match) Status

// OnMatch calls f(m).
func (f SinkFunc) OnMatch(m Match) Status {
	return f(m)
}

// Collector is a Sink that keeps matches in order, stopping after a limit.
type Collector struct {
	Matches []Match
	limit   int
}

var _ Sink = (*Collector)(nil)

// Collect returns a Collector that stops the query after limit matches.
// A limit of zero or less collects every match.
func Collect(limit int) *Collector {
	return &Collector{limit: limit}
}

func (c *Collector) OnMatch(m Match) Status {
	c.Matches = append(c.Matches, m)
	if c.limit > 0 && len(c.Matches) >= c.limit {
		return StatusStop
	}

	return StatusContinue
}

// FormulaIDs returns the formula ids of the collected matches.
func (c *Collector) FormulaIDs() []uint32 {
	ids := make([]uint32, len(c.Matches))
	for i, m := range c.Matches {
		ids[i] = m.FormulaID
	}

	return ids
}
