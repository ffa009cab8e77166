package query

import (
	"fmt"

	"github.com/arloliu/mws/encoding"
	"github.com/arloliu/mws/errs"
	"github.com/arloliu/mws/internal/options"
	"github.com/arloliu/mws/token"
)

// Config holds the settings of one Run.
type Config struct {
	maxSteps int
	bindings bool
	ranges   map[token.Token]encoding.RangeBounds
	decoder  *encoding.Decoder
}

// Option is a functional option for configuring Run.
type Option = options.Option[*Config]

// WithMaxSteps bounds the number of engine steps. A query that needs more
// fails with errs.ErrStepLimit. Zero, the default, means no limit.
func WithMaxSteps(n int) Option {
	return options.New(func(c *Config) error {
		if n < 0 {
			return fmt.Errorf("%w: negative step limit %d", errs.ErrInvalidConfig, n)
		}
		c.maxSteps = n

		return nil
	})
}

// WithBindings attaches the variable bindings to every Match.
func WithBindings() Option {
	return options.NoError(func(c *Config) {
		c.bindings = true
	})
}

// WithRanges supplies the bounds of the range tokens in the query, usually
// encoding.Info.Ranges, and the decoder used to read numeric constants.
func WithRanges(ranges map[token.Token]encoding.RangeBounds, dec *encoding.Decoder) Option {
	return options.New(func(c *Config) error {
		if dec == nil {
			return fmt.Errorf("%w: range matching needs a decoder", errs.ErrInvalidConfig)
		}
		c.ranges = ranges
		c.decoder = dec

		return nil
	})
}

// check validates q before any index access.
func (c *Config) check(q token.Formula) error {
	if err := q.Validate(); err != nil {
		return err
	}

	for i, t := range q {
		switch {
		case t.Kind() == token.KindInvalid:
			return fmt.Errorf("%w: %s at position %d", errs.ErrInvalidToken, t, i)
		case !t.IsConstant() && t.Arity() != 0:
			return fmt.Errorf("%w: %s at position %d has children", errs.ErrMalformedFormula, t, i)
		case t.IsRange():
			if _, ok := c.ranges[t]; !ok || c.decoder == nil {
				return fmt.Errorf("%w: %s has no bounds", errs.ErrInvalidToken, t)
			}
		}
	}

	return nil
}
