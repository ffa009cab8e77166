package search

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/mws"
	"github.com/arloliu/mws/cmml"
	"github.com/arloliu/mws/errs"
)

// Batch runs queries concurrently on at most workers goroutines.
//
// Results are returned in query order. The first failing query cancels the
// rest and its error is returned.
//
// Returns:
//   - []*AnswerSet: One set per query
//   - error: errs.ErrInvalidConfig for workers < 1, or the first search error
func Batch(ctx context.Context, idx *mws.Index, queries []*cmml.Node, opts Options, workers int) ([]*AnswerSet, error) {
	if workers < 1 {
		return nil, fmt.Errorf("%w: workers must be >= 1, got %d", errs.ErrInvalidConfig, workers)
	}

	results := make([]*AnswerSet, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, q := range queries {
		g.Go(func() error {
			set, err := Search(gctx, idx, q, opts)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			results[i] = set

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
