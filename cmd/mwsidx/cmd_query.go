package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arloliu/mws/cmml"
	"github.com/arloliu/mws/search"
)

type queryFlags struct {
	offset        int
	limit         int
	maxTotal      int
	hits          bool
	ids           bool
	occurrences   int
	noStores      bool
	jsonOutput    bool
	substitutions bool
}

func newQueryCmd(a *app) *cobra.Command {
	f := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "query NOTATION...",
		Short: "Search the index for formulas",
		Long: `Search the index for each query formula.

Several queries run concurrently on search.workers goroutines and are
printed in argument order.

Examples:
  mwsidx query -d idx 'apply(csymbol:plus, ?a, ?a)'
  mwsidx query -d idx --hits --offset 10 --limit 10 'apply(?, ?x, cn:1)'
  mwsidx query -d idx --json 'apply(csymbol:times, [0,10], ?)'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, a, f, args)
		},
	}

	cmd.Flags().IntVar(&f.offset, "offset", 0, "skip this many results")
	cmd.Flags().IntVar(&f.limit, "limit", -1, "results per query (default search.limit)")
	cmd.Flags().IntVar(&f.maxTotal, "max-total", -1, "stop counting after this many (default search.max_total)")
	cmd.Flags().BoolVar(&f.hits, "hits", false, "count every occurrence instead of every formula")
	cmd.Flags().BoolVar(&f.ids, "ids", false, "list the ids of all counted formulas")
	cmd.Flags().IntVar(&f.occurrences, "occurrences", -1, "occurrences resolved per answer (default search.occurrences)")
	cmd.Flags().BoolVar(&f.noStores, "no-occurrences", false, "do not open the occurrence store")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "print answer sets as JSON")
	cmd.Flags().BoolVar(&f.substitutions, "substitutions", true, "render query variable substitutions")

	return cmd
}

func (f *queryFlags) options(a *app) search.Options {
	opts := search.Options{
		Offset:               f.offset,
		Limit:                a.cfg.Search.Limit,
		MaxTotal:             a.cfg.Search.MaxTotal,
		IncludeHits:          f.hits,
		IncludeIDs:           f.ids,
		IncludeSubstitutions: f.substitutions,
		Occurrences:          a.cfg.Search.Occurrences,
		MaxSteps:             a.cfg.Search.MaxSteps,
	}
	if f.limit >= 0 {
		opts.Limit = f.limit
	}
	if f.maxTotal >= 0 {
		opts.MaxTotal = f.maxTotal
	}
	if f.occurrences >= 0 {
		opts.Occurrences = f.occurrences
	}

	return opts
}

func runQuery(cmd *cobra.Command, a *app, f *queryFlags, args []string) error {
	queries := make([]*cmml.Node, len(args))
	for i, s := range args {
		q, err := cmml.Parse(s)
		if err != nil {
			return fmt.Errorf("query %d: %w", i+1, err)
		}
		queries[i] = q
	}

	idx, closeIndex, err := a.openIndex(!f.noStores)
	if err != nil {
		return err
	}
	defer closeIndex()

	sets, err := search.Batch(cmd.Context(), idx, queries, f.options(a), a.cfg.Search.Workers)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f.jsonOutput {
		return writeJSON(out, sets)
	}
	for i, set := range sets {
		if err := printAnswerSet(out, args[i], set); err != nil {
			return err
		}
	}

	return nil
}

func printAnswerSet(w io.Writer, query string, set *search.AnswerSet) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "query: %s\ntotal: %d\n", query, set.Total)
	for _, ans := range set.Answers {
		fmt.Fprintf(&sb, "formula %d (hits %d)\n", ans.FormulaID, ans.Hits)

		names := make([]string, 0, len(ans.Substitutions))
		for name := range ans.Substitutions {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(&sb, "  ?%s = %s\n", name, ans.Substitutions[name])
		}
		for _, o := range ans.Occurrences {
			fmt.Fprintf(&sb, "  %s#%s %s\n", o.URL, o.XMLID, o.Xpath)
		}
	}
	if len(set.IDs) > 0 {
		fmt.Fprintf(&sb, "ids: %v\n", set.IDs)
	}
	_, err := io.WriteString(w, sb.String())

	return err
}
