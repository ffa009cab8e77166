package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arloliu/mws/builder"
	"github.com/arloliu/mws/encoding"
	"github.com/arloliu/mws/index"
	"github.com/arloliu/mws/token"
)

// errDumpLimit ends a dump early.
var errDumpLimit = errors.New("dump limit reached")

type statsOutput struct {
	Manifest *builder.Manifest `json:"manifest"`
	Index    index.Summary     `json:"index"`
}

func newStatsCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show manifest and index shape",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			idx, closeIndex, err := a.openIndex(false)
			if err != nil {
				return err
			}
			defer closeIndex()

			out := statsOutput{Manifest: idx.Manifest(), Index: index.Summarize(idx.Accessor())}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), out)
			}

			m, s := out.Manifest, out.Index
			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"build:           %s (%s)\n"+
					"documents:       %d\n"+
					"expressions:     %d\n"+
					"occurrences:     %d\n"+
					"unique formulas: %d\n"+
					"meanings:        %d\n"+
					"arena bytes:     %d\n"+
					"internal nodes:  %d\n"+
					"edges:           %d\n"+
					"max depth:       %d\n",
				m.BuildID, m.CreatedAt.Format("2006-01-02 15:04:05Z07:00"),
				m.Documents, m.Expressions, m.Occurrences, m.UniqueFormulas,
				m.Meanings, m.ArenaBytes, s.InternalNodes, s.Edges, s.MaxDepth)

			return err
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print as JSON")

	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check checksums, node structure and every stored formula",
		Long: `Open the index, which verifies the arena checksum, its node structure
and the dictionary checksum, then decode every indexed formula and compare
leaf and hit counts with the manifest.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			idx, closeIndex, err := a.openIndex(false)
			if err != nil {
				return err
			}
			defer closeIndex()

			acc := idx.Accessor()
			leaves, hits := 0, int64(0)
			err = index.Walk(acc, func(path token.Formula, leaf index.Node) error {
				if _, err := idx.Decoder().Tree(path); err != nil {
					return fmt.Errorf("formula %d: %w", acc.FormulaID(leaf), err)
				}
				leaves++
				hits += int64(acc.Hits(leaf))

				return nil
			})
			if err != nil {
				return err
			}

			m := idx.Manifest()
			if leaves != m.UniqueFormulas || hits != m.Occurrences {
				return fmt.Errorf("index holds %d formulas with %d hits, manifest lists %d and %d",
					leaves, hits, m.UniqueFormulas, m.Occurrences)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok: %d formulas, %d hits\n", leaves, hits)

			return err
		},
	}
}

func newDumpCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print every indexed formula",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			idx, closeIndex, err := a.openIndex(false)
			if err != nil {
				return err
			}
			defer closeIndex()

			return dump(cmd.OutOrStdout(), idx.Accessor(), idx.Decoder(), limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many formulas (0 prints all)")

	return cmd
}

// dump writes one line per leaf: formula id, hits and the prefix token
// sequence with the arity of every operator.
func dump(w io.Writer, acc index.Accessor, dec *encoding.Decoder, limit int) error {
	var sb strings.Builder
	n := 0
	err := index.Walk(acc, func(path token.Formula, leaf index.Node) error {
		if limit > 0 && n >= limit {
			return errDumpLimit
		}
		n++

		sb.Reset()
		for i, t := range path {
			if i > 0 {
				sb.WriteByte(' ')
			}
			meaning, err := dec.Meaning(t)
			if err != nil {
				return err
			}
			sb.WriteString(meaning)
			if t.Arity() > 0 {
				fmt.Fprintf(&sb, "/%d", t.Arity())
			}
		}
		_, err := fmt.Fprintf(w, "%d\t%d\t%s\n", acc.FormulaID(leaf), acc.Hits(leaf), sb.String())

		return err
	})
	if errors.Is(err, errDumpLimit) {
		return nil
	}

	return err
}
