package index

import (
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"github.com/arloliu/mws/cmml"
	"github.com/arloliu/mws/dict"
	"github.com/arloliu/mws/encoding"
	"github.com/arloliu/mws/errs"
	"github.com/arloliu/mws/format"
	"github.com/arloliu/mws/memsector"
	"github.com/arloliu/mws/section"
	"github.com/arloliu/mws/token"
	"github.com/arloliu/mws/trie"
	"github.com/stretchr/testify/require"
)

func harvest(t *testing.T, formulas ...string) (*trie.Trie, *dict.Dictionary) {
	t.Helper()

	d := dict.New()
	enc, err := encoding.NewHarvestEncoder(d)
	require.NoError(t, err)

	tr := trie.New()
	for _, src := range formulas {
		f, _, err := enc.Encode(cmml.MustParse(src))
		require.NoError(t, err)
		_, err = tr.Insert(f)
		require.NoError(t, err)
	}

	return tr, d
}

// randomTrie inserts n random formulas over a small alphabet, some of them repeatedly.
func randomTrie(t *testing.T, seed uint64, n int) *trie.Trie {
	t.Helper()

	rng := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
	tr := trie.New()
	var formulas []token.Formula

	var gen func(depth int) token.Formula
	gen = func(depth int) token.Formula {
		if depth == 0 || rng.IntN(3) == 0 {
			if rng.IntN(5) == 0 {
				h, _ := token.Hvar(rng.IntN(3))
				return token.Formula{h}
			}
			return token.Formula{token.MustPack(0, token.ConstantIDMin+1+uint32(rng.IntN(6)))} //nolint:gosec
		}

		arity := 1 + rng.IntN(3)
		f := token.Formula{token.MustPack(uint8(arity), token.ConstantIDMin+10+uint32(rng.IntN(3)))} //nolint:gosec
		for range arity {
			f = append(f, gen(depth-1)...)
		}

		return f
	}

	for range n {
		var f token.Formula
		if len(formulas) > 0 && rng.IntN(4) == 0 {
			f = formulas[rng.IntN(len(formulas))]
		} else {
			f = gen(4)
			formulas = append(formulas, f)
		}
		_, err := tr.Insert(f)
		require.NoError(t, err)
	}

	return tr
}

// ==============================================================================
// Export / read consistency
// ==============================================================================

func TestExport_Consistency(t *testing.T) {
	for seed := range uint64(8) {
		tr := randomTrie(t, seed+1, 200)

		a, err := Build(tr, nil)
		require.NoError(t, err)
		require.Equal(t, tr.ArenaSize(), a.Cursor(), "presize estimate is exact")

		acc, err := NewArenaAccessor(a)
		require.NoError(t, err)
		require.NoError(t, Equivalent(NewTrieAccessor(tr), acc))

		stats := tr.Stats()
		sum := Summarize(acc)
		require.Equal(t, stats.InternalNodes, sum.InternalNodes)
		require.Equal(t, stats.Leaves, sum.Leaves)
		require.Equal(t, stats.Edges, sum.Edges)
		require.Equal(t, stats.TotalHits, sum.TotalHits)
	}
}

func TestExport_RootIsFirstRecord(t *testing.T) {
	tr, _ := harvest(t, "apply(ci:f, ci:x)")
	a, err := Build(tr, nil)
	require.NoError(t, err)
	require.Equal(t, memsector.Offset(section.HeaderSize), a.Root())
}

func TestExport_CapacityExceeded(t *testing.T) {
	tr, _ := harvest(t, "apply(ci:f, ci:h, ci:h, ci:t)", "apply(ci:g, ci:x)")

	a, err := memsector.New(tr.ArenaSize() - section.LeafSize)
	require.NoError(t, err)

	_, err = Export(tr, a)
	require.ErrorIs(t, err, errs.ErrArenaFull)
	require.True(t, a.Root().IsNull(), "failed export publishes no root")
}

func TestExport_EmptyTrie(t *testing.T) {
	a, err := Build(trie.New(), nil)
	require.NoError(t, err)

	acc, err := NewArenaAccessor(a)
	require.NoError(t, err)
	require.False(t, acc.IsLeaf(acc.Root()))
	require.Equal(t, 0, acc.NumChildren(acc.Root()))
	require.Equal(t, Summary{InternalNodes: 1}, Summarize(acc))
}

// ==============================================================================
// Accessors
// ==============================================================================

func TestAccessors_Lookup(t *testing.T) {
	tr, d := harvest(t,
		"apply(ci:f, ci:h, ci:h, ci:t)",
		"apply(ci:f, ci:h, ci:h, ci:t)",
		"apply(ci:f, ci:h, ci:t, ci:t)",
	)
	a, err := Build(tr, d)
	require.NoError(t, err)
	arenaAcc, err := NewArenaAccessor(a)
	require.NoError(t, err)

	enc, err := encoding.NewQueryEncoder(d)
	require.NoError(t, err)
	f, _, err := enc.Encode(cmml.MustParse("apply(ci:f, ci:h, ci:h, ci:t)"))
	require.NoError(t, err)

	for name, acc := range map[string]Accessor{"trie": NewTrieAccessor(tr), "arena": arenaAcc} {
		t.Run(name, func(t *testing.T) {
			n := acc.Root()
			for _, tok := range f {
				require.False(t, acc.IsLeaf(n))
				var ok bool
				n, ok = acc.Child(n, tok)
				require.True(t, ok)
			}
			require.True(t, acc.IsLeaf(n))
			require.Equal(t, uint32(1), acc.FormulaID(n))
			require.Equal(t, uint32(2), acc.Hits(n))
			require.Equal(t, 0, acc.NumChildren(n))

			_, ok := acc.Child(acc.Root(), f[1])
			require.False(t, ok, "h is not a top-level formula here")

			var toks []token.Token
			for tok := range acc.Children(acc.Root()) {
				toks = append(toks, tok)
			}
			require.Equal(t, []token.Token{f[0]}, toks)
		})
	}
}

func TestArenaAccessor_ForeignNode(t *testing.T) {
	tr, d := harvest(t, "apply(ci:f, ci:x)")
	a1, err := Build(tr, d)
	require.NoError(t, err)
	a2, err := Build(tr, d)
	require.NoError(t, err)

	acc1, err := NewArenaAccessor(a1)
	require.NoError(t, err)
	acc2, err := NewArenaAccessor(a2)
	require.NoError(t, err)

	foreign := acc2.Root()
	require.Equal(t, 0, acc1.NumChildren(foreign))
	for range acc1.Children(foreign) {
		require.Fail(t, "foreign node must not be resolved")
	}

	trieNode := NewTrieAccessor(tr).Root()
	require.False(t, acc1.IsLeaf(trieNode))
	require.Equal(t, 0, acc1.NumChildren(trieNode))
}

func TestNewArenaAccessor_Rejects(t *testing.T) {
	t.Run("unsealed arena", func(t *testing.T) {
		a, err := memsector.New(128)
		require.NoError(t, err)
		_, err = NewArenaAccessor(a)
		require.ErrorIs(t, err, errs.ErrArenaSealed)
	})

	t.Run("missing root", func(t *testing.T) {
		a, err := memsector.New(128)
		require.NoError(t, err)
		a.Seal()
		_, err = NewArenaAccessor(a)
		require.ErrorIs(t, err, errs.ErrOffsetOutOfRange)
	})

	t.Run("unsorted entries", func(t *testing.T) {
		a, err := memsector.New(256)
		require.NoError(t, err)
		root, err := a.Allocate(section.InternalSize(2))
		require.NoError(t, err)
		leaf1, _ := a.Allocate(section.LeafSize)
		leaf2, _ := a.Allocate(section.LeafSize)
		for i, off := range []memsector.Offset{leaf1, leaf2} {
			buf, err := a.Bytes(off, section.LeafSize)
			require.NoError(t, err)
			require.NoError(t, section.PutLeaf(buf, 1, uint32(i+1))) //nolint:gosec
		}
		buf, err := a.Bytes(root, section.InternalSize(2))
		require.NoError(t, err)
		require.NoError(t, section.PutInternal(buf, []section.Entry{
			{Token: token.MustPack(0, 300), Child: int32(leaf1)},
			{Token: token.MustPack(0, 200), Child: int32(leaf2)},
		}))
		require.NoError(t, a.SetRoot(root))
		a.Seal()

		_, err = NewArenaAccessor(a)
		require.ErrorIs(t, err, errs.ErrInvalidNodeType)
	})

	t.Run("shared child", func(t *testing.T) {
		a, err := memsector.New(256)
		require.NoError(t, err)
		root, err := a.Allocate(section.InternalSize(2))
		require.NoError(t, err)
		leaf, err := a.Allocate(section.LeafSize)
		require.NoError(t, err)
		buf, err := a.Bytes(leaf, section.LeafSize)
		require.NoError(t, err)
		require.NoError(t, section.PutLeaf(buf, 1, 1))
		buf, err = a.Bytes(root, section.InternalSize(2))
		require.NoError(t, err)
		require.NoError(t, section.PutInternal(buf, []section.Entry{
			{Token: token.MustPack(0, 200), Child: int32(leaf)},
			{Token: token.MustPack(0, 300), Child: int32(leaf)},
		}))
		require.NoError(t, a.SetRoot(root))
		a.Seal()

		_, err = NewArenaAccessor(a)
		require.ErrorIs(t, err, errs.ErrInvalidNodeType)
	})

	t.Run("doubling chain is rejected quickly", func(t *testing.T) {
		// Every level has two entries pointing at the next level, so a
		// walk that follows each path would visit 2^depth records.
		const depth = 40
		a, err := memsector.New(section.HeaderSize + (depth+1)*(section.InternalSize(2)+section.Alignment) + section.LeafSize)
		require.NoError(t, err)

		offs := make([]memsector.Offset, depth)
		for i := range offs {
			offs[i], err = a.Allocate(section.InternalSize(2))
			require.NoError(t, err)
		}
		leaf, err := a.Allocate(section.LeafSize)
		require.NoError(t, err)
		buf, err := a.Bytes(leaf, section.LeafSize)
		require.NoError(t, err)
		require.NoError(t, section.PutLeaf(buf, 1, 1))

		for i, off := range offs {
			next := leaf
			if i+1 < depth {
				next = offs[i+1]
			}
			buf, err := a.Bytes(off, section.InternalSize(2))
			require.NoError(t, err)
			require.NoError(t, section.PutInternal(buf, []section.Entry{
				{Token: token.MustPack(0, 200), Child: int32(next)},
				{Token: token.MustPack(0, 300), Child: int32(next)},
			}))
		}
		require.NoError(t, a.SetRoot(offs[0]))
		a.Seal()

		start := time.Now()
		_, err = NewArenaAccessor(a)
		require.ErrorIs(t, err, errs.ErrInvalidNodeType)
		require.Less(t, time.Since(start), 5*time.Second)
	})
}

func TestWalk(t *testing.T) {
	tr := randomTrie(t, 42, 100)
	a, err := Build(tr, nil)
	require.NoError(t, err)
	acc, err := NewArenaAccessor(a)
	require.NoError(t, err)

	var want []token.Formula
	require.NoError(t, tr.Walk(func(path token.Formula, _ *trie.Leaf) error {
		want = append(want, path.Clone())
		return nil
	}))

	var got []token.Formula
	require.NoError(t, Walk(acc, func(path token.Formula, leaf Node) error {
		require.True(t, acc.IsLeaf(leaf))
		require.NoError(t, path.Validate())
		got = append(got, path.Clone())
		return nil
	}))
	require.Equal(t, want, got)
}

// ==============================================================================
// Build options
// ==============================================================================

func TestBuild_EmbeddedDictionary(t *testing.T) {
	compressions := []format.CompressionType{
		format.CompressionNone,
		format.CompressionZstd,
		format.CompressionS2,
		format.CompressionLZ4,
	}

	for _, comp := range compressions {
		t.Run(comp.String(), func(t *testing.T) {
			tr, d := harvest(t, "apply(csymbol:plus, ci:x, cn:1)", "apply(csymbol:times, ci:y, cn:2)")

			a, err := Build(tr, d, WithEmbeddedDictionary(comp), WithHeadroom(64))
			require.NoError(t, err)

			path := filepath.Join(t.TempDir(), "index.arena")
			require.NoError(t, a.Save(path))
			loaded, err := memsector.Load(path)
			require.NoError(t, err)
			defer loaded.Close()

			got, err := EmbeddedDictionary(loaded)
			require.NoError(t, err)
			require.True(t, got.Frozen())
			require.Equal(t, d.Keys(), got.Keys())

			acc, err := NewArenaAccessor(loaded)
			require.NoError(t, err)
			require.NoError(t, Equivalent(NewTrieAccessor(tr), acc))
		})
	}
}

func TestBuild_InvalidOptions(t *testing.T) {
	tr := trie.New()

	_, err := Build(tr, dict.New(), WithEmbeddedDictionary(format.CompressionType(99)))
	require.ErrorIs(t, err, errs.ErrInvalidCompression)

	_, err = Build(tr, dict.New(), WithHeadroom(-1))
	require.ErrorIs(t, err, errs.ErrInvalidConfig)

	a, err := Build(tr, nil)
	require.NoError(t, err)
	_, err = EmbeddedDictionary(a)
	require.ErrorIs(t, err, errs.ErrInvalidDictionary)
}

func TestEquivalent_DetectsDifferences(t *testing.T) {
	tr1, _ := harvest(t, "apply(ci:f, ci:x)")
	tr2, _ := harvest(t, "apply(ci:f, ci:x)", "apply(ci:f, ci:x)")
	tr3, _ := harvest(t, "apply(ci:f, ci:x)", "ci:y")

	require.NoError(t, Equivalent(NewTrieAccessor(tr1), NewTrieAccessor(tr1)))
	require.Error(t, Equivalent(NewTrieAccessor(tr1), NewTrieAccessor(tr2)), "hit counts differ")
	require.Error(t, Equivalent(NewTrieAccessor(tr1), NewTrieAccessor(tr3)), "child sets differ")
}
