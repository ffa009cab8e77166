package builder

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/mws/cmml"
	"github.com/arloliu/mws/encoding"
	"github.com/arloliu/mws/errs"
	"github.com/arloliu/mws/format"
	"github.com/arloliu/mws/formuladb"
	"github.com/arloliu/mws/index"
	"github.com/arloliu/mws/memsector"
)

func newBuilder(t *testing.T, opts ...Option) (*Builder, *formuladb.Memory) {
	t.Helper()

	mem := newMemoryStore(t)
	b, err := New(append([]Option{WithStores(mem, mem)}, opts...)...)
	require.NoError(t, err)

	return b, mem
}

func newMemoryStore(t *testing.T) *formuladb.Memory {
	t.Helper()

	mem := formuladb.NewMemory()
	t.Cleanup(func() { _ = mem.Close() })

	return mem
}

func occurrences(t *testing.T, db formuladb.FormulaDB, formulaID uint32) []formuladb.Occurrence {
	t.Helper()

	var out []formuladb.Occurrence
	require.NoError(t, db.QueryFormula(context.Background(), formulaID, 0, 0, func(o formuladb.Occurrence) error {
		out = append(out, o)
		return nil
	}))

	return out
}

// ==============================================================================
// Indexing
// ==============================================================================

func TestIndexFormula_RecordsEachSubexpressionOnce(t *testing.T) {
	ctx := context.Background()
	b, mem := newBuilder(t)

	n, err := b.IndexFormula(ctx, 1, "eq1", cmml.MustParse("apply(ci:f, ci:x, ci:x)"))
	require.NoError(t, err)
	require.Equal(t, 3, n, "apply(f,x,x), f and x")

	stats := b.Stats()
	require.Equal(t, int64(4), stats.Expressions)
	require.Equal(t, int64(3), stats.Occurrences)
	require.Equal(t, 3, stats.Trie.Leaves)
	require.Equal(t, uint64(3), stats.Trie.TotalHits)

	enc, err := encoding.NewQueryEncoder(b.Dictionary())
	require.NoError(t, err)
	x, _, err := enc.Encode(cmml.MustParse("ci:x"))
	require.NoError(t, err)
	leaf, ok := b.Trie().Lookup(x)
	require.True(t, ok)
	require.Equal(t, uint32(1), leaf.Hits)

	occs := occurrences(t, mem, leaf.ID)
	require.Equal(t, []formuladb.Occurrence{
		{CrawlID: 1, Path: formuladb.FormulaPath{XMLID: "eq1", Xpath: "/*[1]/*[2]"}},
	}, occs, "first occurrence in pre-order wins")
}

func TestIndexFormula_HitsCountExpressions(t *testing.T) {
	ctx := context.Background()
	b, mem := newBuilder(t)

	for i, xmlID := range []string{"a", "b", "c"} {
		_, err := b.IndexFormula(ctx, formuladb.CrawlID(i+1), xmlID, cmml.MustParse("apply(csymbol:plus, ci:x, cn:1)"))
		require.NoError(t, err)
	}

	enc, err := encoding.NewQueryEncoder(b.Dictionary())
	require.NoError(t, err)
	f, _, err := enc.Encode(cmml.MustParse("apply(csymbol:plus, ci:x, cn:1)"))
	require.NoError(t, err)
	leaf, ok := b.Trie().Lookup(f)
	require.True(t, ok)
	require.Equal(t, uint32(3), leaf.Hits)

	occs := occurrences(t, mem, leaf.ID)
	require.Len(t, occs, 3)
	require.Equal(t, "c", occs[2].Path.XMLID)
	require.Equal(t, "/*[1]", occs[2].Path.Xpath)
}

func TestIndexFormula_Variables(t *testing.T) {
	b, _ := newBuilder(t)

	_, err := b.IndexFormula(context.Background(), 1, "v", cmml.MustParse("apply(ci:f, ?a, ?b, ?a)"))
	require.NoError(t, err)
	require.Equal(t, 3, b.Stats().Trie.Leaves, "each variable on its own encodes to the same one-token formula")
}

func TestIndexFormula_EncodeFailureLeavesTrieUntouched(t *testing.T) {
	b, _ := newBuilder(t)

	args := make([]string, 300)
	for i := range args {
		args[i] = "cn:1"
	}
	wide := cmml.MustParse("apply(csymbol:plus, " + strings.Join(args, ", ") + ")")

	_, err := b.IndexFormula(context.Background(), 1, "wide", wide)
	require.ErrorIs(t, err, errs.ErrArityOverflow)
	require.Equal(t, 0, b.Stats().Trie.Leaves)
}

func TestIndexDocument(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	b, mem := newBuilder(t, WithRegisterer(reg))

	n, err := b.IndexDocument(ctx, Document{
		URL:  "http://example.org/doc",
		Data: "two formulas",
		Formulas: []Formula{
			{ID: "eq1", Math: "apply(csymbol:eq, ci:y, cn:2)"},
			{ID: "broken", Math: "apply(ci:f"},
			{ID: "eq2", Math: "ci:y"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 4+1, n)

	stats := b.Stats()
	require.Equal(t, int64(1), stats.Documents)
	require.Equal(t, int64(2), stats.Formulas)
	require.Equal(t, int64(1), stats.Rejected)

	data, err := mem.GetData(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, formuladb.CrawlData{URL: "http://example.org/doc", Data: "two formulas"}, data)

	require.InDelta(t, 1.0, testutil.ToFloat64(b.metrics.documents), 0)
	require.InDelta(t, 5.0, testutil.ToFloat64(b.metrics.occurrences), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(b.metrics.rejected.WithLabelValues("notation")), 0)
	require.InDelta(t, 4.0, testutil.ToFloat64(b.metrics.uniqueFormula), 0)
}

func TestIndexDocument_WithoutStores(t *testing.T) {
	b, err := New()
	require.NoError(t, err)

	n, err := b.IndexDocument(context.Background(), Document{Formulas: []Formula{{ID: "x", Math: "ci:x"}}})
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestIndexDocument_CanceledContext(t *testing.T) {
	b, _ := newBuilder(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.IndexDocument(ctx, Document{Formulas: []Formula{{ID: "x", Math: "ci:x"}}})
	require.ErrorIs(t, err, context.Canceled)
}

// ==============================================================================
// Harvest input
// ==============================================================================

const harvestJSONL = `{"url": "doc1", "formulas": [{"id": "m1", "math": "apply(csymbol:plus, ci:a, ci:b)"}]}
{"url": "doc2", "data": "<p/>", "formulas": [{"id": "m2", "math": "apply(csymbol:times, ci:a, cn:3)"}]}
`

func TestLoadHarvest(t *testing.T) {
	b, mem := newBuilder(t)

	docs, err := b.LoadHarvest(context.Background(), strings.NewReader(harvestJSONL))
	require.NoError(t, err)
	require.Equal(t, 2, docs)
	require.Equal(t, 2*4, mem.Len(), "ci:a is shared between the documents but recorded in each")
	require.Equal(t, 7, b.Stats().Trie.Leaves)

	_, err = b.LoadHarvest(context.Background(), strings.NewReader(`{"url": "ok", "formulas": []}`+"\n{not json"))
	require.Error(t, err)
}

func TestLoadPaths(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"+DefaultHarvestExtension), []byte(harvestJSONL), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b"+DefaultHarvestExtension), []byte(harvestJSONL), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))
	explicit := filepath.Join(dir, "explicit.json")
	require.NoError(t, os.WriteFile(explicit, []byte(harvestJSONL), 0o600))

	b, _ := newBuilder(t)
	docs, err := b.LoadPaths(context.Background(), []string{dir, explicit}, "")
	require.NoError(t, err)
	require.Equal(t, 6, docs)

	_, err = b.LoadPaths(context.Background(), []string{filepath.Join(dir, "missing")}, "")
	require.Error(t, err)
}

// ==============================================================================
// Finish
// ==============================================================================

func TestFinish(t *testing.T) {
	for _, embed := range []bool{false, true} {
		t.Run(map[bool]string{false: "sidecar", true: "embedded"}[embed], func(t *testing.T) {
			b, _ := newBuilder(t, WithEmbeddedDictionary(embed), WithDictionaryCompression(format.CompressionLZ4))
			_, err := b.LoadHarvest(context.Background(), strings.NewReader(harvestJSONL))
			require.NoError(t, err)

			dir := filepath.Join(t.TempDir(), "idx")
			m, err := b.Finish(dir)
			require.NoError(t, err)
			require.NotEmpty(t, m.BuildID)
			require.Equal(t, int64(2), m.Documents)
			require.Equal(t, b.Stats().Trie.Leaves, m.UniqueFormulas)
			require.Equal(t, "LZ4", m.DictionaryCompression)
			require.Equal(t, embed, m.EmbeddedDictionary)
			require.True(t, m.FormulaDB)

			read, err := ReadManifest(dir)
			require.NoError(t, err)
			require.Equal(t, m, read)

			d, err := ReadDictionary(dir, read)
			require.NoError(t, err)
			require.True(t, d.Frozen())
			require.Equal(t, b.Dictionary().Keys(), d.Keys())

			a, err := memsector.Load(filepath.Join(dir, ArenaFile))
			require.NoError(t, err)
			defer a.Close()
			require.Equal(t, m.ArenaBytes, a.Cursor())
			acc, err := index.NewArenaAccessor(a)
			require.NoError(t, err)
			require.NoError(t, index.Equivalent(index.NewTrieAccessor(b.Trie()), acc))

			if embed {
				embedded, err := index.EmbeddedDictionary(a)
				require.NoError(t, err)
				require.Equal(t, d.Keys(), embedded.Keys())
			}

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			require.Len(t, entries, 3, "no staging files remain")
		})
	}
}

func TestFinish_Replace(t *testing.T) {
	dir := t.TempDir()
	b, _ := newBuilder(t)

	first, err := b.Finish(dir)
	require.NoError(t, err)
	_, err = b.IndexFormula(context.Background(), 1, "x", cmml.MustParse("ci:x"))
	require.NoError(t, err)
	second, err := b.Finish(dir)
	require.NoError(t, err)
	require.NotEqual(t, first.BuildID, second.BuildID)

	read, err := ReadManifest(dir)
	require.NoError(t, err)
	require.Equal(t, 1, read.UniqueFormulas)
}

func TestFinish_FailureLeavesNoIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, DictionaryFile), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DictionaryFile, "keep"), nil, 0o600))

	b, _ := newBuilder(t)
	_, err := b.Finish(dir)
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(dir, ManifestFile))
	require.ErrorIs(t, err, os.ErrNotExist)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasSuffix(e.Name(), ".staging"), e.Name())
	}
}

func TestReadDictionary_ChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	b, _ := newBuilder(t)
	_, err := b.IndexFormula(context.Background(), 1, "x", cmml.MustParse("ci:x"))
	require.NoError(t, err)
	m, err := b.Finish(dir)
	require.NoError(t, err)

	m.DictionaryChecksum++
	_, err = ReadDictionary(dir, m)
	require.ErrorIs(t, err, errs.ErrChecksumMismatch)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte("version: 9\n"), 0o600))
	_, err = ReadManifest(dir)
	require.ErrorIs(t, err, errs.ErrUnsupportedVersion)
}

// ==============================================================================
// Options
// ==============================================================================

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(WithStores(formuladb.NewMemory(), nil))
	require.ErrorIs(t, err, errs.ErrInvalidConfig)

	_, err = New(WithDictionaryCompression(format.CompressionType(0)))
	require.ErrorIs(t, err, errs.ErrInvalidCompression)
}

func TestEncodeDictionary_AllCodecs(t *testing.T) {
	b, _ := newBuilder(t)
	_, err := b.IndexFormula(context.Background(), 1, "x", cmml.MustParse("apply(csymbol:plus, ci:x, cn:1)"))
	require.NoError(t, err)

	for _, ct := range []format.CompressionType{
		format.CompressionNone, format.CompressionZstd, format.CompressionS2, format.CompressionLZ4,
	} {
		t.Run(ct.String(), func(t *testing.T) {
			data, err := EncodeDictionary(b.Dictionary(), ct)
			require.NoError(t, err)
			require.Equal(t, byte(ct), data[0])

			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, DictionaryFile), data, 0o600))
			d, err := ReadDictionary(dir, nil)
			require.NoError(t, err)
			require.Equal(t, b.Dictionary().Keys(), d.Keys())
		})
	}
}
