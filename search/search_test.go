package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/arloliu/mws"
	"github.com/arloliu/mws/builder"
	"github.com/arloliu/mws/cmml"
	"github.com/arloliu/mws/errs"
	"github.com/arloliu/mws/formuladb"
)

var testDocs = []builder.Document{
	{
		URL:  "http://example.org/a",
		Data: "first",
		Formulas: []builder.Formula{
			{ID: "eq1", Math: "apply(csymbol:plus, ci:x, ci:x)"},
			{ID: "eq2", Math: "apply(csymbol:plus, ci:y, ci:x)"},
			{ID: "eq3", Math: "apply(csymbol:times, cn:2, cn:5)"},
		},
	},
	{
		URL:  "http://example.org/b",
		Data: "second",
		Formulas: []builder.Formula{
			{ID: "m1", Math: "apply(csymbol:plus, ci:x, ci:x)"},
		},
	},
}

func openTestIndex(t *testing.T) *mws.Index {
	t.Helper()

	dir := t.TempDir()
	cfg := formuladb.DefaultConfig(filepath.Join(dir, builder.FormulaDBDir))
	cfg.SyncWrites = false
	store, err := formuladb.Open(cfg)
	require.NoError(t, err)

	b, err := builder.New(builder.WithStores(store, store))
	require.NoError(t, err)
	for _, doc := range testDocs {
		_, err := b.IndexDocument(context.Background(), doc)
		require.NoError(t, err)
	}
	_, err = b.Finish(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	idx, err := mws.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	return idx
}

func all() Options {
	return Options{Limit: 1000, IncludeSubstitutions: true, Occurrences: 10}
}

func formulaIDs(set *AnswerSet) []uint32 {
	ids := make([]uint32, len(set.Answers))
	for i, a := range set.Answers {
		ids[i] = a.FormulaID
	}

	return ids
}

// ==============================================================================
// Matching
// ==============================================================================

func TestSearch_RepeatedVariable(t *testing.T) {
	idx := openTestIndex(t)

	set, err := Search(context.Background(), idx, cmml.MustParse("apply(csymbol:plus, ?a, ?a)"), all())
	require.NoError(t, err)
	require.Equal(t, 1, set.Total)
	require.Len(t, set.Answers, 1)
	require.Equal(t, []string{"a"}, set.QvarNames)
	require.Equal(t, []string{"/*[2]"}, set.QvarXpaths)

	a := set.Answers[0]
	require.Equal(t, uint32(2), a.Hits)
	require.Equal(t, map[string]string{"a": "ci:x"}, a.Substitutions)
	require.Equal(t, []Occurrence{
		{URL: "http://example.org/a", XMLID: "eq1", Xpath: "/*[1]", Data: "first"},
		{URL: "http://example.org/b", XMLID: "m1", Xpath: "/*[1]", Data: "second"},
	}, a.Occurrences)
}

func TestSearch_DistinctVariables(t *testing.T) {
	idx := openTestIndex(t)

	set, err := Search(context.Background(), idx, cmml.MustParse("apply(csymbol:plus, ?a, ?b)"), all())
	require.NoError(t, err)
	require.Equal(t, 2, set.Total)

	subs := make([]map[string]string, len(set.Answers))
	for i, a := range set.Answers {
		subs[i] = a.Substitutions
	}
	require.ElementsMatch(t, []map[string]string{
		{"a": "ci:x", "b": "ci:x"},
		{"a": "ci:y", "b": "ci:x"},
	}, subs)
}

func TestSearch_Range(t *testing.T) {
	idx := openTestIndex(t)

	set, err := Search(context.Background(), idx, cmml.MustParse("apply(csymbol:times, [1,3], ?b)"), all())
	require.NoError(t, err)
	require.Len(t, set.Answers, 1)
	require.Equal(t, map[string]string{"b": "cn:5"}, set.Answers[0].Substitutions)

	set, err = Search(context.Background(), idx, cmml.MustParse("apply(csymbol:times, [3,4], ?b)"), all())
	require.NoError(t, err)
	require.Zero(t, set.Total)
}

func TestSearch_UnknownConstant(t *testing.T) {
	idx := openTestIndex(t)

	set, err := Search(context.Background(), idx, cmml.MustParse("apply(csymbol:minus, ?a, ?b)"), all())
	require.NoError(t, err)
	require.Zero(t, set.Total)
	require.Empty(t, set.Answers)
}

func TestSearch_WithoutSubstitutionsOrOccurrences(t *testing.T) {
	idx := openTestIndex(t)

	set, err := Search(context.Background(), idx, cmml.MustParse("apply(csymbol:plus, ?a, ?a)"), Options{Limit: 10})
	require.NoError(t, err)
	require.Len(t, set.Answers, 1)
	require.Nil(t, set.Answers[0].Substitutions)
	require.Nil(t, set.Answers[0].Occurrences)
}

// ==============================================================================
// Windows
// ==============================================================================

func TestSearch_Window(t *testing.T) {
	idx := openTestIndex(t)
	q := cmml.MustParse("?q")

	full, err := Search(context.Background(), idx, q, all())
	require.NoError(t, err)
	require.Equal(t, idx.Manifest().UniqueFormulas, full.Total)
	require.Len(t, full.Answers, full.Total)

	tests := []struct {
		name          string
		offset, limit int
	}{
		{"first page", 0, 3},
		{"middle page", 2, 3},
		{"past the end", full.Total - 1, 5},
		{"count only", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := Search(context.Background(), idx, q, Options{Offset: tt.offset, Limit: tt.limit})
			require.NoError(t, err)
			require.Equal(t, full.Total, set.Total)

			end := min(tt.offset+tt.limit, full.Total)
			require.Equal(t, formulaIDs(full)[tt.offset:end], formulaIDs(set))
		})
	}
}

func TestSearch_MaxTotal(t *testing.T) {
	idx := openTestIndex(t)
	q := cmml.MustParse("?q")

	full, err := Search(context.Background(), idx, q, all())
	require.NoError(t, err)

	set, err := Search(context.Background(), idx, q, Options{Limit: 100, MaxTotal: 4, IncludeIDs: true})
	require.NoError(t, err)
	require.Equal(t, 4, set.Total)
	require.Equal(t, formulaIDs(full)[:4], formulaIDs(set))
	require.Equal(t, formulaIDs(full)[:4], set.IDs)
}

func TestSearch_IncludeHits(t *testing.T) {
	idx := openTestIndex(t)

	t.Run("total counts occurrences", func(t *testing.T) {
		set, err := Search(context.Background(), idx, cmml.MustParse("?q"), Options{IncludeHits: true})
		require.NoError(t, err)
		require.Equal(t, int(idx.Manifest().Occurrences), set.Total)
		require.Empty(t, set.Answers)
	})

	t.Run("window inside one formula", func(t *testing.T) {
		opts := Options{Offset: 1, Limit: 2, IncludeHits: true}
		set, err := Search(context.Background(), idx, cmml.MustParse("apply(csymbol:plus, ?a, ?a)"), opts)
		require.NoError(t, err)
		require.Equal(t, 2, set.Total)
		require.Len(t, set.Answers, 1)
		require.Len(t, set.Answers[0].Occurrences, 1)
		require.Equal(t, "m1", set.Answers[0].Occurrences[0].XMLID)
	})

	t.Run("max total clamps", func(t *testing.T) {
		q := cmml.MustParse("apply(csymbol:plus, ?a, ?a)")
		set, err := Search(context.Background(), idx, q, Options{IncludeHits: true, MaxTotal: 1, Limit: 10})
		require.NoError(t, err)
		require.Equal(t, 1, set.Total)
		require.Len(t, set.Answers, 1)
		require.Len(t, set.Answers[0].Occurrences, 1, "occurrences past max total are not resolved")
		require.Equal(t, "eq1", set.Answers[0].Occurrences[0].XMLID)

		set, err = Search(context.Background(), idx, q, Options{IncludeHits: true, MaxTotal: 1, Offset: 1, Limit: 10})
		require.NoError(t, err)
		require.Equal(t, 1, set.Total)
		require.Empty(t, set.Answers)
	})
}

// ==============================================================================
// Errors
// ==============================================================================

type failingStore struct {
	*formuladb.Memory
}

var errStore = errors.New("store offline")

func (failingStore) QueryFormula(context.Context, uint32, int, int, func(formuladb.Occurrence) error) error {
	return errStore
}

func TestSearch_Errors(t *testing.T) {
	idx := openTestIndex(t)
	q := cmml.MustParse("?q")

	t.Run("negative options", func(t *testing.T) {
		_, err := Search(context.Background(), idx, q, Options{Offset: -1})
		require.ErrorIs(t, err, errs.ErrInvalidConfig)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Search(ctx, idx, q, all())
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("step limit", func(t *testing.T) {
		_, err := Search(context.Background(), idx, q, Options{Limit: 10, MaxSteps: 1})
		require.ErrorIs(t, err, errs.ErrStepLimit)
	})

	t.Run("store failure", func(t *testing.T) {
		mem := formuladb.NewMemory()
		defer mem.Close()

		failing, err := mws.Open(idx.Dir(), mws.WithStores(failingStore{Memory: mem}, nil))
		require.NoError(t, err)
		defer failing.Close()

		_, err = Search(context.Background(), failing, q, Options{Limit: 1, Occurrences: 1})
		require.ErrorIs(t, err, errs.ErrSinkFailed)
		require.ErrorIs(t, err, errStore)
	})
}

// ==============================================================================
// Telemetry
// ==============================================================================

func TestSearch_Span(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())
	otel.SetTracerProvider(tp)

	idx := openTestIndex(t)
	_, err := Search(context.Background(), idx, cmml.MustParse("apply(csymbol:plus, ?a, ?a)"), all())
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "search.Search", spans[0].Name())
	require.Contains(t, spans[0].Attributes(), attribute.Int("search.total", 1))
}
