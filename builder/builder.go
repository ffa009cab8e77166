// Package builder turns harvested documents into an index directory.
//
// A Builder owns the mutable meaning dictionary and trie of one build job.
// Every subexpression of every indexed formula is encoded and inserted; the
// first time a formula occurs within one expression, the occurrence is
// recorded in the formula store. Finish exports the trie into an arena and
// writes the index directory:
//
//	index.arena     sealed arena image
//	meaning.dict    meaning dictionary, compressed
//	manifest.yaml   build id, counts and settings
//
// A Builder is used by a single goroutine.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/mws/cmml"
	"github.com/arloliu/mws/dict"
	"github.com/arloliu/mws/encoding"
	"github.com/arloliu/mws/errs"
	"github.com/arloliu/mws/format"
	"github.com/arloliu/mws/formuladb"
	"github.com/arloliu/mws/index"
	"github.com/arloliu/mws/internal/hash"
	"github.com/arloliu/mws/internal/options"
	"github.com/arloliu/mws/token"
	"github.com/arloliu/mws/trie"
)

// Stats counts what a Builder has indexed so far.
type Stats struct {
	Documents   int64
	Formulas    int64
	Rejected    int64
	Expressions int64
	Occurrences int64
	Meanings    int
	Trie        trie.Stats
}

// Builder indexes documents.
type Builder struct {
	cfg     *Config
	dict    *dict.Dictionary
	trie    *trie.Trie
	enc     *encoding.Encoder
	metrics *metrics
	stats   Stats
}

// New creates an empty builder.
//
// Returns:
//   - *Builder: Builder with a fresh dictionary and trie
//   - error: Option error
func New(opts ...Option) (*Builder, error) {
	cfg := &Config{
		logger:      slog.Default(),
		compression: format.CompressionZstd,
	}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}
	if cfg.registerer == nil {
		cfg.registerer = prometheus.NewRegistry()
	}

	d := dict.New()
	enc, err := encoding.NewHarvestEncoder(d, encoding.WithRenameCi(cfg.renameCi))
	if err != nil {
		return nil, err
	}

	return &Builder{
		cfg:     cfg,
		dict:    d,
		trie:    trie.New(),
		enc:     enc,
		metrics: newMetrics(cfg.registerer),
	}, nil
}

// Dictionary returns the dictionary being filled. It stays owned by the builder.
func (b *Builder) Dictionary() *dict.Dictionary {
	return b.dict
}

// Trie returns the trie being filled. It stays owned by the builder.
func (b *Builder) Trie() *trie.Trie {
	return b.trie
}

// Stats returns the current counters.
func (b *Builder) Stats() Stats {
	s := b.stats
	s.Meanings = b.dict.Len()
	s.Trie = b.trie.Stats()

	return s
}

// IndexDocument stores doc in the crawl store and indexes each of its formulas.
//
// A formula whose notation cannot be parsed or encoded is logged and skipped;
// the rest of the document is still indexed.
//
// Returns:
//   - int: Number of occurrences recorded
//   - error: Context or store error
func (b *Builder) IndexDocument(ctx context.Context, doc Document) (int, error) {
	crawlID := formuladb.CrawlIDNull
	if b.cfg.crawls != nil {
		id, err := b.cfg.crawls.PutData(ctx, formuladb.CrawlData{URL: doc.URL, Data: doc.Data})
		if err != nil {
			return 0, fmt.Errorf("store document %q: %w", doc.URL, err)
		}
		crawlID = id
	}
	b.stats.Documents++
	b.metrics.documents.Inc()

	total := 0
	for _, f := range doc.Formulas {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		root, err := cmml.Parse(f.Math)
		if err != nil {
			b.reject("notation", doc.URL, f.ID, err)
			continue
		}

		n, err := b.IndexFormula(ctx, crawlID, f.ID, root)
		if errors.Is(err, errs.ErrArityOverflow) || errors.Is(err, errs.ErrVarIndexOverflow) {
			b.reject("encode", doc.URL, f.ID, err)
			continue
		}
		if err != nil {
			return total, err
		}
		total += n
	}

	return total, nil
}

func (b *Builder) reject(reason, url, xmlID string, err error) {
	b.stats.Rejected++
	b.metrics.rejected.WithLabelValues(reason).Inc()
	b.cfg.logger.Warn("formula skipped",
		slog.String("reason", reason),
		slog.String("url", url),
		slog.String("id", xmlID),
		slog.String("error", err.Error()),
	)
}

// IndexFormula indexes every subexpression of root.
//
// All subexpressions are encoded before anything is inserted, so a formula
// that fails to encode leaves the trie untouched. A subexpression that
// repeats within root is inserted and recorded once.
//
// Parameters:
//   - ctx: Context for the store writes
//   - crawlID: Document the formula belongs to, or formuladb.CrawlIDNull
//   - xmlID: Id of the math element
//   - root: Formula tree
//
// Returns:
//   - int: Number of occurrences recorded
//   - error: Encoding or store error
func (b *Builder) IndexFormula(ctx context.Context, crawlID formuladb.CrawlID, xmlID string, root *cmml.Node) (int, error) {
	type expr struct {
		formula token.Formula
		xpath   string
	}

	var exprs []expr
	err := root.ForeachSubexpression(func(n *cmml.Node) error {
		f, _, err := b.enc.Encode(n)
		if err != nil {
			return err
		}
		exprs = append(exprs, expr{formula: f, xpath: n.Xpath()})

		return nil
	})
	if err != nil {
		return 0, err
	}
	b.stats.Formulas++
	b.stats.Expressions += int64(len(exprs))
	b.metrics.expressions.Add(float64(len(exprs)))

	seen := make(map[uint64]token.Formula, len(exprs))
	recorded := 0
	for _, e := range exprs {
		h := hash.Formula(e.formula)
		if prev, dup := seen[h]; dup && prev.Equal(e.formula) {
			continue
		}
		seen[h] = e.formula

		leaf, err := b.trie.Insert(e.formula)
		if err != nil {
			return recorded, err
		}
		if b.cfg.formulas != nil {
			path := formuladb.FormulaPath{XMLID: xmlID, Xpath: e.xpath}
			if err := b.cfg.formulas.InsertFormula(ctx, leaf.ID, crawlID, path); err != nil {
				return recorded, fmt.Errorf("record formula %d: %w", leaf.ID, err)
			}
		}
		recorded++
	}
	b.stats.Occurrences += int64(recorded)
	b.metrics.occurrences.Add(float64(recorded))
	b.metrics.uniqueFormula.Set(float64(b.trie.Len()))

	return recorded, nil
}

// Finish exports the index into dir, creating it if needed.
//
// The files are staged under temporary names and published together; on error
// nothing is left behind. The builder stays usable, and a later Finish
// replaces the directory contents.
//
// Returns:
//   - *Manifest: Manifest that was written
//   - error: Export or I/O error
func (b *Builder) Finish(dir string) (*Manifest, error) {
	start := time.Now()

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	var buildOpts []index.BuildOption
	if b.cfg.embedDictionary {
		buildOpts = append(buildOpts, index.WithEmbeddedDictionary(b.cfg.compression))
	}
	arena, err := index.Build(b.trie, b.dict, buildOpts...)
	if err != nil {
		return nil, fmt.Errorf("build arena: %w", err)
	}
	defer arena.Close()

	dictData, err := EncodeDictionary(b.dict, b.cfg.compression)
	if err != nil {
		return nil, err
	}

	stats := b.Stats()
	m := &Manifest{
		Version:               ManifestVersion,
		BuildID:               uuid.NewString(),
		CreatedAt:             time.Now().UTC().Truncate(time.Second),
		Documents:             stats.Documents,
		Expressions:           stats.Expressions,
		Occurrences:           stats.Occurrences,
		UniqueFormulas:        stats.Trie.Leaves,
		Meanings:              stats.Meanings,
		ArenaBytes:            arena.Cursor(),
		RenameCi:              b.cfg.renameCi,
		DictionaryCompression: b.cfg.compression.String(),
		DictionaryChecksum:    hash.ID(string(dictData)),
		EmbeddedDictionary:    b.cfg.embedDictionary,
		FormulaDB:             b.cfg.formulas != nil,
	}
	manifest, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	st := newStaging(dir)
	if err := b.stage(st, arena.Save, dictData, manifest); err != nil {
		st.abort()
		return nil, err
	}

	b.metrics.arenaBytes.Set(float64(m.ArenaBytes))
	b.metrics.finishSeconds.Observe(time.Since(start).Seconds())
	b.cfg.logger.Info("index written",
		slog.String("dir", dir),
		slog.String("build_id", m.BuildID),
		slog.Int("unique_formulas", m.UniqueFormulas),
		slog.Int64("occurrences", m.Occurrences),
		slog.Int("arena_bytes", m.ArenaBytes),
		slog.Duration("elapsed", time.Since(start)),
	)

	return m, nil
}

func (b *Builder) stage(st *staging, saveArena func(string) error, dictData, manifest []byte) error {
	if err := saveArena(st.path(ArenaFile)); err != nil {
		return err
	}
	if err := st.write(DictionaryFile, dictData); err != nil {
		return err
	}
	if err := st.write(ManifestFile, manifest); err != nil {
		return err
	}

	return st.commit()
}
