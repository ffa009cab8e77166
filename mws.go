// Package mws opens MathWebSearch index directories for querying.
//
// An index directory is produced by the builder package (or the mwsidx build
// command) and holds a memory-mapped arena, the meaning dictionary, a YAML
// manifest and optionally a Badger occurrence store. Open loads all of them
// and exposes the pieces the search package needs.
//
// # Basic Usage
//
//	idx, err := mws.Open("mws-index")
//	if err != nil {
//	    return err
//	}
//	defer idx.Close()
//
//	answers, err := search.Search(ctx, idx, cmml.MustParse("apply(ci:f, ?x, ?x)"), search.DefaultOptions())
//
// An Index is immutable once opened and safe for concurrent queries.
package mws

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/arloliu/mws/builder"
	"github.com/arloliu/mws/cmml"
	"github.com/arloliu/mws/dict"
	"github.com/arloliu/mws/encoding"
	"github.com/arloliu/mws/errs"
	"github.com/arloliu/mws/formuladb"
	"github.com/arloliu/mws/index"
	"github.com/arloliu/mws/internal/options"
	"github.com/arloliu/mws/memsector"
	"github.com/arloliu/mws/token"
)

// OpenConfig holds the settings of Open.
type OpenConfig struct {
	logger   *slog.Logger
	formulas formuladb.FormulaDB
	crawls   formuladb.CrawlDB
	noStores bool
}

// OpenOption is a functional option for configuring Open.
type OpenOption = options.Option[*OpenConfig]

// WithLogger sets the logger used by the index and its stores.
func WithLogger(logger *slog.Logger) OpenOption {
	return options.New(func(c *OpenConfig) error {
		if logger == nil {
			return fmt.Errorf("%w: nil logger", errs.ErrInvalidConfig)
		}
		c.logger = logger

		return nil
	})
}

// WithStores resolves occurrences through already opened stores instead of
// the Badger store inside the index directory. The caller keeps ownership:
// Close does not close them. crawls may be nil.
func WithStores(formulas formuladb.FormulaDB, crawls formuladb.CrawlDB) OpenOption {
	return options.New(func(c *OpenConfig) error {
		if formulas == nil {
			return fmt.Errorf("%w: nil formula store", errs.ErrInvalidConfig)
		}
		c.formulas = formulas
		c.crawls = crawls

		return nil
	})
}

// WithoutStores skips the occurrence store even if the index has one.
// Searches then report formula ids without documents.
func WithoutStores() OpenOption {
	return options.NoError(func(c *OpenConfig) {
		c.noStores = true
	})
}

// Index is an opened index directory.
type Index struct {
	dir      string
	manifest *builder.Manifest
	arena    *memsector.Arena
	acc      *index.ArenaAccessor
	dict     *dict.Dictionary
	decoder  *encoding.Decoder
	encoder  *encoding.Encoder
	queries  *formuladb.QueryManager
	owned    *formuladb.Badger
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open loads the index in dir.
//
// The arena is memory-mapped and its checksum and node structure are
// verified. The dictionary comes from the arena when the manifest says it was
// embedded, otherwise from the dictionary file, whose checksum must match the
// manifest.
//
// Parameters:
//   - dir: Index directory written by builder.Builder.Finish
//   - opts: Optional configuration
//
// Returns:
//   - *Index: Opened index, to be closed by the caller
//   - error: I/O, errs.ErrUnsupportedVersion, errs.ErrChecksumMismatch or a
//     structural arena error
func Open(dir string, opts ...OpenOption) (*Index, error) {
	cfg := &OpenConfig{logger: slog.Default()}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	m, err := builder.ReadManifest(dir)
	if err != nil {
		return nil, err
	}

	arena, err := memsector.Load(filepath.Join(dir, builder.ArenaFile))
	if err != nil {
		return nil, err
	}

	idx := &Index{dir: dir, manifest: m, arena: arena, logger: cfg.logger}
	if err := idx.load(cfg); err != nil {
		_ = idx.Close()
		return nil, err
	}

	idx.logger.Info("index opened",
		slog.String("dir", dir),
		slog.String("build_id", m.BuildID),
		slog.Int("unique_formulas", m.UniqueFormulas),
		slog.Bool("occurrences", idx.queries != nil),
	)

	return idx, nil
}

func (idx *Index) load(cfg *OpenConfig) error {
	var err error
	if idx.acc, err = index.NewArenaAccessor(idx.arena); err != nil {
		return err
	}

	if idx.manifest.EmbeddedDictionary {
		idx.dict, err = index.EmbeddedDictionary(idx.arena)
	} else {
		idx.dict, err = builder.ReadDictionary(idx.dir, idx.manifest)
	}
	if err != nil {
		return err
	}

	idx.decoder = encoding.NewDecoder(idx.dict)
	if idx.encoder, err = encoding.NewQueryEncoder(idx.dict, encoding.WithRenameCi(idx.manifest.RenameCi)); err != nil {
		return err
	}

	switch {
	case cfg.noStores:
	case cfg.formulas != nil:
		idx.queries = formuladb.NewQueryManager(cfg.formulas, cfg.crawls, idx.logger)
	case idx.manifest.FormulaDB:
		return idx.openStore()
	}

	return nil
}

// openStore opens the Badger store of the index directory, if it exists.
func (idx *Index) openStore() error {
	path := filepath.Join(idx.dir, builder.FormulaDBDir)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		idx.logger.Warn("manifest lists a formula db but none was found", slog.String("path", path))
		return nil
	}

	cfg := formuladb.DefaultConfig(path)
	cfg.SyncWrites = false
	cfg.Logger = idx.logger
	store, err := formuladb.Open(cfg)
	if err != nil {
		return err
	}
	idx.owned = store
	idx.queries = formuladb.NewQueryManager(store, store, idx.logger)

	return nil
}

// Dir returns the index directory.
func (idx *Index) Dir() string {
	return idx.dir
}

// Manifest returns the manifest the index was opened with.
func (idx *Index) Manifest() *builder.Manifest {
	return idx.manifest
}

// Accessor returns the read-only view used by the query engine.
func (idx *Index) Accessor() *index.ArenaAccessor {
	return idx.acc
}

// Dictionary returns the frozen meaning dictionary.
func (idx *Index) Dictionary() *dict.Dictionary {
	return idx.dict
}

// Decoder returns a decoder over the index dictionary.
func (idx *Index) Decoder() *encoding.Decoder {
	return idx.decoder
}

// Occurrences returns the occurrence resolver, or nil when the index was
// opened without stores.
func (idx *Index) Occurrences() *formuladb.QueryManager {
	return idx.queries
}

// Encode turns a query tree into tokens with the renaming settings the index
// was built with.
//
// Returns:
//   - token.Formula: Encoded query
//   - *encoding.Info: Query variable names, xpaths and range bounds
//   - error: errs.ErrUnknownMeaning when the query names a constant the index
//     never saw, which callers treat as an empty result
func (idx *Index) Encode(q *cmml.Node) (token.Formula, *encoding.Info, error) {
	return idx.encoder.Encode(q)
}

// Lookup resolves up to limit occurrences of formulaID, skipping offset.
// It returns nothing when the index has no occurrence store.
func (idx *Index) Lookup(ctx context.Context, formulaID uint32, offset, limit int, fn func(formuladb.FormulaPath, formuladb.CrawlData) error) error {
	if idx.queries == nil {
		return nil
	}

	return idx.queries.Query(ctx, formulaID, offset, limit, fn)
}

// Close releases the arena mapping and the stores opened by Open.
func (idx *Index) Close() error {
	idx.closeOnce.Do(func() {
		var storeErr error
		if idx.owned != nil {
			storeErr = idx.owned.Close()
		}
		idx.closeErr = errors.Join(storeErr, idx.arena.Close())
	})

	return idx.closeErr
}
