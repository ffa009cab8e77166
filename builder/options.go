package builder

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/mws/compress"
	"github.com/arloliu/mws/errs"
	"github.com/arloliu/mws/format"
	"github.com/arloliu/mws/formuladb"
	"github.com/arloliu/mws/internal/options"
)

// Config holds the builder settings.
type Config struct {
	logger          *slog.Logger
	registerer      prometheus.Registerer
	renameCi        bool
	compression     format.CompressionType
	embedDictionary bool
	formulas        formuladb.FormulaDB
	crawls          formuladb.CrawlDB
}

// Option configures a Builder.
type Option = options.Option[*Config]

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return options.NoError(func(c *Config) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// WithRegisterer registers the build metrics on reg instead of a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return options.NoError(func(c *Config) {
		c.registerer = reg
	})
}

// WithRenameCi enables alpha-renaming of single-character identifiers while
// encoding. Queries against the index must be encoded the same way.
func WithRenameCi(enabled bool) Option {
	return options.NoError(func(c *Config) {
		c.renameCi = enabled
	})
}

// WithDictionaryCompression sets the codec of the meaning dictionary file.
// Default is format.CompressionZstd.
func WithDictionaryCompression(compression format.CompressionType) Option {
	return options.New(func(c *Config) error {
		if _, err := compress.GetCodec(compression); err != nil {
			return fmt.Errorf("%w: dictionary %s", errs.ErrInvalidCompression, compression)
		}
		c.compression = compression

		return nil
	})
}

// WithEmbeddedDictionary additionally stores the dictionary inside the arena.
func WithEmbeddedDictionary(enabled bool) Option {
	return options.NoError(func(c *Config) {
		c.embedDictionary = enabled
	})
}

// WithStores records occurrences in formulas and documents in crawls.
// Without stores the builder only produces the index.
func WithStores(formulas formuladb.FormulaDB, crawls formuladb.CrawlDB) Option {
	return options.New(func(c *Config) error {
		if (formulas == nil) != (crawls == nil) {
			return fmt.Errorf("%w: formula and crawl stores must be set together", errs.ErrInvalidConfig)
		}
		c.formulas = formulas
		c.crawls = crawls

		return nil
	})
}
