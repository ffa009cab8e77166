// Package config loads the YAML configuration of the mwsidx tool.
//
// Values are resolved in order: built-in defaults, the YAML file, then
// MWS_* environment variables. Command-line flags are applied last by the
// caller.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/mws/errs"
	"github.com/arloliu/mws/format"
)

// Formula store backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// Config is the complete tool configuration.
type Config struct {
	Index     IndexConfig     `yaml:"index"`
	FormulaDB FormulaDBConfig `yaml:"formula_db"`
	Search    SearchConfig    `yaml:"search"`
	Log       LogConfig       `yaml:"log"`
}

// IndexConfig controls how an index is built and where it lives.
type IndexConfig struct {
	// Dir is the index directory.
	Dir string `yaml:"dir"`
	// DictionaryCompression is one of none, zstd, s2, lz4.
	DictionaryCompression string `yaml:"dictionary_compression"`
	// EmbedDictionary also stores the dictionary inside the arena.
	EmbedDictionary bool `yaml:"embed_dictionary"`
	// RenameCi alpha-renames single-character identifiers.
	RenameCi bool `yaml:"rename_ci"`
	// HarvestExtension selects harvest files inside input directories.
	HarvestExtension string `yaml:"harvest_extension"`
}

// FormulaDBConfig selects the occurrence store.
type FormulaDBConfig struct {
	// Backend is none, memory or badger.
	Backend string `yaml:"backend"`
	// Path overrides the store directory; empty means <index dir>/formuladb.
	Path string `yaml:"path"`
	// Compression is applied to stored records.
	Compression string `yaml:"compression"`
	SyncWrites  bool   `yaml:"sync_writes"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	Limit    int `yaml:"limit"`
	MaxTotal int `yaml:"max_total"`
	MaxSteps int `yaml:"max_steps"`
	Workers  int `yaml:"workers"`
	// Occurrences is the number of stored occurrences resolved per answer.
	Occurrences int `yaml:"occurrences"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Index: IndexConfig{
			Dir:                   "mws-index",
			DictionaryCompression: "zstd",
			HarvestExtension:      ".harvest.jsonl",
		},
		FormulaDB: FormulaDBConfig{
			Backend:     BackendBadger,
			Compression: "s2",
			SyncWrites:  true,
		},
		Search: SearchConfig{
			Limit:       30,
			MaxTotal:    10000,
			MaxSteps:    0,
			Workers:     4,
			Occurrences: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration at path on top of the defaults and applies
// environment overrides. An empty path skips the file.
//
// Returns:
//   - Config: Validated configuration
//   - error: I/O, YAML or errs.ErrInvalidConfig error
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		if err := decode(f, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	applyEnv(&cfg, os.Getenv)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", errs.ErrInvalidConfig, err)
	}

	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("MWS_INDEX_DIR"); v != "" {
		cfg.Index.Dir = v
	}
	if v := getenv("MWS_FORMULA_DB"); v != "" {
		cfg.FormulaDB.Backend = v
	}
	if v := getenv("MWS_WORKERS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Search.Workers = i
		}
	}
	if v := getenv("MWS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate checks every field.
func (c Config) Validate() error {
	if c.Index.Dir == "" {
		return fmt.Errorf("%w: index.dir is required", errs.ErrInvalidConfig)
	}
	if _, ok := format.ParseCompression(c.Index.DictionaryCompression); !ok {
		return fmt.Errorf("%w: index.dictionary_compression %q", errs.ErrInvalidConfig, c.Index.DictionaryCompression)
	}
	switch c.FormulaDB.Backend {
	case BackendNone, BackendMemory, BackendBadger:
	default:
		return fmt.Errorf("%w: formula_db.backend %q", errs.ErrInvalidConfig, c.FormulaDB.Backend)
	}
	if _, ok := format.ParseCompression(c.FormulaDB.Compression); !ok {
		return fmt.Errorf("%w: formula_db.compression %q", errs.ErrInvalidConfig, c.FormulaDB.Compression)
	}
	if c.Search.Limit < 0 || c.Search.MaxTotal < 0 || c.Search.MaxSteps < 0 || c.Search.Occurrences < 0 {
		return fmt.Errorf("%w: search limits must not be negative", errs.ErrInvalidConfig)
	}
	if c.Search.Workers < 1 {
		return fmt.Errorf("%w: search.workers must be >= 1", errs.ErrInvalidConfig)
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("%w: log.format %q", errs.ErrInvalidConfig, c.Log.Format)
	}

	return nil
}

// DictionaryCompression returns the parsed index.dictionary_compression.
func (c Config) DictionaryCompression() format.CompressionType {
	ct, _ := format.ParseCompression(c.Index.DictionaryCompression)
	return ct
}

// RecordCompression returns the parsed formula_db.compression.
func (c Config) RecordCompression() format.CompressionType {
	ct, _ := format.ParseCompression(c.FormulaDB.Compression)
	return ct
}

func (l LogConfig) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return lvl, fmt.Errorf("%w: log.level %q", errs.ErrInvalidConfig, l.Level)
	}

	return lvl, nil
}

// NewLogger builds the logger described by l, writing to w.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	lvl, _ := l.level()
	opts := &slog.HandlerOptions{Level: lvl}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}
