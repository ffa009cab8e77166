package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/arloliu/mws"
	"github.com/arloliu/mws/builder"
	"github.com/arloliu/mws/config"
	"github.com/arloliu/mws/formuladb"
)

// app carries the state shared by all subcommands.
type app struct {
	configPath string
	indexDir   string
	logLevel   string

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "mwsidx",
		Short: "Build and query structural formula indexes",
		Long: `mwsidx builds MathWebSearch index directories from harvest files and
answers formula queries against them.

Harvest files are JSON Lines, one document per line:
  {"url": "...", "data": "...", "formulas": [{"id": "eq1", "math": "apply(csymbol:plus, ci:x, cn:1)"}]}

Query variables are written ?name, anonymous ones ?, numeric ranges [lo,hi].`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.load(cmd) },
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVarP(&a.indexDir, "index-dir", "d", "", "index directory (overrides index.dir)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides log.level)")

	root.AddCommand(
		newBuildCmd(a),
		newQueryCmd(a),
		newStatsCmd(a),
		newVerifyCmd(a),
		newDumpCmd(a),
	)

	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.indexDir != "" {
		cfg.Index.Dir = a.indexDir
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = cfg.Log.NewLogger(cmd.ErrOrStderr())

	return nil
}

// storePath is where the Badger occurrence store lives.
func (a *app) storePath() string {
	if a.cfg.FormulaDB.Path != "" {
		return a.cfg.FormulaDB.Path
	}

	return filepath.Join(a.cfg.Index.Dir, builder.FormulaDBDir)
}

// openStores opens the configured occurrence store for writing. The returned
// closer is never nil.
func (a *app) openStores() (formuladb.FormulaDB, formuladb.CrawlDB, func() error, error) {
	switch a.cfg.FormulaDB.Backend {
	case config.BackendMemory:
		mem := formuladb.NewMemory()
		return mem, mem, mem.Close, nil
	case config.BackendBadger:
		store, err := formuladb.Open(formuladb.Config{
			Path:        a.storePath(),
			SyncWrites:  a.cfg.FormulaDB.SyncWrites,
			Compression: a.cfg.RecordCompression(),
			Logger:      a.logger,
		})
		if err != nil {
			return nil, nil, func() error { return nil }, err
		}
		return store, store, store.Close, nil
	default:
		return nil, nil, func() error { return nil }, nil
	}
}

// openIndex opens the configured index for reading.
func (a *app) openIndex(withStores bool) (*mws.Index, func() error, error) {
	opts := []mws.OpenOption{mws.WithLogger(a.logger)}
	closeStore := func() error { return nil }

	switch {
	case !withStores || a.cfg.FormulaDB.Backend != config.BackendBadger:
		opts = append(opts, mws.WithoutStores())
	case a.cfg.FormulaDB.Path != "":
		cfg := formuladb.DefaultConfig(a.cfg.FormulaDB.Path)
		cfg.SyncWrites = false
		cfg.Logger = a.logger
		store, err := formuladb.Open(cfg)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, mws.WithStores(store, store))
		closeStore = store.Close
	}

	idx, err := mws.Open(a.cfg.Index.Dir, opts...)
	if err != nil {
		_ = closeStore()
		return nil, nil, err
	}

	return idx, func() error {
		err := idx.Close()
		if serr := closeStore(); err == nil {
			err = serr
		}

		return err
	}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	return nil
}
