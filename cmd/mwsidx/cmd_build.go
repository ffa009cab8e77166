package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/arloliu/mws/builder"
	"github.com/arloliu/mws/format"
)

type buildFlags struct {
	force       bool
	renameCi    bool
	embed       bool
	compression string
	extension   string
}

func newBuildCmd(a *app) *cobra.Command {
	f := &buildFlags{}

	cmd := &cobra.Command{
		Use:   "build PATH...",
		Short: "Index harvest files into the index directory",
		Long: `Index every harvest file under the given paths.

Directories are searched recursively for files ending in the harvest
extension; files named directly are always read. The index directory
receives the arena, the meaning dictionary, a manifest and, with the
badger backend, the occurrence store.

Examples:
  mwsidx build -d idx harvests/
  mwsidx build -d idx --force --rename-ci a.harvest.jsonl b.harvest.jsonl`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, a, f, args)
		},
	}

	cmd.Flags().BoolVar(&f.force, "force", false, "replace an existing index")
	cmd.Flags().BoolVar(&f.renameCi, "rename-ci", false, "alpha-rename single-character identifiers (overrides index.rename_ci)")
	cmd.Flags().BoolVar(&f.embed, "embed-dictionary", false, "also store the dictionary inside the arena")
	cmd.Flags().StringVar(&f.compression, "compression", "", "dictionary compression: none, zstd, s2, lz4")
	cmd.Flags().StringVar(&f.extension, "ext", "", "harvest file extension (overrides index.harvest_extension)")

	return cmd
}

func runBuild(cmd *cobra.Command, a *app, f *buildFlags, paths []string) error {
	cfg := a.cfg.Index
	if cmd.Flags().Changed("rename-ci") {
		cfg.RenameCi = f.renameCi
	}
	if cmd.Flags().Changed("embed-dictionary") {
		cfg.EmbedDictionary = f.embed
	}
	if f.compression != "" {
		cfg.DictionaryCompression = f.compression
	}
	if f.extension != "" {
		cfg.HarvestExtension = f.extension
	}
	compression, ok := format.ParseCompression(cfg.DictionaryCompression)
	if !ok {
		return fmt.Errorf("unknown compression %q", cfg.DictionaryCompression)
	}

	if err := prepareDir(cfg.Dir, a.storePath(), f.force); err != nil {
		return err
	}

	formulas, crawls, closeStores, err := a.openStores()
	if err != nil {
		return err
	}
	defer closeStores()

	reg := prometheus.NewRegistry()
	opts := []builder.Option{
		builder.WithLogger(a.logger),
		builder.WithRegisterer(reg),
		builder.WithRenameCi(cfg.RenameCi),
		builder.WithDictionaryCompression(compression),
		builder.WithEmbeddedDictionary(cfg.EmbedDictionary),
	}
	if formulas != nil {
		opts = append(opts, builder.WithStores(formulas, crawls))
	}
	b, err := builder.New(opts...)
	if err != nil {
		return err
	}

	docs, err := b.LoadPaths(cmd.Context(), paths, cfg.HarvestExtension)
	if err != nil {
		return err
	}
	m, err := b.Finish(cfg.Dir)
	if err != nil {
		return err
	}
	if err := closeStores(); err != nil {
		return fmt.Errorf("close formula db: %w", err)
	}

	stats := b.Stats()
	_, err = fmt.Fprintf(cmd.OutOrStdout(),
		"indexed %d documents: %d expressions, %d unique formulas, %d occurrences, %d rejected (build %s)\n",
		docs, m.Expressions, m.UniqueFormulas, m.Occurrences, stats.Rejected, m.BuildID)

	return err
}

// prepareDir refuses to overwrite an index unless force is set, in which case
// the old occurrence store is removed so that formula ids of the new build
// never meet records of the old one.
func prepareDir(dir, storePath string, force bool) error {
	_, err := os.Stat(filepath.Join(dir, builder.ManifestFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return err
	case !force:
		return fmt.Errorf("%s already holds an index; use --force to replace it", dir)
	}

	if err := os.RemoveAll(storePath); err != nil {
		return fmt.Errorf("remove old formula db: %w", err)
	}

	return nil
}
