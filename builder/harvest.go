package builder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultHarvestExtension is the file suffix picked up by LoadPaths.
const DefaultHarvestExtension = ".harvest.jsonl"

// Document is one line of a harvest file.
type Document struct {
	URL      string    `json:"url"`
	Data     string    `json:"data,omitempty"`
	Formulas []Formula `json:"formulas"`
}

// Formula is one math element of a document, written in cmml notation.
type Formula struct {
	ID   string `json:"id"`
	Math string `json:"math"`
}

// LoadHarvest indexes every document of a JSON Lines stream.
//
// Returns:
//   - int: Number of documents indexed
//   - error: Decoding, context or store error; documents before the failing
//     line stay indexed
func (b *Builder) LoadHarvest(ctx context.Context, r io.Reader) (int, error) {
	dec := json.NewDecoder(r)
	docs := 0
	for {
		var doc Document
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return docs, fmt.Errorf("decode document %d: %w", docs+1, err)
		}

		if _, err := b.IndexDocument(ctx, doc); err != nil {
			return docs, err
		}
		docs++
	}
}

// LoadPaths indexes harvest files. Directories are searched recursively for
// files ending in ext (DefaultHarvestExtension if empty); plain files are
// loaded whatever their name.
//
// Returns:
//   - int: Number of documents indexed
//   - error: First I/O, decoding or store error
func (b *Builder) LoadPaths(ctx context.Context, paths []string, ext string) (int, error) {
	if ext == "" {
		ext = DefaultHarvestExtension
	}

	total := 0
	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || (path != root && !strings.HasSuffix(path, ext)) {
				return nil
			}

			n, err := b.loadFile(ctx, path)
			total += n

			return err
		})
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

func (b *Builder) loadFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := b.LoadHarvest(ctx, f)
	if err != nil {
		return n, fmt.Errorf("%s: %w", path, err)
	}
	b.cfg.logger.Debug("harvest loaded", slog.String("path", path), slog.Int("documents", n))

	return n, nil
}
