package builder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/mws/compress"
	"github.com/arloliu/mws/dict"
	"github.com/arloliu/mws/errs"
	"github.com/arloliu/mws/format"
	"github.com/arloliu/mws/internal/hash"
	"github.com/arloliu/mws/internal/pool"
)

// Files of an index directory.
const (
	ArenaFile      = "index.arena"
	DictionaryFile = "meaning.dict"
	ManifestFile   = "manifest.yaml"
	FormulaDBDir   = "formuladb"
)

// ManifestVersion is the manifest layout written by this package.
const ManifestVersion = 1

// Manifest describes a finished index directory.
type Manifest struct {
	Version   int       `yaml:"version"`
	BuildID   string    `yaml:"build_id"`
	CreatedAt time.Time `yaml:"created_at"`

	Documents      int64 `yaml:"documents"`
	Expressions    int64 `yaml:"expressions"`
	Occurrences    int64 `yaml:"occurrences"`
	UniqueFormulas int   `yaml:"unique_formulas"`
	Meanings       int   `yaml:"meanings"`
	ArenaBytes     int   `yaml:"arena_bytes"`

	RenameCi              bool   `yaml:"rename_ci"`
	DictionaryCompression string `yaml:"dictionary_compression"`
	DictionaryChecksum    uint64 `yaml:"dictionary_checksum"`
	EmbeddedDictionary    bool   `yaml:"embedded_dictionary"`
	FormulaDB             bool   `yaml:"formula_db"`
}

// ReadManifest loads the manifest of the index in dir.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %w", errs.ErrInvalidConfig, err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("%w: manifest version %d", errs.ErrUnsupportedVersion, m.Version)
	}

	return &m, nil
}

// EncodeDictionary serializes d as stored in DictionaryFile: one compression
// type byte followed by the compressed dictionary payload.
func EncodeDictionary(d *dict.Dictionary, compression format.CompressionType) ([]byte, error) {
	codec, err := compress.CreateCodec(compression, "dictionary")
	if err != nil {
		return nil, err
	}

	bb := pool.GetImageBuffer()
	defer pool.PutImageBuffer(bb)
	bb.Grow(d.EncodedSize())
	if _, err := d.WriteTo(bb); err != nil {
		return nil, err
	}

	payload, err := codec.Compress(bb.Bytes())
	if err != nil {
		return nil, fmt.Errorf("compress dictionary: %w", err)
	}

	out := make([]byte, 0, 1+len(payload))
	out = append(out, byte(compression))

	return append(out, payload...), nil
}

// ReadDictionary loads DictionaryFile from dir and verifies it against the
// manifest checksum. The returned dictionary is frozen.
func ReadDictionary(dir string, m *Manifest) (*dict.Dictionary, error) {
	data, err := os.ReadFile(filepath.Join(dir, DictionaryFile))
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	if m != nil && hash.ID(string(data)) != m.DictionaryChecksum {
		return nil, fmt.Errorf("%w: %s", errs.ErrChecksumMismatch, DictionaryFile)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", errs.ErrInvalidDictionary)
	}

	codec, err := compress.GetCodec(format.CompressionType(data[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidDictionary, err)
	}
	raw, err := codec.Decompress(data[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidDictionary, err)
	}

	d, err := dict.Parse(raw)
	if err != nil {
		return nil, err
	}
	d.Freeze()

	return d, nil
}

// staging collects files written under temporary names so that a set of
// files can be published together or not at all.
type staging struct {
	dir   string
	names []string
}

func newStaging(dir string) *staging {
	return &staging{dir: dir}
}

func (s *staging) tmp(name string) string {
	return filepath.Join(s.dir, "."+name+".staging")
}

// path reserves a temporary path for the final file name.
func (s *staging) path(name string) string {
	s.names = append(s.names, name)
	return s.tmp(name)
}

func (s *staging) write(name string, data []byte) error {
	tmp := s.path(name)
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}

	return f.Close()
}

// commit renames the staged files into place in the order they were staged.
// Stage the manifest last: a directory with a manifest is then complete. An
// existing manifest is removed first, so a replaced index is never paired
// with the previous manifest.
func (s *staging) commit() error {
	if slices.Contains(s.names, ManifestFile) {
		err := os.Remove(filepath.Join(s.dir, ManifestFile))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("replace %s: %w", ManifestFile, err)
		}
	}

	for len(s.names) > 0 {
		name := s.names[0]
		if err := os.Rename(s.tmp(name), filepath.Join(s.dir, name)); err != nil {
			return fmt.Errorf("publish %s: %w", name, err)
		}
		s.names = s.names[1:]
	}

	return nil
}

// abort removes whatever is still staged.
func (s *staging) abort() {
	for _, name := range s.names {
		_ = os.Remove(s.tmp(name))
	}
	s.names = nil
}
