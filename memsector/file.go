package memsector

import (
	"fmt"
	"os"
	"path/filepath"
)

// Save seals the arena and writes its image to path.
//
// The image is written to a temporary file in the same directory, synced and
// renamed over path, so readers never observe a partial arena.
func (a *Arena) Save(path string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create arena file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = a.WriteTo(tmp); err != nil {
		return fmt.Errorf("write arena: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync arena: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close arena: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename arena: %w", err)
	}

	return nil
}

// Load opens an arena file read-only.
//
// On unix systems the file is memory-mapped; elsewhere it is read into memory.
// The image is validated before use and the returned arena is sealed. Call
// Close to release the mapping.
func Load(path string) (*Arena, error) {
	data, unmap, err := mapFile(path)
	if err != nil {
		return nil, err
	}

	a := &Arena{unmap: unmap}
	if err := a.open(data); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("load arena %s: %w", path, err)
	}

	return a, nil
}
