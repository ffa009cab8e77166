package index

import (
	"fmt"

	"github.com/arloliu/mws/compress"
	"github.com/arloliu/mws/dict"
	"github.com/arloliu/mws/errs"
	"github.com/arloliu/mws/format"
	"github.com/arloliu/mws/internal/options"
	"github.com/arloliu/mws/memsector"
	"github.com/arloliu/mws/section"
	"github.com/arloliu/mws/trie"
)

// Export writes tr into a and records the root offset.
//
// Nodes are written depth-first in token order. Each internal node's block is
// reserved before its children are visited, so the root is the first record
// after the header and every child lies after its parent. Children are sorted
// so that readers can binary-search them.
//
// Any allocation failure aborts the export; the arena must then be discarded.
//
// Parameters:
//   - tr: Finished trie
//   - a: Writable arena, presized with tr.ArenaSize()
//
// Returns:
//   - memsector.Offset: Root offset
//   - error: errs.ErrArenaFull or errs.ErrCountOverflow
func Export(tr *trie.Trie, a *memsector.Arena) (memsector.Offset, error) {
	type frame struct {
		off     memsector.Offset
		edges   []trie.Edge
		entries []section.Entry
		next    int
	}

	reserve := func(n *trie.Node) (frame, error) {
		edges := n.Edges()
		off, err := a.Allocate(section.InternalSize(len(edges)))
		if err != nil {
			return frame{}, err
		}

		return frame{off: off, edges: edges, entries: make([]section.Entry, 0, len(edges))}, nil
	}

	rootFrame, err := reserve(tr.Root())
	if err != nil {
		return memsector.NullOffset, fmt.Errorf("export root: %w", err)
	}
	root := rootFrame.off

	stack := []frame{rootFrame}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]

		if top.next == len(top.edges) {
			buf, err := a.Bytes(top.off, section.InternalSize(len(top.entries)))
			if err != nil {
				return memsector.NullOffset, err
			}
			if err := section.PutInternal(buf, top.entries); err != nil {
				return memsector.NullOffset, fmt.Errorf("export node %d: %w", top.off, err)
			}
			stack = stack[:len(stack)-1]

			continue
		}

		e := top.edges[top.next]
		top.next++

		if e.Node.IsLeaf() {
			off, err := exportLeaf(a, e.Node.Leaf())
			if err != nil {
				return memsector.NullOffset, err
			}
			top.entries = append(top.entries, section.Entry{Token: e.Token, Child: int32(off)})

			continue
		}

		child, err := reserve(e.Node)
		if err != nil {
			return memsector.NullOffset, fmt.Errorf("export node: %w", err)
		}
		top.entries = append(top.entries, section.Entry{Token: e.Token, Child: int32(child.off)})
		stack = append(stack, child)
	}

	if err := a.SetRoot(root); err != nil {
		return memsector.NullOffset, err
	}

	return root, nil
}

func exportLeaf(a *memsector.Arena, leaf *trie.Leaf) (memsector.Offset, error) {
	off, err := a.Allocate(section.LeafSize)
	if err != nil {
		return memsector.NullOffset, fmt.Errorf("export leaf %d: %w", leaf.ID, err)
	}

	buf, err := a.Bytes(off, section.LeafSize)
	if err != nil {
		return memsector.NullOffset, err
	}
	if err := section.PutLeaf(buf, leaf.Hits, leaf.ID); err != nil {
		return memsector.NullOffset, fmt.Errorf("export leaf %d: %w", leaf.ID, err)
	}

	return off, nil
}

type buildConfig struct {
	embedDict   bool
	compression format.CompressionType
	headroom    int
}

// BuildOption configures Build.
type BuildOption = options.Option[*buildConfig]

// WithEmbeddedDictionary stores the meaning dictionary inside the arena,
// compressed with the given codec, so the arena file is self-contained.
func WithEmbeddedDictionary(compression format.CompressionType) BuildOption {
	return options.New(func(c *buildConfig) error {
		if _, err := compress.GetCodec(compression); err != nil {
			return fmt.Errorf("%w: %s", errs.ErrInvalidCompression, compression)
		}
		c.embedDict = true
		c.compression = compression

		return nil
	})
}

// WithHeadroom adds n spare bytes to the computed arena capacity.
func WithHeadroom(n int) BuildOption {
	return options.New(func(c *buildConfig) error {
		if n < 0 {
			return fmt.Errorf("%w: negative headroom %d", errs.ErrInvalidConfig, n)
		}
		c.headroom = n

		return nil
	})
}

// Build presizes an arena for tr, exports it and seals the result.
//
// Parameters:
//   - tr: Finished trie
//   - d: Dictionary used to encode tr; only read when the dictionary is embedded
//   - opts: Build options
//
// Returns:
//   - *memsector.Arena: Sealed arena
//   - error: Option, compression or export error; no partial arena is returned
func Build(tr *trie.Trie, d *dict.Dictionary, opts ...BuildOption) (*memsector.Arena, error) {
	cfg := &buildConfig{compression: format.CompressionNone}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	var payload []byte
	capacity := tr.ArenaSize() + cfg.headroom
	if cfg.embedDict {
		codec, err := compress.GetCodec(cfg.compression)
		if err != nil {
			return nil, err
		}
		payload, err = codec.Compress(d.AppendBinary(nil))
		if err != nil {
			return nil, fmt.Errorf("compress dictionary: %w", err)
		}
		capacity += section.BlobSize(len(payload))
	}

	a, err := memsector.New(capacity)
	if err != nil {
		return nil, err
	}
	if _, err := Export(tr, a); err != nil {
		return nil, err
	}
	if cfg.embedDict {
		if err := a.EmbedDictionary(payload, cfg.compression); err != nil {
			return nil, err
		}
	}
	a.Seal()

	return a, nil
}

// EmbeddedDictionary decompresses and parses the dictionary stored in a.
// The returned dictionary is frozen.
func EmbeddedDictionary(a *memsector.Arena) (*dict.Dictionary, error) {
	payload, compression, ok := a.Dictionary()
	if !ok {
		return nil, fmt.Errorf("%w: arena has no embedded dictionary", errs.ErrInvalidDictionary)
	}

	codec, err := compress.GetCodec(compression)
	if err != nil {
		return nil, err
	}
	raw, err := codec.Decompress(payload)
	if err != nil {
		return nil, fmt.Errorf("decompress dictionary: %w", err)
	}

	d, err := dict.Parse(raw)
	if err != nil {
		return nil, err
	}
	d.Freeze()

	return d, nil
}
