package formuladb

import (
	"context"
	"fmt"
	"sync"

	"github.com/arloliu/mws/errs"
)

// Memory keeps occurrences and documents in maps. It implements both
// FormulaDB and CrawlDB and is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	formulas map[uint32][]Occurrence
	crawls   []CrawlData
	closed   bool
}

var (
	_ FormulaDB = (*Memory)(nil)
	_ CrawlDB   = (*Memory)(nil)
)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{formulas: make(map[uint32][]Occurrence)}
}

func (m *Memory) InsertFormula(ctx context.Context, formulaID uint32, crawlID CrawlID, path FormulaPath) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errs.ErrClosed
	}
	m.formulas[formulaID] = append(m.formulas[formulaID], Occurrence{CrawlID: crawlID, Path: path})

	return nil
}

func (m *Memory) QueryFormula(ctx context.Context, formulaID uint32, offset, limit int, fn func(Occurrence) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return errs.ErrClosed
	}
	occs := window(m.formulas[formulaID], offset, limit)
	m.mu.RUnlock()

	for _, occ := range occs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(occ); err != nil {
			return err
		}
	}

	return nil
}

// window returns the slice of occs selected by offset and limit. The result
// shares no memory with later appends.
func window(occs []Occurrence, offset, limit int) []Occurrence {
	offset = max(offset, 0)
	if offset >= len(occs) {
		return nil
	}
	occs = occs[offset:]
	if limit > 0 && limit < len(occs) {
		occs = occs[:limit]
	}

	return occs[:len(occs):len(occs)]
}

func (m *Memory) PutData(ctx context.Context, data CrawlData) (CrawlID, error) {
	if err := ctx.Err(); err != nil {
		return CrawlIDNull, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return CrawlIDNull, errs.ErrClosed
	}
	m.crawls = append(m.crawls, data)

	return CrawlID(len(m.crawls)), nil //nolint:gosec
}

func (m *Memory) GetData(ctx context.Context, id CrawlID) (CrawlData, error) {
	if err := ctx.Err(); err != nil {
		return CrawlData{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return CrawlData{}, errs.ErrClosed
	}
	if id == CrawlIDNull || int(id) > len(m.crawls) {
		return CrawlData{}, fmt.Errorf("%w: %d", errs.ErrCrawlDataNotFound, id)
	}

	return m.crawls[id-1], nil
}

// Len returns the number of stored occurrences.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, occs := range m.formulas {
		n += len(occs)
	}

	return n
}

// Close releases the maps. Later calls fail with errs.ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.formulas = nil
	m.crawls = nil

	return nil
}
