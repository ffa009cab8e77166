package formuladb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/arloliu/mws/endian"
	"github.com/arloliu/mws/errs"
	"github.com/arloliu/mws/format"
)

// Key layout. Big-endian ids keep the occurrences of one formula contiguous
// and in insertion order.
//
//	f | formula id (4) | sequence (8)  -> occurrence record
//	c | crawl id (4)                   -> crawl record
var (
	prefixFormula   = []byte{'f'}
	prefixCrawl     = []byte{'c'}
	keyFormulaSeq   = []byte("!seq/formula")
	keyCrawlSeq     = []byte("!seq/crawl")
	sequenceLeaseSz = uint64(1000)
)

// Config configures a Badger store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Compression is applied to every stored record.
	Compression format.CompressionType

	// Logger receives BadgerDB's internal logging.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns the configuration for a persistent store at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		SyncWrites:  true,
		Compression: format.CompressionS2,
	}
}

// InMemoryConfig returns the configuration for a throwaway store.
func InMemoryConfig() Config {
	return Config{
		InMemory:    true,
		Compression: format.CompressionNone,
	}
}

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Badger is a persistent FormulaDB and CrawlDB.
//
// Badger is safe for concurrent use.
type Badger struct {
	db       *badger.DB
	records  *recordCodec
	formulas *badger.Sequence
	crawls   *badger.Sequence

	closeOnce sync.Once
	closeErr  error
}

var (
	_ FormulaDB = (*Badger)(nil)
	_ CrawlDB   = (*Badger)(nil)
)

// Open opens or creates a Badger store.
//
// Parameters:
//   - cfg: Store configuration
//
// Returns:
//   - *Badger: Open store, to be closed by the caller
//   - error: errs.ErrInvalidConfig, errs.ErrInvalidCompression or a badger error
func Open(cfg Config) (*Badger, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("%w: path is required for a persistent formula db", errs.ErrInvalidConfig)
	}

	records, err := newRecordCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create formula db directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	b := &Badger{db: db, records: records}
	if b.formulas, err = db.GetSequence(keyFormulaSeq, sequenceLeaseSz); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("formula sequence: %w", err)
	}
	if b.crawls, err = db.GetSequence(keyCrawlSeq, sequenceLeaseSz); err != nil {
		_ = b.formulas.Release()
		_ = db.Close()
		return nil, fmt.Errorf("crawl sequence: %w", err)
	}

	return b, nil
}

func formulaPrefix(formulaID uint32) []byte {
	return endian.GetBigEndianEngine().AppendUint32(append([]byte(nil), prefixFormula...), formulaID)
}

func crawlKey(id CrawlID) []byte {
	return endian.GetBigEndianEngine().AppendUint32(append([]byte(nil), prefixCrawl...), uint32(id))
}

func (b *Badger) InsertFormula(ctx context.Context, formulaID uint32, crawlID CrawlID, path FormulaPath) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	seq, err := b.formulas.Next()
	if err != nil {
		return b.wrap(err)
	}
	key := endian.GetBigEndianEngine().AppendUint64(formulaPrefix(formulaID), seq)

	value, err := b.records.encodeOccurrence(Occurrence{CrawlID: crawlID, Path: path})
	if err != nil {
		return err
	}

	return b.wrap(b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	}))
}

func (b *Badger) QueryFormula(ctx context.Context, formulaID uint32, offset, limit int, fn func(Occurrence) error) error {
	prefix := formulaPrefix(formulaID)

	return b.wrap(b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		skipped, emitted := 0, 0
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if skipped < offset {
				skipped++
				continue
			}
			if limit > 0 && emitted >= limit {
				return nil
			}

			var occ Occurrence
			err := it.Item().Value(func(val []byte) error {
				var err error
				occ, err = decodeOccurrence(val)
				return err
			})
			if err != nil {
				return fmt.Errorf("formula %d: %w", formulaID, err)
			}
			if err := fn(occ); err != nil {
				return err
			}
			emitted++
		}

		return nil
	}))
}

func (b *Badger) PutData(ctx context.Context, data CrawlData) (CrawlID, error) {
	if err := ctx.Err(); err != nil {
		return CrawlIDNull, err
	}

	seq, err := b.crawls.Next()
	if err != nil {
		return CrawlIDNull, b.wrap(err)
	}
	id := CrawlID(seq + 1) //nolint:gosec

	value, err := b.records.encodeCrawlData(data)
	if err != nil {
		return CrawlIDNull, err
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(crawlKey(id), value)
	})
	if err != nil {
		return CrawlIDNull, b.wrap(err)
	}

	return id, nil
}

func (b *Badger) GetData(ctx context.Context, id CrawlID) (CrawlData, error) {
	if err := ctx.Err(); err != nil {
		return CrawlData{}, err
	}

	var data CrawlData
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(crawlKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %d", errs.ErrCrawlDataNotFound, id)
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			data, err = decodeCrawlData(val)
			return err
		})
	})

	return data, b.wrap(err)
}

// Close releases the id sequences and closes the database.
func (b *Badger) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = errors.Join(b.formulas.Release(), b.crawls.Release(), b.db.Close())
	})

	return b.closeErr
}

func (b *Badger) wrap(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return fmt.Errorf("%w: %w", errs.ErrClosed, err)
	}

	return err
}
