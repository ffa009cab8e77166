package formuladb

import (
	"context"
	"errors"
	"log/slog"

	"github.com/arloliu/mws/errs"
)

// QueryManager resolves formula ids to documents.
type QueryManager struct {
	formulas FormulaDB
	crawls   CrawlDB
	logger   *slog.Logger
}

// NewQueryManager joins formulas with crawls. A nil crawls store leaves the
// document part of every result empty; a nil logger uses slog.Default().
func NewQueryManager(formulas FormulaDB, crawls CrawlDB, logger *slog.Logger) *QueryManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &QueryManager{formulas: formulas, crawls: crawls, logger: logger}
}

// Query calls fn with the path and document of each occurrence of formulaID,
// in insertion order, honouring offset and limit as FormulaDB.QueryFormula
// does.
//
// An occurrence whose document is missing is still reported, with empty
// CrawlData.
func (m *QueryManager) Query(ctx context.Context, formulaID uint32, offset, limit int, fn func(FormulaPath, CrawlData) error) error {
	return m.formulas.QueryFormula(ctx, formulaID, offset, limit, func(occ Occurrence) error {
		data, err := m.lookup(ctx, occ.CrawlID)
		if err != nil {
			return err
		}

		return fn(occ.Path, data)
	})
}

func (m *QueryManager) lookup(ctx context.Context, id CrawlID) (CrawlData, error) {
	if m.crawls == nil || id == CrawlIDNull {
		return CrawlData{}, nil
	}

	data, err := m.crawls.GetData(ctx, id)
	if errors.Is(err, errs.ErrCrawlDataNotFound) {
		m.logger.Debug("crawl data missing", slog.Uint64("crawl_id", uint64(id)))
		return CrawlData{}, nil
	}

	return data, err
}
