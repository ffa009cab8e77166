// Package formuladb stores where indexed formulas occur.
//
// The index itself only knows formula ids. A FormulaDB maps each formula id
// to its occurrences (the document and the position inside it), and a CrawlDB
// holds the documents themselves. QueryManager joins the two for search
// results.
//
// Two backends are provided: Memory, for tests and small one-shot indexes,
// and Badger, a persistent store built on github.com/dgraph-io/badger/v4.
package formuladb

import "context"

// CrawlID identifies one stored document.
type CrawlID uint32

// CrawlIDNull is never assigned to a document.
const CrawlIDNull CrawlID = 0

// FormulaPath locates a formula occurrence inside a document.
type FormulaPath struct {
	// XMLID is the id of the math element the formula was harvested from.
	XMLID string
	// Xpath addresses the subexpression relative to that element.
	Xpath string
}

// CrawlData is a stored document.
type CrawlData struct {
	URL  string
	Data string
}

// Occurrence is one stored formula occurrence.
type Occurrence struct {
	CrawlID CrawlID
	Path    FormulaPath
}

// FormulaDB records formula occurrences.
//
// Occurrences of one formula are returned in insertion order.
type FormulaDB interface {
	// InsertFormula records that formulaID occurs at path in crawlID.
	InsertFormula(ctx context.Context, formulaID uint32, crawlID CrawlID, path FormulaPath) error
	// QueryFormula calls fn for the occurrences of formulaID, skipping the
	// first offset and stopping after limit of them (limit <= 0 means no
	// limit). An error returned by fn stops the iteration and is returned.
	QueryFormula(ctx context.Context, formulaID uint32, offset, limit int, fn func(Occurrence) error) error
	Close() error
}

// CrawlDB stores documents.
type CrawlDB interface {
	// PutData stores data under a fresh id.
	PutData(ctx context.Context, data CrawlData) (CrawlID, error)
	// GetData returns the document stored under id, or errs.ErrCrawlDataNotFound.
	GetData(ctx context.Context, id CrawlID) (CrawlData, error)
	Close() error
}
