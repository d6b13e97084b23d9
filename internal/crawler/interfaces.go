package crawler

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Document and Element queries when the
// selector matches nothing. Callers treat it as an extraction gap, not a
// fault.
var ErrNotFound = errors.New("element not found")

// RenderRequest captures everything needed to render one page.
type RenderRequest struct {
	URL string
	// WaitQuiescence asks the backend to wait for network activity to
	// settle before snapshotting the DOM.
	WaitQuiescence bool
	Timeout        time.Duration
}

// Renderer loads a URL and returns a queryable document handle. Each
// Render call opens an isolated session; the session is released when the
// returned Document is closed.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (Document, error)
	Close(ctx context.Context) error
}

// Document is a rendered page snapshot.
type Document interface {
	QueryAll(selector string) ([]Element, error)
	Close() error
}

// Element is one DOM node within a Document.
type Element interface {
	// Text returns the trimmed text of the first node matching selector,
	// or of the element itself when selector is empty.
	Text(selector string) (string, error)
	// Attr returns the named attribute of the first node matching
	// selector, or of the element itself when selector is empty.
	Attr(selector, name string) (string, error)
}

// SummaryExtractor turns a rendered listing page into item summaries in
// document order.
type SummaryExtractor interface {
	Extract(doc Document) ([]ItemSummary, error)
}

// DetailProcessor drains one page's summaries through the bounded detail
// fetch pool. It returns once every summary has reached a terminal
// outcome; the error is non-nil only on cancellation.
type DetailProcessor interface {
	Process(ctx context.Context, run CrawlRun, summaries []ItemSummary) (PageStats, error)
}

// Sink persists one assembled record. Implementations log persist faults;
// the returned error marks the item as failed but never aborts the run.
type Sink interface {
	Persist(ctx context.Context, rec ProductRecord) error
}

// RecordStore is the durable store contract.
type RecordStore interface {
	InsertRecord(ctx context.Context, rec ProductRecord) error
	// RecordsByRun returns all records for runID ordered by name ascending.
	RecordsByRun(ctx context.Context, runID string) ([]ProductRecord, error)
}

// TableWriter writes a header plus rows to a tabular file.
type TableWriter interface {
	WriteTable(path string, header []Column, rows [][]string) error
}

// Exporter writes all of a run's records to an export artifact and
// returns its path.
type Exporter interface {
	Export(ctx context.Context, run CrawlRun) (string, error)
}

// BlobStore uploads artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes run events to a message bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Pacer decides how long to hold the submission slot after the item at
// the given index has been handed to the pool.
type Pacer interface {
	Delay(index int) time.Duration
}

// Clock returns the current time (injectable for tests).
type Clock interface {
	Now() time.Time
}

// RunIDGenerator produces run identifiers.
type RunIDGenerator interface {
	NewRunID() (string, error)
}

// RecordIDGenerator produces record primary keys.
type RecordIDGenerator interface {
	NewID() (string, error)
}
