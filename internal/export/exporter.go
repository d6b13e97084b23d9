// Package export writes a run's persisted records to a CSV artifact and
// optionally ships it to blob storage and announces completion.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shelfwatch/catalog-crawler/internal/crawler"
)

var columns = []crawler.Column{
	{ID: "name", Title: "Name"},
	{ID: "brand", Title: "Brand"},
	{ID: "price", Title: "Price"},
	{ID: "ingredients", Title: "Ingredients"},
	{ID: "image_urls", Title: "Image URLs"},
}

// Config controls Exporter behavior. Blobs and Events are optional; when
// unset the corresponding step is skipped.
type Config struct {
	Dir   string
	Topic string
}

// Exporter reads back a run's records and writes the export file.
type Exporter struct {
	cfg    Config
	store  crawler.RecordStore
	writer crawler.TableWriter
	blobs  crawler.BlobStore
	events crawler.Publisher
	clock  crawler.Clock
	logger *zap.Logger
}

// New constructs an Exporter. blobs and events may be nil.
func New(
	cfg Config,
	store crawler.RecordStore,
	writer crawler.TableWriter,
	blobs crawler.BlobStore,
	events crawler.Publisher,
	clock crawler.Clock,
	logger *zap.Logger,
) *Exporter {
	return &Exporter{
		cfg:    cfg,
		store:  store,
		writer: writer,
		blobs:  blobs,
		events: events,
		clock:  clock,
		logger: logger,
	}
}

// Export queries all records for the run and writes them, ordered by name
// ascending, to products-<runid>.csv under the configured directory.
// Upload and event publication failures are logged but do not fail the
// export itself.
func (e *Exporter) Export(ctx context.Context, run crawler.CrawlRun) (string, error) {
	records, err := e.store.RecordsByRun(ctx, run.ID)
	if err != nil {
		return "", fmt.Errorf("query run records: %w", err)
	}

	rows := make([][]string, len(records))
	for i, rec := range records {
		rows[i] = []string{
			rec.Name,
			rec.Brand,
			rec.Price,
			strings.Join(rec.Ingredients, ","),
			strings.Join(rec.ImageURLs, ","),
		}
	}

	path := filepath.Join(e.cfg.Dir, fmt.Sprintf("products-%s.csv", run.ID))
	if err := e.writer.WriteTable(path, columns, rows); err != nil {
		return "", fmt.Errorf("write export table: %w", err)
	}
	crawler.ExportedRows.Add(float64(len(rows)))
	e.logger.Info("export file created",
		zap.String("run_id", run.ID),
		zap.String("path", path),
		zap.Int("rows", len(rows)),
	)

	uri := e.upload(ctx, run, path)
	e.announce(ctx, run, path, uri, len(rows))
	return path, nil
}

func (e *Exporter) upload(ctx context.Context, run crawler.CrawlRun, path string) string {
	if e.blobs == nil {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		e.logger.Warn("read export for upload", zap.String("path", path), zap.Error(err))
		return ""
	}
	uri, err := e.blobs.PutObject(ctx, filepath.Base(path), "text/csv", data)
	if err != nil {
		e.logger.Warn("upload export", zap.String("run_id", run.ID), zap.Error(err))
		return ""
	}
	e.logger.Info("export uploaded", zap.String("run_id", run.ID), zap.String("uri", uri))
	return uri
}

func (e *Exporter) announce(ctx context.Context, run crawler.CrawlRun, path, uri string, rows int) {
	if e.events == nil || e.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"run_id":      run.ID,
		"started_at":  run.StartedAt.Format(time.RFC3339),
		"finished_at": e.clock.Now().Format(time.RFC3339),
		"export_path": path,
		"export_uri":  uri,
		"rows":        rows,
	}
	if _, err := e.events.Publish(ctx, e.cfg.Topic, payload); err != nil {
		e.logger.Warn("publish run event", zap.String("run_id", run.ID), zap.Error(err))
		return
	}
	e.logger.Info("run event published", zap.String("run_id", run.ID))
}
