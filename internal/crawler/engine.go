package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrNoRecords indicates a run finished without persisting a single
// record and without producing an export artifact.
var ErrNoRecords = errors.New("run produced no records")

// EngineConfig holds the settings the pagination loop needs.
type EngineConfig struct {
	// ListingURL is a template with one %d verb for the page number.
	ListingURL string
	NavTimeout time.Duration
}

// Engine drives one crawl run: pagination, the per-page detail pass and
// the final export. It owns the pagination cursor; everything else is
// delegated through the package interfaces.
type Engine struct {
	cfg      EngineConfig
	renderer Renderer
	listing  SummaryExtractor
	details  DetailProcessor
	exporter Exporter
	runIDs   RunIDGenerator
	clock    Clock
	logger   *zap.Logger
}

// NewEngine constructs an Engine.
func NewEngine(
	cfg EngineConfig,
	renderer Renderer,
	listing SummaryExtractor,
	details DetailProcessor,
	exporter Exporter,
	runIDs RunIDGenerator,
	clock Clock,
	logger *zap.Logger,
) *Engine {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 60 * time.Second
	}
	return &Engine{
		cfg:      cfg,
		renderer: renderer,
		listing:  listing,
		details:  details,
		exporter: exporter,
		runIDs:   runIDs,
		clock:    clock,
		logger:   logger,
	}
}

// Run executes one complete crawl and returns once the export attempt has
// finished. Listing faults end pagination but still reach export; only
// cancellation or a completely empty run surfaces as an error.
func (e *Engine) Run(ctx context.Context) error {
	id, err := e.runIDs.NewRunID()
	if err != nil {
		return fmt.Errorf("new run id: %w", err)
	}
	run := CrawlRun{ID: id, StartedAt: e.clock.Now()}
	e.logger.Info("crawl run started", zap.String("run_id", run.ID))

	start := time.Now()
	total := PageStats{}
	cursor := Cursor{Page: 1, HasMore: true}

	for cursor.HasMore {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("crawl canceled: %w", err)
		}
		stats, more, err := e.crawlPage(ctx, run, cursor.Page)
		total.Add(stats)
		if err != nil {
			return err
		}
		cursor.HasMore = more
		cursor.Page++
	}

	e.logger.Info("pagination finished",
		zap.String("run_id", run.ID),
		zap.Int("pages", cursor.Page-1),
		zap.Int("attempted", total.Attempted),
		zap.Int("persisted", total.Persisted),
		zap.Int("failed", total.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)

	path, exportErr := e.exporter.Export(ctx, run)
	if exportErr != nil {
		e.logger.Error("export failed", zap.String("run_id", run.ID), zap.Error(exportErr))
	} else {
		e.logger.Info("export written", zap.String("run_id", run.ID), zap.String("path", path))
	}

	if total.Persisted == 0 && exportErr != nil {
		return ErrNoRecords
	}
	return nil
}

// crawlPage renders one listing page and drains its detail pass. The
// returned bool reports whether pagination should continue; a listing
// fetch fault or an empty page are both terminal for the run.
func (e *Engine) crawlPage(ctx context.Context, run CrawlRun, page int) (PageStats, bool, error) {
	pageStart := time.Now()

	doc, err := e.renderer.Render(ctx, RenderRequest{
		URL:            fmt.Sprintf(e.cfg.ListingURL, page),
		WaitQuiescence: true,
		Timeout:        e.cfg.NavTimeout,
	})
	if err != nil {
		e.logger.Error("listing fetch failed",
			zap.String("run_id", run.ID), zap.Int("page", page), zap.Error(err))
		return PageStats{}, false, nil
	}
	ListingPagesFetched.Inc()

	summaries, err := e.listing.Extract(doc)
	if closeErr := doc.Close(); closeErr != nil {
		e.logger.Warn("close listing session", zap.Int("page", page), zap.Error(closeErr))
	}
	if err != nil {
		e.logger.Error("listing extraction failed",
			zap.String("run_id", run.ID), zap.Int("page", page), zap.Error(err))
		return PageStats{}, false, nil
	}
	if len(summaries) == 0 {
		e.logger.Info("empty listing page, pagination done",
			zap.String("run_id", run.ID), zap.Int("page", page))
		return PageStats{}, false, nil
	}
	SummariesExtracted.Add(float64(len(summaries)))

	stats, err := e.details.Process(ctx, run, summaries)
	if err != nil {
		return stats, false, fmt.Errorf("detail pass page %d: %w", page, err)
	}

	e.logger.Info("page complete",
		zap.String("run_id", run.ID),
		zap.Int("page", page),
		zap.Int("items", len(summaries)),
		zap.Int("persisted", stats.Persisted),
		zap.Int("failed", stats.Failed),
		zap.Duration("elapsed", time.Since(pageStart)),
	)
	return stats, true, nil
}
