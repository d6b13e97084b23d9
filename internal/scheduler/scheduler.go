// Package scheduler implements the bounded-concurrency detail fetch pool.
// Submissions are paced by a pluggable delay policy; a counting semaphore
// caps the number of detail sessions in flight.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/shelfwatch/catalog-crawler/internal/crawler"
)

// DetailExtractor reads ingredients and gallery image URLs from a
// rendered detail page.
type DetailExtractor interface {
	Extract(doc crawler.Document) (ingredients []string, images []string, err error)
}

// Config controls Scheduler behavior.
type Config struct {
	Site        string
	Concurrency int
	NavTimeout  time.Duration
}

// Scheduler drains one page's summaries at a time. Process blocks until
// every submitted item has reached a terminal outcome, giving the
// paginator its drain barrier between pages.
type Scheduler struct {
	cfg       Config
	renderer  crawler.Renderer
	extractor DetailExtractor
	sink      crawler.Sink
	pacer     crawler.Pacer
	ids       crawler.RecordIDGenerator
	sem       chan struct{}
	logger    *zap.Logger
}

// New constructs a Scheduler.
func New(
	cfg Config,
	renderer crawler.Renderer,
	extractor DetailExtractor,
	sink crawler.Sink,
	pacer crawler.Pacer,
	ids crawler.RecordIDGenerator,
	logger *zap.Logger,
) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 60 * time.Second
	}
	return &Scheduler{
		cfg:       cfg,
		renderer:  renderer,
		extractor: extractor,
		sink:      sink,
		pacer:     pacer,
		ids:       ids,
		sem:       make(chan struct{}, cfg.Concurrency),
		logger:    logger,
	}
}

// Process submits every summary to the pool in document order and waits
// for all of them to finish. The pacing delay holds the submission slot
// between successive items; it is skipped after the last item of the
// page. The error is non-nil only when the context is canceled.
func (s *Scheduler) Process(
	ctx context.Context,
	run crawler.CrawlRun,
	summaries []crawler.ItemSummary,
) (crawler.PageStats, error) {
	var (
		wg        sync.WaitGroup
		persisted atomic.Int64
		failed    atomic.Int64
	)
	stats := crawler.PageStats{}

	finish := func() crawler.PageStats {
		wg.Wait()
		stats.Persisted = int(persisted.Load())
		stats.Failed = int(failed.Load())
		return stats
	}

	for i, item := range summaries {
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return finish(), fmt.Errorf("detail admission canceled: %w", ctx.Err())
		}

		stats.Attempted++
		wg.Add(1)
		go func(item crawler.ItemSummary) {
			defer wg.Done()
			defer func() { <-s.sem }()
			if err := s.processItem(ctx, run, item); err != nil {
				failed.Add(1)
				s.logger.Warn("item failed",
					zap.String("run_id", run.ID),
					zap.String("name", item.Name),
					zap.String("url", item.DetailURL),
					zap.Error(err),
				)
				return
			}
			persisted.Add(1)
		}(item)

		if i < len(summaries)-1 {
			if err := s.pause(ctx, i); err != nil {
				return finish(), err
			}
		}
	}
	return finish(), nil
}

// processItem is the unit of work for one summary. Any failure is
// terminal for this item only; the session is released on every path.
func (s *Scheduler) processItem(ctx context.Context, run crawler.CrawlRun, item crawler.ItemSummary) error {
	doc, err := s.renderer.Render(ctx, crawler.RenderRequest{
		URL:            item.DetailURL,
		WaitQuiescence: true,
		Timeout:        s.cfg.NavTimeout,
	})
	if err != nil {
		crawler.DetailFetchFailures.Inc()
		return fmt.Errorf("detail fetch: %w", err)
	}
	defer func() {
		if cerr := doc.Close(); cerr != nil {
			s.logger.Warn("close detail session",
				zap.String("url", item.DetailURL), zap.Error(cerr))
		}
	}()

	ingredients, images, err := s.extractor.Extract(doc)
	if err != nil {
		crawler.DetailFetchFailures.Inc()
		return fmt.Errorf("detail extraction: %w", err)
	}
	if len(ingredients) == 0 {
		s.logger.Info("no ingredients found", zap.String("name", item.Name))
	}

	id, err := s.ids.NewID()
	if err != nil {
		return fmt.Errorf("record id: %w", err)
	}
	record := crawler.ProductRecord{
		ID:          id,
		Site:        s.cfg.Site,
		Name:        item.Name,
		Brand:       item.Brand,
		Price:       item.Price,
		Ingredients: ingredients,
		ImageURLs:   images,
		RunID:       run.ID,
		ScrapedAt:   run.StartedAt,
	}
	if err := s.sink.Persist(ctx, record); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	s.logger.Debug("item scraped",
		zap.String("run_id", run.ID), zap.String("name", item.Name))
	return nil
}

func (s *Scheduler) pause(ctx context.Context, index int) error {
	delay := s.pacer.Delay(index)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pacing wait canceled: %w", ctx.Err())
	}
}
