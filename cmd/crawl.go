package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcpubsub "cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shelfwatch/catalog-crawler/internal/api"
	"github.com/shelfwatch/catalog-crawler/internal/clock/system"
	"github.com/shelfwatch/catalog-crawler/internal/config"
	"github.com/shelfwatch/catalog-crawler/internal/crawler"
	"github.com/shelfwatch/catalog-crawler/internal/export"
	"github.com/shelfwatch/catalog-crawler/internal/extract"
	"github.com/shelfwatch/catalog-crawler/internal/id/runid"
	"github.com/shelfwatch/catalog-crawler/internal/id/uuid"
	"github.com/shelfwatch/catalog-crawler/internal/logging"
	"github.com/shelfwatch/catalog-crawler/internal/pacing"
	publisherPubsub "github.com/shelfwatch/catalog-crawler/internal/publisher/pubsub"
	rendererChromedp "github.com/shelfwatch/catalog-crawler/internal/render/chromedp"
	rendererStatic "github.com/shelfwatch/catalog-crawler/internal/render/static"
	"github.com/shelfwatch/catalog-crawler/internal/scheduler"
	"github.com/shelfwatch/catalog-crawler/internal/sink"
	"github.com/shelfwatch/catalog-crawler/internal/storage/gcs"
	storeMemory "github.com/shelfwatch/catalog-crawler/internal/store/memory"
	storePostgres "github.com/shelfwatch/catalog-crawler/internal/store/postgres"
)

// newCrawlCmd creates the 'crawl' subcommand, which runs one complete
// crawl: pagination, detail pass and export.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl of the configured catalog",
		RunE:  runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	zap.ReplaceGlobals(logger)

	renderer, err := buildRenderer(cfg, logger)
	if err != nil {
		return fmt.Errorf("init renderer: %w", err)
	}
	defer func() {
		if cerr := renderer.Close(context.Background()); cerr != nil {
			logger.Warn("close renderer", zap.Error(cerr))
		}
	}()

	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer closeStore()

	blobs, events, closeCloud, err := buildCloud(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init cloud clients: %w", err)
	}
	defer closeCloud()

	selectors := extract.Selectors{
		Card:        cfg.Selectors.Card,
		Brand:       cfg.Selectors.Brand,
		Name:        cfg.Selectors.Name,
		Price:       cfg.Selectors.Price,
		Link:        cfg.Selectors.Link,
		Ingredients: cfg.Selectors.Ingredients,
		GalleryImg:  cfg.Selectors.GalleryImg,
	}
	summaries, err := extract.NewSummaryExtractor(selectors, cfg.Site.BaseURL, logger)
	if err != nil {
		return fmt.Errorf("init summary extractor: %w", err)
	}
	details := extract.NewDetailExtractor(selectors, logger)

	navTimeout := time.Duration(cfg.Crawl.NavTimeoutSeconds) * time.Second
	pool := scheduler.New(
		scheduler.Config{
			Site:        cfg.Site.Name,
			Concurrency: cfg.Crawl.Concurrency,
			NavTimeout:  navTimeout,
		},
		renderer,
		details,
		sink.New(store, logger),
		pacing.NewUniform(
			time.Duration(cfg.Crawl.DelayMinMs)*time.Millisecond,
			time.Duration(cfg.Crawl.DelayMaxMs)*time.Millisecond,
		),
		uuid.NewGenerator(),
		logger,
	)

	clock := system.New()
	exporter := export.New(
		export.Config{Dir: cfg.Export.Dir, Topic: cfg.PubSub.Topic},
		store,
		export.NewCSVWriter(),
		blobs,
		events,
		clock,
		logger,
	)

	engine := crawler.NewEngine(
		crawler.EngineConfig{ListingURL: cfg.Site.ListingURL, NavTimeout: navTimeout},
		renderer,
		summaries,
		pool,
		exporter,
		runid.New(),
		clock,
		logger,
	)

	startDebugServer(cfg, logger)

	if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawl: %w", err)
	}
	logger.Info("crawl command finished")
	return nil
}

func buildRenderer(cfg config.Config, logger *zap.Logger) (crawler.Renderer, error) {
	navTimeout := time.Duration(cfg.Crawl.NavTimeoutSeconds) * time.Second
	switch cfg.Renderer.Backend {
	case "static":
		return rendererStatic.New(rendererStatic.Config{
			CacheSize:  cfg.Renderer.CacheSize,
			UserAgents: cfg.Renderer.UserAgents,
			NavTimeout: navTimeout,
		}, logger)
	default:
		return rendererChromedp.New(rendererChromedp.Config{
			MaxSessions: cfg.Renderer.MaxSessions,
			SettleDelay: time.Duration(cfg.Renderer.SettleMs) * time.Millisecond,
			DomainQPS:   cfg.Renderer.DomainQPS,
			UserAgents:  cfg.Renderer.UserAgents,
			NavTimeout:  navTimeout,
		}, logger)
	}
}

func buildStore(ctx context.Context, cfg config.Config) (crawler.RecordStore, func(), error) {
	if cfg.DB.Backend == "memory" {
		return storeMemory.NewStore(), func() {}, nil
	}
	store, err := storePostgres.NewStore(ctx, storePostgres.Config{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// buildCloud initializes the optional export upload and run-event
// clients. Both are nil when unconfigured.
func buildCloud(ctx context.Context, cfg config.Config) (crawler.BlobStore, crawler.Publisher, func(), error) {
	var (
		blobs   crawler.BlobStore
		events  crawler.Publisher
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.Export.GCSBucket != "" {
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("gcs client: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		blobs, err = gcs.New(client, gcs.Config{Bucket: cfg.Export.GCSBucket})
		if err != nil {
			closeAll()
			return nil, nil, nil, err
		}
	}

	if cfg.PubSub.ProjectID != "" && cfg.PubSub.Topic != "" {
		client, err := gcpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("pubsub client: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		events = publisherPubsub.New(client)
	}

	return blobs, events, closeAll, nil
}

// startDebugServer serves health and metrics endpoints when enabled. It
// is best-effort; a bind failure is logged, never fatal.
func startDebugServer(cfg config.Config, logger *zap.Logger) {
	if cfg.Server.Port <= 0 {
		return
	}
	srv := api.NewServer(logger)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logger.Info("debug server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
			logger.Warn("debug server stopped", zap.Error(err))
		}
	}()
}
