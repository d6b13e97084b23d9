// Package static implements the page-rendering backend for catalogs that
// serve complete HTML without JavaScript. It fetches with colly and
// parses into the same document handles the headless backend produces.
package static

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/shelfwatch/catalog-crawler/internal/crawler"
	"github.com/shelfwatch/catalog-crawler/internal/render/dom"
)

// Config controls the static renderer.
type Config struct {
	// AllowedHost restricts fetches to one host. Empty allows any.
	AllowedHost string
	// CacheSize bounds the per-URL document cache. Zero disables caching.
	CacheSize  int
	UserAgents []string
	NavTimeout time.Duration
	// Transport overrides the HTTP transport (tests inject a mock here).
	Transport http.RoundTripper
}

// Renderer fetches pages over plain HTTP.
type Renderer struct {
	cfg       Config
	collector *colly.Collector
	cache     *lru.Cache[string, string]
	logger    *zap.Logger
}

// New constructs a Renderer.
func New(cfg Config, logger *zap.Logger) (*Renderer, error) {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 60 * time.Second
	}
	opts := []colly.CollectorOption{colly.AllowURLRevisit()}
	if cfg.AllowedHost != "" {
		opts = append(opts, colly.AllowedDomains(cfg.AllowedHost))
	}
	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(cfg.NavTimeout)
	if cfg.Transport != nil {
		c.WithTransport(cfg.Transport)
	}

	var cache *lru.Cache[string, string]
	if cfg.CacheSize > 0 {
		var err error
		cache, err = lru.New[string, string](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create document cache: %w", err)
		}
	}

	return &Renderer{
		cfg:       cfg,
		collector: c,
		cache:     cache,
		logger:    logger,
	}, nil
}

// Close is a no-op; the static backend holds no long-lived sessions.
func (r *Renderer) Close(context.Context) error { return nil }

// Render fetches req.URL and returns a parsed snapshot. Cached documents
// are served without a network round trip.
func (r *Renderer) Render(ctx context.Context, req crawler.RenderRequest) (crawler.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("render canceled: %w", err)
	}
	if _, err := url.ParseRequestURI(req.URL); err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", req.URL, err)
	}

	if r.cache != nil {
		if html, ok := r.cache.Get(req.URL); ok {
			r.logger.Debug("document cache hit", zap.String("url", req.URL))
			return dom.Parse(html)
		}
	}

	html, err := r.fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Add(req.URL, html)
	}
	return dom.Parse(html)
}

func (r *Renderer) fetch(ctx context.Context, req crawler.RenderRequest) (string, error) {
	c := r.collector.Clone()
	if req.Timeout > 0 {
		c.SetRequestTimeout(req.Timeout)
	}

	var (
		body     []byte
		fetchErr error
	)
	c.OnRequest(func(request *colly.Request) {
		if ctx.Err() != nil {
			request.Abort()
			return
		}
		if ua := r.pickUserAgent(); ua != "" {
			request.Headers.Set("User-Agent", ua)
		}
	})
	c.OnResponse(func(resp *colly.Response) {
		body = resp.Body
	})
	c.OnError(func(resp *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(req.URL); err != nil {
		return "", fmt.Errorf("visit %s: %w", req.URL, err)
	}
	c.Wait()

	if fetchErr != nil {
		return "", fmt.Errorf("fetch %s: %w", req.URL, fetchErr)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("render canceled: %w", err)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("fetch %s: empty response body", req.URL)
	}
	return string(body), nil
}

func (r *Renderer) pickUserAgent() string {
	if len(r.cfg.UserAgents) == 0 {
		return ""
	}
	return r.cfg.UserAgents[rand.IntN(len(r.cfg.UserAgents))]
}
