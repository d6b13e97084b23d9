// Package chromedp implements the page-rendering backend with headless
// Chrome. Each Render call opens its own tab; the tab lives until the
// returned document is closed, so extraction always runs against an
// isolated session.
package chromedp

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shelfwatch/catalog-crawler/internal/crawler"
	"github.com/shelfwatch/catalog-crawler/internal/render/dom"
)

// Config controls the renderer.
type Config struct {
	// MaxSessions caps concurrently open tabs. Zero means unlimited.
	MaxSessions int
	// SettleDelay approximates a network-idle wait: how long to hold the
	// page after the body is ready before snapshotting.
	SettleDelay time.Duration
	// DomainQPS limits navigations per host. Zero disables the limiter.
	DomainQPS float64
	// UserAgents is the pool one agent per session is drawn from.
	UserAgents []string
	NavTimeout time.Duration
}

// Renderer drives a shared headless browser.
type Renderer struct {
	cfg           Config
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	sem           chan struct{}
	limiters      sync.Map
	logger        *zap.Logger
}

// New launches the browser allocator and warms up one browser context.
// A failure here is the only fatal startup condition of the crawl.
func New(cfg Config, logger *zap.Logger) (*Renderer, error) {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 500 * time.Millisecond
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 60 * time.Second
	}
	var sem chan struct{}
	if cfg.MaxSessions > 0 {
		sem = make(chan struct{}, cfg.MaxSessions)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Renderer{
		cfg:           cfg,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		sem:           sem,
		logger:        logger,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (r *Renderer) Close(context.Context) error {
	r.browserCancel()
	r.allocCancel()
	return nil
}

// Render navigates to req.URL in a fresh tab and returns a snapshot of
// the rendered DOM. The tab and its session slot are released when the
// document is closed.
func (r *Renderer) Render(ctx context.Context, req crawler.RenderRequest) (crawler.Document, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}

	if err := r.waitDomainBudget(ctx, req.URL); err != nil {
		release()
		return nil, fmt.Errorf("render rate limit: %w", err)
	}

	tabCtx, tabCancel := chromedp.NewContext(r.browserCtx)
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.cfg.NavTimeout
	}
	taskCtx, taskCancel := context.WithTimeout(tabCtx, timeout)

	var closeOnce sync.Once
	closeSession := func() error {
		closeOnce.Do(func() {
			taskCancel()
			tabCancel()
			release()
		})
		return nil
	}

	stopForward := forwardCancel(ctx, taskCancel)
	defer stopForward()

	html, err := r.snapshot(taskCtx, req)
	if err != nil {
		_ = closeSession()
		return nil, fmt.Errorf("render %s: %w", req.URL, err)
	}

	doc, err := dom.New(strings.NewReader(html), closeSession)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *Renderer) snapshot(ctx context.Context, req crawler.RenderRequest) (string, error) {
	var html string
	actions := []chromedp.Action{
		r.networkSetupAction(),
		chromedp.Navigate(req.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if req.WaitQuiescence {
		actions = append(actions, chromedp.Sleep(r.cfg.SettleDelay))
	}
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, nil
}

func (r *Renderer) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if ua := r.pickUserAgent(); ua != "" {
			if err := emulation.SetUserAgentOverride(ua).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (r *Renderer) pickUserAgent() string {
	if len(r.cfg.UserAgents) == 0 {
		return ""
	}
	return r.cfg.UserAgents[rand.IntN(len(r.cfg.UserAgents))]
}

func (r *Renderer) acquire(ctx context.Context) (func(), error) {
	if r.sem == nil {
		return func() {}, nil
	}
	select {
	case r.sem <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-r.sem }) }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire render session: %w", ctx.Err())
	}
}

func (r *Renderer) waitDomainBudget(ctx context.Context, rawURL string) error {
	if r.cfg.DomainQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return nil
	}
	limiter, _ := r.limiters.LoadOrStore(
		strings.ToLower(parsed.Host),
		rate.NewLimiter(rate.Limit(r.cfg.DomainQPS), 1),
	)
	return limiter.(*rate.Limiter).Wait(ctx)
}

// forwardCancel propagates outer-context cancellation into the chromedp
// task context and returns a stop function.
func forwardCancel(ctx context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
