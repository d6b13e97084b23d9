// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Site      SiteConfig     `mapstructure:"site"`
	Crawl     CrawlConfig    `mapstructure:"crawl"`
	Selectors SelectorConfig `mapstructure:"selectors"`
	Renderer  RendererConfig `mapstructure:"renderer"`
	DB        DBConfig       `mapstructure:"db"`
	Export    ExportConfig   `mapstructure:"export"`
	PubSub    PubSubConfig   `mapstructure:"pubsub"`
	Server    ServerConfig   `mapstructure:"server"`
	Logging   LoggingConfig  `mapstructure:"logging"`
}

// SiteConfig identifies the target catalog.
type SiteConfig struct {
	// Name is the constant stamped into every record's site column.
	Name string `mapstructure:"name"`
	// BaseURL resolves relative detail links.
	BaseURL string `mapstructure:"base_url"`
	// ListingURL is a template with one %d verb for the page number.
	ListingURL string `mapstructure:"listing_url"`
}

// CrawlConfig governs the pagination loop and detail pool.
type CrawlConfig struct {
	Concurrency       int `mapstructure:"concurrency"`
	DelayMinMs        int `mapstructure:"delay_min_ms"`
	DelayMaxMs        int `mapstructure:"delay_max_ms"`
	NavTimeoutSeconds int `mapstructure:"nav_timeout_seconds"`
}

// SelectorConfig names the DOM regions the extractors read.
type SelectorConfig struct {
	Card        string `mapstructure:"card"`
	Brand       string `mapstructure:"brand"`
	Name        string `mapstructure:"name"`
	Price       string `mapstructure:"price"`
	Link        string `mapstructure:"link"`
	Ingredients string `mapstructure:"ingredients"`
	GalleryImg  string `mapstructure:"gallery_img"`
}

// RendererConfig selects and tunes the page-rendering backend.
type RendererConfig struct {
	// Backend is "chromedp" or "static".
	Backend     string   `mapstructure:"backend"`
	MaxSessions int      `mapstructure:"max_sessions"`
	SettleMs    int      `mapstructure:"settle_ms"`
	DomainQPS   float64  `mapstructure:"domain_qps"`
	CacheSize   int      `mapstructure:"cache_size"`
	UserAgents  []string `mapstructure:"user_agents"`
}

// DBConfig controls access to the durable store.
type DBConfig struct {
	// Backend is "postgres" or "memory".
	Backend  string `mapstructure:"backend"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// ExportConfig sets where export artifacts go.
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
	// GCSBucket enables upload of the export file when non-empty.
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// PubSubConfig enables run-completion events when both fields are set.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig controls the debug HTTP server. Port 0 disables it.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.name", "Ulta")
	v.SetDefault("site.base_url", "https://www.ulta.com")
	v.SetDefault("site.listing_url", "https://www.ulta.com/shop/makeup/all?page=%d")
	v.SetDefault("crawl.concurrency", 10)
	v.SetDefault("crawl.delay_min_ms", 5000)
	v.SetDefault("crawl.delay_max_ms", 6000)
	v.SetDefault("crawl.nav_timeout_seconds", 60)
	v.SetDefault("selectors.card", ".ProductCard")
	v.SetDefault("selectors.brand", ".ProductCard__brand")
	v.SetDefault("selectors.name", ".ProductCard__product")
	v.SetDefault("selectors.price", ".ProductCard__price")
	v.SetDefault("selectors.link", "a")
	v.SetDefault("selectors.ingredients", `details[aria-controls="Ingredients"] .Markdown--body-2 > p:first-child`)
	v.SetDefault("selectors.gallery_img", ".ProductHero__MediaGallery img")
	v.SetDefault("renderer.backend", "chromedp")
	v.SetDefault("renderer.max_sessions", 11)
	v.SetDefault("renderer.settle_ms", 500)
	v.SetDefault("renderer.domain_qps", 0)
	v.SetDefault("renderer.cache_size", 0)
	v.SetDefault("renderer.user_agents", defaultUserAgents)
	v.SetDefault("db.backend", "postgres")
	v.SetDefault("db.table", "product")
	v.SetDefault("export.dir", ".")
	v.SetDefault("server.port", 0)
	v.SetDefault("logging.development", true)
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.36 Edge/16.16299",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/64.0.3282.140 Safari/537.36 Edge/17.17134",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/74.0.3729.169 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/75.0.3770.142 Safari/537.36",
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.Site.Name == "" {
		return fmt.Errorf("site.name is required")
	}
	if !strings.Contains(c.Site.ListingURL, "%d") {
		return fmt.Errorf("site.listing_url must contain a %%d page placeholder")
	}
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be positive")
	}
	if c.Crawl.DelayMinMs < 0 || c.Crawl.DelayMaxMs < c.Crawl.DelayMinMs {
		return fmt.Errorf("crawl delay window [%d,%d) is invalid", c.Crawl.DelayMinMs, c.Crawl.DelayMaxMs)
	}
	if c.Crawl.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("crawl.nav_timeout_seconds must be positive")
	}
	switch c.Renderer.Backend {
	case "chromedp", "static":
	default:
		return fmt.Errorf("renderer.backend must be chromedp or static, got %q", c.Renderer.Backend)
	}
	switch c.DB.Backend {
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required for the postgres backend")
		}
	case "memory":
	default:
		return fmt.Errorf("db.backend must be postgres or memory, got %q", c.DB.Backend)
	}
	if c.Selectors.Card == "" || c.Selectors.Link == "" {
		return fmt.Errorf("selectors.card and selectors.link are required")
	}
	return nil
}
