package crawler

import "time"

// CrawlRun identifies a single crawl invocation. It is created once at
// startup and stamped into every record and the export artifact.
type CrawlRun struct {
	ID        string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
}

// ItemSummary is the lightweight per-card result of a listing page.
// Brand, name and price may be empty when extraction misses a field;
// DetailURL is always a resolved, absolute link.
type ItemSummary struct {
	Brand     string `json:"brand"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	DetailURL string `json:"detail_url"`
}

// ProductRecord is the fully assembled row persisted for one item.
// ScrapedAt carries the run timestamp, not a per-record sample.
type ProductRecord struct {
	ID          string    `json:"id"`
	Site        string    `json:"site"`
	Name        string    `json:"name"`
	Brand       string    `json:"brand"`
	Price       string    `json:"price"`
	Ingredients []string  `json:"ingredients"`
	ImageURLs   []string  `json:"image_urls"`
	RunID       string    `json:"run_id"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

// Cursor tracks pagination progress. It is owned by the engine's control
// goroutine and advances monotonically until HasMore turns false.
type Cursor struct {
	Page    int
	HasMore bool
}

// PageStats summarizes the terminal outcomes of one page's detail pass.
type PageStats struct {
	Attempted int
	Persisted int
	Failed    int
}

// Add accumulates another page's stats.
func (s *PageStats) Add(other PageStats) {
	s.Attempted += other.Attempted
	s.Persisted += other.Persisted
	s.Failed += other.Failed
}

// Column describes one exported table column.
type Column struct {
	ID    string
	Title string
}
