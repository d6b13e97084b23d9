// Package extract turns rendered documents into item summaries and
// detail fields using configured CSS selectors. Every field extraction is
// independent: a missing field yields an empty value, never an error.
package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/shelfwatch/catalog-crawler/internal/crawler"
)

// Selectors names the DOM regions the extractors read.
type Selectors struct {
	Card        string
	Brand       string
	Name        string
	Price       string
	Link        string
	Ingredients string
	GalleryImg  string
}

// SummaryExtractor reads listing cards.
type SummaryExtractor struct {
	sel    Selectors
	base   *url.URL
	logger *zap.Logger
}

// NewSummaryExtractor builds an extractor resolving links against baseURL.
func NewSummaryExtractor(sel Selectors, baseURL string, logger *zap.Logger) (*SummaryExtractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url %q must include a host", baseURL)
	}
	return &SummaryExtractor{sel: sel, base: base, logger: logger}, nil
}

// Extract returns one summary per listing card in document order. Cards
// are processed concurrently; order is preserved by index. A card whose
// detail link cannot be resolved is dropped, since nothing downstream can
// use it; any other missing field is forwarded empty.
func (x *SummaryExtractor) Extract(doc crawler.Document) ([]crawler.ItemSummary, error) {
	cards, err := doc.QueryAll(x.sel.Card)
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}

	results := make([]crawler.ItemSummary, len(cards))
	var wg sync.WaitGroup
	for i, card := range cards {
		wg.Add(1)
		go func(i int, el crawler.Element) {
			defer wg.Done()
			results[i] = x.extractCard(el)
		}(i, card)
	}
	wg.Wait()

	summaries := make([]crawler.ItemSummary, 0, len(results))
	for i, s := range results {
		if s.DetailURL == "" {
			x.logger.Warn("listing card has no resolvable detail link",
				zap.Int("card", i), zap.String("name", s.Name))
			continue
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

func (x *SummaryExtractor) extractCard(el crawler.Element) crawler.ItemSummary {
	summary := crawler.ItemSummary{
		Brand: x.textOrEmpty(el, x.sel.Brand),
		Name:  x.textOrEmpty(el, x.sel.Name),
		Price: x.textOrEmpty(el, x.sel.Price),
	}
	href, err := el.Attr(x.sel.Link, "href")
	if err != nil {
		return summary
	}
	summary.DetailURL = x.resolve(href)
	return summary
}

func (x *SummaryExtractor) textOrEmpty(el crawler.Element, selector string) string {
	text, err := el.Text(selector)
	if err != nil {
		if !errors.Is(err, crawler.ErrNotFound) {
			x.logger.Debug("field extraction failed", zap.String("selector", selector), zap.Error(err))
		}
		return ""
	}
	return text
}

func (x *SummaryExtractor) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := x.base.ResolveReference(ref)
	if resolved.Host == "" {
		return ""
	}
	return resolved.String()
}

// DetailExtractor reads ingredients and gallery images from a detail page.
type DetailExtractor struct {
	sel    Selectors
	logger *zap.Logger
}

// NewDetailExtractor builds a detail extractor.
func NewDetailExtractor(sel Selectors, logger *zap.Logger) *DetailExtractor {
	return &DetailExtractor{sel: sel, logger: logger}
}

// Extract returns the ingredients list and gallery image URLs. An absent
// ingredients region or empty gallery is an expected gap and yields an
// empty slice.
func (x *DetailExtractor) Extract(doc crawler.Document) ([]string, []string, error) {
	ingredients, err := x.ingredients(doc)
	if err != nil {
		return nil, nil, err
	}
	images, err := x.images(doc)
	if err != nil {
		return nil, nil, err
	}
	return ingredients, images, nil
}

func (x *DetailExtractor) ingredients(doc crawler.Document) ([]string, error) {
	regions, err := doc.QueryAll(x.sel.Ingredients)
	if err != nil {
		return nil, fmt.Errorf("query ingredients: %w", err)
	}
	if len(regions) == 0 {
		return []string{}, nil
	}
	text, err := regions[0].Text("")
	if err != nil {
		if errors.Is(err, crawler.ErrNotFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("ingredients text: %w", err)
	}
	if text == "" {
		return []string{}, nil
	}
	return strings.Split(text, ", "), nil
}

func (x *DetailExtractor) images(doc crawler.Document) ([]string, error) {
	imgs, err := doc.QueryAll(x.sel.GalleryImg)
	if err != nil {
		return nil, fmt.Errorf("query gallery: %w", err)
	}
	urls := make([]string, 0, len(imgs))
	for _, img := range imgs {
		src, err := img.Attr("", "src")
		if err != nil || src == "" {
			continue
		}
		urls = append(urls, src)
	}
	return urls, nil
}
