// Package dom implements the crawler document contract over a parsed
// goquery snapshot. Both rendering backends hand their HTML here, so
// selector semantics are identical regardless of how a page was fetched.
package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/shelfwatch/catalog-crawler/internal/crawler"
)

// Document wraps a parsed page. The optional close hook releases the
// rendering session the snapshot came from.
type Document struct {
	doc   *goquery.Document
	close func() error
}

// New parses HTML from r and attaches the session close hook.
func New(r io.Reader, close func() error) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		if close != nil {
			_ = close()
		}
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Document{doc: doc, close: close}, nil
}

// Parse builds a Document from an HTML string with no backing session.
func Parse(html string) (*Document, error) {
	return New(strings.NewReader(html), nil)
}

// QueryAll returns all nodes matching selector in document order.
func (d *Document) QueryAll(selector string) ([]crawler.Element, error) {
	sel := d.doc.Find(selector)
	out := make([]crawler.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{sel: s})
	})
	return out, nil
}

// Close releases the backing session, if any.
func (d *Document) Close() error {
	if d.close == nil {
		return nil
	}
	return d.close()
}

// Element is one node of a Document.
type Element struct {
	sel *goquery.Selection
}

// Text returns the trimmed text of the first match of selector, or of the
// element itself when selector is empty.
func (e *Element) Text(selector string) (string, error) {
	target, err := e.resolve(selector)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(target.Text()), nil
}

// Attr returns the named attribute of the first match of selector, or of
// the element itself when selector is empty.
func (e *Element) Attr(selector, name string) (string, error) {
	target, err := e.resolve(selector)
	if err != nil {
		return "", err
	}
	value, ok := target.Attr(name)
	if !ok {
		return "", fmt.Errorf("attribute %q: %w", name, crawler.ErrNotFound)
	}
	return value, nil
}

func (e *Element) resolve(selector string) (*goquery.Selection, error) {
	target := e.sel
	if selector != "" {
		target = e.sel.Find(selector).First()
	}
	if target.Length() == 0 {
		return nil, fmt.Errorf("selector %q: %w", selector, crawler.ErrNotFound)
	}
	return target, nil
}
