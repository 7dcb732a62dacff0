package fetch

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a retrieved page: its final HTML and a parsed DOM.
type Document struct {
	URL        string
	HTML       string
	StatusCode int
	FromCache  bool

	dom *goquery.Document
}

// ParseDocument parses html retrieved from url.
func ParseDocument(url, html string) (*Document, error) {
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Document{URL: url, HTML: html, dom: dom}, nil
}

// Find runs a CSS selector against the whole document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.dom.Find(selector)
}

// Root returns the document's root selection.
func (d *Document) Root() *goquery.Selection {
	return d.dom.Selection
}

// Text returns the whitespace-normalized text of the first match of selector.
func (d *Document) Text(selector string) string {
	return CleanWhitespace(d.dom.Find(selector).First().Text())
}

// CleanWhitespace trims each line and drops empty lines.
func CleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
