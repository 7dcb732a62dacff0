// Package sources defines the capability interface every scraped job site
// implements, and a registry of the available sites.
package sources

import (
	"fmt"
	"html"
	"iter"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jonathan/jobstage/internal/fetch"
	"github.com/jonathan/jobstage/internal/posting"
)

// Candidate is a listing-page reference to a job, prior to detail extraction.
type Candidate struct {
	Title     string `json:"title"`
	DetailURL string `json:"detailUrl"`
	// CompanyHint is the company shown on the listing, empty when the listing has none.
	CompanyHint string `json:"companyHint,omitempty"`
}

// Source is one external job site.
type Source interface {
	// Tag identifies the site; it is stored on every posting as its source.
	Tag() string
	// Strategy selects static or rendered retrieval for this site's pages.
	Strategy() fetch.Strategy
	ListingRequest() fetch.Request
	DetailRequest(c Candidate) fetch.Request
	// ExtractCandidates yields candidates in listing order. The sequence is
	// single-pass.
	ExtractCandidates(doc *fetch.Document) iter.Seq[Candidate]
	// ExtractDetail builds a posting from a detail page or returns a
	// *posting.ExtractionError.
	ExtractDetail(doc *fetch.Document, c Candidate, now time.Time) (*posting.Posting, error)
	// ResetsDatesOnImport reports whether the site's own dates are unreliable,
	// so promotion should restart the posting window.
	ResetsDatesOnImport() bool
}

// Registry holds the known sources by tag.
type Registry struct {
	sources map[string]Source
}

// NewRegistry creates a registry of the given sources.
func NewRegistry(srcs ...Source) *Registry {
	r := &Registry{sources: make(map[string]Source, len(srcs))}
	for _, s := range srcs {
		r.sources[s.Tag()] = s
	}
	return r
}

// Get returns the source registered under tag.
func (r *Registry) Get(tag string) (Source, error) {
	s, ok := r.sources[tag]
	if !ok {
		return nil, fmt.Errorf("unknown source %q (known: %s)", tag, strings.Join(r.Tags(), ", "))
	}
	return s, nil
}

// Tags returns the registered tags in sorted order.
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.sources))
	for tag := range r.sources {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Select returns the sources for tags, or every source when tags is empty.
func (r *Registry) Select(tags []string) ([]Source, error) {
	if len(tags) == 0 {
		tags = r.Tags()
	}
	out := make([]Source, 0, len(tags))
	for _, tag := range tags {
		s, err := r.Get(tag)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// ResetDateTags returns the tags whose dates are restarted on import.
func (r *Registry) ResetDateTags() map[string]bool {
	out := make(map[string]bool)
	for tag, s := range r.sources {
		if s.ResetsDatesOnImport() {
			out[tag] = true
		}
	}
	return out
}

// AbsoluteURL resolves href against base. It returns "" when href is empty or unparsable.
func AbsoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(ref).String()
}

var (
	lineBreakTag = regexp.MustCompile(`(?i)<br\s*/?>`)
	blockEndTag  = regexp.MustCompile(`(?i)</(p|li|ul|ol|h[1-6]|div)>`)
	anyTag       = regexp.MustCompile(`<[^>]+>`)
	newlineRun   = regexp.MustCompile(`\n{2,}`)
)

// HTMLToText converts a rich-text HTML fragment to plain text, keeping line
// breaks at <br> and block boundaries.
func HTMLToText(fragment string) string {
	text := lineBreakTag.ReplaceAllString(fragment, "\n")
	text = blockEndTag.ReplaceAllString(text, "\n")
	text = anyTag.ReplaceAllString(text, "")
	text = html.UnescapeString(text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = posting.CollapseSpace(line)
	}
	text = strings.Join(lines, "\n")
	return strings.TrimSpace(newlineRun.ReplaceAllString(text, "\n"))
}
