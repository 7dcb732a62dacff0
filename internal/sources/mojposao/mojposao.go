// Package mojposao scrapes junior postings from mojposao.ba. The site is a
// GWT application, so both listing and detail pages are rendered in a
// headless browser.
package mojposao

import (
	"iter"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/jobstage/internal/fetch"
	"github.com/jonathan/jobstage/internal/posting"
	"github.com/jonathan/jobstage/internal/sources"
)

// Tag identifies postings from this site.
const Tag = "mojposao"

const (
	Origin     = "https://www.mojposao.ba"
	ListingURL = Origin + "/poslovi?keyword=junior&page=1"

	listingAnchorSelector = "div.EV5KEN-pg-w a.gwt-Anchor.gwt-HyperAnchor"
	detailReadySelector   = "h1"

	companySelector  = "div.EV5KEN-i-l"
	titleSelector    = "h1.EV5KEN-i-f.EV5KEN-i-l"
	logoSelector     = "img.EV5KEN-i-w"
	detailsSelector  = "div.EV5KEN-i-q"
	applySelector    = "a.EV5KEN-Xc-a"
	dateRowSelector  = "div.EV5KEN-i-A"
	dateLabelSel     = "span.EV5KEN-i-j"
	dateValueSel     = "span.gwt-InlineLabel"
	locationLabel    = "Lokacija:"
	requirementLabel = "Potrebne kvalifikacije"
	benefitLabel     = "Šta nudimo"
	postedLabel      = "Datum objave"
	durationLabel    = "Trajanje oglasa"
)

// Source implements sources.Source for mojposao.ba.
type Source struct{}

// New returns the mojposao source.
func New() *Source {
	return &Source{}
}

func (s *Source) Tag() string { return Tag }

func (s *Source) Strategy() fetch.Strategy { return fetch.StrategyRendered }

func (s *Source) ResetsDatesOnImport() bool { return true }

func (s *Source) ListingRequest() fetch.Request {
	return fetch.Request{URL: ListingURL, WaitFor: listingAnchorSelector}
}

func (s *Source) DetailRequest(c sources.Candidate) fetch.Request {
	return fetch.Request{URL: c.DetailURL, WaitFor: detailReadySelector, Cacheable: true}
}

// ExtractCandidates yields listing anchors whose title mentions "junior".
// The listing mixes seniority levels despite the keyword query.
func (s *Source) ExtractCandidates(doc *fetch.Document) iter.Seq[sources.Candidate] {
	return func(yield func(sources.Candidate) bool) {
		doc.Find(listingAnchorSelector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			title := posting.CollapseSpace(a.Text())
			if !posting.ContainsFold(title, "junior") {
				return true
			}
			href, _ := a.Attr("href")
			detailURL := sources.AbsoluteURL(Origin, href)
			if detailURL == "" {
				return true
			}
			return yield(sources.Candidate{Title: title, DetailURL: detailURL})
		})
	}
}

// ExtractDetail builds a posting from a rendered detail page.
func (s *Source) ExtractDetail(doc *fetch.Document, c sources.Candidate, now time.Time) (*posting.Posting, error) {
	company := doc.Text(companySelector)
	title := doc.Text(titleSelector)
	if title == "" {
		title = c.Title
	}
	if title == "" {
		return nil, posting.MissingField(Tag, c.DetailURL, "title")
	}
	if company == "" {
		return nil, posting.MissingField(Tag, c.DetailURL, "company")
	}

	p := &posting.Posting{
		Title:          title,
		Company:        company,
		CompanyLogoURL: logoURL(doc),
		Category:       posting.DefaultCategory,
		Source:         Tag,
	}

	details := doc.Find(detailsSelector).First()
	p.Location = takeLocation(details)
	if html, err := details.Html(); err == nil {
		p.Description = sources.HTMLToText(html)
	}

	p.EmploymentType = posting.InferEmploymentType(p.Description)
	p.Level = posting.InferLevel(p.Title, p.Description)
	p.Requirements = listAfterLabel(doc.Root(), requirementLabel)
	p.Benefits = listAfterLabel(doc.Root(), benefitLabel)

	p.ApplicationURL = c.DetailURL
	if href, ok := doc.Find(applySelector).First().Attr("href"); ok {
		if abs := sources.AbsoluteURL(Origin, href); strings.HasPrefix(abs, "http") {
			p.ApplicationURL = abs
		}
	}

	p.CreatedAt, p.ExpiresAt = posting.ParseDates(dateSignals(doc), now)
	return p, nil
}

func logoURL(doc *fetch.Document) string {
	src, ok := doc.Find(logoSelector).First().Attr("src")
	if !ok {
		return ""
	}
	src = strings.TrimSpace(src)
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	if strings.HasPrefix(src, "http") {
		return src
	}
	return ""
}

// takeLocation reads the "Lokacija:" line from the details block and removes
// it so it does not repeat in the description. Only the part before the
// first comma is kept.
func takeLocation(details *goquery.Selection) string {
	label := details.Find("font").FilterFunction(func(_ int, f *goquery.Selection) bool {
		return strings.Contains(f.Text(), locationLabel)
	}).First()
	if label.Length() == 0 {
		return ""
	}
	text := label.Text()
	label.Remove()

	text = strings.TrimSpace(text[strings.Index(text, locationLabel)+len(locationLabel):])
	if i := strings.Index(text, ","); i >= 0 {
		text = text[:i]
	}
	return posting.CollapseSpace(text)
}

// listAfterLabel finds the bold label, then the first list following its
// parent block, and returns the list items.
func listAfterLabel(root *goquery.Selection, label string) []string {
	bold := root.Find("b").FilterFunction(func(_ int, b *goquery.Selection) bool {
		return posting.ContainsFold(b.Text(), label)
	}).First()
	if bold.Length() == 0 {
		return nil
	}
	list := bold.Parent().NextAllFiltered("ul").First()
	var items []string
	list.Find("li").Each(func(_ int, li *goquery.Selection) {
		if text := posting.CollapseSpace(li.Text()); text != "" {
			items = append(items, text)
		}
	})
	return items
}

func dateSignals(doc *fetch.Document) posting.DateSignals {
	var signals posting.DateSignals
	doc.Find(dateRowSelector).Each(func(_ int, row *goquery.Selection) {
		label := posting.CollapseSpace(row.Find(dateLabelSel).First().Text())
		value := posting.CollapseSpace(row.Find(dateValueSel).First().Text())
		if label == "" || value == "" {
			return
		}
		switch {
		case strings.Contains(label, postedLabel):
			signals.Posted = value
		case strings.Contains(label, durationLabel):
			signals.Duration = value
		}
	})
	return signals
}
