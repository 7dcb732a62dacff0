// Package dzobs scrapes junior postings from dzobs.com. Pages are server
// rendered Next.js documents; the detail page embeds the job as JSON.
package dzobs

import (
	"iter"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/jobstage/internal/fetch"
	"github.com/jonathan/jobstage/internal/posting"
	"github.com/jonathan/jobstage/internal/sources"
)

// Tag identifies postings from this site.
const Tag = "dzobs"

const (
	Origin     = "https://www.dzobs.com"
	ListingURL = Origin + "/iskustvo/junior/1"

	listingLinkSelector    = "a.standard"
	listingTitleSelector   = "h3.font-medium"
	listingCompanySelector = ".text-gray-dark.font-light"

	salarySelector       = ".salary, .plata, .compensation, [class*='salary']"
	logoSelector         = "img.w-16.block.m-auto.rounded-full"
	fallbackDescSelector = "div.pt-16"
	draftSpanSelector    = `span[data-text="true"]`
)

var (
	workModePattern  = regexp.MustCompile(`(?i)remote|onsite|hybrid`)
	requirementSplit = regexp.MustCompile(`[,|\n]`)
)

// Source implements sources.Source for dzobs.com.
type Source struct{}

// New returns the dzobs source.
func New() *Source {
	return &Source{}
}

func (s *Source) Tag() string { return Tag }

func (s *Source) Strategy() fetch.Strategy { return fetch.StrategyStatic }

func (s *Source) ResetsDatesOnImport() bool { return false }

// ListingRequest targets the junior experience filter, so candidates need no title filter.
func (s *Source) ListingRequest() fetch.Request {
	return fetch.Request{URL: ListingURL}
}

func (s *Source) DetailRequest(c sources.Candidate) fetch.Request {
	return fetch.Request{URL: c.DetailURL, Cacheable: true}
}

// ExtractCandidates yields every job card on the listing page.
func (s *Source) ExtractCandidates(doc *fetch.Document) iter.Seq[sources.Candidate] {
	return func(yield func(sources.Candidate) bool) {
		doc.Find(listingLinkSelector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			detailURL := sources.AbsoluteURL(Origin, href)
			if detailURL == "" {
				return true
			}
			return yield(sources.Candidate{
				Title:       posting.CollapseSpace(a.Find(listingTitleSelector).Text()),
				CompanyHint: posting.CollapseSpace(a.Find(listingCompanySelector).Text()),
				DetailURL:   detailURL,
			})
		})
	}
}

// ExtractDetail builds a posting from a detail page. The embedded job JSON
// is preferred; DOM heuristics fill whatever it does not provide.
func (s *Source) ExtractDetail(doc *fetch.Document, c sources.Candidate, now time.Time) (*posting.Posting, error) {
	heading := doc.Find("h1").First()

	title := posting.CollapseSpace(heading.Text())
	if title == "" {
		title = c.Title
	}
	company := doc.Text("h2")
	if company == "" {
		company = c.CompanyHint
	}
	if title == "" {
		return nil, posting.MissingField(Tag, c.DetailURL, "title")
	}
	if company == "" {
		return nil, posting.MissingField(Tag, c.DetailURL, "company")
	}

	meta := posting.CollapseSpace(heading.Next().Text())
	mode, location := splitMeta(meta)

	p := &posting.Posting{
		Title:          title,
		Company:        company,
		Location:       location,
		EmploymentType: posting.InferEmploymentType(title + " " + meta),
		Category:       posting.DefaultCategory,
		Salary:         doc.Text(salarySelector),
		ApplicationURL: c.DetailURL,
		Source:         Tag,
	}
	if posting.ContainsFold(mode, "remote") {
		if p.Location == "" {
			p.Location = "Remote"
		} else {
			p.Location += " (Remote)"
		}
	}

	if job, ok := embeddedJob(doc); ok {
		p.Description = job.description()
		p.Requirements = job.tags()
		if cta := job.applicationURL(); cta != "" {
			p.ApplicationURL = cta
		}
	}
	if p.Description == "" {
		p.Description = fallbackDescription(doc)
	}
	if len(p.Requirements) == 0 {
		p.Requirements = fallbackRequirements(heading)
	}
	p.Requirements = posting.DedupeStrings(p.Requirements)

	p.Level = posting.InferLevel(p.Title, p.Description)
	p.CompanyLogoURL = logoURL(doc)

	text := doc.Root().Text()
	if expiry := strings.TrimSpace(posting.FindDeadline(text) + " " + posting.FindRemaining(text)); expiry != "" {
		p.CreatedAt, p.ExpiresAt = posting.ParseDates(posting.DateSignals{Expiry: expiry}, now)
	} else {
		p.CreatedAt, p.ExpiresAt = now, now.Add(posting.DefaultExpiryWindow)
	}
	return p, nil
}

// splitMeta separates "Remote | Sarajevo" into work mode and location. A
// single value is a work mode only when it names one.
func splitMeta(meta string) (mode, location string) {
	if meta == "" {
		return "", ""
	}
	if before, after, ok := strings.Cut(meta, "|"); ok {
		return strings.TrimSpace(before), strings.TrimSpace(strings.Split(after, "|")[0])
	}
	if workModePattern.MatchString(meta) {
		return meta, ""
	}
	return "", meta
}

func logoURL(doc *fetch.Document) string {
	src, _ := doc.Find(logoSelector).First().Attr("src")
	if strings.HasPrefix(src, "http") {
		return src
	}
	return ""
}

func fallbackDescription(doc *fetch.Document) string {
	var parts []string
	doc.Find(fallbackDescSelector).First().Find(draftSpanSelector).Each(func(_ int, span *goquery.Selection) {
		if text := strings.TrimSpace(span.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, " ")
}

// fallbackRequirements reads the block after the metadata line: its tag
// elements if it has any, otherwise its text split on separators. A single
// space-separated entry is split into words.
func fallbackRequirements(heading *goquery.Selection) []string {
	node := heading.Next().Next()
	if node.Length() == 0 {
		return nil
	}

	var reqs []string
	node.Find("span, a, div").Each(func(_ int, el *goquery.Selection) {
		if text := strings.TrimSpace(el.Text()); text != "" {
			reqs = append(reqs, text)
		}
	})
	if len(reqs) == 0 {
		for _, part := range requirementSplit.Split(node.Text(), -1) {
			if part = strings.TrimSpace(part); part != "" {
				reqs = append(reqs, part)
			}
		}
	}
	if len(reqs) == 1 && strings.Contains(reqs[0], " ") {
		reqs = strings.Fields(reqs[0])
	}
	return posting.DedupeStrings(reqs)
}
