// Package posting defines the normalized job posting model shared by the
// scraping pipeline, the staging store and moderation.
package posting

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// EmploymentType is the normalized employment type of a posting.
type EmploymentType string

const (
	FullTime   EmploymentType = "full-time"
	PartTime   EmploymentType = "part-time"
	Internship EmploymentType = "internship"
)

// Level is the seniority level of a posting.
type Level string

const (
	LevelJunior     Level = "junior"
	LevelInternship Level = "internship"
)

// Defaults applied during normalization.
const (
	DefaultCategory = "IT"
	DefaultSalary   = "negotiable"
	DefaultLocation = "Unknown"

	// DefaultExpiryWindow applies when a source gives a posting date but no duration,
	// and to postings whose window is missing or inverted.
	DefaultExpiryWindow = 30 * 24 * time.Hour
	// FallbackExpiryWindow applies when no date signal could be parsed at all.
	FallbackExpiryWindow = 7 * 24 * time.Hour
)

// KeySeparator joins title and company into a dedup key.
const KeySeparator = "|||"

// Posting is a normalized job record produced by a source's detail extractor.
type Posting struct {
	Title          string         `json:"title" validate:"required"`
	Company        string         `json:"company" validate:"required"`
	CompanyLogoURL string         `json:"companyLogoUrl,omitempty"`
	Location       string         `json:"location"`
	EmploymentType EmploymentType `json:"type" validate:"oneof=full-time part-time internship"`
	Category       string         `json:"category"`
	Level          Level          `json:"level" validate:"oneof=junior internship"`
	Description    string         `json:"description"`
	Requirements   []string       `json:"requirements"`
	Benefits       []string       `json:"benefits"`
	Salary         string         `json:"salary"`
	ApplicationURL string         `json:"applicationUrl" validate:"required,url"`
	CreatedAt      time.Time      `json:"createdAt" validate:"required"`
	ExpiresAt      time.Time      `json:"expiresAt" validate:"required,gtfield=CreatedAt"`
	IsActive       bool           `json:"isActive"`
	Featured       bool           `json:"featured"`
	Source         string         `json:"source" validate:"required"`
	EmployerID     *uuid.UUID     `json:"employerId"`
}

// Staged is a posting persisted in the moderation-pending store.
type Staged struct {
	ID uuid.UUID `json:"id"`
	Posting
}

// Job is a promoted posting visible in the live listings.
type Job struct {
	ID uuid.UUID `json:"id"`
	Posting
	UpdatedAt time.Time `json:"updatedAt"`
}

// KeyPair is the (title, company) projection used for deduplication.
type KeyPair struct {
	Title   string `json:"title"`
	Company string `json:"company"`
}

// Key returns the dedup key of the pair.
func (k KeyPair) Key() string {
	return Key(k.Title, k.Company)
}

// Key builds the dedup key for a title and company.
func Key(title, company string) string {
	return strings.TrimSpace(title) + KeySeparator + strings.TrimSpace(company)
}

// Key returns the dedup key of the posting.
func (p *Posting) Key() string {
	return Key(p.Title, p.Company)
}

// KeyPair returns the (title, company) projection of the posting.
func (p *Posting) KeyPair() KeyPair {
	return KeyPair{Title: p.Title, Company: p.Company}
}

var validate = validator.New()

// Validate checks the structural invariants of a posting.
func (p *Posting) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid posting %q: %w", p.Title, err)
	}
	return nil
}

// Normalize applies defaults and repairs invariants in place. It is called by
// the pipeline before a posting is validated and staged.
func (p *Posting) Normalize(now time.Time) {
	p.Title = CollapseSpace(p.Title)
	p.Company = CollapseSpace(p.Company)
	p.Location = CollapseSpace(p.Location)
	p.Salary = NormalizeSalary(CollapseSpace(p.Salary))
	p.Category = CollapseSpace(p.Category)
	p.Description = strings.TrimSpace(p.Description)

	if p.Location == "" {
		p.Location = DefaultLocation
	}
	if p.Category == "" {
		p.Category = DefaultCategory
	}
	if p.EmploymentType == "" {
		p.EmploymentType = FullTime
	}
	if p.Level == "" {
		p.Level = InferLevel(p.Title, p.Description)
	}
	if p.CompanyLogoURL == "" {
		p.CompanyLogoURL = Placeholder(p.Company)
	}

	p.Requirements = DedupeStrings(p.Requirements)
	p.Benefits = DedupeStrings(p.Benefits)

	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if !p.ExpiresAt.After(p.CreatedAt) {
		p.ExpiresAt = p.CreatedAt.Add(DefaultExpiryWindow)
	}

	p.IsActive = true
	p.Featured = false
	p.EmployerID = nil
}

// DedupeStrings trims entries, drops empty ones and keeps the first
// occurrence of each value. Comparison is case-sensitive.
func DedupeStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = CollapseSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// Placeholder returns the generated logo URL for a company without one.
func Placeholder(company string) string {
	return "/placeholder.svg?height=60&width=60&text=" + Initials(company)
}

// Initials returns the uppercased first letters of the first two words of name.
func Initials(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return "?"
	}
	if len(words) > 2 {
		words = words[:2]
	}
	var b strings.Builder
	for _, word := range words {
		b.WriteRune([]rune(word)[0])
	}
	return strings.ToUpper(b.String())
}

// ExtractionError reports that a single candidate could not be turned into a posting.
type ExtractionError struct {
	Source  string
	URL     string
	Field   string
	Message string
}

func (e *ExtractionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("extraction failed for %s (%s): %s: %s", e.URL, e.Source, e.Field, e.Message)
	}
	return fmt.Sprintf("extraction failed for %s (%s): %s", e.URL, e.Source, e.Message)
}

// MissingField returns an ExtractionError for a required field that no strategy produced.
func MissingField(source, url, field string) *ExtractionError {
	return &ExtractionError{Source: source, URL: url, Field: field, Message: "required field missing"}
}
