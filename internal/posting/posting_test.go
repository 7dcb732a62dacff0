package posting

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPosting() Posting {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return Posting{
		Title:          "Junior Go Developer",
		Company:        "Acme d.o.o.",
		Location:       "Sarajevo",
		EmploymentType: FullTime,
		Level:          LevelJunior,
		ApplicationURL: "https://example.com/jobs/1",
		CreatedAt:      now,
		ExpiresAt:      now.Add(DefaultExpiryWindow),
		Source:         "dzobs",
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "Junior Dev|||Acme", Key("  Junior Dev ", "Acme "))
	p := validPosting()
	assert.Equal(t, "Junior Go Developer|||Acme d.o.o.", p.Key())
	assert.Equal(t, p.Key(), p.KeyPair().Key())
}

func TestValidate(t *testing.T) {
	p := validPosting()
	require.NoError(t, p.Validate())

	tests := []struct {
		name   string
		mutate func(*Posting)
	}{
		{"missing title", func(p *Posting) { p.Title = "" }},
		{"missing company", func(p *Posting) { p.Company = "" }},
		{"bad level", func(p *Posting) { p.Level = "senior" }},
		{"bad type", func(p *Posting) { p.EmploymentType = "contract" }},
		{"expiry before creation", func(p *Posting) { p.ExpiresAt = p.CreatedAt.Add(-time.Hour) }},
		{"relative application url", func(p *Posting) { p.ApplicationURL = "/jobs/1" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPosting()
			tt.mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestNormalize_AppliesDefaults(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	p := Posting{
		Title:        "  Junior   QA  ",
		Company:      "Big Blue Corp",
		Salary:       "Dogovorljivo",
		Requirements: []string{"Go", " Go ", "", "SQL", "go"},
		Benefits:     []string{"Remote", "Remote"},
		EmployerID:   nil,
		Featured:     true,
	}

	p.Normalize(now)

	assert.Equal(t, "Junior QA", p.Title)
	assert.Equal(t, DefaultLocation, p.Location)
	assert.Equal(t, DefaultCategory, p.Category)
	assert.Equal(t, DefaultSalary, p.Salary)
	assert.Equal(t, FullTime, p.EmploymentType)
	assert.Equal(t, LevelJunior, p.Level)
	assert.Equal(t, "/placeholder.svg?height=60&width=60&text=BB", p.CompanyLogoURL)
	assert.Equal(t, []string{"Go", "SQL", "go"}, p.Requirements)
	assert.Equal(t, []string{"Remote"}, p.Benefits)
	assert.Equal(t, now, p.CreatedAt)
	assert.Equal(t, now.Add(DefaultExpiryWindow), p.ExpiresAt)
	assert.True(t, p.IsActive)
	assert.False(t, p.Featured)
	assert.Nil(t, p.EmployerID)
}

func TestNormalize_RepairsInvertedWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	p := validPosting()
	p.CreatedAt = now
	p.ExpiresAt = now

	p.Normalize(now)

	assert.True(t, p.ExpiresAt.After(p.CreatedAt))
}

func TestDedupeStrings_NoDuplicates(t *testing.T) {
	inputs := [][]string{
		nil,
		{"a", "a", "a"},
		{"React", "react", "React "},
		{" x ", "y", "x", "y", "z"},
	}
	for _, in := range inputs {
		out := DedupeStrings(in)
		seen := map[string]bool{}
		for _, v := range out {
			assert.False(t, seen[v], "duplicate %q in %v", v, out)
			assert.Equal(t, strings.TrimSpace(v), v)
			seen[v] = true
		}
	}
}

func TestInitials(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"acme", "A"},
		{"big blue corp", "BB"},
		{"  šipad   export ", "ŠE"},
		{"", "?"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Initials(tt.in))
		})
	}
}

func TestExtractionError(t *testing.T) {
	err := MissingField("dzobs", "https://example.com/1", "company")
	assert.Contains(t, err.Error(), "company")
	assert.Contains(t, err.Error(), "https://example.com/1")
}
