// Package dedup decides whether a candidate is already known, either staged
// for moderation or already imported into the live listings.
package dedup

import (
	"strings"
	"sync"

	"github.com/jonathan/jobstage/internal/posting"
)

// Keys is the run-scoped dedup state. It is loaded once per run from the
// stores and grows as the run accumulates postings. Safe for concurrent use.
type Keys struct {
	mu              sync.RWMutex
	stagedTitles    map[string]struct{}
	stagedCompanies map[string]struct{}
	staged          map[string]struct{}
	imported        map[string]struct{}
}

// NewKeys builds the key sets from the staged and imported projections.
func NewKeys(staged, imported []posting.KeyPair) *Keys {
	k := &Keys{
		stagedTitles:    make(map[string]struct{}, len(staged)),
		stagedCompanies: make(map[string]struct{}, len(staged)),
		staged:          make(map[string]struct{}, len(staged)),
		imported:        make(map[string]struct{}, len(imported)),
	}
	for _, pair := range staged {
		k.addStaged(pair.Title, pair.Company)
	}
	for _, pair := range imported {
		k.imported[pair.Key()] = struct{}{}
	}
	return k
}

func (k *Keys) addStaged(title, company string) {
	title, company = strings.TrimSpace(title), strings.TrimSpace(company)
	k.stagedTitles[title] = struct{}{}
	k.stagedCompanies[company] = struct{}{}
	k.staged[posting.Key(title, company)] = struct{}{}
}

// ShouldSkip is the listing-stage check. The candidate is skipped when its
// title and company are both among the staged titles and companies, or when
// the pair is already imported. Listings often carry no company; an empty
// company is checked on the staged title alone.
func (k *Keys) ShouldSkip(title, company string) bool {
	title, company = strings.TrimSpace(title), strings.TrimSpace(company)

	k.mu.RLock()
	defer k.mu.RUnlock()

	_, titleStaged := k.stagedTitles[title]
	if company == "" {
		return titleStaged
	}
	_, companyStaged := k.stagedCompanies[company]
	if titleStaged && companyStaged {
		return true
	}
	_, imported := k.imported[posting.Key(title, company)]
	return imported
}

// Known is the authoritative post-extraction check on the exact pair.
func (k *Keys) Known(title, company string) bool {
	key := posting.Key(title, company)

	k.mu.RLock()
	defer k.mu.RUnlock()

	if _, ok := k.staged[key]; ok {
		return true
	}
	_, ok := k.imported[key]
	return ok
}

// Add records a posting accumulated in the current run, so later
// candidates with the same pair are skipped.
func (k *Keys) Add(title, company string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.addStaged(title, company)
}

// ShouldSkip reports whether a candidate should be skipped given the key sets.
func ShouldSkip(title, company string, keys *Keys) bool {
	if keys == nil {
		return false
	}
	return keys.ShouldSkip(title, company)
}
