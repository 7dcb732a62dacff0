package posting

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	spaceRun   = regexp.MustCompile(`\s+`)
	blankLines = regexp.MustCompile(`\n\s*\n+`)
)

// CollapseSpace replaces every run of whitespace with a single space and trims the result.
func CollapseSpace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// CleanMultiline trims every line, drops blank lines inside paragraphs and
// collapses runs of blank lines into one paragraph break.
func CleanMultiline(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = CollapseSpace(line)
	}
	out := strings.Join(lines, "\n")
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// Fold lowercases s and strips diacritics so that "Šta" matches "sta".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	// đ has no decomposition
	folded = strings.NewReplacer("đ", "dj", "Đ", "Dj").Replace(folded)
	return strings.ToLower(folded)
}

// ContainsFold reports whether substr is within s, ignoring case and diacritics.
func ContainsFold(s, substr string) bool {
	return strings.Contains(Fold(s), Fold(substr))
}

// ContainsAnyFold reports whether any of the substrings is within s.
func ContainsAnyFold(s string, substrs ...string) bool {
	folded := Fold(s)
	for _, sub := range substrs {
		if strings.Contains(folded, Fold(sub)) {
			return true
		}
	}
	return false
}
