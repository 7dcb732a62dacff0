package posting

import (
	"regexp"
	"strconv"
	"time"
)

var (
	datePattern      = regexp.MustCompile(`(\d{2})\.(\d{2})\.(\d{4})`)
	digitsPattern    = regexp.MustCompile(`\d+`)
	remainingPattern = regexp.MustCompile(`(?i)jo[sš]\s+(\d+)\s+dan`)
	deadlinePattern  = regexp.MustCompile(`(?i)(?:rok\s+(?:za\s+)?prijav\w*|isti[cč]e|vrijedi\s+do|traje\s+do|deadline)\s*:?\s*(\d{2}\.\d{2}\.\d{4})`)
)

// DateSignals holds the raw date texts a detail page exposes. Any field may be empty.
type DateSignals struct {
	Posted   string // publication date, e.g. "01.06.2025"
	Duration string // listing duration, e.g. "30 dana"
	Expiry   string // free text that may hold a literal deadline or "još N dana"
}

// ParseDates derives createdAt and expiresAt from the signals, trying in order:
// posted date plus duration, a literal DD.MM.YYYY deadline, a relative
// "još N dana" and finally now plus FallbackExpiryWindow.
// The returned expiresAt is always after createdAt.
func ParseDates(s DateSignals, now time.Time) (createdAt, expiresAt time.Time) {
	if posted, ok := parseDay(s.Posted); ok {
		days := 0
		if m := digitsPattern.FindString(s.Duration); m != "" {
			days, _ = strconv.Atoi(m)
		}
		if days <= 0 {
			return posted, posted.Add(DefaultExpiryWindow)
		}
		return posted, posted.AddDate(0, 0, days)
	}

	if deadline, ok := parseDay(s.Expiry); ok {
		deadline = deadline.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
		if deadline.After(now) {
			return now, deadline
		}
	}

	if m := remainingPattern.FindStringSubmatch(s.Expiry); m != nil {
		if days, err := strconv.Atoi(m[1]); err == nil && days > 0 {
			return now, now.AddDate(0, 0, days)
		}
	}

	return now, now.Add(FallbackExpiryWindow)
}

// parseDay finds the first DD.MM.YYYY date in text and returns it at UTC midnight.
func parseDay(text string) (time.Time, bool) {
	m := datePattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// FindRemaining returns the first "još N dana" phrase in text, or "".
func FindRemaining(text string) string {
	return remainingPattern.FindString(text)
}

// FindDeadline returns the DD.MM.YYYY date following a deadline label such as
// "Rok prijave:" or "Ističe", or "". Unlabelled dates are ignored.
func FindDeadline(text string) string {
	if m := deadlinePattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}
