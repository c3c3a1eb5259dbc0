package enrich

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Deadline extraction scans for ISO-8601 dates, slash dates, and
// month-name phrases. When a post carries several dates (announcement
// date, then deadline) the one appearing latest in the text wins.

var (
	isoDateRe = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})(?:[T ](\d{2}):(\d{2})(?::(\d{2}))?Z?)?`)
	slashRe   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	monthRe   = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`)
)

var monthIndex = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

type dateCandidate struct {
	at    time.Time
	index int
}

// extractDeadline returns the most likely registration deadline, or nil
// when no confident match exists. Month-name dates without a year
// inherit the post's creation year.
func extractDeadline(text string, createdAt time.Time) *time.Time {
	var candidates []dateCandidate

	for _, m := range isoDateRe.FindAllStringSubmatchIndex(text, -1) {
		sub := isoDateRe.FindStringSubmatch(text[m[0]:m[1]])
		year, _ := strconv.Atoi(sub[1])
		month, _ := strconv.Atoi(sub[2])
		day, _ := strconv.Atoi(sub[3])
		if !validDate(year, month, day) {
			continue
		}
		hour, minute, sec := 0, 0, 0
		if sub[4] != "" {
			hour, _ = strconv.Atoi(sub[4])
			minute, _ = strconv.Atoi(sub[5])
			if sub[6] != "" {
				sec, _ = strconv.Atoi(sub[6])
			}
		}
		candidates = append(candidates, dateCandidate{
			at:    time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.UTC),
			index: m[0],
		})
	}

	for _, m := range slashRe.FindAllStringSubmatchIndex(text, -1) {
		sub := slashRe.FindStringSubmatch(text[m[0]:m[1]])
		month, _ := strconv.Atoi(sub[1])
		day, _ := strconv.Atoi(sub[2])
		year, _ := strconv.Atoi(sub[3])
		if !validDate(year, month, day) {
			continue
		}
		candidates = append(candidates, dateCandidate{
			at:    time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC),
			index: m[0],
		})
	}

	for _, m := range monthRe.FindAllStringSubmatchIndex(text, -1) {
		sub := monthRe.FindStringSubmatch(text[m[0]:m[1]])
		month, ok := monthIndex[strings.ToLower(sub[1])]
		if !ok {
			continue
		}
		day, _ := strconv.Atoi(sub[2])
		year := createdAt.Year()
		if sub[3] != "" {
			year, _ = strconv.Atoi(sub[3])
		}
		if !validDate(year, int(month), day) {
			continue
		}
		candidates = append(candidates, dateCandidate{
			at:    time.Date(year, month, day, 0, 0, 0, 0, time.UTC),
			index: m[0],
		})
	}

	if len(candidates) == 0 {
		return nil
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.index > best.index {
			best = c
		}
	}
	return &best.at
}

func validDate(year, month, day int) bool {
	if year < 2000 || year > 2100 || month < 1 || month > 12 || day < 1 || day > 31 {
		return false
	}
	// Reject day overflow (e.g. Feb 30) by round-tripping.
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return d.Day() == day && int(d.Month()) == month
}
