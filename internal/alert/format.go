package alert

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/hacksignal/hacksignal/internal/model"
)

// genericTitle labels events whose text yields no recognizable name.
const genericTitle = "Hackathon event"

var titleRe = regexp.MustCompile(`(?i)\b([\w&'. -]{3,60}?(?:hackathon|buildathon|challenge|sprint|bounty|contest))\b`)

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatMessage renders the deterministic outbound message for one
// processed post. Missing fields are omitted; nothing is ever rendered
// as a placeholder.
func FormatMessage(post model.RawPost, enriched model.EnrichedEvent) string {
	parts := []string{Title(post.Text)}

	if enriched.PrizeUSD != nil {
		prize := printer.Sprintf("Prize: $%.0f", *enriched.PrizeUSD)
		if enriched.Currency != model.CurrencyUSD && enriched.Currency != model.CurrencyUnknown {
			prize += fmt.Sprintf(" (from %s)", enriched.Currency)
		}
		parts = append(parts, prize)
	}

	if enriched.DurationHours != nil {
		parts = append(parts, fmt.Sprintf("Duration: %.0fh", *enriched.DurationHours))
	}

	if enriched.Deadline != nil {
		parts = append(parts, "Deadline: "+enriched.Deadline.Format("2006-01-02"))
	}

	if post.SourceURL != "" {
		parts = append(parts, post.SourceURL)
	}

	return strings.Join(parts, " | ")
}

// Title extracts an event name from post text, falling back to a
// generic label.
func Title(text string) string {
	m := titleRe.FindStringSubmatch(text)
	if m == nil {
		return genericTitle
	}
	title := strings.TrimSpace(m[1])
	if title == "" {
		return genericTitle
	}
	return title
}
