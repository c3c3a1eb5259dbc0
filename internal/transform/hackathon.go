// Package transform projects processed records into dashboard-facing
// hackathon cards.
package transform

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/hacksignal/hacksignal/internal/alert"
	"github.com/hacksignal/hacksignal/internal/config"
	"github.com/hacksignal/hacksignal/internal/model"
)

const maxTags = 5

// Card builds the dashboard projection for one processed record. text
// is the original post text when available; an empty text yields the
// generic title.
func Card(rec model.ProcessedRecord, text string, thresholds config.ThresholdsConfig, now time.Time) model.HackathonCard {
	return model.HackathonCard{
		ID:              rec.PostID,
		Title:           alert.Title(text),
		Organizer:       organizer(rec.SourceURL),
		PrizeUSD:        rec.PrizeValue,
		DurationHours:   rec.DurationHours,
		RelevanceScore:  int(rec.Score*100 + 0.5),
		Tags:            tags(rec.KeywordMatches),
		Description:     StaticDescription(rec),
		Deadline:        rec.Deadline,
		RegistrationURL: rec.SourceURL,
		IndieFit:        indieFit(rec, thresholds),
		LastUpdated:     now.UTC(),
	}
}

// organizer derives an organizer label from the registration URL host.
func organizer(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil || u.Host == "" {
		return "Unknown"
	}
	host := strings.TrimPrefix(u.Host, "www.")
	return host
}

// tags normalizes keyword matches into display tags: hashtags lose the
// marker, duplicates collapse, and the list is capped.
func tags(matches []string) []string {
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		tag := strings.ToLower(strings.TrimPrefix(m, "#"))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	sort.Strings(out)
	if len(out) > maxTags {
		out = out[:maxTags]
	}
	return out
}

// indieFit reports whether the event suits a small independent team:
// the prize sits inside the configured band and the event does not run
// longer than the duration cap. A missing prize disqualifies; a missing
// duration does not.
func indieFit(rec model.ProcessedRecord, thresholds config.ThresholdsConfig) bool {
	if rec.PrizeValue == nil {
		return false
	}
	if *rec.PrizeValue < thresholds.PrizeMin || *rec.PrizeValue > thresholds.PrizeMax {
		return false
	}
	if rec.DurationHours != nil && *rec.DurationHours > thresholds.MaxDurationHours {
		return false
	}
	return true
}
