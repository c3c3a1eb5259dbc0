package enrich

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hacksignal/hacksignal/internal/model"
)

// prizePattern is one entry in the ordered prize-extraction cascade.
// Patterns are tried in slice order and the first match wins; multiple
// amounts in one post are never summed.
type prizePattern struct {
	re         *regexp.Regexp
	currency   model.Currency
	multiplier float64
}

// prizePatterns is priority-ordered: explicit currency symbol with a
// k-suffix first, then bare symbol amounts, then non-USD notations.
var prizePatterns = []prizePattern{
	{regexp.MustCompile(`\$(\d+(?:,\d{3})*(?:\.\d+)?)\s?[kK]\b`), model.CurrencyUSD, 1000},
	{regexp.MustCompile(`\$(\d+(?:,\d{3})*(?:\.\d+)?)`), model.CurrencyUSD, 1},
	{regexp.MustCompile(`€(\d+(?:,\d{3})*(?:\.\d+)?)\s?[kK]\b`), model.CurrencyEUR, 1000},
	{regexp.MustCompile(`€(\d+(?:,\d{3})*(?:\.\d+)?)`), model.CurrencyEUR, 1},
	{regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*ETH\b`), model.CurrencyETH, 1},
	{regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*BTC\b`), model.CurrencyBTC, 1},
	{regexp.MustCompile(`(?i)(\d+(?:,\d{3})*)\s*USD\b`), model.CurrencyUSD, 1},
	{regexp.MustCompile(`(?i)(\d+(?:,\d{3})*)\s*dollars?\b`), model.CurrencyUSD, 1},
}

// extractPrize returns the first matching prize amount in its native
// currency. ok is false when no pattern matches — the amount is absent,
// never zero.
func extractPrize(text string) (amount float64, currency model.Currency, ok bool) {
	for _, p := range prizePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.ReplaceAll(m[1], ",", "")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		return v * p.multiplier, p.currency, true
	}
	return 0, model.CurrencyUnknown, false
}

// durationPattern is one entry in the ordered duration cascade. Either
// hoursPerUnit scales a captured number, or fixedHours applies to a
// phrase match.
type durationPattern struct {
	re           *regexp.Regexp
	hoursPerUnit float64
	fixedHours   float64
}

// durationPatterns is priority-ordered: explicit hours beat day counts,
// which beat fixed phrase mappings. "72 hour challenge" therefore hits
// the explicit-hours pattern, not the phrase table.
var durationPatterns = []durationPattern{
	{re: regexp.MustCompile(`(?i)(\d+)[\s-]*hours?\b`), hoursPerUnit: 1},
	{re: regexp.MustCompile(`(?i)(\d+)[\s-]*days?\b`), hoursPerUnit: 24},
	{re: regexp.MustCompile(`(?i)\bweekend\b`), fixedHours: 48},
}

// extractDuration returns the event duration in hours. ok is false when
// nothing matches.
func extractDuration(text string) (hours float64, ok bool) {
	for _, p := range durationPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if p.hoursPerUnit == 0 {
			return p.fixedHours, true
		}
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil || n <= 0 {
			continue
		}
		return n * p.hoursPerUnit, true
	}
	return 0, false
}
