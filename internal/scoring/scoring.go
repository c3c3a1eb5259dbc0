// Package scoring converts raw posts into bounded relevance scores with
// keyword evidence. Scoring is pure: no I/O, no hidden state, identical
// inputs always produce identical output.
package scoring

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/hacksignal/hacksignal/internal/catalog"
	"github.com/hacksignal/hacksignal/internal/config"
	"github.com/hacksignal/hacksignal/internal/model"
)

// Weighting constants for the composite score.
const (
	followerWeight = 0.3
	topicWeight    = 0.5

	// Keyword weight sums are scaled down and capped so keyword spam
	// cannot dominate the score.
	keywordScale = 0.02
	keywordCap   = 0.2

	topicHitScale = 0.2
)

var hashtagRe = regexp.MustCompile(`#\w+`)

// Validate reports whether a raw post is well-formed enough to score.
// It is called at the orchestrator boundary; Score itself assumes a
// valid post and never fails.
func Validate(post model.RawPost) error {
	if post.ID == "" {
		return eris.New("scoring: post id is required")
	}
	if post.Author.FollowersCount < 0 {
		return eris.Errorf("scoring: post %s has negative follower count %d", post.ID, post.Author.FollowersCount)
	}
	return nil
}

// Score computes the relevance score for a single post against the
// catalog and the configured follower band.
func Score(post model.RawPost, cat *catalog.Catalog, t config.ThresholdsConfig) model.ScoredPost {
	fit := followerFit(post.Author.FollowersCount, t.FollowerMin, t.FollowerMax)
	matches, weightSum := matchTerms(post.Text, cat.Weights())
	kq := math.Min(weightSum*keywordScale, keywordCap)
	tc := topicConfidence(post.Text, cat)

	score := float64(fit)*followerWeight + kq + tc*topicWeight
	score = clamp01(score)

	return model.ScoredPost{
		PostID:           post.ID,
		Score:            score,
		AccountFollowers: post.Author.FollowersCount,
		FollowerFit:      fit,
		KeywordMatches:   matches,
		TopicConfidence:  tc,
	}
}

// followerFit is 1 when the follower count lies inside the configured
// indie-friendly band, bounds inclusive.
func followerFit(followers, min, max int64) int {
	if followers >= min && followers <= max {
		return 1
	}
	return 0
}

type termMatch struct {
	term   string
	weight float64
	index  int
}

// matchTerms scans text case-insensitively for weighted catalog terms
// and for unknown hackathon-adjacent hashtags. Matches are returned in
// order of first occurrence, deduplicated by exact string, alongside the
// summed term weights.
func matchTerms(text string, weights map[string]float64) ([]string, float64) {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return nil, 0
	}

	var found []termMatch
	seen := make(map[string]bool)

	for term, w := range weights {
		idx := strings.Index(lower, term)
		if idx < 0 || seen[term] {
			continue
		}
		seen[term] = true
		found = append(found, termMatch{term: term, weight: w, index: idx})
	}

	// Hashtags outside the catalog still count, at a flat weight, when
	// their body contains a generic indicator.
	for _, loc := range hashtagRe.FindAllStringIndex(lower, -1) {
		tag := lower[loc[0]:loc[1]]
		if _, known := weights[tag]; known || seen[tag] {
			continue
		}
		if !hackathonAdjacent(tag) {
			continue
		}
		seen[tag] = true
		found = append(found, termMatch{term: tag, weight: catalog.UnknownTermWeight, index: loc[0]})
	}

	// Order of discovery in the text; ties break lexically so the result
	// is deterministic.
	sort.Slice(found, func(i, j int) bool {
		if found[i].index != found[j].index {
			return found[i].index < found[j].index
		}
		return found[i].term < found[j].term
	})

	matches := make([]string, 0, len(found))
	var sum float64
	for _, m := range found {
		matches = append(matches, m.term)
		sum += m.weight
	}
	if len(matches) == 0 {
		return nil, 0
	}
	return matches, sum
}

func hackathonAdjacent(tag string) bool {
	body := strings.TrimPrefix(tag, "#")
	for _, ind := range catalog.Indicators() {
		if strings.Contains(body, ind.Term) {
			return true
		}
	}
	// "hack" alone is enough: #aihack, #hackweek and friends.
	return strings.Contains(body, "hack")
}

// topicConfidence measures AI/crypto relevance strength: the larger of
// the two vocabulary hit counts, scaled and capped at 1.0.
func topicConfidence(text string, cat *catalog.Catalog) float64 {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return 0
	}

	ai := vocabularyHits(lower, cat.AITerms)
	crypto := vocabularyHits(lower, cat.CryptoTerms)

	best := ai
	if crypto > best {
		best = crypto
	}
	return math.Min(float64(best)*topicHitScale, 1.0)
}

func vocabularyHits(lower string, terms []string) int {
	hits := 0
	for _, term := range terms {
		if strings.Contains(lower, strings.ToLower(term)) {
			hits++
		}
	}
	return hits
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
