// Package catalog holds the weighted keyword/hashtag reference data that
// drives relevance scoring, plus the AI/crypto topic vocabularies.
package catalog

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Relevance tiers for catalog hashtags.
const (
	RelevanceHigh   = "High"
	RelevanceMedium = "Medium"
	RelevanceLow    = "Low"
)

// Term weights. Catalog keyword phrases outrank generic indicators;
// hashtags are weighted by their relevance tier.
const (
	KeywordWeight       = 1.6
	HashtagHighWeight   = 2.0
	HashtagMediumWeight = 1.2
	HashtagLowWeight    = 0.8
	UnknownTermWeight   = 0.4
)

// Hashtag is a catalog hashtag with a relevance tier.
type Hashtag struct {
	Tag       string `yaml:"tag"`
	Relevance string `yaml:"relevance"`
}

// Catalog is a versioned set of weighted terms. It feeds the scoring
// engine only and is immutable once loaded.
type Catalog struct {
	Version     string    `yaml:"version"`
	Keywords    []string  `yaml:"keywords"`
	Hashtags    []Hashtag `yaml:"hashtags"`
	AITerms     []string  `yaml:"ai_terms"`
	CryptoTerms []string  `yaml:"crypto_terms"`
}

// Indicator is a generic domain term scored even when absent from the
// catalog proper.
type Indicator struct {
	Term   string
	Weight float64
}

// Indicators returns the generic hackathon indicators in fixed priority
// order. The order is part of the scoring contract.
func Indicators() []Indicator {
	return []Indicator{
		{Term: "hackathon", Weight: 1.0},
		{Term: "bounty", Weight: 1.0},
		{Term: "challenge", Weight: 0.8},
		{Term: "sprint", Weight: 0.8},
		{Term: "contest", Weight: 0.6},
	}
}

// Default returns the built-in catalog used when no file is configured.
func Default() *Catalog {
	return &Catalog{
		Version: "builtin-1",
		Keywords: []string{
			"ai", "web3", "buildathon", "prize pool", "solidity",
			"smart contract", "llm", "agents",
		},
		Hashtags: []Hashtag{
			{Tag: "#aihack", Relevance: RelevanceHigh},
			{Tag: "#hackathon", Relevance: RelevanceHigh},
			{Tag: "#web3", Relevance: RelevanceMedium},
			{Tag: "#buildinpublic", Relevance: RelevanceMedium},
			{Tag: "#ethglobal", Relevance: RelevanceMedium},
			{Tag: "#gamedev", Relevance: RelevanceLow},
			{Tag: "#indiedev", Relevance: RelevanceLow},
		},
		AITerms: []string{
			"ai", "artificial intelligence", "machine learning", "ml",
			"neural", "deep learning",
		},
		CryptoTerms: []string{
			"crypto", "blockchain", "bitcoin", "ethereum", "defi",
			"web3", "nft",
		},
	}
}

// Load reads a catalog from a YAML file. Vocabulary lists that the file
// leaves empty inherit the built-in defaults so scoring always has a
// working vocabulary.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, eris.Wrapf(err, "catalog: parse %s", path)
	}

	def := Default()
	if len(cat.AITerms) == 0 {
		cat.AITerms = def.AITerms
	}
	if len(cat.CryptoTerms) == 0 {
		cat.CryptoTerms = def.CryptoTerms
	}
	if cat.Version == "" {
		cat.Version = "unversioned"
	}

	zap.L().Info("catalog: loaded",
		zap.String("path", path),
		zap.String("version", cat.Version),
		zap.Int("keywords", len(cat.Keywords)),
		zap.Int("hashtags", len(cat.Hashtags)),
	)

	return &cat, nil
}

// Weights builds the lowercased term→weight map covering catalog
// keywords, tiered hashtags, and the generic indicators. Catalog entries
// shadow indicator weights for the same term.
func (c *Catalog) Weights() map[string]float64 {
	weights := make(map[string]float64, len(c.Keywords)+len(c.Hashtags)+8)

	for _, ind := range Indicators() {
		weights[ind.Term] = ind.Weight
	}

	for _, h := range c.Hashtags {
		weights[strings.ToLower(h.Tag)] = hashtagWeight(h.Relevance)
	}

	for _, kw := range c.Keywords {
		weights[strings.ToLower(kw)] = KeywordWeight
	}

	return weights
}

func hashtagWeight(relevance string) float64 {
	switch relevance {
	case RelevanceHigh:
		return HashtagHighWeight
	case RelevanceMedium:
		return HashtagMediumWeight
	default:
		return HashtagLowWeight
	}
}
