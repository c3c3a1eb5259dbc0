package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeights_IndicatorsPresent(t *testing.T) {
	weights := (&Catalog{}).Weights()

	assert.Equal(t, 1.0, weights["hackathon"])
	assert.Equal(t, 1.0, weights["bounty"])
	assert.Equal(t, 0.8, weights["challenge"])
	assert.Equal(t, 0.8, weights["sprint"])
	assert.Equal(t, 0.6, weights["contest"])
}

func TestWeights_CatalogShadowsIndicators(t *testing.T) {
	cat := &Catalog{
		Keywords: []string{"hackathon"},
		Hashtags: []Hashtag{{Tag: "#bounty", Relevance: RelevanceHigh}},
	}
	weights := cat.Weights()

	// The keyword entry outranks the generic indicator for the same term.
	assert.Equal(t, KeywordWeight, weights["hackathon"])
	// Hashtags are distinct terms; the bare indicator is untouched.
	assert.Equal(t, 1.0, weights["bounty"])
	assert.Equal(t, HashtagHighWeight, weights["#bounty"])
}

func TestWeights_HashtagTiers(t *testing.T) {
	cat := &Catalog{
		Hashtags: []Hashtag{
			{Tag: "#High", Relevance: RelevanceHigh},
			{Tag: "#MED", Relevance: RelevanceMedium},
			{Tag: "#low", Relevance: RelevanceLow},
			{Tag: "#none", Relevance: "Bogus"},
		},
	}
	weights := cat.Weights()

	assert.Equal(t, HashtagHighWeight, weights["#high"])
	assert.Equal(t, HashtagMediumWeight, weights["#med"])
	assert.Equal(t, HashtagLowWeight, weights["#low"])
	// Unrecognized tiers fall back to the low weight.
	assert.Equal(t, HashtagLowWeight, weights["#none"])
}

func TestDefault_HasVocabularies(t *testing.T) {
	cat := Default()

	assert.NotEmpty(t, cat.Keywords)
	assert.NotEmpty(t, cat.Hashtags)
	assert.NotEmpty(t, cat.AITerms)
	assert.NotEmpty(t, cat.CryptoTerms)
	assert.Contains(t, cat.AITerms, "ai")
	assert.Contains(t, cat.CryptoTerms, "ethereum")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: "2024-06"
keywords:
  - buildathon
hashtags:
  - tag: "#ethglobal"
    relevance: High
`), 0o644))

	cat, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "2024-06", cat.Version)
	assert.Equal(t, []string{"buildathon"}, cat.Keywords)
	require.Len(t, cat.Hashtags, 1)
	assert.Equal(t, "#ethglobal", cat.Hashtags[0].Tag)

	// Empty vocabularies inherit the defaults.
	assert.Equal(t, Default().AITerms, cat.AITerms)
	assert.Equal(t, Default().CryptoTerms, cat.CryptoTerms)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keywords: {not: [a, list"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
