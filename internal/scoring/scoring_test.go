package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hacksignal/hacksignal/internal/catalog"
	"github.com/hacksignal/hacksignal/internal/config"
	"github.com/hacksignal/hacksignal/internal/model"
)

var testThresholds = config.ThresholdsConfig{
	FollowerMin:        2000,
	FollowerMax:        50000,
	RelevanceThreshold: 0.3,
}

func post(text string, followers int64) model.RawPost {
	return model.RawPost{
		ID:        "t1",
		Text:      text,
		Author:    model.Author{ScreenName: "dev", FollowersCount: followers},
		CreatedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		post    model.RawPost
		wantErr bool
	}{
		{"valid", post("hello", 100), false},
		{"missing id", model.RawPost{Text: "hi"}, true},
		{"negative followers", post("hi", -1), true},
		{"zero followers ok", post("hi", 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.post)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFollowerFit_BandInclusive(t *testing.T) {
	tests := []struct {
		followers int64
		want      int
	}{
		{1999, 0},
		{2000, 1},
		{15000, 1},
		{50000, 1},
		{50001, 0},
		{0, 0},
	}

	for _, tt := range tests {
		scored := Score(post("no keywords here", tt.followers), catalog.Default(), testThresholds)
		assert.Equal(t, tt.want, scored.FollowerFit, "followers=%d", tt.followers)
		assert.Equal(t, tt.followers, scored.AccountFollowers)
	}
}

func TestScore_TypicalAnnouncement(t *testing.T) {
	p := post("AI Hackathon this weekend! $10.8k prize #AIHack", 15000)
	scored := Score(p, catalog.Default(), testThresholds)

	assert.Equal(t, 1, scored.FollowerFit)
	assert.Equal(t, []string{"ai", "hackathon", "#aihack"}, scored.KeywordMatches)
	assert.InDelta(t, 0.2, scored.TopicConfidence, 1e-9)
	// 0.3 follower + min(4.6*0.02, 0.2) keyword + 0.2*0.5 topic
	assert.InDelta(t, 0.492, scored.Score, 1e-9)
}

func TestScore_Deterministic(t *testing.T) {
	p := post("Web3 hackathon, 5 ETH bounty #ethglobal #web3", 8000)
	cat := catalog.Default()

	first := Score(p, cat, testThresholds)
	for i := 0; i < 20; i++ {
		again := Score(p, cat, testThresholds)
		assert.Equal(t, first, again)
	}
}

func TestScore_Bounds(t *testing.T) {
	texts := []string{
		"",
		"nothing relevant at all",
		"hackathon hackathon bounty challenge sprint contest ai web3 " +
			"#aihack #hackathon #web3 #ethglobal machine learning blockchain " +
			"ethereum defi nft crypto bitcoin neural deep learning",
	}
	for _, text := range texts {
		scored := Score(post(text, 15000), catalog.Default(), testThresholds)
		assert.GreaterOrEqual(t, scored.Score, 0.0, "text=%q", text)
		assert.LessOrEqual(t, scored.Score, 1.0, "text=%q", text)
	}
}

func TestScore_EmptyText(t *testing.T) {
	scored := Score(post("   ", 15000), catalog.Default(), testThresholds)

	assert.Empty(t, scored.KeywordMatches)
	assert.Zero(t, scored.TopicConfidence)
	// Only the follower component remains.
	assert.InDelta(t, 0.3, scored.Score, 1e-9)
}

func TestScore_KeywordComponentCapped(t *testing.T) {
	// Enough distinct weighted terms to exceed the cap.
	spam := "hackathon bounty challenge sprint contest ai web3 buildathon " +
		"solidity smart contract llm agents #aihack #hackathon #web3"
	scored := Score(post(spam, 1), catalog.Default(), testThresholds)

	plain := Score(post("hackathon", 1), catalog.Default(), testThresholds)
	require.NotEmpty(t, plain.KeywordMatches)

	// Keyword contribution is bounded regardless of match count: the
	// difference between spam and a single indicator cannot exceed the
	// cap plus the topic component.
	assert.LessOrEqual(t, scored.Score, plain.Score+0.2+0.5)
}

func TestScore_MonotoneInKeywords(t *testing.T) {
	base := Score(post("join our contest", 15000), catalog.Default(), testThresholds)
	more := Score(post("join our contest and hackathon bounty", 15000), catalog.Default(), testThresholds)

	assert.Greater(t, more.Score, base.Score)
}

func TestMatchTerms_OrderAndDedup(t *testing.T) {
	cat := catalog.Default()

	matches, _ := matchTerms("bounty for the hackathon bounty crowd", cat.Weights())
	assert.Equal(t, []string{"bounty", "hackathon"}, matches)
}

func TestMatchTerms_UnknownHashtag(t *testing.T) {
	cat := &catalog.Catalog{}

	matches, sum := matchTerms("ship it at #solanahack", cat.Weights())
	assert.Equal(t, []string{"#solanahack"}, matches)
	assert.InDelta(t, catalog.UnknownTermWeight, sum, 1e-9)

	// Hashtags with no hackathon-adjacent body are ignored.
	matches, sum = matchTerms("gm #coffee", cat.Weights())
	assert.Empty(t, matches)
	assert.Zero(t, sum)
}

func TestTopicConfidence(t *testing.T) {
	cat := catalog.Default()

	tests := []struct {
		name string
		text string
		want float64
	}{
		{"no topics", "boring update today", 0},
		{"single ai hit", "ai tools", 0.2},
		{"crypto dominates", "blockchain ethereum defi nft", 0.8},
		{"capped at one", "crypto blockchain bitcoin ethereum defi web3 nft", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, topicConfidence(tt.text, cat), 1e-9)
		})
	}
}
