package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hacksignal/hacksignal/internal/config"
	"github.com/hacksignal/hacksignal/internal/model"
	"github.com/hacksignal/hacksignal/pkg/claude"
)

// Describer writes a one-paragraph card description.
type Describer interface {
	Describe(ctx context.Context, rec model.ProcessedRecord, text string) (string, error)
}

// StaticDescriber formats a description from the record fields alone.
// It is the default when no model key is configured.
type StaticDescriber struct{}

func (StaticDescriber) Describe(_ context.Context, rec model.ProcessedRecord, _ string) (string, error) {
	return StaticDescription(rec), nil
}

// StaticDescription is the template fallback used by StaticDescriber
// and by card building when no describer runs.
func StaticDescription(rec model.ProcessedRecord) string {
	parts := []string{"Hackathon event"}
	if rec.PrizeValue != nil {
		parts = append(parts, fmt.Sprintf("with a $%.0f prize pool", *rec.PrizeValue))
	}
	if rec.DurationHours != nil {
		parts = append(parts, fmt.Sprintf("running %.0f hours", *rec.DurationHours))
	}
	if len(rec.KeywordMatches) > 0 {
		parts = append(parts, "covering "+strings.Join(tags(rec.KeywordMatches), ", "))
	}
	return strings.Join(parts, " ") + "."
}

const describerSystem = "You summarize hackathon announcements for a dashboard. " +
	"Reply with a single plain-text paragraph under 60 words. No preamble, no markdown."

// ClaudeDescriber writes descriptions with a model call, falling back
// to the static template when the call fails.
type ClaudeDescriber struct {
	client claude.Client
	cfg    config.DescriberConfig
}

// NewClaudeDescriber creates a model-backed describer.
func NewClaudeDescriber(client claude.Client, cfg config.DescriberConfig) *ClaudeDescriber {
	return &ClaudeDescriber{client: client, cfg: cfg}
}

func (d *ClaudeDescriber) Describe(ctx context.Context, rec model.ProcessedRecord, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return StaticDescription(rec), nil
	}

	resp, err := d.client.CreateMessage(ctx, claude.MessageRequest{
		Model:     d.cfg.Model,
		MaxTokens: d.cfg.MaxTokens,
		System:    describerSystem,
		Messages: []claude.Message{
			{Role: "user", Content: "Announcement:\n" + text},
		},
	})
	if err != nil {
		zap.L().Warn("transform: describe call failed, using template",
			zap.String("post_id", rec.PostID),
			zap.Error(err),
		)
		return StaticDescription(rec), nil
	}

	out := strings.TrimSpace(resp.Text)
	if out == "" {
		return "", eris.Errorf("transform: empty description for %s", rec.PostID)
	}
	return out, nil
}
