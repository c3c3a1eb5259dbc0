package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hacksignal/hacksignal/internal/config"
	"github.com/hacksignal/hacksignal/internal/model"
	"github.com/hacksignal/hacksignal/internal/resilience"
)

// Notifier is the channel-agnostic delivery interface. The router hands
// IMMEDIATE decisions to it synchronously; the digest dispatcher hands
// it the day's batch.
type Notifier interface {
	Notify(ctx context.Context, decision model.AlertDecision) error
	NotifyDigest(ctx context.Context, day string, messages []string) error
}

// ConsoleNotifier logs alerts to the process logger. It is the default
// delivery channel and the one used in tests.
type ConsoleNotifier struct{}

func (ConsoleNotifier) Notify(_ context.Context, decision model.AlertDecision) error {
	zap.L().Info("alert: immediate",
		zap.String("post_id", decision.PostID),
		zap.String("message", decision.Message),
	)
	return nil
}

func (ConsoleNotifier) NotifyDigest(_ context.Context, day string, messages []string) error {
	zap.L().Info("alert: daily digest",
		zap.String("day", day),
		zap.Int("entries", len(messages)),
	)
	for _, m := range messages {
		zap.L().Info("alert: digest entry", zap.String("message", m))
	}
	return nil
}

// WebhookNotifier posts alerts as JSON to a configured webhook URL.
// Transient delivery failures are retried with backoff.
type WebhookNotifier struct {
	url    string
	client *http.Client
	retry  resilience.RetryConfig
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(cfg config.WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		url:    cfg.URL,
		client: &http.Client{Timeout: 10 * time.Second},
		retry:  resilience.DefaultRetryConfig(),
	}
}

type webhookPayload struct {
	Kind      string    `json:"kind"`
	Day       string    `json:"day,omitempty"`
	PostID    string    `json:"post_id,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, decision model.AlertDecision) error {
	return n.post(ctx, webhookPayload{
		Kind:      "immediate",
		PostID:    decision.PostID,
		Message:   decision.Message,
		Timestamp: decision.CreatedAt,
	})
}

func (n *WebhookNotifier) NotifyDigest(ctx context.Context, day string, messages []string) error {
	return n.post(ctx, webhookPayload{
		Kind:      "digest",
		Day:       day,
		Message:   strings.Join(messages, "\n"),
		Timestamp: time.Now().UTC(),
	})
}

func (n *WebhookNotifier) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "alert: marshal webhook payload")
	}

	return resilience.Do(ctx, n.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			return eris.Wrap(err, "alert: create webhook request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			return &resilience.TransientError{Err: eris.Wrap(err, "alert: webhook request")}
		}
		defer resp.Body.Close() //nolint:errcheck

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(
				eris.Errorf("alert: webhook returned status %d", resp.StatusCode),
				resp.StatusCode,
			)
		}
		if resp.StatusCode >= 400 {
			return eris.Errorf("alert: webhook returned status %d", resp.StatusCode)
		}
		return nil
	})
}

// telegramSender is the subset of the bot API the notifier needs;
// narrowed for testability.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier delivers alerts to a Telegram channel, rate-limited
// so bursts of immediate alerts do not trip the bot API.
type TelegramNotifier struct {
	bot       telegramSender
	channelID int64
	limiter   *rate.Limiter
}

// NewTelegramNotifier connects the bot API from config.
func NewTelegramNotifier(cfg config.TelegramConfig) (*TelegramNotifier, error) {
	if cfg.BotToken == "" {
		return nil, eris.New("alert: telegram bot token is required")
	}
	if cfg.ChannelID == 0 {
		return nil, eris.New("alert: telegram channel id is required")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, eris.Wrap(err, "alert: connect telegram bot")
	}

	perSec := cfg.MessagesPerSec
	if perSec <= 0 {
		perSec = 2
	}

	return &TelegramNotifier{
		bot:       bot,
		channelID: cfg.ChannelID,
		limiter:   rate.NewLimiter(rate.Limit(perSec), 1),
	}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, decision model.AlertDecision) error {
	return n.send(ctx, decision.Message)
}

func (n *TelegramNotifier) NotifyDigest(ctx context.Context, day string, messages []string) error {
	header := fmt.Sprintf("Daily digest for %s (%d events)", day, len(messages))
	if err := n.send(ctx, header); err != nil {
		return err
	}
	for _, m := range messages {
		if err := n.send(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (n *TelegramNotifier) send(ctx context.Context, text string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "alert: telegram rate limit wait")
	}

	msg := tgbotapi.NewMessage(n.channelID, text)
	if _, err := n.bot.Send(msg); err != nil {
		return eris.Wrap(err, "alert: telegram send")
	}
	return nil
}

// MultiNotifier fans out to several channels; delivery failures on one
// channel do not block the others.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, decision model.AlertDecision) error {
	var lastErr error
	for _, n := range m {
		if err := n.Notify(ctx, decision); err != nil {
			zap.L().Warn("alert: channel delivery failed", zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}

func (m MultiNotifier) NotifyDigest(ctx context.Context, day string, messages []string) error {
	var lastErr error
	for _, n := range m {
		if err := n.NotifyDigest(ctx, day, messages); err != nil {
			zap.L().Warn("alert: digest delivery failed", zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}
