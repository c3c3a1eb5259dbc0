package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/hacksignal/hacksignal/internal/alert"
	"github.com/hacksignal/hacksignal/internal/catalog"
	"github.com/hacksignal/hacksignal/internal/enrich"
	"github.com/hacksignal/hacksignal/internal/pipeline"
	"github.com/hacksignal/hacksignal/internal/store"
	"github.com/hacksignal/hacksignal/internal/transform"
	"github.com/hacksignal/hacksignal/pkg/claude"
	"github.com/hacksignal/hacksignal/pkg/rates"
)

// pipelineEnv holds the initialized store, catalog, delivery channels,
// and pipeline shared by the run/serve/digest commands.
type pipelineEnv struct {
	Store     store.Store
	Catalog   *catalog.Catalog
	Queue     *alert.DigestQueue
	Notifier  alert.Notifier
	Describer transform.Describer
	Pipeline  *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline sets up the store, catalog, enricher, router, and
// notifier. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	cat, err := loadCatalog()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var enrichOpts []enrich.Option
	if cfg.Rates.BaseURL != "" {
		enrichOpts = append(enrichOpts, enrich.WithLiveRates(rates.New(cfg.Rates)))
		zap.L().Info("live currency rates enabled", zap.String("base_url", cfg.Rates.BaseURL))
	}
	enricher := enrich.New(enrichOpts...)

	queue := alert.NewDigestQueue()
	router := alert.NewRouter(cfg.Thresholds, cfg.Processing, queue)

	notifier, err := buildNotifier()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &pipelineEnv{
		Store:     st,
		Catalog:   cat,
		Queue:     queue,
		Notifier:  notifier,
		Describer: buildDescriber(),
		Pipeline:  pipeline.New(cfg, cat, enricher, router, st),
	}, nil
}

// buildDescriber picks the card description writer: model-backed when an
// API key is configured, the static template otherwise.
func buildDescriber() transform.Describer {
	if cfg.Describer.Key == "" {
		return transform.StaticDescriber{}
	}
	zap.L().Info("model-backed card descriptions enabled", zap.String("model", cfg.Describer.Model))
	return transform.NewClaudeDescriber(claude.NewClient(cfg.Describer.Key), cfg.Describer)
}

func loadCatalog() (*catalog.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(cfg.Catalog.Path)
}

// buildNotifier fans alerts out to every configured channel. The
// console channel is always present.
func buildNotifier() (alert.Notifier, error) {
	channels := alert.MultiNotifier{alert.ConsoleNotifier{}}

	if cfg.Webhook.URL != "" {
		channels = append(channels, alert.NewWebhookNotifier(cfg.Webhook))
		zap.L().Info("webhook alerts enabled")
	}

	if cfg.Telegram.Enabled {
		tg, err := alert.NewTelegramNotifier(cfg.Telegram)
		if err != nil {
			return nil, err
		}
		channels = append(channels, tg)
		zap.L().Info("telegram alerts enabled")
	}

	return channels, nil
}
