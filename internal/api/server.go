// Package api exposes the read API over the record store plus an async
// pipeline trigger.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hacksignal/hacksignal/internal/alert"
	"github.com/hacksignal/hacksignal/internal/config"
	"github.com/hacksignal/hacksignal/internal/model"
	"github.com/hacksignal/hacksignal/internal/pipeline"
	"github.com/hacksignal/hacksignal/internal/store"
	"github.com/hacksignal/hacksignal/internal/transform"
)

// Server serves processed records, hackathon cards, and digest state.
type Server struct {
	cfg       *config.Config
	store     store.Store
	pipeline  *pipeline.Pipeline
	describer transform.Describer
	notifier  alert.Notifier
}

// New creates a Server. pipe may be nil to run read-only; desc may be
// nil to use the static card descriptions; notifier may be nil to skip
// immediate-alert delivery.
func New(cfg *config.Config, st store.Store, pipe *pipeline.Pipeline, desc transform.Describer, notifier alert.Notifier) *Server {
	return &Server{cfg: cfg, store: st, pipeline: pipe, describer: desc, notifier: notifier}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/records", func(r chi.Router) {
		r.Get("/", s.handleListRecords)
		r.Get("/top", s.handleTopRecords)
		r.Get("/{id}", s.handleGetRecord)
	})
	r.Route("/hackathons", func(r chi.Router) {
		r.Get("/", s.handleListHackathons)
		r.Get("/top", s.handleTopHackathons)
	})
	r.Get("/digest/{day}", s.handleDigest)
	r.Get("/runs/{id}", s.handleGetRun)
	r.Post("/pipeline/run", s.handleRunPipeline)

	return r
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("api: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	zap.L().Info("api: listening", zap.Int("port", s.cfg.Server.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "api: listen")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	filter := store.RecordFilter{
		MinScore: queryFloat(r, "min_score", 0),
		Limit:    queryInt(r, "limit", 100),
		Offset:   queryInt(r, "offset", 0),
	}

	records, err := s.store.ListRecords(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []model.ProcessedRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleTopRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.TopRecords(r.Context(), queryInt(r, "limit", 10))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []model.ProcessedRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetRecord(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleListHackathons pages through every stored record as cards, with
// the same score/offset filters as /records.
func (s *Server) handleListHackathons(w http.ResponseWriter, r *http.Request) {
	filter := store.RecordFilter{
		MinScore: queryFloat(r, "min_score", 0),
		Limit:    queryInt(r, "limit", 50),
		Offset:   queryInt(r, "offset", 0),
	}

	records, err := s.store.ListRecords(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.cards(r.Context(), records))
}

// handleTopHackathons serves only the best-scoring cards.
func (s *Server) handleTopHackathons(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.TopRecords(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.cards(r.Context(), records))
}

// cards projects records into hackathon cards, polishing descriptions
// with the describer when one is configured.
func (s *Server) cards(ctx context.Context, records []model.ProcessedRecord) []model.HackathonCard {
	now := time.Now().UTC()
	cards := make([]model.HackathonCard, 0, len(records))
	for _, rec := range records {
		text := ""
		if post, err := s.store.GetPost(ctx, rec.PostID); err == nil {
			text = post.Text
		}
		card := transform.Card(rec, text, s.cfg.Thresholds, now)
		if s.describer != nil {
			if desc, err := s.describer.Describe(ctx, rec, text); err == nil {
				card.Description = desc
			}
		}
		cards = append(cards, card)
	}
	return cards
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	day := chi.URLParam(r, "day")
	if _, err := time.Parse("2006-01-02", day); err != nil {
		writeError(w, http.StatusBadRequest, eris.Errorf("api: invalid day %q", day))
		return
	}

	entries, err := s.store.ListDigestEntries(r.Context(), day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []store.DigestEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunPipeline(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, eris.New("api: pipeline not configured"))
		return
	}

	var req struct {
		Posts []model.RawPost `json:"posts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "api: decode request"))
		return
	}
	if len(req.Posts) == 0 {
		writeError(w, http.StatusBadRequest, eris.New("api: posts is required"))
		return
	}

	// Run asynchronously; callers poll /runs/{id} via logs or re-query
	// records.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		result, err := s.pipeline.Run(ctx, req.Posts)
		if err != nil {
			zap.L().Error("api: async pipeline run failed", zap.Error(err))
			return
		}

		// Immediate decisions are handed to the delivery channels as part
		// of the same run; digest entries wait for the daily send.
		if s.notifier != nil {
			for _, d := range result.Decisions {
				if d.Channel != model.ChannelImmediate {
					continue
				}
				if err := s.notifier.Notify(ctx, d); err != nil {
					zap.L().Error("api: immediate alert delivery failed",
						zap.String("post_id", d.PostID),
						zap.Error(err),
					)
				}
			}
		}

		zap.L().Info("api: async pipeline run complete",
			zap.String("run_id", result.RunID),
			zap.Int("records", len(result.Records)),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "accepted",
		"posts":  len(req.Posts),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryFloat(r *http.Request, key string, def float64) float64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
