// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package api serves the stored headlines, trend windows, and pipeline
// state over a read-only JSON HTTP interface.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/headline-sentiment/internal/pipeline"
	"github.com/pdiddy/headline-sentiment/internal/store"
	"github.com/pdiddy/headline-sentiment/internal/trend"
	"github.com/pdiddy/headline-sentiment/pkg/types"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Store is the read side of the headline store served by the API.
type Store interface {
	trend.Store
	Headline(ctx context.Context, id string) (*types.Headline, error)
	Ping(ctx context.Context) error
	LoadCycleState(ctx context.Context) (types.CycleState, error)
	Stats(ctx context.Context) (store.Stats, error)
	Unscored(ctx context.Context, models []string) (map[string]int, error)
}

// Options carries the optional collaborators of a Server.
type Options struct {
	// Tracker serves /trend/live. The endpoint answers 404 when nil.
	Tracker *trend.Tracker

	// Models are the configured model names reported by /stats.
	Models []string

	// LastReport returns the most recent in-process cycle report, if any.
	LastReport func() *pipeline.Report
}

// Server routes API requests.
type Server struct {
	store   Store
	agg     *trend.Aggregator
	cfg     types.ServerConfig
	trend   types.TrendConfig
	opts    Options
	now     func() time.Time
	handler http.Handler
}

// New returns a Server reading from st.
func New(st Store, cfg types.ServerConfig, trendCfg types.TrendConfig, opts Options) *Server {
	s := &Server{
		store: st,
		agg:   trend.NewAggregator(st, trendCfg),
		cfg:   cfg,
		trend: trendCfg,
		opts:  opts,
		now:   time.Now,
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/headlines", s.headlines)
		r.Get("/headlines/{id}", s.headline)
		r.Get("/trend", s.trendSeries)
		r.Get("/trend/live", s.trendLive)
		r.Get("/cycle", s.cycle)
		r.Get("/stats", s.stats)
	})
	return r
}

// Serve listens on cfg.Addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.String("addr", s.cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) headlines(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseTime(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "from"))
		return
	}
	to, err := parseTime(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "to"))
		return
	}
	limit := defaultLimit
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, eris.Errorf("limit %q must be a positive integer", v))
			return
		}
	}
	limit = min(limit, maxLimit)

	hs, err := s.store.Headlines(r.Context(), store.Query{
		From:   from,
		To:     to,
		Model:  q.Get("model"),
		Source: q.Get("source"),
		Limit:  limit,
		Newest: q.Get("order") == "newest",
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if hs == nil {
		hs = []types.Headline{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(hs), "headlines": hs})
}

func (s *Server) headline(w http.ResponseWriter, r *http.Request) {
	h, err := s.store.Headline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) trendSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	size := s.trend.Window
	if v := q.Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, eris.Errorf("window %q must be a positive duration", v))
			return
		}
		size = d
	}
	if size <= 0 {
		size = time.Hour
	}

	to, err := parseTime(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "to"))
		return
	}
	if to.IsZero() {
		to = s.now().UTC().Truncate(size).Add(size)
	}
	from, err := parseTime(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "from"))
		return
	}
	if from.IsZero() {
		from = to.Add(-24 * size)
	}

	series, err := s.agg.Series(r.Context(), from, to, size)
	if err != nil {
		if eris.Is(err, trend.ErrInvalidRange) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"window": size.String(), "windows": series})
}

func (s *Server) trendLive(w http.ResponseWriter, r *http.Request) {
	if s.opts.Tracker == nil {
		writeError(w, http.StatusNotFound, eris.New("live trend is not enabled"))
		return
	}
	if _, err := s.opts.Tracker.Advance(r.Context(), s.now()); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"seq":     s.opts.Tracker.Seq(),
		"windows": s.opts.Tracker.Snapshot(),
	})
}

func (s *Server) cycle(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.LoadCycleState(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	body := map[string]any{"state": st}
	if s.opts.LastReport != nil {
		if rep := s.opts.LastReport(); rep != nil {
			body["last_report"] = rep
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	unscored, err := s.store.Unscored(r.Context(), s.opts.Models)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"store": st, "unscored": unscored})
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, eris.Errorf("%q is neither RFC 3339 nor YYYY-MM-DD", v)
	}
	return t, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encoding response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case store.IsUnavailable(err):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
