// Package api exposes 13F runs and stored holdings over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/config"
	"github.com/sells-group/holdings-cli/internal/f13"
	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/runner"
	"github.com/sells-group/holdings-cli/internal/store"
)

const requestTimeout = 60 * time.Second

// Runs starts and reports pipeline runs. *runner.Runner satisfies it.
type Runs interface {
	Start(ctx context.Context, req runner.Request) (*model.Run, error)
	Get(id string) (*model.Run, bool)
	List() []model.Run
}

// Holdings answers read queries against stored holdings.
type Holdings interface {
	QuarterCount(ctx context.Context, quarter string) (int64, error)
	ListHoldings(ctx context.Context, filter model.HoldingFilter) ([]model.InstitutionalHolding, error)
}

// Response is the envelope for every JSON reply.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Server is the REST API.
type Server struct {
	router   chi.Router
	cfg      config.ServerConfig
	runs     Runs
	holdings Holdings
	log      *zap.Logger
}

// NewServer builds the router with all routes and middleware.
func NewServer(cfg config.ServerConfig, runs Runs, holdings Holdings) *Server {
	s := &Server{
		cfg:      cfg,
		runs:     runs,
		holdings: holdings,
		log:      zap.L().With(zap.String("component", "api")),
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	origins := []string{"*"}
	if len(s.cfg.CORSOrigins) > 0 {
		origins = s.cfg.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/f13/runs", func(r chi.Router) {
			r.Post("/", s.handleStartRun)
			r.Get("/", s.handleListRuns)
			r.Get("/{id}", s.handleGetRun)
		})
		r.Get("/f13/syncs", s.handleListSyncs)

		r.Get("/holdings", s.handleListHoldings)
		r.Get("/holdings/quarters/{quarter}", s.handleQuarterCount)
	})

	return r
}

// requestLogger logs one debug line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, Response{Success: true, Data: map[string]string{"status": "ok"}})
}

type startRunRequest struct {
	Quarter  string `json:"quarter"`
	IndexURL string `json:"index_url"`
	Force    bool   `json:"force"`
	Latest   bool   `json:"latest"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var body startRunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	run, err := s.runs.Start(r.Context(), runner.Request{
		Quarter:  body.Quarter,
		IndexURL: body.IndexURL,
		Force:    body.Force,
		Latest:   body.Latest,
		Trigger:  runner.TriggerAPI,
	})
	switch {
	case errors.Is(err, f13.ErrInvalidQuarterFormat):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, runner.ErrRunInProgress):
		s.writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.log.Error("start run", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to start run")
		return
	}
	s.writeJSON(w, http.StatusAccepted, Response{Success: true, Data: run})
}

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, Response{Success: true, Data: s.runs.List()})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runs.Get(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, Response{Success: true, Data: run})
}

// handleListSyncs serves the persisted run history when the store keeps one.
func (s *Server) handleListSyncs(w http.ResponseWriter, r *http.Request) {
	sl, ok := s.holdings.(store.SyncLog)
	if !ok {
		s.writeError(w, http.StatusNotFound, "sync log not available")
		return
	}
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	entries, err := sl.ListSyncs(r.Context(), limit)
	if err != nil {
		s.log.Error("list syncs", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list syncs")
		return
	}
	if entries == nil {
		entries = []store.SyncEntry{}
	}
	s.writeJSON(w, http.StatusOK, Response{Success: true, Data: entries})
}

func (s *Server) handleListHoldings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	offset, err := intParam(q.Get("offset"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	holdings, err := s.holdings.ListHoldings(r.Context(), model.HoldingFilter{
		Quarter: q.Get("quarter"),
		Ticker:  q.Get("ticker"),
		Holder:  q.Get("holder"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		s.log.Error("list holdings", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list holdings")
		return
	}
	if holdings == nil {
		holdings = []model.InstitutionalHolding{}
	}
	s.writeJSON(w, http.StatusOK, Response{Success: true, Data: holdings})
}

func (s *Server) handleQuarterCount(w http.ResponseWriter, r *http.Request) {
	quarter := chi.URLParam(r, "quarter")
	n, err := s.holdings.QuarterCount(r.Context(), quarter)
	if err != nil {
		s.log.Error("count holdings", zap.String("quarter", quarter), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to count holdings")
		return
	}
	s.writeJSON(w, http.StatusOK, Response{Success: true, Data: map[string]any{
		"quarter": quarter,
		"count":   n,
	}})
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, eris.Errorf("api: invalid integer %q", v)
	}
	return n, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write json response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, Response{Success: false, Error: msg})
}
