// Package server exposes the scouting agent over HTTP: the streaming chat
// endpoint, read-only session queries, player search, report downloads,
// health and metrics.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/courtvision/scoutgraph/internal/agent"
	"github.com/courtvision/scoutgraph/internal/leaguedb"
	"github.com/courtvision/scoutgraph/internal/players"
	"github.com/courtvision/scoutgraph/internal/report"
	"github.com/courtvision/scoutgraph/pkg/flowgraph"
	flowerrors "github.com/courtvision/scoutgraph/pkg/flowgraph/errors"
	"github.com/courtvision/scoutgraph/pkg/flowgraph/query"
)

// Agent runs conversation turns and session queries.
type Agent interface {
	Run(ctx context.Context, t agent.Turn, emit agent.EmitFunc) (*flowgraph.Result[agent.State], error)
	Query(ctx context.Context, sessionID, name string) (any, error)
	Queries() []string
}

// ReportOpener returns a remotely stored report behind a signed link.
type ReportOpener interface {
	Open(ctx context.Context, key, expires, sig string) (report.Document, error)
}

// Server holds the HTTP handlers.
type Server struct {
	agent       Agent
	local       *report.LocalStore
	remote      ReportOpener
	searcher    players.Searcher
	minScore    int
	gatherer    prometheus.Gatherer
	logger      *slog.Logger
	debugErrors bool
	origins     []string

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// Option configures a Server.
type Option func(*Server)

// WithLocalReports serves documents saved in store under /api/pdf.
func WithLocalReports(store *report.LocalStore) Option {
	return func(s *Server) {
		s.local = store
	}
}

// WithRemoteReports serves signed links under /api/reports.
func WithRemoteReports(opener ReportOpener) Option {
	return func(s *Server) {
		s.remote = opener
	}
}

// Player search limits.
const (
	DefaultSearchResults = 3
	MaxSearchResults     = 50
	DefaultSearchScore   = 90
)

// WithPlayerSearch serves fuzzy name search under /api/search/player.
// Matches scoring below minScore are dropped; zero uses DefaultSearchScore.
func WithPlayerSearch(searcher players.Searcher, minScore int) Option {
	return func(s *Server) {
		s.searcher = searcher
		s.minScore = minScore
		if s.minScore <= 0 {
			s.minScore = DefaultSearchScore
		}
	}
}

// WithDebugErrors adds the raw error text to the stream after the
// user-facing message.
func WithDebugErrors(on bool) Option {
	return func(s *Server) {
		s.debugErrors = on
	}
}

// WithAllowedOrigins enables CORS for the given origins. "*" allows any.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = append(s.origins, origins...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRegistry registers the HTTP metrics in reg and serves reg on
// /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.gatherer = reg
		s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scoutgraph_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "method", "code"})
		s.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scoutgraph_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"})
		reg.MustRegister(s.requests, s.duration)
	}
}

// New creates a Server.
func New(a Agent, opts ...Option) *Server {
	s := &Server{
		agent:  a,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/agent/chat", s.handleChat)
		r.Get("/agent/queries", s.handleListQueries)
		r.Get("/agent/sessions/{sessionID}/{query}", s.handleQuery)
		r.Get("/search/player", s.handlePlayerSearch)
		r.Get("/pdf/{dir}/{file}", s.handleLocalReport)
		r.Get("/reports/*", s.handleRemoteReport)
	})
	return r
}

// chatRequest is the body of POST /api/agent/chat. user_input is a string
// for a new message, an integer for a player selection and a bool for a
// confirmation.
type chatRequest struct {
	UserInput     json.RawMessage `json:"user_input"`
	SessionID     string          `json:"session_id"`
	IsResume      bool            `json:"is_resume"`
	InterruptType string          `json:"interrupt_type"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if body.IsResume && body.InterruptType == "" {
		writeError(w, http.StatusBadRequest, "interrupt_type is required when is_resume is true")
		return
	}
	input, err := decodeInput(body.UserInput)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_input")
		return
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	write := func(ev agent.Event) error {
		if err := enc.Encode(ev); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	logger := s.logger.With("session_id", body.SessionID, "request_id", middleware.GetReqID(r.Context()))
	turn := agent.Turn{
		SessionID:     body.SessionID,
		Input:         input,
		IsResume:      body.IsResume,
		InterruptType: body.InterruptType,
	}
	_, err = s.agent.Run(r.Context(), turn, func(_ context.Context, ev agent.Event) error {
		return write(ev)
	})
	if err == nil {
		return
	}

	if r.Context().Err() != nil {
		logger.Info("client disconnected", "error", err)
		return
	}
	logger.Error("chat turn failed", "resume", body.IsResume, "error", err)
	if werr := write(agent.Event{Node: agent.EventError, Output: flowerrors.UserMessage(err)}); werr != nil {
		return
	}
	if s.debugErrors {
		_ = write(agent.Event{Node: agent.EventErrorDebug, Output: err.Error()})
	}
}

// decodeInput keeps the JSON type of user_input: integers become int,
// other numbers float64, and strings and bools stay as they are.
func decodeInput(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	n, ok := v.(json.Number)
	if !ok {
		return v, nil
	}
	if i, err := strconv.Atoi(n.String()); err == nil {
		return i, nil
	}
	return n.Float64()
}

func (s *Server) handleListQueries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"queries": s.agent.Queries()})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	name := chi.URLParam(r, "query")

	v, err := s.agent.Query(r.Context(), sessionID, name)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, v)
	case errors.Is(err, query.ErrQueryNotFound), errors.Is(err, query.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("session query failed", "session_id", sessionID, "query", name, "error", err)
		writeError(w, http.StatusInternalServerError, flowerrors.UserMessage(err))
	}
}

func (s *Server) handlePlayerSearch(w http.ResponseWriter, r *http.Request) {
	if s.searcher == nil {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	text := strings.TrimSpace(q.Get("query"))
	if text == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	limit := DefaultSearchResults
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxSearchResults {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(MaxSearchResults))
			return
		}
		limit = n
	}

	var leagues []string
	for _, l := range strings.Split(q.Get("leagues"), ",") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		id := leaguedb.IDForLeague(l)
		if !strings.EqualFold(id, l) && !strings.EqualFold(leaguedb.DisplayName(l), l) {
			writeError(w, http.StatusBadRequest, "unknown league: "+l)
			return
		}
		leagues = append(leagues, id)
	}

	found, err := s.searcher.Search(r.Context(), text, leagues, limit, s.minScore)
	if err != nil {
		s.logger.Error("player search failed", "query", text, "error", err)
		writeError(w, http.StatusInternalServerError, "player search unavailable")
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleLocalReport(w http.ResponseWriter, r *http.Request) {
	if s.local == nil {
		http.NotFound(w, r)
		return
	}
	path, err := s.local.Path(chi.URLParam(r, "dir"), chi.URLParam(r, "file"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleRemoteReport(w http.ResponseWriter, r *http.Request) {
	if s.remote == nil {
		http.NotFound(w, r)
		return
	}
	key, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil || key == "" {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	doc, err := s.remote.Open(r.Context(), key, q.Get("expires"), q.Get("sig"))
	switch {
	case err == nil:
	case errors.Is(err, report.ErrBadSignature), errors.Is(err, report.ErrExpired):
		writeError(w, http.StatusForbidden, err.Error())
		return
	case errors.Is(err, report.ErrNotFound):
		http.NotFound(w, r)
		return
	default:
		s.logger.Error("report download failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "report unavailable")
		return
	}

	if doc.ContentType != "" {
		w.Header().Set("Content-Type", doc.ContentType)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Body)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin)) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	if s.requests == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		s.duration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
