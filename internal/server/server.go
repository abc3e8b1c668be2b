package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"uptimeledger/internal/history"
	"uptimeledger/internal/metrics"
	"uptimeledger/internal/models"
	"uptimeledger/internal/snapshot"
)

const (
	defaultTimelineWindow = 24 * time.Hour
	maxTimelinePoints     = 500
)

// Server exposes the latest ledger over a read-only HTTP API.
type Server struct {
	httpServer *http.Server
	ledger     *snapshot.Holder
	services   []models.ServiceDescriptor
	logger     *slog.Logger
}

// New creates a configured HTTP server.
func New(addr string, holder *snapshot.Holder, services []models.ServiceDescriptor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		ledger:   holder,
		services: services,
		logger:   logger,
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/ledger", s.handleLedger)
		r.Get("/services", s.handleServices)
		r.Get("/uptime", s.handleUptime)
		r.Get("/incidents", s.handleIncidents)
		r.Get("/timeline", s.handleTimeline)
		r.Get("/overview/ws", s.handleOverviewWS)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) current(w http.ResponseWriter) (models.Ledger, bool) {
	l, ok := s.ledger.Get()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no ledger yet"})
	}
	return l, ok
}

func (s *Server) handleLedger(w http.ResponseWriter, _ *http.Request) {
	l, ok := s.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleServices(w http.ResponseWriter, _ *http.Request) {
	l, ok := s.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, l.Services)
}

func (s *Server) handleUptime(w http.ResponseWriter, _ *http.Request) {
	l, ok := s.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, metrics.SortedUptime(l.Services))
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	l, ok := s.current(w)
	if !ok {
		return
	}
	onlyOpen := strings.EqualFold(r.URL.Query().Get("open"), "true")
	service := strings.TrimSpace(r.URL.Query().Get("service"))

	out := make([]models.Incident, 0, len(l.Incidents))
	for _, inc := range l.Incidents {
		if onlyOpen && !inc.Open() {
			continue
		}
		if service != "" && inc.Service != service {
			continue
		}
		out = append(out, inc)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	l, ok := s.current(w)
	if !ok {
		return
	}

	window := defaultTimelineWindow
	if raw := strings.TrimSpace(r.URL.Query().Get("window")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid window duration"})
			return
		}
		window = d
	}
	points := parseLimit(r, "points", history.DefaultTimelinePoints, maxTimelinePoints)

	end := l.LastCheck
	start := end.Add(-window)
	writeJSON(w, http.StatusOK, map[string]any{
		"range_start": start,
		"range_end":   end,
		"services":    history.BuildServiceTimelines(l.Checks, s.services, start, end, points),
	})
}

func parseLimit(r *http.Request, key string, fallback, max int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
