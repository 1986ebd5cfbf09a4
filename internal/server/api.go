package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Mr-Dark-debug/pulse/internal/analytics"
	"github.com/Mr-Dark-debug/pulse/internal/database"
	"github.com/Mr-Dark-debug/pulse/internal/theme"
)

// Handler returns the HTTP router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleOverview)
	r.Get("/leaderboard", s.handleLeaderboardPage)
	r.Get("/industries", s.handleIndustriesPage)
	r.Get("/charts/{name}", s.handleChart)

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handlePrometheus)

	r.Route("/api", func(r chi.Router) {
		r.Get("/theme", s.handleGetTheme)
		r.Put("/theme", s.handleSetTheme)
		r.Get("/theme/events", s.handleThemeEvents)
		r.Get("/charts", s.handleChartStatus)
		r.Post("/charts/{name}/retry", s.handleChartRetry)
		r.Get("/summary", s.handleSummary)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/industries", s.handleIndustries)
		r.With(s.countPlaces).Method(http.MethodGet, "/places", s.places)
		r.Get("/metrics", s.handleMetrics)
	})
	return r
}

// requestLogger logs each request with zap and counts it.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		atomic.AddInt64(&s.metrics.Requests, 1)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if status >= 500 {
			atomic.AddInt64(&s.metrics.Errors, 1)
		}
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) countPlaces(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&s.metrics.PlacesRequests, 1)
		next.ServeHTTP(w, r)
	})
}

// ============================================================
// Theme
// ============================================================

// ThemeState is the body of GET /api/theme and of theme stream events.
type ThemeState struct {
	Mode   string `json:"mode"`
	Theme  string `json:"theme"`
	System string `json:"system"`
	Source string `json:"source"`
}

func (s *Server) themeState() ThemeState {
	system, source := s.signal.SystemTheme()
	return ThemeState{
		Mode:   string(s.signal.Mode()),
		Theme:  string(s.signal.Theme()),
		System: string(system),
		Source: source,
	}
}

func (s *Server) handleGetTheme(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.themeState())
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	mode, err := theme.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, "mode must be light, dark or system")
		return
	}
	if err := s.signal.SetMode(mode); err != nil {
		s.logger.Error("failed to set theme mode", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to set theme")
		return
	}
	writeJSON(w, http.StatusOK, s.themeState())
}

// handleThemeEvents streams theme and chart phase changes until the client
// disconnects or the server stops.
func (s *Server) handleThemeEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	events, cancel := s.broker.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(e Event) bool {
		frame, err := e.Encode()
		if err != nil {
			s.logger.Warn("encoding stream event", zap.Error(err))
			return true
		}
		if _, err := w.Write(frame); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	if !send(Event{Type: "theme", Data: s.themeState()}) {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-events:
			if !ok || !send(e) {
				return
			}
		}
	}
}

// ============================================================
// Charts
// ============================================================

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(chi.URLParam(r, "name"), ".svg")
	svg, err := s.charts.SVG(r.Context(), name)
	switch {
	case errors.Is(err, ErrUnknownChart):
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown chart %q", name))
		return
	case errors.Is(err, ErrChartFailed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to render chart")
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(svg)
}

func (s *Server) handleChartStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"charts": s.charts.Status()})
}

func (s *Server) handleChartRetry(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := s.charts.Retry(r.Context(), name)
	switch {
	case errors.Is(err, ErrUnknownChart):
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown chart %q", name))
	case err != nil:
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "chart still failing", "details": err.Error()})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ============================================================
// Aggregates
// ============================================================

func (s *Server) clients(w http.ResponseWriter) ([]*database.Client, bool) {
	clients, err := s.store.QueryClients(database.ClientFilter{})
	if err != nil {
		s.logger.Error("failed to load clients", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load clients")
		return nil, false
	}
	return clients, true
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	clients, ok := s.clients(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, analytics.Summarize(clients))
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, _ *http.Request) {
	clients, ok := s.clients(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": analytics.Leaderboard(clients)})
}

func (s *Server) handleIndustries(w http.ResponseWriter, _ *http.Request) {
	clients, ok := s.clients(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": analytics.IndustryPerformance(clients)})
}

// ============================================================
// Health & Metrics
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Metrics())
}

// handlePrometheus writes the counters in Prometheus text format.
func (s *Server) handlePrometheus(w http.ResponseWriter, _ *http.Request) {
	m := s.Metrics()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	for _, c := range []struct {
		name, help, kind string
		value            int64
	}{
		{"pulse_http_requests_total", "Total HTTP requests", "counter", m.Requests},
		{"pulse_http_errors_total", "Total HTTP 5xx responses", "counter", m.Errors},
		{"pulse_page_views_total", "Total dashboard page views", "counter", m.PageViews},
		{"pulse_chart_renders_total", "Total chart widgets rendered", "counter", m.ChartRenders},
		{"pulse_chart_errors_total", "Total chart render failures", "counter", m.ChartErrors},
		{"pulse_chart_transitions_total", "Total completed chart theme transitions", "counter", m.ChartTransitions},
		{"pulse_theme_changes_total", "Total resolved theme changes", "counter", m.ThemeChanges},
		{"pulse_places_requests_total", "Total places proxy requests", "counter", m.PlacesRequests},
		{"pulse_stream_clients", "Open theme event streams", "gauge", m.StreamClients},
		{"pulse_uptime_seconds", "Uptime in seconds", "gauge", m.Uptime},
	} {
		fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", c.name, c.kind)
		fmt.Fprintf(w, "%s %d\n", c.name, c.value)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
