// Package server implements the Pulse web dashboard: server-rendered pages
// with theme-aware SVG charts, a JSON API, a theme event stream and the
// places proxy.
//
// Architecture:
//
//	Browser → chi router → pages / API → Store
//	                     → ChartSet → chart.Controller → svgchart (on a single loop)
//	theme.Signal → Broker → /api/theme/events
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Mr-Dark-debug/pulse/internal/config"
	"github.com/Mr-Dark-debug/pulse/internal/database"
	"github.com/Mr-Dark-debug/pulse/internal/places"
	"github.com/Mr-Dark-debug/pulse/internal/theme"
)

// Metrics tracks request and chart activity.
type Metrics struct {
	Requests         int64 `json:"requests"`
	Errors           int64 `json:"errors"`
	PageViews        int64 `json:"page_views"`
	ChartRenders     int64 `json:"chart_renders"`
	ChartErrors      int64 `json:"chart_errors"`
	ChartTransitions int64 `json:"chart_transitions"`
	ThemeChanges     int64 `json:"theme_changes"`
	PlacesRequests   int64 `json:"places_requests"`
	StreamClients    int64 `json:"stream_clients"`
	Uptime           int64 `json:"uptime_seconds"`
}

// Server is the dashboard HTTP service.
type Server struct {
	cfg    config.ServerConfig
	store  database.Store
	signal *theme.Signal
	logger *zap.Logger

	charts *ChartSet
	broker *Broker
	places http.Handler
	pages  *pages

	metrics Metrics
	started time.Time

	mu          sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	unsubscribe func()
}

// Option configures a Server.
type Option func(*Server)

// WithPlaces replaces the places proxy handler.
func WithPlaces(h http.Handler) Option {
	return func(s *Server) { s.places = h }
}

// New builds a Server. The signal must already be initialized.
func New(cfg config.Config, store database.Store, signal *theme.Signal, logger *zap.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pg, err := loadPages()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg.Server,
		store:   store,
		signal:  signal,
		logger:  logger,
		broker:  NewBroker(),
		pages:   pg,
		started: time.Now(),
	}
	s.places = places.NewHandler(places.NewClient(cfg.Places, nil), logger.Named("places"))
	for _, opt := range opts {
		opt(s)
	}
	s.charts = NewChartSet(signal, cfg.Theme, s.broker, &s.metrics, logger.Named("charts"))
	return s, nil
}

// Start runs the chart loop, relays theme changes to the event stream and
// loads chart data.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.charts.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("chart loop stopped", zap.Error(err))
		}
	}()

	s.unsubscribe = s.signal.Subscribe(func(t theme.Theme) {
		atomic.AddInt64(&s.metrics.ThemeChanges, 1)
		s.broker.Publish(Event{Type: "theme", Data: s.themeState()})
	})

	if err := s.Refresh(ctx); err != nil {
		return err
	}
	return nil
}

// Refresh reloads every chart from the store.
func (s *Server) Refresh(ctx context.Context) error {
	clients, err := s.store.QueryClients(database.ClientFilter{})
	if err != nil {
		return fmt.Errorf("loading clients for charts: %w", err)
	}
	if err := s.charts.Load(ctx, clients); err != nil {
		return fmt.Errorf("loading charts: %w", err)
	}
	return nil
}

// Stop disposes the charts, closes event streams and waits for the loop.
func (s *Server) Stop() {
	s.logger.Info("shutting down dashboard")

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.charts.Dispose()
	s.broker.Close()

	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// ListenAndServe starts the server on the configured address and blocks
// until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.Start(ctx); err != nil {
		ln.Close()
		s.Stop()
		return err
	}
	defer s.Stop()

	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("dashboard listening", zap.String("addr", "http://"+ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Metrics returns a snapshot of the counters.
func (s *Server) Metrics() Metrics {
	return Metrics{
		Requests:         atomic.LoadInt64(&s.metrics.Requests),
		Errors:           atomic.LoadInt64(&s.metrics.Errors),
		PageViews:        atomic.LoadInt64(&s.metrics.PageViews),
		ChartRenders:     atomic.LoadInt64(&s.metrics.ChartRenders),
		ChartErrors:      atomic.LoadInt64(&s.metrics.ChartErrors),
		ChartTransitions: atomic.LoadInt64(&s.metrics.ChartTransitions),
		ThemeChanges:     atomic.LoadInt64(&s.metrics.ThemeChanges),
		PlacesRequests:   atomic.LoadInt64(&s.metrics.PlacesRequests),
		StreamClients:    int64(s.broker.Subscribers()),
		Uptime:           int64(time.Since(s.started).Seconds()),
	}
}

// Charts exposes the chart set.
func (s *Server) Charts() *ChartSet { return s.charts }
