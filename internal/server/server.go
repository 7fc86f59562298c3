// Package server exposes host resolution and page filtering over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bnema/cosmetic-filters/internal/engine"
	"github.com/bnema/cosmetic-filters/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// MaxBodyBytes bounds the HTML accepted by the filter endpoint
const MaxBodyBytes = 8 << 20

// Loader builds a fresh engine from the current rule table
type Loader func() (*engine.Engine, error)

// Server serves one engine at a time and can swap it without dropping
// requests.
type Server struct {
	engine  atomic.Pointer[engine.Engine]
	load    Loader
	log     logrus.FieldLogger
	metrics *metrics.Metrics
	origins []string
}

// Option configures a Server
type Option func(*Server)

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Server) { s.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithAllowedOrigins enables CORS for the given origins
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// New loads the first engine. The server does not start until Router or
// ListenAndServe is used.
func New(load Loader, opts ...Option) (*Server, error) {
	s := &Server{
		load: load,
		log:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	eng, err := load()
	if err != nil {
		return nil, fmt.Errorf("loading rule table: %w", err)
	}
	s.engine.Store(eng)
	return s, nil
}

// Engine returns the engine currently serving requests
func (s *Server) Engine() *engine.Engine {
	return s.engine.Load()
}

// Reload swaps in a freshly loaded engine. On failure the current one
// keeps serving.
func (s *Server) Reload() error {
	eng, err := s.load()
	if s.metrics != nil {
		s.metrics.ObserveReload(err)
	}
	if err != nil {
		s.log.WithError(err).Warn("rule table reload failed, keeping previous table")
		return err
	}
	s.engine.Store(eng)
	s.log.WithField("statistics", eng.Resolver().Table().Statistics).Info("rule table reloaded")
	return nil
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			ExposedHeaders: []string{HeaderHidden, HeaderState},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/resolve", s.handleResolve)
		r.Post("/filter", s.handleFilter)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
