// Package server exposes octoroute's HTTP API: the OpenAI-compatible
// chat completions endpoint (streaming and non-streaming), the legacy
// /chat endpoint, model listing, health, and Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/octoroute/internal/audit"
	"github.com/tributary-ai/octoroute/internal/catalog"
	"github.com/tributary-ai/octoroute/internal/dispatch"
	"github.com/tributary-ai/octoroute/internal/health"
	"github.com/tributary-ai/octoroute/internal/metrics"
	"github.com/tributary-ai/octoroute/internal/routing"
	"github.com/tributary-ai/octoroute/internal/validate"
)

type requestIDKey struct{}

// Server wires every engine component (catalog, health, routing, dispatch,
// metrics, audit, validation) into the HTTP surface.
type Server struct {
	cat     *catalog.Catalog
	tracker *health.Tracker
	prober  *health.Prober
	router  *routing.Router
	disp    *dispatch.Dispatcher
	metrics *metrics.Sink
	audit   *audit.Logger
	schema  *validate.Schema
	limiter *validate.BodyLimiter

	defaultImportance routing.Importance

	httpServer *http.Server
	log        *logrus.Logger
	cfg        ServerConfig
}

// ServerConfig holds the listen address and timeouts, resolved from
// internal/config.Config by the caller.
type ServerConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxHeaderBytes int
}

// DefaultServerConfig fills in the timeouts the teacher hard-codes when
// the caller doesn't need to override them.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{ReadTimeout: 30 * time.Second, WriteTimeout: 0, MaxHeaderBytes: 1 << 20}
}

// New builds a Server from its fully-constructed collaborators.
func New(
	cat *catalog.Catalog,
	tracker *health.Tracker,
	prober *health.Prober,
	router *routing.Router,
	disp *dispatch.Dispatcher,
	sink *metrics.Sink,
	auditLogger *audit.Logger,
	schema *validate.Schema,
	limiter *validate.BodyLimiter,
	defaultImportance routing.Importance,
	cfg ServerConfig,
	log *logrus.Logger,
) *Server {
	return &Server{
		cat:               cat,
		tracker:           tracker,
		prober:            prober,
		router:            router,
		disp:              disp,
		metrics:           sink,
		audit:             auditLogger,
		schema:            schema,
		limiter:           limiter,
		defaultImportance: defaultImportance,
		cfg:               cfg,
		log:               log,
	}
}

// Start builds the route table and blocks serving HTTP until Stop shuts
// the listener down. WriteTimeout is left at 0 (no limit) so a streaming
// response is never cut off mid-stream.
func (s *Server) Start() error {
	r := s.setupRoutes()

	host := s.cfg.Host
	if host == "" {
		host = "0.0.0.0"
	}

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf("%s:%d", host, s.cfg.Port),
		Handler:        r,
		ReadTimeout:    s.cfg.ReadTimeout,
		WriteTimeout:   s.cfg.WriteTimeout,
		MaxHeaderBytes: s.cfg.MaxHeaderBytes,
	}

	s.log.WithFields(logrus.Fields{"host": s.cfg.Host, "port": s.cfg.Port}).Info("server: starting")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the HTTP listener down gracefully and flushes the audit log.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("server: shutting down")
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}
	s.audit.Stop()
	return nil
}

func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.contentTypeMiddleware)
	r.Use(s.timeoutMiddleware)

	r.HandleFunc("/v1/chat/completions", s.handleChatCompletion).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/chat", s.handleLegacyChat).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/v1/models", s.handleModels).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.setupSwaggerRoutes(r)

	return r
}

// Middleware

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return "unknown"
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.log.WithFields(logrus.Fields{
			"request_id":  requestID(r.Context()),
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("server: request completed")
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) contentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			ct := r.Header.Get("Content-Type")
			if ct != "" && ct != "application/json" {
				s.writeValidationError(w, r, "Content-Type must be application/json", "content_type")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// timeoutMiddleware bounds the request context to RequestTimeout, if
// configured. It deliberately does not use http.TimeoutHandler: that
// would buffer the response and break SSE, where the streaming loop
// already selects on the request context's Done channel and ends the
// stream cleanly once it fires.
func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.RequestTimeout <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
