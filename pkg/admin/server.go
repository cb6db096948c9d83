// Package admin exposes a BufferPoolManager's internal state over HTTP:
// JSON stats, a Prometheus scrape endpoint, a live event websocket, and a
// read-only GraphQL introspection query. None of it can mutate the pool.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/corviddb/pagecache/pkg/buffer"
)

// Server is the admin HTTP surface over one BufferPoolManager.
type Server struct {
	config  *Config
	bp      *buffer.BufferPoolManager
	router  *chi.Mux
	httpSrv *http.Server
	events  *EventBroadcaster
	logger  *log.Logger
}

// New builds a Server for bp. It wires bp's event sink to the websocket
// broadcaster, so Start doesn't need to be called for events to flow —
// only for the HTTP listener.
func New(config *Config, bp *buffer.BufferPoolManager) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	logger := log.New(os.Stderr, "admin: ", log.LstdFlags)

	graphqlHandler, err := NewGraphQLHandler(bp)
	if err != nil {
		return nil, fmt.Errorf("admin: build graphql schema: %w", err)
	}

	s := &Server{
		config: config,
		bp:     bp,
		router: chi.NewRouter(),
		events: NewEventBroadcaster(logger),
		logger: logger,
	}
	bp.SetEventSink(s.events.Broadcast)

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	if config.EnableLogging {
		s.router.Use(middleware.Logger)
	}
	if config.EnableCORS {
		s.router.Use(corsMiddleware)
	}
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Get("/stats", s.handleStats)
	s.router.Get("/metrics", s.handleMetrics)
	s.router.Get("/ws/events", s.events.ServeHTTP)
	s.router.Handle("/graphql", graphqlHandler)

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s, nil
}

// Router exposes the underlying chi.Mux, mainly so tests can drive routes
// without a real listener.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start blocks serving HTTP until the server is shut down or fails.
func (s *Server) Start() error {
	s.logger.Printf("admin surface listening on %s", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("admin: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.bp.Stats())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	exporter := NewPrometheusExporter(s.bp, "pagecache")
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	if err := exporter.WriteMetrics(w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
