// Package server exposes the HTTP API: price and chart lookups, streaming
// sessions over SSE and websocket, message generation, health and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"token-companion/internal/domain"
	"token-companion/internal/emotion"
	"token-companion/internal/observability"
	"token-companion/internal/stream"
)

// DefaultShutdownTimeout bounds http.Server.Shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// PriceService is implemented by aggregator.Service.
type PriceService interface {
	Price(ctx context.Context, address string) (domain.PriceResult, error)
	CacheLen(ctx context.Context) int
}

// ChartService is implemented by market.ChartService.
type ChartService interface {
	Snapshot(ctx context.Context, address string) (domain.ChartSnapshot, error)
}

// Sessions is implemented by stream.Manager.
type Sessions interface {
	Serve(ctx context.Context, address string, emit stream.Emitter) error
	Count() int
	CloseAll()
}

// Options holds server dependencies. Generator may be nil when message
// generation is not configured.
type Options struct {
	Addr      string
	Prices    PriceService
	Charts    ChartService
	Sessions  Sessions
	Generator emotion.Generator
	Logger    logrus.FieldLogger
}

// Server is the HTTP front end.
type Server struct {
	prices    PriceService
	charts    ChartService
	sessions  Sessions
	generator emotion.Generator
	log       logrus.FieldLogger

	router   *mux.Router
	http     *http.Server
	upgrader websocket.Upgrader
	started  time.Time
}

// New creates a server and registers its routes.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Server{
		prices:    opts.Prices,
		charts:    opts.Charts,
		sessions:  opts.Sessions,
		generator: opts.Generator,
		log:       log.WithField("component", "http"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		started: time.Now(),
	}
	s.router = s.routes()
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.cors, s.logRequests)

	r.HandleFunc("/price", s.handlePrice).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/chart", s.handleChart).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	r.HandleFunc("/generate-message", s.handleGenerateMessage).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)
	return r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then closes streaming sessions and shuts
// the listener down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.http.Addr).Info("http server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down http server")
	// Open streams hold their handlers; close them before Shutdown waits.
	s.sessions.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).Round(time.Millisecond).String(),
		}).Debug("request")
	})
}
