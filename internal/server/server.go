// Package server exposes the ledger over HTTP: append, search,
// verification, export and a websocket feed of committed entries.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/nchat-dev/auditledger/internal/auth"
	"github.com/nchat-dev/auditledger/internal/chain"
	"github.com/nchat-dev/auditledger/internal/export"
	"github.com/nchat-dev/auditledger/internal/integrity"
	"github.com/nchat-dev/auditledger/internal/search"
	"github.com/nchat-dev/auditledger/internal/store"
)

// Config holds server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string       // CORS origins; empty means localhost only
	SearchMaxLimit int            // page size cap; zero means the search default
	Export         export.Options // deployment identity for syslog/CEF exports
}

// Server wires the ledger components behind the HTTP API.
type Server struct {
	cfg        Config
	store      store.Store
	writer     *chain.Writer
	index      *search.Index
	verifier   *integrity.Verifier
	exporter   *export.Exporter
	authmw     *auth.Middleware
	hub        *Hub
	log        *zap.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a server over an already-opened store and writer. The
// writer must have been built with WithListener(hub) wiring done by
// the caller via Stream(); New subscribes itself.
func New(cfg Config, st store.Store, writer *chain.Writer, authSvc *auth.Service, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		store:    st,
		writer:   writer,
		index:    search.NewIndex(st, search.WithLogger(log), search.WithMaxLimit(cfg.SearchMaxLimit)),
		verifier: integrity.New(st, integrity.WithLogger(log)),
		authmw:   auth.NewMiddleware(authSvc, log),
		hub:      NewHub(log),
		log:      log,
	}
	s.exporter = export.New(s.index, cfg.Export, log)
	writer.Subscribe(s.hub.Publish)

	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(s.cfg.AllowedOrigins) > 0 {
		corsOpts.AllowedOrigins = s.cfg.AllowedOrigins
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"head":   s.writer.Head(),
		})
	})

	r.Route("/api/audit", func(r chi.Router) {
		r.With(s.authmw.Require(auth.ScopeAppend)).Post("/entries", s.handleAppend)

		r.Group(func(r chi.Router) {
			r.Use(s.authmw.Require(auth.ScopeRead))
			r.Get("/entries", s.handleSearch)
			r.Get("/entries/{block}", s.handleGetEntry)
			r.Get("/export", s.handleExport)
			r.Get("/head", s.handleHead)
			r.Get("/stats", s.handleStats)
		})

		r.With(s.authmw.Require(auth.ScopeAdmin)).Get("/verify", s.handleVerify)
	})

	r.With(s.authmw.Require(auth.ScopeRead)).Get("/ws/audit", s.handleStream)

	return r
}

// requestLogger logs one line per request through the server's logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.log.Info("audit ledger server listening", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server and disconnects stream
// clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
