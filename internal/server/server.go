// Package server provides the HTTP surface of the Lumo API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sarvesh-official/lumo/internal/chat"
	"github.com/sarvesh-official/lumo/internal/event"
	"github.com/sarvesh-official/lumo/internal/identity"
	"github.com/sarvesh-official/lumo/internal/logging"
	"github.com/sarvesh-official/lumo/internal/storage"
)

// Config holds server configuration.
type Config struct {
	Port         int
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // no write timeout, turns stream over SSE
	}
}

// Deps are the collaborators the handlers dispatch to. Everything is
// injected; the server owns no domain state of its own.
type Deps struct {
	Verifier     identity.Verifier
	Sessions     *chat.Service
	Orchestrator *chat.Orchestrator
	Titles       *chat.Synthesizer
	Store        *storage.Store
	Bus          *event.Bus
}

// Server is the HTTP server.
type Server struct {
	config  *Config
	router  *chi.Mux
	httpSrv *http.Server

	verifier identity.Verifier
	sessions *chat.Service
	orch     *chat.Orchestrator
	titles   *chat.Synthesizer
	store    *storage.Store
	bus      *event.Bus
}

// New creates a Server and wires its routes.
func New(cfg *Config, deps Deps) *Server {
	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		verifier: deps.Verifier,
		sessions: deps.Sessions,
		orch:     deps.Orchestrator,
		titles:   deps.Titles,
		store:    deps.Store,
		bus:      deps.Bus,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// requestLogger logs one structured line per completed request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logging.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("requestId", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// requireUser authenticates the bearer token and stores the verified user
// ID in the request context. Every handler behind it can assume a caller.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "missing credentials")
			return
		}

		userID, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid credentials")
			return
		}

		next.ServeHTTP(w, r.WithContext(identity.WithUser(r.Context(), userID)))
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the chi router, used by tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
