// Package server exposes the agent over HTTP: conversation management as
// JSON endpoints and message processing as a Server-Sent Events stream.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/pulsechat/pulsechat/agent"
	"github.com/pulsechat/pulsechat/auth"
	"github.com/pulsechat/pulsechat/store"
)

// HealthChecker reports whether an external dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithCORSOrigins sets the allowed CORS origins. Default allows all.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithHealthChecker registers a dependency probe for the health endpoint.
func WithHealthChecker(name string, hc HealthChecker) Option {
	return func(s *Server) {
		s.checks[name] = hc
	}
}

// WithAgentOptions sets the per-invocation options passed to the agent for
// every chat message.
func WithAgentOptions(opts ...agent.Option) Option {
	return func(s *Server) {
		s.agentOpts = opts
	}
}

// Server wires the HTTP surface to the agent and the store.
type Server struct {
	agent    *agent.Agent
	store    store.Store
	verifier *auth.Verifier

	logger      *slog.Logger
	corsOrigins []string
	checks      map[string]HealthChecker
	agentOpts   []agent.Option
}

// New creates a server around an agent, a store, and a token verifier.
func New(a *agent.Agent, st store.Store, v *auth.Verifier, opts ...Option) *Server {
	s := &Server{
		agent:       a,
		store:       st,
		verifier:    v,
		logger:      slog.Default(),
		corsOrigins: []string{"*"},
		checks:      make(map[string]HealthChecker),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler assembles the full middleware chain and route table.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/chat/conversations", s.handleCreateConversation).Methods(http.MethodPost)
	r.HandleFunc("/chat/conversations", s.handleListConversations).Methods(http.MethodGet)
	r.HandleFunc("/chat/conversations/{id}/messages", s.handleListMessages).Methods(http.MethodGet)
	r.HandleFunc("/chat/message", s.handleChatMessage).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	var h http.Handler = r
	h = s.verifier.Middleware("/health")(h)
	h = s.requestLogging(h)
	h = requestID(h)
	return c.Handler(h)
}

type ctxKeyRequestID struct{}

// requestID tags every request with an ID for log correlation.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestIDFrom(r.Context()),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return id
}

func (s *Server) requestLogger(r *http.Request) *slog.Logger {
	return s.logger.With("request_id", requestIDFrom(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
