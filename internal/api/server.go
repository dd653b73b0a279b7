// Package api exposes the retrieval operations and the chat session over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hrag/internal/domain"
	"hrag/internal/retrieval"
)

// Engine is the retrieval surface served by the search endpoints.
type Engine interface {
	ByLevel(ctx context.Context, query string, level int) ([]domain.Chunk, error)
	AcrossLevels(ctx context.Context, query string, high, low int) ([]domain.Chunk, *retrieval.Descent, error)
	Cite(ctx context.Context, keyword string, high int) ([]retrieval.Citation, *retrieval.Descent, error)
	AcrossLevelsBatch(ctx context.Context, queries []retrieval.RangeQuery) ([]retrieval.BatchResult, error)
}

// Asker answers one question within a conversation.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// SessionFactory starts a new conversation. Nil disables /api/chat.
type SessionFactory func() Asker

// Server is the HTTP API server for hierarchical retrieval.
type Server struct {
	router     chi.Router
	engine     Engine
	newSession SessionFactory
	apiKey     string
	maxBatch   int
	log        *slog.Logger

	turnTimeout time.Duration
	sessionTTL  time.Duration
	maxSessions int
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*chatSession
}

type chatSession struct {
	asker    Asker
	lastUsed time.Time
}

// Options configures a Server.
type Options struct {
	// APIKey enables bearer authentication on /api routes when non-empty.
	APIKey string
	// MaxBatch caps the number of queries in one batch request.
	MaxBatch int
	// TurnTimeout bounds one chat question. Zero leaves only the request context.
	TurnTimeout time.Duration
	// SessionTTL drops chat sessions idle for longer than this.
	SessionTTL time.Duration
	// MaxSessions caps live chat sessions; the least recently used is evicted.
	MaxSessions int
}

// NewServer creates and configures the HTTP server.
func NewServer(engine Engine, sessions SessionFactory, opts Options, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = 64
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 1000
	}
	s := &Server{
		engine:      engine,
		newSession:  sessions,
		apiKey:      opts.APIKey,
		maxBatch:    opts.MaxBatch,
		log:         log,
		turnTimeout: opts.TurnTimeout,
		sessionTTL:  opts.SessionTTL,
		maxSessions: opts.MaxSessions,
		now:         time.Now,
		sessions:    make(map[string]*chatSession),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.apiKey != "" {
			r.Use(AuthMiddleware(s.apiKey))
		}

		r.Post("/api/search/level", s.handleSearchLevel)
		r.Post("/api/search/range", s.handleSearchRange)
		r.Post("/api/search/range/batch", s.handleSearchBatch)
		r.Post("/api/search/cite", s.handleCite)

		r.Post("/api/chat", s.handleChat)
		r.Delete("/api/chat/{sessionID}", s.handleEndChat)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
