package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/robct07/SweetHome/internal/handler"
	"github.com/robct07/SweetHome/internal/middleware"
	"github.com/robct07/SweetHome/internal/realtime"
	"github.com/robct07/SweetHome/internal/store"
)

// Config carries the server's tunable settings.
type Config struct {
	InviteTTL time.Duration
}

type Server struct {
	db           *sql.DB
	hub          *realtime.Hub
	authH        *handler.AuthHandler
	inviteH      *handler.InviteHandler
	memoryH      *handler.MemoryHandler
	sessionStore *store.SessionStore
	inviteStore  *store.InviteStore
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := realtime.NewHub(logger.With("component", "realtime"))

	accountStore := store.NewAccountStore(db)
	sessionStore := store.NewSessionStore(db)
	inviteStore := store.NewInviteStore(db, cfg.InviteTTL)
	relationshipStore := store.NewRelationshipStore(db)
	memoryStore := store.NewMemoryStore(db)

	return &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(accountStore, sessionStore, relationshipStore, logger.With("component", "auth")),
		inviteH:      handler.NewInviteHandler(inviteStore, relationshipStore, hub, logger.With("component", "invite")),
		memoryH:      handler.NewMemoryHandler(memoryStore, relationshipStore, hub, logger.With("component", "memory")),
		sessionStore: sessionStore,
		inviteStore:  inviteStore,
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// InviteStore returns the invite store for cleanup tasks.
func (s *Server) InviteStore() *store.InviteStore {
	return s.inviteStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/accounts", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/sessions", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Account routes
	mux.HandleFunc("DELETE /api/sessions", s.authH.Logout)
	mux.HandleFunc("GET /api/accounts/me", s.authH.Me)

	// Invite routes
	mux.HandleFunc("POST /api/invites", s.inviteH.Create)
	mux.HandleFunc("GET /api/invites/{code}", s.inviteH.Get)
	mux.HandleFunc("DELETE /api/invites/{code}", s.inviteH.Revoke)
	mux.HandleFunc("POST /api/invites/{code}/redeem", s.inviteH.Redeem)

	// Relationship routes
	mux.HandleFunc("GET /api/relationship", s.inviteH.Relationship)

	// Memory routes
	mux.HandleFunc("POST /api/memories", s.memoryH.Create)
	mux.HandleFunc("GET /api/memories", s.memoryH.List)
	mux.HandleFunc("DELETE /api/memories/{id}", s.memoryH.Delete)

	// WebSocket
	mux.HandleFunc("GET /ws", realtime.HandleWebSocket(s.hub))
}
