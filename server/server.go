// Package server is the Marquee HTTP API: session and account endpoints over
// the identity projection, catalog browsing endpoints over the metadata
// provider, the account activity feed, and the embedded browser UI.
package server

import (
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/marquee-labs/marquee/bus"
	"github.com/marquee-labs/marquee/catalog"
	"github.com/marquee-labs/marquee/identity"
)

// ServerConfig configures a Server instance.
type ServerConfig struct {
	Session    *identity.Session
	Catalog    *catalog.Client
	HomeCache  *catalog.HomeCache
	EventStore bus.EventStore
	// Events is the live event stream handler, mounted at GET /api/events.
	Events http.Handler
	// UI is the embedded static UI filesystem. Nil disables UI serving.
	UI         fs.FS
	CORSOrigin string
	MaxBody    int64
	Logger     *slog.Logger
}

// Server is the Marquee HTTP API server.
type Server struct {
	session    *identity.Session
	catalog    *catalog.Client
	homeCache  *catalog.HomeCache
	eventStore bus.EventStore
	events     http.Handler
	ui         fs.FS
	corsOrigin string
	maxBody    int64
	logger     *slog.Logger
}

// NewServer creates a new Server with the given configuration.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	corsOrigin := cfg.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = 1 << 20 // 1 MB default
	}
	return &Server{
		session:    cfg.Session,
		catalog:    cfg.Catalog,
		homeCache:  cfg.HomeCache,
		eventStore: cfg.EventStore,
		events:     cfg.Events,
		ui:         cfg.UI,
		corsOrigin: corsOrigin,
		maxBody:    maxBody,
		logger:     logger,
	}
}

// Handler returns an http.Handler with all routes and middleware wired.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = s.corsMiddleware(handler)
	handler = s.maxBodyMiddleware(handler)

	return handler
}

// RegisterRoutes mounts API routes onto an existing mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	// Auth routes
	mux.HandleFunc("POST /api/auth/signup", s.handleSignup)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/auth/me", s.handleMe)
	mux.HandleFunc("PATCH /api/auth/profile", s.handleUpdateProfile)
	mux.HandleFunc("DELETE /api/auth/account", s.handleDeleteAccount)

	// Watchlist routes
	mux.HandleFunc("GET /api/watchlist", s.handleGetWatchlist)
	mux.HandleFunc("PUT /api/watchlist/{id}", s.handleAddToWatchlist)
	mux.HandleFunc("DELETE /api/watchlist/{id}", s.handleRemoveFromWatchlist)
	mux.HandleFunc("DELETE /api/watchlist", s.handleClearWatchlist)

	// Catalog routes
	mux.HandleFunc("GET /api/movies/home", s.handleHome)
	mux.HandleFunc("GET /api/movies/{category}", s.handleListByCategory)
	mux.HandleFunc("GET /api/movies/genre/{id}", s.handleDiscoverByGenre)
	mux.HandleFunc("GET /api/movie/{id}", s.handleMovieDetails)
	mux.HandleFunc("GET /api/movie/{id}/videos", s.handleMovieVideos)
	mux.HandleFunc("GET /api/search", s.handleSearch)

	// Activity routes
	mux.HandleFunc("GET /api/activity", s.handleActivity)
	if s.events != nil {
		mux.Handle("GET /api/events", s.events)
	}

	if s.ui != nil {
		mux.HandleFunc("GET /", s.handleUI)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Middleware ---

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) maxBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		next.ServeHTTP(w, r)
	})
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// apiError is the standard error envelope.
type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string, details ...string) {
	body := apiError{
		Error: apiErrorBody{
			Code:    code,
			Message: message,
		},
	}
	if len(details) > 0 {
		body.Error.Details = details
	}
	writeJSON(w, status, body)
}
