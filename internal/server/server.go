// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware, and
// routes, and decides:
//   - Which URL patterns map to which handler functions
//   - What middleware runs on which routes
//   - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	cmd/server loads config.Config → server.New
//	server.New opens sqlite.DB and the Google provider → NewWithDeps
//	NewWithDeps: DB → services → handlers → routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place, and tests call NewWithDeps with an in-memory DB and a fake provider.
package server

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sakif/trading-post/internal/auth"
	"github.com/sakif/trading-post/internal/config"
	"github.com/sakif/trading-post/internal/handler"
	"github.com/sakif/trading-post/internal/metrics"
	"github.com/sakif/trading-post/internal/middleware"
	sqliteRepo "github.com/sakif/trading-post/internal/repository/sqlite"
	"github.com/sakif/trading-post/internal/service"
	"github.com/sakif/trading-post/web"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection and the rate limiter's cleanup
// goroutine. Close releases both; Start calls it on the way out.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	auth    *service.AuthService
	limiter *middleware.RateLimiter
}

// Deps are the external resources a Server is built on.
type Deps struct {
	DB       *sqliteRepo.DB
	Provider auth.Provider
	// Registry receives the app's metrics and backs /metrics. Tests pass a
	// fresh prometheus.NewRegistry() so runs don't collide.
	Registry *prometheus.Registry
}

// New opens the database and the Google provider described by cfg.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	provider := auth.NewGoogleProvider(auth.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s, err := NewWithDeps(cfg, Deps{DB: db, Provider: provider, Registry: reg}, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDeps wires a Server around existing resources. The Server takes
// ownership of deps.DB.
func NewWithDeps(cfg *config.Config, deps Deps, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	collector := metrics.NewCollector(deps.Registry)

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     deps.DB,
	}

	// === Services ===
	// *sqliteRepo.DB implements every repository interface.
	s.auth = service.NewAuthService(deps.DB, deps.DB, tokens, deps.Provider, collector, logger)
	catalog := service.NewCatalogService(deps.DB, deps.DB, deps.DB, collector, logger)
	messages := service.NewMessageService(deps.DB, deps.DB, collector, logger)

	// === Handlers ===
	pages, err := handler.NewPages(web.FS, catalog, cfg.CookieSecure, logger)
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	h := routeHandlers{
		auth:     handler.NewAuthHandler(s.auth, pages, logger),
		catalog:  handler.NewCatalogHandler(catalog, pages, logger),
		messages: handler.NewMessageHandler(messages, catalog, s.auth, pages, logger),
		pages:    pages,
	}

	s.limiter = middleware.NewRateLimiter(middleware.RateLimitConfig{
		PerMinute: cfg.MessageRate,
		Burst:     cfg.MessageBurst,
		OnLimit:   http.HandlerFunc(pages.TooManyRequests),
		Logger:    logger,
	})

	authMW := auth.NewMiddleware(tokens, deps.DB, logger)

	if err := s.setupRoutes(h, authMW, collector, deps.Registry); err != nil {
		s.limiter.Stop()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

type routeHandlers struct {
	auth     *handler.AuthHandler
	catalog  *handler.CatalogHandler
	messages *handler.MessageHandler
	pages    *handler.Pages
}

// setupRoutes configures all middleware and route handlers.
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns a unique ID to each request (for tracing)
//  2. RealIP: extracts the client IP from proxy headers
//  3. Logger: logs each request with timing info
//  4. Recoverer: turns panics into 500s (inside Logger, so they get logged)
//  5. Metrics: counts requests by route pattern
//
// Page routes then add CSRF and session resolution; account routes add
// RequireAuth; the two message-sending POSTs add the rate limiter.
func (s *Server) setupRoutes(h routeHandlers, authMW *auth.Middleware, collector *metrics.Collector, gatherer prometheus.Gatherer) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Metrics(collector))

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.pages.RenderError(w, r, http.StatusNotFound, "The page you asked for does not exist.")
	})

	// === Static files and operations ===
	static, err := fs.Sub(web.FS, "static")
	if err != nil {
		return fmt.Errorf("static files: %w", err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	s.router.Handle("/metrics", metrics.Handler(gatherer))
	s.router.Get("/healthz", s.handleHealth)

	// === JSON feeds ===
	s.router.Get("/locations/JSON", h.catalog.HandleLocationsJSON)
	s.router.Get("/locations/{id}/JSON", h.catalog.HandleLocationItemsJSON)
	s.router.Get("/items/JSON", h.catalog.HandleItemsJSON)

	// === Pages ===
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.CSRF(middleware.CSRFConfig{
			CookieSecure: s.config.CookieSecure,
			Exempt:       []string{"POST /oauth/callback"},
			Logger:       s.logger,
		}))
		r.Use(authMW.OptionalAuth)

		r.Get("/", h.catalog.HandleHome)
		r.Get("/login", h.auth.HandleLogin)
		r.Get("/oauth/callback", h.auth.HandleCallback)
		r.Post("/oauth/callback", h.auth.HandleTokenCallback)
		r.Get("/oauth/disconnect", h.auth.HandleDisconnect)

		r.Get("/locations/{id}/", h.catalog.HandleLocation)
		r.Get("/locations/{id}/items/", h.catalog.HandleLocation)
		r.Get("/items/{id}", h.catalog.HandleItem)

		r.Group(func(r chi.Router) {
			r.Use(authMW.RequireAuth)

			r.With(s.limiter.Limit).Post("/items/{id}", h.messages.HandleSend)

			r.Get("/user/items/", h.catalog.HandleUserItems)
			r.Get("/user/items/{id}", h.catalog.HandleUserItem)
			r.Get("/user/messages", h.messages.HandleInbox)

			r.Get("/messages/{id}/reply", h.messages.HandleReplyForm)
			r.With(s.limiter.Limit).Post("/messages/{id}/reply", h.messages.HandleReply)
			r.Get("/messages/{id}/delete", h.messages.HandleDeleteForm)
			r.Post("/messages/{id}/delete", h.messages.HandleDelete)

			r.Get("/additem", h.catalog.HandleNewItem)
			r.Post("/additem", h.catalog.HandleCreateItem)
			r.Get("/items/{id}/edit", h.catalog.HandleEditItem)
			r.Post("/items/{id}/edit", h.catalog.HandleUpdateItem)
			r.Get("/items/{id}/delete", h.catalog.HandleDeleteItemForm)
			r.Post("/items/{id}/delete", h.catalog.HandleDeleteItem)
		})
	})

	return nil
}

// Handler returns the root HTTP handler. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// sweepSessions deletes expired sessions every interval until ctx is done.
func (s *Server) sweepSessions(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.auth.SweepSessions(ctx)
			if err != nil {
				s.logger.Error("sweeping sessions", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				s.logger.Info("expired sessions removed", slog.Int64("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close stops background work and closes the database.
func (s *Server) Close() error {
	s.limiter.Stop()
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Stop the session sweeper and close the database
func (s *Server) Start() error {
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.sweepSessions(ctx, s.config.SweepInterval)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.BaseURL),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelShutdown()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
