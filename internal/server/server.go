package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gamevault/apiserver/config"
	"github.com/gamevault/apiserver/internal/auth"
	"github.com/gamevault/apiserver/internal/bootstrap"
	"github.com/gamevault/apiserver/internal/clock"
	"github.com/gamevault/apiserver/internal/handlers"
	"github.com/gamevault/apiserver/internal/imaging"
	"github.com/gamevault/apiserver/internal/mq"
	"github.com/gamevault/apiserver/internal/services"
	"github.com/gamevault/apiserver/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Server wraps the HTTP server, router and the resources they own.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	repos      *Repositories
	bus        *mq.Bus
	logger     *zap.Logger
}

// New wires every dependency from cfg and runs the bootstrap steps. It
// returns only once the schema is migrated, so a Server is always ready to
// serve.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	clk := clock.New()
	repos, err := OpenRepositories(ctx, cfg, clk)
	if err != nil {
		return nil, &bootstrap.FatalError{Step: "database", Err: err}
	}

	hasher := auth.NewHasher(0)
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, clk)
	userService := services.NewUserService(repos.Users, hasher)
	authService := services.NewAuthService(repos.Users, hasher, tokens)

	var source bootstrap.Source
	if cfg.Catalog.SeedFile != "" {
		source = bootstrap.FileSource(cfg.Catalog.SeedFile)
	}
	boot := bootstrap.New(repos.Migrate, userService, repos.Games, cfg.Admin, source, logger.Named("bootstrap"))
	if _, err := boot.Run(ctx); err != nil {
		_ = repos.Close()
		return nil, err
	}

	opts := services.CatalogOptions{
		DefaultLimit: cfg.Catalog.DefaultLimit,
		MaxLimit:     cfg.Catalog.MaxLimit,
		Clock:        clk,
		Logger:       logger.Named("catalog"),
	}

	covers, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	if covers != nil {
		opts.Covers = covers
		opts.Images = imaging.NewProcessor(cfg.Storage.ImageMaxWidth)
		logger.Info("cover uploads enabled", zap.String("backend", cfg.Storage.Backend))
	}

	bus, err := mq.New(ctx, cfg.MQ)
	if err != nil {
		logger.Warn("catalog events disabled: broker unavailable", zap.String("backend", cfg.MQ.Backend), zap.Error(err))
	}
	if bus != nil {
		opts.Events = bus
		logger.Info("catalog events enabled", zap.String("backend", cfg.MQ.Backend), zap.String("channel", bus.Channel()))
	}

	catalog := services.NewCatalogService(repos.Games, opts)

	router := NewRouter(
		logger,
		cfg.CORSOrigins,
		handlers.NewAuthHandler(userService, authService, logger.Named("auth")),
		handlers.NewGameHandler(catalog, logger.Named("games")),
		handlers.NewAdminHandler(boot, logger.Named("admin")),
	)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		repos:      repos,
		bus:        bus,
		logger:     logger,
	}, nil
}

// NewRouter builds the chi router with middleware and all routes.
func NewRouter(
	logger *zap.Logger,
	corsOrigins []string,
	authHandler *handlers.AuthHandler,
	gameHandler *handlers.GameHandler,
	adminHandler *handlers.AdminHandler,
) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		handlers.RequestLogger(logger.Named("http")),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{
				http.MethodGet, http.MethodPost, http.MethodPut,
				http.MethodPatch, http.MethodDelete, http.MethodOptions,
			},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         300,
		}),
	)
	router.Get("/healthz", handlers.Health)
	router.Get("/health", handlers.Health)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler)
	})
	router.Route("/games", func(r chi.Router) {
		handlers.GameRouter(r, gameHandler, authHandler.RequireAdmin)
	})
	router.Route("/admin", func(r chi.Router) {
		handlers.AdminRouter(r, adminHandler, authHandler.RequireAdmin)
	})
	return router
}

// Router exposes the chi router.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx
// expires and then releases the broker and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.bus != nil {
		if closeErr := s.bus.Close(); closeErr != nil {
			s.logger.Warn("failed to close broker", zap.Error(closeErr))
		}
	}
	if closeErr := s.repos.Close(); closeErr != nil {
		s.logger.Warn("failed to close database", zap.Error(closeErr))
	}
	return err
}
