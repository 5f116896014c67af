package server

import (
	"fmt"
	"net/http"
	"time"

	"kleiderkammer/internal/config"
	"kleiderkammer/internal/database"
	custommiddleware "kleiderkammer/internal/middleware"
	"kleiderkammer/internal/repository"
	"kleiderkammer/internal/service"
	"kleiderkammer/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) *Server {
	router := NewRouter(cfg, logger, db, redisClient)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}
}

// NewRouter wires repositories, services and handlers into a chi router.
// redisClient may be nil, which disables login rate limiting.
func NewRouter(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) http.Handler {
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.IsDevelopment()))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := db.Health(r.Context())
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, health)
	})

	// Initialize services
	store := repository.NewStore(db.DB())
	userService := service.NewUserService(store, service.TokenSettings{
		Secret:        cfg.JWT.Secret,
		AccessExpiry:  time.Duration(cfg.JWT.AccessExpiry) * time.Minute,
		RefreshExpiry: time.Duration(cfg.JWT.RefreshExpiry) * 24 * time.Hour,
	})
	catalogService := service.NewCatalogService(store)
	selectionService := service.NewSelectionService(store)
	importService := service.NewImportService(store)

	// Create auth middleware
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)

	var loginLimiter func(http.Handler) http.Handler
	if redisClient != nil {
		loginLimiter = custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.LoginRequests,
			Window:            cfg.RateLimit.LoginWindow,
			KeyPrefix:         "kleiderkammer:ratelimit:login",
		}, logger)
	}

	// Register routes
	transport.NewAuthHandler(userService, logger).RegisterRoutes(router, authMiddleware, loginLimiter)
	transport.NewCatalogHandler(catalogService, logger).RegisterRoutes(router, authMiddleware)
	transport.NewSelectionHandler(selectionService, logger).RegisterRoutes(router, authMiddleware)
	transport.NewImportHandler(importService, cfg.Import.MaxUploadBytes(), logger).RegisterRoutes(router, authMiddleware)

	return router
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
