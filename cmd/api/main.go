package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"kleiderkammer/internal/config"
	"kleiderkammer/internal/database"
	"kleiderkammer/internal/logger"
	"kleiderkammer/internal/repository"
	"kleiderkammer/internal/server"
	"kleiderkammer/internal/service"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	shutdownTimeout      = 30 * time.Second
	sessionPurgeInterval = time.Hour
)

// gracefulShutdown waits for ctx to be cancelled by SIGINT or SIGTERM, then
// drains in-flight requests and releases the database and Redis.
func gracefulShutdown(ctx context.Context, stop context.CancelFunc, apiServer *server.Server, log *zap.Logger, done chan<- struct{}) {
	defer close(done)
	<-ctx.Done()

	log.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // a second signal kills the process

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := apiServer.Close(); err != nil {
		log.Error("Error closing server resources", zap.Error(err))
	}
}

// purgeSessions deletes logged out and expired refresh tokens until ctx ends
func purgeSessions(ctx context.Context, users service.UserService, log *zap.Logger) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := users.PurgeSessions(ctx)
			if err != nil {
				log.Error("Failed to purge sessions", zap.Error(err))
				continue
			}
			log.Debug("Purged sessions", zap.Int64("count", purged))
		}
	}
}

// connectRedis returns nil when Redis is unreachable so the API still starts
// without login rate limiting.
func connectRedis(cfg config.RedisConfig, log *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unavailable, login rate limiting disabled",
			zap.String("addr", cfg.Addr()),
			zap.Error(err),
		)
		client.Close()
		return nil
	}
	return client
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		log = logger.NewWithDefaults()
		log.Warn("Falling back to default logger", zap.Error(err))
	}
	defer log.Sync()

	if cfg.JWT.Secret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	log.Info("Starting kleiderkammer API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	// Initialize database
	dbService, err := database.New(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	health := dbService.Health(context.Background())
	log.Info("Database health check", zap.Any("health", health))

	// Run migrations
	if err := database.RunMigrations(context.Background(), dbService.DB(), log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Make sure an admin account exists
	users := service.NewUserService(repository.NewStore(dbService.DB()), service.TokenSettings{Secret: cfg.JWT.Secret})
	created, err := users.EnsureAdmin(context.Background(), cfg.Admin.Username, cfg.Admin.Password, cfg.Admin.Bekleidungsnummer)
	if err != nil {
		log.Fatal("Failed to bootstrap admin account", zap.Error(err))
	}
	if created {
		log.Info("Admin account created", zap.String("username", cfg.Admin.Username))
	}

	redisClient := connectRedis(cfg.Redis, log)

	// Create server
	srv := server.NewServer(cfg, log, dbService, redisClient)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go gracefulShutdown(ctx, stop, srv, log, done)
	go purgeSessions(ctx, users, log)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Info("Graceful shutdown complete")
}
