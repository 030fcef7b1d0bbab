package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/usergate/internal/auth"
	"github.com/redmonkez12/usergate/internal/config"
	"github.com/redmonkez12/usergate/internal/database"
	httpServer "github.com/redmonkez12/usergate/internal/http"
	"github.com/redmonkez12/usergate/internal/logging"
	"github.com/redmonkez12/usergate/internal/ratelimit"
	"github.com/redmonkez12/usergate/internal/user"
)

// @title           usergate API
// @version         1.0
// @description     User registration, login and account gating with bearer tokens.

// @host      localhost:8080
// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Missing token settings are fatal here, before anything listens.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"password_hasher", cfg.Auth.PasswordHasher,
	)

	db, err := initDB(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	redisClient, err := initRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	hasher, err := auth.NewPasswordHasher(cfg.Auth.PasswordHasher)
	if err != nil {
		return err
	}

	userRepo := user.NewRepository(db)
	rateLimiter := ratelimit.NewLimiter(redisClient, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	tokenService := auth.NewJWTService(cfg.Auth.JWTKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience, cfg.Auth.TokenTTL())

	authService := auth.NewService(userRepo, tokenService, hasher, logger)
	gate := auth.NewGate(tokenService, userRepo, logger)
	userService := user.NewService(userRepo, logger)

	router := httpServer.NewRouter(cfg, httpServer.Handlers{
		Auth:           auth.NewHandler(authService, rateLimiter),
		Users:          user.NewHandler(userService),
		AuthMiddleware: auth.NewMiddleware(gate),
	}, logger)

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// initDB opens PostgreSQL, applies pending migrations when enabled and
// returns a Bun DB instance.
func initDB(cfg config.DatabaseConfig, logger *logging.Logger) (*bun.DB, error) {
	sqlDB, err := database.Open(cfg.ConnectionString())
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := database.Migrate(context.Background(), sqlDB, database.DialectPostgres); err != nil {
			sqlDB.Close()
			return nil, err
		}
		logger.Info("database migrations applied")
	}

	return database.NewBunDB(sqlDB), nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
