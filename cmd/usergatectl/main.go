package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/uptrace/bun"

	"github.com/redmonkez12/usergate/internal/auth"
	"github.com/redmonkez12/usergate/internal/config"
	"github.com/redmonkez12/usergate/internal/database"
	"github.com/redmonkez12/usergate/internal/logging"
	"github.com/redmonkez12/usergate/internal/user"
)

func main() {
	if err := newRootCmd(openEnv).Execute(); err != nil {
		os.Exit(1)
	}
}

// env holds what the admin commands operate on.
type env struct {
	users   *user.Service
	auth    *auth.Service
	migrate func(ctx context.Context) error
	close   func() error
}

type opener func(ctx context.Context) (*env, error)

// openEnv wires the services against the configured PostgreSQL database.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	sqlDB, err := database.Open(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	hasher, err := auth.NewPasswordHasher(cfg.Auth.PasswordHasher)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	return newEnv(sqlDB, database.NewBunDB(sqlDB), database.DialectPostgres, cfg, hasher), nil
}

func newEnv(sqlDB *sql.DB, db *bun.DB, dialect string, cfg *config.Config, hasher auth.PasswordHasher) *env {
	logger := logging.NewLoggerWithWriter(os.Stderr, false)
	repo := user.NewRepository(db)
	tokens := auth.NewJWTService(cfg.Auth.JWTKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience, cfg.Auth.TokenTTL())

	return &env{
		users: user.NewService(repo, logger),
		auth:  auth.NewService(repo, tokens, hasher, logger),
		migrate: func(ctx context.Context) error {
			return database.Migrate(ctx, sqlDB, dialect)
		},
		close: db.Close,
	}
}
