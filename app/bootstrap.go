package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"authcore/internal/auth"
	"authcore/internal/config"
	"authcore/internal/maintenance"
	"authcore/internal/observability"
)

type Options struct {
	LoadDotEnv bool
}

// Runtime holds the wired auth core. The HTTP layer that fronts Service
// lives outside this module; it consumes Runtime directly.
type Runtime struct {
	Config  config.Config
	Service *auth.Service
	Sweeper *maintenance.Sweeper
	Logger  *observability.Logger
	Close   func()
}

// Build loads configuration and wires the store, token issuer, rate
// limiter, service and sweeper together.
func Build(ctx context.Context, options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger().WithDebug(cfg.Debug)

	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.DBMaxConns)
	poolConfig.MinConns = int32(cfg.DBMinConns)
	poolConfig.MaxConnLifetime = cfg.DBConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.DBConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := auth.NewRepository(pool)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiration)
	limiter := auth.NewRateLimiter(repo, cfg.MaxLoginAttempts, cfg.MaxIPAttempts, cfg.LoginAttemptWindow)
	service := auth.NewService(repo, tokens, limiter, logger, cfg.StaleSessionAfter)
	sweeper := maintenance.NewSweeper(
		repo,
		logger,
		cfg.PresenceOfflineAfter,
		cfg.SessionRetention,
		cfg.LoginAttemptRetention,
		cfg.SweepBatchSize,
	)

	return &Runtime{
		Config:  cfg,
		Service: service,
		Sweeper: sweeper,
		Logger:  logger,
		Close: func() {
			observability.FlushSentry()
			pool.Close()
		},
	}, nil
}
