// Package database owns the PostgreSQL pool and the schema migrations that
// back the user, token and audit repositories.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	connLifetime   = 30 * time.Minute
	connIdleTime   = 5 * time.Minute
	healthInterval = 30 * time.Second
	connectTimeout = 10 * time.Second
)

type DB struct {
	Pool *pgxpool.Pool
}

// New connects to databaseURL and fails unless the server answers a ping.
// maxConns <= 0 keeps the pgx default; minConns is clamped to maxConns.
func New(ctx context.Context, databaseURL string, maxConns int32, minConns int32) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	tunePool(cfg, maxConns, minConns)

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("database connected",
		"host", cfg.ConnConfig.Host,
		"database", cfg.ConnConfig.Database,
		"max_conns", cfg.MaxConns,
		"min_conns", cfg.MinConns)
	return &DB{Pool: pool}, nil
}

func tunePool(cfg *pgxpool.Config, maxConns int32, minConns int32) {
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MinConns = max(0, min(minConns, cfg.MaxConns))
	cfg.MaxConnLifetime = connLifetime
	cfg.MaxConnIdleTime = connIdleTime
	cfg.HealthCheckPeriod = healthInterval
}

func (db *DB) Close() {
	if db != nil && db.Pool != nil {
		db.Pool.Close()
	}
}

// Health backs GET /health.
func (db *DB) Health(ctx context.Context) error {
	if db == nil || db.Pool == nil {
		return errors.New("database pool is not initialized")
	}
	return db.Pool.Ping(ctx)
}
