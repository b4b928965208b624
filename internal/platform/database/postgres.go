package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sethvargo/go-retry"
)

// PoolOptions sizes the connection pool. Zero fields fall back to defaults.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// ConnectAttempts bounds how many times the first ping is tried while the
	// database container is still starting.
	ConnectAttempts int
	RetryDelay      time.Duration
}

func (o PoolOptions) withDefaults() PoolOptions {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 20
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = 5
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = 30 * time.Minute
	}
	if o.ConnMaxIdleTime <= 0 {
		o.ConnMaxIdleTime = 5 * time.Minute
	}
	if o.ConnectAttempts <= 0 {
		o.ConnectAttempts = 5
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
	return o
}

// NewPostgres opens a pooled sqlx.DB for the account and image stores and
// waits for the server to accept connections.
func NewPostgres(ctx context.Context, url string, opts PoolOptions, logger *slog.Logger) (*sqlx.DB, error) {
	if url == "" {
		return nil, errors.New("connect postgres: empty database url")
	}
	opts = opts.withDefaults()

	db, err := sqlx.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)

	if err := waitForPing(ctx, db, opts, logger); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func waitForPing(ctx context.Context, db *sqlx.DB, opts PoolOptions, logger *slog.Logger) error {
	backoff := retry.WithMaxRetries(uint64(opts.ConnectAttempts-1), retry.NewExponential(opts.RetryDelay))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := db.PingContext(ctx); err != nil {
			if logger != nil && attempt < opts.ConnectAttempts {
				logger.Warn("postgres not ready", "attempt", attempt, "error", err)
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("connect postgres after %d attempts: %w", attempt, err)
	}
	return nil
}
