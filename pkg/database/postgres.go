package database

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// TxQuerier is implemented by both pgxpool.Pool and pgx.Tx.
// Repository methods that need transaction support should accept TxQuerier.
type TxQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

//go:embed schema.sql
var schemaSQL string

// Execer is the subset of the pool used by Migrate.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Migrate applies the embedded schema. Every statement is idempotent so it
// is safe to run from each replica on start-up.
func Migrate(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	log.Info().Msg("database schema applied")
	return nil
}

// PoolOptions controls how NewPool connects.
type PoolOptions struct {
	// AppName is reported to PostgreSQL as application_name.
	AppName string
	// MaxRetries is the number of connection attempts. Values below 1 mean one attempt.
	MaxRetries int
	// BaseDelay is the wait after the first failed attempt; it doubles per attempt.
	BaseDelay time.Duration
	// MaxDelay caps the wait between attempts.
	MaxDelay time.Duration
}

func (o PoolOptions) backoff(attempt int) time.Duration {
	base := o.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	limit := o.MaxDelay
	if limit <= 0 {
		limit = 16 * time.Second
	}
	delay := base << (attempt - 1)
	if delay <= 0 || delay > limit {
		return limit
	}
	return delay
}

// NewPool creates a PostgreSQL connection pool, retrying with exponential
// backoff until a connection answers a ping or the attempts run out.
// Pool sizing comes from the DSN (pool_max_conns, pool_min_conns).
func NewPool(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if opts.AppName != "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = opts.AppName
	}

	attempts := max(opts.MaxRetries, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		pool, err := connect(ctx, cfg)
		if err == nil {
			log.Info().
				Int32("max_conns", cfg.MaxConns).
				Int32("min_conns", cfg.MinConns).
				Msg("database connection established")
			return pool, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		delay := opts.backoff(attempt)
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_retries", attempts).
			Dur("next_retry_in", delay).
			Msg("database connection failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", attempts, lastErr)
}

func connect(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	return pool, nil
}
