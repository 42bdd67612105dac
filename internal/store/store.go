// Package store owns the Postgres pool behind the query journal and the
// schema it needs.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const applicationName = "vibeflix"

// ErrClosed is returned by HealthCheck on a nil or closed store.
var ErrClosed = errors.New("store: not open")

// Options tunes the pool. Zero values keep the pgxpool defaults; a negative
// StatementCacheCapacity keeps the driver's default exec mode.
type Options struct {
	MaxConns               int32
	MinConns               int32
	MaxConnIdleTime        time.Duration
	MaxConnLifetime        time.Duration
	ConnTimeout            time.Duration
	StatementCacheCapacity int
	Logger                 *slog.Logger
}

// Store wraps a pgx pool.
type Store struct {
	pool        *pgxpool.Pool
	logger      *slog.Logger
	pingTimeout time.Duration
}

// New opens the pool and pings it once; an unreachable database fails here
// rather than on the first journal write.
func New(ctx context.Context, dbURL string, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "store"))

	cfg, err := poolConfig(dbURL, opts)
	if err != nil {
		return nil, err
	}

	if opts.ConnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.ConnTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open journal pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("reach journal database: %w", err)
	}

	logger.Info("journal database connected",
		slog.String("host", cfg.ConnConfig.Host),
		slog.String("database", cfg.ConnConfig.Database),
		slog.Int("max_conns", int(cfg.MaxConns)),
		slog.Int("min_conns", int(cfg.MinConns)),
	)
	return &Store{pool: pool, logger: logger, pingTimeout: opts.ConnTimeout}, nil
}

func poolConfig(dbURL string, opts Options) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse DB_URL: %w", err)
	}

	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.StatementCacheCapacity >= 0 {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
		cfg.ConnConfig.StatementCacheCapacity = opts.StatementCacheCapacity
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	return cfg, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	st := s.pool.Stat()
	s.logger.Info("closing journal pool",
		slog.Int("acquired", int(st.AcquiredConns())),
		slog.Int("idle", int(st.IdleConns())),
	)
	s.pool.Close()
}

// HealthCheck pings the database, bounded by the connect timeout.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return ErrClosed
	}
	if s.pingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.pingTimeout)
		defer cancel()
	}
	return s.pool.Ping(ctx)
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate() error {
	return Migrate(s.pool, s.logger)
}

// Pool exposes the pgx pool to repositories.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}
