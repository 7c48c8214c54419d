package postgres

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"time"

	"github.com/credportal/credportal/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	poolMaxConns       = 20
	poolHealthPeriod   = 30 * time.Second
	poolConnectTimeout = 5 * time.Second
	poolPingTimeout    = 3 * time.Second
	poolHealthTimeout  = time.Second
)

// Store owns the pgx pool shared by every repository.
type Store struct {
	pool          *pgxpool.Pool
	healthTimeout time.Duration
}

// NewStore opens the pool and pings it before returning.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("postgres: config is required")
	}
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	s := &Store{pool: pool, healthTimeout: positiveOr(cfg.HealthCheckTimeout, poolHealthTimeout)}
	if err := s.ping(ctx, positiveOr(cfg.PingTimeout, poolPingTimeout)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	logger.FromContext(ctx).Info("Connected to postgres",
		"host", cmp.Or(cfg.Host, poolCfg.ConnConfig.Host),
		"db_name", cmp.Or(cfg.DBName, poolCfg.ConnConfig.Database),
		"max_conns", poolCfg.MaxConns,
		"min_conns", poolCfg.MinConns,
	)
	return s, nil
}

func (s *Store) Close(ctx context.Context) {
	s.pool.Close()
	logger.FromContext(ctx).Debug("Postgres pool closed")
}

func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// HealthCheck pings the database within the configured timeout.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.ping(ctx, s.healthTimeout); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}

func (s *Store) ping(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.pool.Ping(ctx)
}

func poolConfig(cfg *Config) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	pc.MaxConns, pc.MinConns = connectionBounds(cfg)
	pc.HealthCheckPeriod = positiveOr(cfg.HealthCheckPeriod, poolHealthPeriod)
	pc.ConnConfig.ConnectTimeout = positiveOr(cfg.ConnectTimeout, poolConnectTimeout)
	pc.MaxConnLifetime = positiveOr(cfg.ConnMaxLifetime, pc.MaxConnLifetime)
	pc.MaxConnIdleTime = positiveOr(cfg.ConnMaxIdleTime, pc.MaxConnIdleTime)
	return pc, nil
}

func positiveOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// connectionBounds derives max/min pool sizes; min never exceeds max.
func connectionBounds(cfg *Config) (maxConns, minConns int32) {
	maxConns = poolMaxConns
	if cfg.MaxOpenConns > 0 {
		maxConns = int32(min(cfg.MaxOpenConns, math.MaxInt32))
	}
	if cfg.MaxIdleConns > 0 {
		minConns = int32(min(cfg.MaxIdleConns, int(maxConns)))
	}
	return maxConns, minConns
}
