// Package replica manages the connection to the wiki replica database.
// A pgxpool connection pool is used even though the bot is a single-pass
// batch process: the pool handles reconnects and keeps the startup ping
// in one place.
//
// The replica is strictly read-only for this bot; there are no migrations
// and no writes.
package replica

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"toolforge.org/rights-audit/internal/config"
)

// NewPool creates a connection pool to the wiki replica.
//
// Parameters:
//   - ctx: context for cancelling the connection attempt
//   - cfg: configuration with the connection parameters
//
// Returns the ready pool, or an error if the replica is unreachable.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	// Pool tuning. The bot issues a handful of point queries per user, so
	// a small pool is plenty.
	poolConfig.MaxConns = cfg.DBMaxConns
	poolConfig.MinConns = cfg.DBMinConns
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	// Make sure the replica is actually reachable before the run starts.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("wiki replica is unreachable: %w", err)
	}

	log.Info("Connected to the wiki replica")
	return pool, nil
}
