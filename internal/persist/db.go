package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/cullgate/cullgate/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const journalAppName = "cullgate-journal"

// DB is the journal's connection pool. A flush is one COPY on one
// connection, so the pool stays small.
type DB struct {
	Pool *pgxpool.Pool
	log  *zap.Logger
}

// poolConfig builds the pool settings without connecting. Journal rows are
// analytics: sessions commit asynchronously, so a crash may lose the last
// few flushes but a flush never waits on the WAL fsync.
func poolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	// one connection copies a batch while another serves CountRun
	poolCfg.MaxConns = int32(max(cfg.MaxOpenConns, 2))
	poolCfg.MinConns = int32(min(cfg.MaxIdleConns, cfg.MaxOpenConns, 1))
	if poolCfg.MinConns < 0 {
		poolCfg.MinConns = 0
	}
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	params := poolCfg.ConnConfig.RuntimeParams
	if _, set := params["application_name"]; !set {
		params["application_name"] = journalAppName
	}
	params["synchronous_commit"] = "off"
	return poolCfg, nil
}

func NewDB(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*DB, error) {
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to journal db: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping journal db: %w", err)
	}

	log.Info("journal database connected",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database),
		zap.Int32("max_conns", poolCfg.MaxConns),
	)
	return &DB{Pool: pool, log: log}, nil
}

// Close waits for in-flight copies to finish and releases the pool.
func (db *DB) Close() {
	st := db.Pool.Stat()
	db.Pool.Close()
	db.log.Info("journal database closed", zap.Int64("acquires", st.AcquireCount()))
}
