// Package database opens the service's Postgres connection.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ms-livestream/internal/config"
	"ms-livestream/internal/logger"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// Connect opens the pool and pings until the database answers or the retries run out.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	sqldb, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	attempts := cfg.ConnectRetry
	if attempts < 1 {
		attempts = 1
	}
	for i := 1; i <= attempts; i++ {
		log.LogDatabase("CONNECT", "postgresql", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i, attempts))
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = sqldb.PingContext(pingCtx)
		cancel()
		if err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < attempts {
			select {
			case <-ctx.Done():
				sqldb.Close()
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
	}
	if err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL after %d attempts: %w", attempts, err)
	}

	log.LogDatabase("SUCCESS", "postgresql", "PostgreSQL connection established")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}
