// Package dbmanager opens the PostgreSQL connection pool used by the store.
package dbmanager

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/stdlib"
	"github.com/rs/zerolog/log"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/config"
)

// NewPostgresqlDb opens a pool for dsn. statement_timeout and lock_timeout
// are sent as connection runtime parameters so every pooled connection
// carries them. The pool is pinged with backoff until it answers or the
// configured attempts are exhausted.
func NewPostgresqlDb(ctx context.Context, dsn string, pool config.PoolSettings) (*sql.DB, error) {
	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database dsn: %w", err)
	}
	if connConfig.RuntimeParams == nil {
		connConfig.RuntimeParams = map[string]string{}
	}
	for param, d := range map[string]time.Duration{
		"statement_timeout":                   pool.StatementTimeout,
		"lock_timeout":                        pool.LockTimeout,
		"idle_in_transaction_session_timeout": pool.StatementTimeout,
	} {
		if d > 0 {
			connConfig.RuntimeParams[param] = strconv.FormatInt(d.Milliseconds(), 10)
		}
	}
	connConfig.RuntimeParams["application_name"] = "catalogsrv"

	sqlDB := stdlib.OpenDB(*connConfig)

	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	attempts := pool.ConnectAttempts
	if attempts == 0 {
		attempts = 1
	}
	err = retry.Do(
		func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return sqlDB.PingContext(pingCtx)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(250*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Warn().Err(err).Uint("attempt", n+1).Msg("database not ready")
		}),
	)
	if err != nil {
		sqlDB.Close()
		log.Ctx(ctx).Error().Err(err).Msg("failed to ping db")
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return sqlDB, nil
}

// OpenCatalogDb opens the pool described by the loaded configuration.
func OpenCatalogDb(ctx context.Context) (*sql.DB, error) {
	return NewPostgresqlDb(ctx, config.CatalogDsn(), config.Pool())
}
