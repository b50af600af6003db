// Package config exposes the database settings of the catalog server
// configuration to the db packages.
package config

import (
	"time"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/config"
)

// PoolSettings controls the database/sql pool and Postgres session limits.
type PoolSettings struct {
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	ConnMaxIdleTime  time.Duration
	StatementTimeout time.Duration
	LockTimeout      time.Duration
	ConnectAttempts  uint
}

// CatalogDsn returns the DSN for the catalog database
func CatalogDsn() string {
	return config.Config().DSN()
}

// Driver returns the configured store driver.
func Driver() string {
	return config.Config().DB.Driver
}

// Pool returns the pool settings from the loaded configuration.
func Pool() PoolSettings {
	db := config.Config().DB
	stmt, _ := config.ParseDuration(db.StatementTimeout)
	lock, _ := config.ParseDuration(db.LockTimeout)
	return PoolSettings{
		MaxOpenConns:     db.MaxOpenConns,
		MaxIdleConns:     db.MaxIdleConns,
		ConnMaxLifetime:  30 * time.Minute,
		ConnMaxIdleTime:  5 * time.Minute,
		StatementTimeout: stmt,
		LockTimeout:      lock,
		ConnectAttempts:  db.ConnectAttempts,
	}
}
