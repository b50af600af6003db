// Package postgresql implements the catalog Store on PostgreSQL through
// database/sql and the pgx driver.
package postgresql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/dberror"
)

const (
	servicesTable     = "services"
	bookingsTable     = "bookings"
	serviceViewsTable = "service_views"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// Store is the PostgreSQL Store. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// New wraps an open pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return dberror.ErrUnavailable.Err(err)
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// mapError converts driver errors into dberror values.
func mapError(ctx context.Context, err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return dberror.ErrNotFound.Msg(what + " not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return dberror.ErrAlreadyExists.Msg(what + " already exists")
		case pgForeignKeyViolation, pgCheckViolation:
			return dberror.ErrInvalidInput.MsgErr(what+" violates a constraint", err)
		}
	}
	log.Ctx(ctx).Error().Err(err).Str("entity", what).Msg("database error")
	return dberror.ErrDatabase.Err(err)
}
