package postgresql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// schema is idempotent and safe to apply on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS services (
		id UUID PRIMARY KEY,
		tenant_id TEXT,
		slug TEXT NOT NULL,
		name VARCHAR(100) NOT NULL,
		description TEXT NOT NULL,
		short_description VARCHAR(200),
		features TEXT[] NOT NULL DEFAULT '{}',
		category VARCHAR(50),
		image TEXT,
		price NUMERIC(12, 2) CHECK (price IS NULL OR price >= 0),
		base_price NUMERIC(12, 2) CHECK (base_price IS NULL OR base_price >= 0),
		duration_minutes INTEGER,
		estimated_duration_hours NUMERIC(8, 2),
		active BOOLEAN NOT NULL DEFAULT TRUE,
		featured BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'ACTIVE' CHECK (status IN ('DRAFT', 'ACTIVE', 'INACTIVE')),
		booking_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		advance_booking_days INTEGER NOT NULL DEFAULT 30,
		min_advance_hours INTEGER NOT NULL DEFAULT 24,
		max_daily_bookings INTEGER,
		buffer_time_minutes INTEGER NOT NULL DEFAULT 0,
		business_hours JSONB,
		blackout_dates DATE[] NOT NULL DEFAULT '{}',
		required_skills TEXT[] NOT NULL DEFAULT '{}',
		settings JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS services_tenant_slug_key ON services (COALESCE(tenant_id, ''), slug)`,
	`CREATE INDEX IF NOT EXISTS services_tenant_status_idx ON services (tenant_id, status)`,
	`CREATE INDEX IF NOT EXISTS services_tenant_updated_idx ON services (tenant_id, updated_at DESC, id)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id UUID PRIMARY KEY,
		service_id UUID NOT NULL REFERENCES services (id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		scheduled_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS bookings_service_status_idx ON bookings (service_id, status)`,
	`CREATE TABLE IF NOT EXISTS service_views (
		id UUID PRIMARY KEY,
		service_id UUID NOT NULL REFERENCES services (id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS service_views_service_idx ON service_views (service_id)`,
}

// Migrate applies the schema in a single transaction.
func Migrate(ctx context.Context, db *sql.DB) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				log.Ctx(ctx).Error().Err(rollbackErr).Msg("failed to rollback transaction")
			}
		}
	}()

	for i, stmt := range schema {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d failed: %w", i+1, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}
	log.Ctx(ctx).Info().Int("statements", len(schema)).Msg("schema applied")
	return nil
}
