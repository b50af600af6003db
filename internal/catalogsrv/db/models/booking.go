package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/practiceops/servicecatalog/internal/common/uuid"
)

const (
	BookingStatusPending   = "PENDING"
	BookingStatusConfirmed = "CONFIRMED"
	BookingStatusCompleted = "COMPLETED"
	BookingStatusCancelled = "CANCELLED"
)

// BookingRecord is a booking joined to the service it books. ServiceName
// and ServicePrice are the current values of the service row.
type BookingRecord struct {
	ID           uuid.UUID           `db:"id"`
	ServiceID    uuid.UUID           `db:"service_id"`
	ServiceName  string              `db:"service_name"`
	ServicePrice decimal.NullDecimal `db:"service_price"`
	Status       string              `db:"status"`
	ScheduledAt  time.Time           `db:"scheduled_at"`
}

// ServiceView records one view of a service page.
type ServiceView struct {
	ID        uuid.UUID `db:"id"`
	ServiceID uuid.UUID `db:"service_id"`
	CreatedAt time.Time `db:"created_at"`
}
