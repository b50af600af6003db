package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/common/uuid"
)

// Service is a catalog entry row.
type Service struct {
	ID                     uuid.UUID           `db:"id"`
	TenantID               catcommon.TenantId  `db:"tenant_id"`
	Slug                   string              `db:"slug"`
	Name                   string              `db:"name"`
	Description            string              `db:"description"`
	ShortDescription       *string             `db:"short_description"`
	Features               []string            `db:"features"`
	Category               *string             `db:"category"`
	Image                  *string             `db:"image"`
	Price                  decimal.NullDecimal `db:"price"`
	BasePrice              decimal.NullDecimal `db:"base_price"`
	DurationMinutes        *int                `db:"duration_minutes"`
	EstimatedDurationHours *float64            `db:"estimated_duration_hours"`
	Active                 bool                `db:"active"`
	Featured               bool                `db:"featured"`
	Status                 string              `db:"status"`
	BookingEnabled         bool                `db:"booking_enabled"`
	AdvanceBookingDays     int                 `db:"advance_booking_days"`
	MinAdvanceHours        int                 `db:"min_advance_hours"`
	MaxDailyBookings       *int                `db:"max_daily_bookings"`
	BufferTimeMinutes      int                 `db:"buffer_time_minutes"`
	BusinessHours          json.RawMessage     `db:"business_hours"`
	BlackoutDates          []time.Time         `db:"blackout_dates"`
	RequiredSkills         []string            `db:"required_skills"`
	Settings               json.RawMessage     `db:"settings"`
	CreatedAt              time.Time           `db:"created_at"`
	UpdatedAt              time.Time           `db:"updated_at"`
}

// Clone returns a deep copy of s. Slices and JSON documents are copied so
// the result shares no backing arrays with s.
func (s *Service) Clone() *Service {
	if s == nil {
		return nil
	}
	c := *s
	c.ShortDescription = clonePtr(s.ShortDescription)
	c.Category = clonePtr(s.Category)
	c.Image = clonePtr(s.Image)
	c.DurationMinutes = clonePtr(s.DurationMinutes)
	c.EstimatedDurationHours = clonePtr(s.EstimatedDurationHours)
	c.MaxDailyBookings = clonePtr(s.MaxDailyBookings)
	c.Features = cloneSlice(s.Features)
	c.RequiredSkills = cloneSlice(s.RequiredSkills)
	c.BlackoutDates = cloneSlice(s.BlackoutDates)
	c.BusinessHours = cloneSlice(s.BusinessHours)
	c.Settings = cloneSlice(s.Settings)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSlice[S ~[]E, E any](s S) S {
	if s == nil {
		return nil
	}
	return append(S(make([]E, 0, len(s))), s...)
}

// Column names of the services table.
const (
	ColID                     = "id"
	ColTenantID               = "tenant_id"
	ColSlug                   = "slug"
	ColName                   = "name"
	ColDescription            = "description"
	ColShortDescription       = "short_description"
	ColFeatures               = "features"
	ColCategory               = "category"
	ColImage                  = "image"
	ColPrice                  = "price"
	ColBasePrice              = "base_price"
	ColDurationMinutes        = "duration_minutes"
	ColEstimatedDurationHours = "estimated_duration_hours"
	ColActive                 = "active"
	ColFeatured               = "featured"
	ColStatus                 = "status"
	ColBookingEnabled         = "booking_enabled"
	ColAdvanceBookingDays     = "advance_booking_days"
	ColMinAdvanceHours        = "min_advance_hours"
	ColMaxDailyBookings       = "max_daily_bookings"
	ColBufferTimeMinutes      = "buffer_time_minutes"
	ColBusinessHours          = "business_hours"
	ColBlackoutDates          = "blackout_dates"
	ColRequiredSkills         = "required_skills"
	ColSettings               = "settings"
	ColCreatedAt              = "created_at"
	ColUpdatedAt              = "updated_at"
)

// ServiceColumns lists every column in scan order.
var ServiceColumns = []string{
	ColID, ColTenantID, ColSlug, ColName, ColDescription, ColShortDescription,
	ColFeatures, ColCategory, ColImage, ColPrice, ColBasePrice, ColDurationMinutes,
	ColEstimatedDurationHours, ColActive, ColFeatured, ColStatus, ColBookingEnabled,
	ColAdvanceBookingDays, ColMinAdvanceHours, ColMaxDailyBookings, ColBufferTimeMinutes,
	ColBusinessHours, ColBlackoutDates, ColRequiredSkills, ColSettings,
	ColCreatedAt, ColUpdatedAt,
}
