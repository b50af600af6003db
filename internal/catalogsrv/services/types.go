package services

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/models"
	"github.com/practiceops/servicecatalog/internal/common/optional"
	"github.com/practiceops/servicecatalog/internal/common/uuid"
)

const dateLayout = "2006-01-02"

// Entry is the API shape of a catalog entry. Money is rendered as plain
// numbers and blackout dates as YYYY-MM-DD.
type Entry struct {
	ID                     uuid.UUID       `json:"id"`
	TenantID               *string         `json:"tenantId"`
	Slug                   string          `json:"slug"`
	Name                   string          `json:"name"`
	Description            string          `json:"description"`
	ShortDescription       *string         `json:"shortDescription"`
	Features               []string        `json:"features"`
	Category               *string         `json:"category"`
	Image                  *string         `json:"image"`
	Price                  *float64        `json:"price"`
	BasePrice              *float64        `json:"basePrice"`
	DurationMinutes        *int            `json:"duration"`
	EstimatedDurationHours *float64        `json:"estimatedDurationHours"`
	Active                 bool            `json:"active"`
	Featured               bool            `json:"featured"`
	Status                 string          `json:"status"`
	BookingEnabled         bool            `json:"bookingEnabled"`
	AdvanceBookingDays     int             `json:"advanceBookingDays"`
	MinAdvanceHours        int             `json:"minAdvanceHours"`
	MaxDailyBookings       *int            `json:"maxDailyBookings"`
	BufferTimeMinutes      int             `json:"bufferTimeMinutes"`
	BusinessHours          json.RawMessage `json:"businessHours"`
	BlackoutDates          []string        `json:"blackoutDates"`
	RequiredSkills         []string        `json:"requiredSkills"`
	Settings               json.RawMessage `json:"settings"`
	CreatedAt              time.Time       `json:"createdAt"`
	UpdatedAt              time.Time       `json:"updatedAt"`
}

func toEntry(s *models.Service) Entry {
	e := Entry{
		ID:                     s.ID,
		Slug:                   s.Slug,
		Name:                   s.Name,
		Description:            s.Description,
		ShortDescription:       s.ShortDescription,
		Features:               nonNil(s.Features),
		Category:               s.Category,
		Image:                  s.Image,
		Price:                  money(s.Price),
		BasePrice:              money(s.BasePrice),
		DurationMinutes:        s.DurationMinutes,
		EstimatedDurationHours: s.EstimatedDurationHours,
		Active:                 s.Active,
		Featured:               s.Featured,
		Status:                 s.Status,
		BookingEnabled:         s.BookingEnabled,
		AdvanceBookingDays:     s.AdvanceBookingDays,
		MinAdvanceHours:        s.MinAdvanceHours,
		MaxDailyBookings:       s.MaxDailyBookings,
		BufferTimeMinutes:      s.BufferTimeMinutes,
		BusinessHours:          s.BusinessHours,
		BlackoutDates:          make([]string, 0, len(s.BlackoutDates)),
		RequiredSkills:         nonNil(s.RequiredSkills),
		Settings:               s.Settings,
		CreatedAt:              s.CreatedAt.UTC(),
		UpdatedAt:              s.UpdatedAt.UTC(),
	}
	if !s.TenantID.IsNull() {
		t := string(s.TenantID)
		e.TenantID = &t
	}
	if len(e.BusinessHours) == 0 {
		e.BusinessHours = nil
	}
	if len(e.Settings) == 0 {
		e.Settings = json.RawMessage("{}")
	}
	for _, d := range s.BlackoutDates {
		e.BlackoutDates = append(e.BlackoutDates, d.UTC().Format(dateLayout))
	}
	return e
}

func money(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f := d.Decimal.InexactFloat64()
	return &f
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Filters select and page a listing.
type Filters struct {
	Search    string           `json:"search"`
	Status    string           `json:"status"`
	Featured  string           `json:"featured"`
	Category  string           `json:"category"`
	MinPrice  *decimal.Decimal `json:"minPrice"`
	MaxPrice  *decimal.Decimal `json:"maxPrice"`
	Limit     int              `json:"limit"`
	Offset    int              `json:"offset"`
	SortBy    string           `json:"sortBy"`
	SortOrder string           `json:"sortOrder"`
}

const (
	defaultLimit = 20
	maxLimit     = 200
)

// normalize returns f with every parameter resolved to its effective value,
// so equal listings produce equal cache keys.
func (f Filters) normalize() Filters {
	n := f
	switch {
	case n.Limit == 0:
		n.Limit = defaultLimit
	case n.Limit < 1:
		n.Limit = 1
	case n.Limit > maxLimit:
		n.Limit = maxLimit
	}
	if n.Offset < 0 {
		n.Offset = 0
	}
	n.Search = strings.TrimSpace(n.Search)
	switch n.Status {
	case "active", "inactive", "draft":
	default:
		n.Status = "all"
	}
	switch n.Featured {
	case "featured", "non-featured":
	default:
		n.Featured = "all"
	}
	if n.Category == "" {
		n.Category = "all"
	}
	if _, ok := models.SortColumns[n.SortBy]; !ok {
		n.SortBy = "updatedAt"
	}
	if n.SortOrder != "asc" {
		n.SortOrder = "desc"
	}
	return n
}

func (f Filters) serviceFilter(tenantID catcommon.TenantId) models.ServiceFilter {
	sf := models.ServiceFilter{
		TenantID: tenantID,
		Search:   f.Search,
		MinPrice: f.MinPrice,
		MaxPrice: f.MaxPrice,
	}
	switch f.Status {
	case "active":
		sf.Status = catcommon.StatusActive
	case "inactive":
		sf.Status = catcommon.StatusInactive
	case "draft":
		sf.Status = catcommon.StatusDraft
	}
	switch f.Featured {
	case "featured":
		sf.Featured = boolPtr(true)
	case "non-featured":
		sf.Featured = boolPtr(false)
	}
	if f.Category != "all" {
		c := f.Category
		sf.Category = &c
	}
	return sf
}

func boolPtr(b bool) *bool { return &b }

// ListResult is one page of a listing.
type ListResult struct {
	Services   []Entry `json:"services"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	TotalPages int     `json:"totalPages"`
}

// CreateForm is the input of Create.
type CreateForm struct {
	Name                   string           `json:"name"`
	Slug                   string           `json:"slug"`
	Description            string           `json:"description"`
	ShortDescription       *string          `json:"shortDescription"`
	Features               []string         `json:"features"`
	Category               *string          `json:"category"`
	Image                  *string          `json:"image"`
	Price                  *decimal.Decimal `json:"price"`
	BasePrice              *decimal.Decimal `json:"basePrice"`
	DurationMinutes        *int             `json:"duration"`
	EstimatedDurationHours *float64         `json:"estimatedDurationHours"`
	Active                 *bool            `json:"active"`
	Featured               bool             `json:"featured"`
	Status                 string           `json:"status"`
	BookingEnabled         *bool            `json:"bookingEnabled"`
	AdvanceBookingDays     *int             `json:"advanceBookingDays"`
	MinAdvanceHours        *int             `json:"minAdvanceHours"`
	MaxDailyBookings       *int             `json:"maxDailyBookings"`
	BufferTimeMinutes      *int             `json:"bufferTimeMinutes"`
	BusinessHours          json.RawMessage  `json:"businessHours"`
	BlackoutDates          []string         `json:"blackoutDates"`
	RequiredSkills         []string         `json:"requiredSkills"`
	Settings               json.RawMessage  `json:"settings"`
}

// Patch is the input of Update. Absent fields are left untouched and null
// clears a nullable field.
type Patch struct {
	Name                   optional.Value[string]          `json:"name"`
	Slug                   optional.Value[string]          `json:"slug"`
	Description            optional.Value[string]          `json:"description"`
	ShortDescription       optional.Value[string]          `json:"shortDescription"`
	Features               optional.Value[[]string]        `json:"features"`
	Category               optional.Value[string]          `json:"category"`
	Image                  optional.Value[string]          `json:"image"`
	Price                  optional.Value[decimal.Decimal] `json:"price"`
	BasePrice              optional.Value[decimal.Decimal] `json:"basePrice"`
	DurationMinutes        optional.Value[int]             `json:"duration"`
	EstimatedDurationHours optional.Value[float64]         `json:"estimatedDurationHours"`
	Active                 optional.Value[bool]            `json:"active"`
	Featured               optional.Value[bool]            `json:"featured"`
	Status                 optional.Value[string]          `json:"status"`
	BookingEnabled         optional.Value[bool]            `json:"bookingEnabled"`
	AdvanceBookingDays     optional.Value[int]             `json:"advanceBookingDays"`
	MinAdvanceHours        optional.Value[int]             `json:"minAdvanceHours"`
	MaxDailyBookings       optional.Value[int]             `json:"maxDailyBookings"`
	BufferTimeMinutes      optional.Value[int]             `json:"bufferTimeMinutes"`
	BusinessHours          optional.Value[json.RawMessage] `json:"businessHours"`
	BlackoutDates          optional.Value[[]string]        `json:"blackoutDates"`
	RequiredSkills         optional.Value[[]string]        `json:"requiredSkills"`
	Settings               optional.Value[json.RawMessage] `json:"settings"`
}

// BulkError reports the failure of one target of a bulk action. ID is empty
// for errors that concern the whole request.
type BulkError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// RollbackOutcome is set when a bulk clone had to discard its clones.
// RolledBack is false when at least one clone could not be removed.
type RollbackOutcome struct {
	RolledBack bool     `json:"rolledBack"`
	Errors     []string `json:"errors,omitempty"`
}

// BulkResult is the outcome of BulkAction.
type BulkResult struct {
	UpdatedCount int              `json:"updatedCount"`
	Errors       []BulkError      `json:"errors"`
	CreatedIDs   []uuid.UUID      `json:"createdIds,omitempty"`
	Rollback     *RollbackOutcome `json:"rollback,omitempty"`
}

// Stats summarizes the catalog of a tenant.
type Stats struct {
	Total         int       `json:"total"`
	Active        int       `json:"active"`
	Featured      int       `json:"featured"`
	CategoryCount int       `json:"categoryCount"`
	AveragePrice  float64   `json:"averagePrice"`
	TotalRevenue  float64   `json:"totalRevenue"`
	Analytics     Analytics `json:"analytics"`
}

// Analytics is derived from bookings and page views.
type Analytics struct {
	MonthlyBookings      []MonthlyBookings   `json:"monthlyBookings"`
	RevenueByService     []ServiceRevenue    `json:"revenueByService"`
	PopularServices      []ServiceBookings   `json:"popularServices"`
	RevenueTimeSeries    []ServiceTimeSeries `json:"revenueTimeSeries"`
	ConversionsByService []ServiceConversion `json:"conversionsByService"`
	CompletionRates      []MonthlyCompletion `json:"completionRates"`
}

type MonthlyBookings struct {
	Month    string  `json:"month"`
	Bookings int     `json:"bookings"`
	Revenue  float64 `json:"revenue"`
}

type ServiceRevenue struct {
	ServiceID uuid.UUID `json:"serviceId"`
	Service   string    `json:"service"`
	Revenue   float64   `json:"revenue"`
}

type ServiceBookings struct {
	ServiceID uuid.UUID `json:"serviceId"`
	Service   string    `json:"service"`
	Bookings  int       `json:"bookings"`
}

type MonthlyRevenue struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
}

type ServiceTimeSeries struct {
	ServiceID uuid.UUID        `json:"serviceId"`
	Service   string           `json:"service"`
	Monthly   []MonthlyRevenue `json:"monthly"`
}

type ServiceConversion struct {
	ServiceID      uuid.UUID `json:"serviceId"`
	Service        string    `json:"service"`
	Bookings       int       `json:"bookings"`
	Views          int       `json:"views"`
	ConversionRate float64   `json:"conversionRate"`
}

// MonthlyCompletion is the share of completed bookings among the
// completed and confirmed bookings of a month, in percent.
type MonthlyCompletion struct {
	Month     string  `json:"month"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Rate      float64 `json:"rate"`
}

const (
	ExportCSV  = "csv"
	ExportJSON = "json"
)

// ExportOptions select the export format. Any format other than json
// produces CSV.
type ExportOptions struct {
	Format          string
	IncludeInactive bool
}
