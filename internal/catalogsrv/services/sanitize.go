package services

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/models"
	"github.com/practiceops/servicecatalog/internal/common/apperrors"
	"github.com/practiceops/servicecatalog/internal/common/optional"
)

const (
	maxNameLen             = 100
	maxDescriptionLen      = 2000
	maxShortDescriptionLen = 200
	maxCategoryLen         = 50
	maxFeatures            = 20
	maxDurationMinutes     = 1440
)

var maxPrice = decimal.NewFromInt(999999)

// sanitizer trims and checks input fields, collecting one error per bad
// field.
type sanitizer struct {
	errs apperrors.FieldErrors
}

func (s *sanitizer) fail(field, reason string) {
	s.errs = append(s.errs, apperrors.FieldError{Field: field, Reason: reason})
}

func (s *sanitizer) err() error {
	return validationError(s.errs)
}

func (s *sanitizer) name(v string) string {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		s.fail("name", "Name is required")
	case !valid(v, "max=100"):
		s.fail("name", "Service name is too long (max 100)")
	}
	return v
}

func (s *sanitizer) description(v string) string {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		s.fail("description", "Description is required")
	case !valid(v, "max=2000"):
		s.fail("description", "Description too long (max 2000)")
	}
	return v
}

func (s *sanitizer) slug(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if !valid(v, "catalogslug") {
		s.fail("slug", "Slug must contain only lowercase letters, numbers, and hyphens")
	}
	return v
}

// text trims an optional text field. Empty values become nil.
func (s *sanitizer) text(field string, v string, max int, reason string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if len([]rune(v)) > max {
		s.fail(field, reason)
	}
	return &v
}

func (s *sanitizer) shortDescription(v string) *string {
	return s.text("shortDescription", v, maxShortDescriptionLen, "Short description too long (max 200)")
}

func (s *sanitizer) category(v string) *string {
	return s.text("category", v, maxCategoryLen, "Category name too long (max 50)")
}

func (s *sanitizer) image(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if !valid(v, "url") {
		s.fail("image", "Invalid image URL")
	}
	return &v
}

func (s *sanitizer) price(field string, d decimal.Decimal, reason string) decimal.NullDecimal {
	if d.IsNegative() || d.GreaterThan(maxPrice) {
		s.fail(field, reason)
	}
	return decimal.NewNullDecimal(d)
}

func (s *sanitizer) duration(n int) *int {
	if n < 1 || n > maxDurationMinutes {
		s.fail("duration", "Invalid duration")
	}
	return &n
}

func (s *sanitizer) nonNegative(field string, n int) int {
	if n < 0 {
		s.fail(field, field+" must not be negative")
	}
	return n
}

func (s *sanitizer) hours(v float64) *float64 {
	if v < 0 {
		s.fail("estimatedDurationHours", "estimatedDurationHours must not be negative")
	}
	return &v
}

func (s *sanitizer) status(v string) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	switch v {
	case catcommon.StatusDraft, catcommon.StatusActive, catcommon.StatusInactive:
	default:
		s.fail("status", "Invalid status")
	}
	return v
}

func (s *sanitizer) businessHours(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || gjson.ParseBytes(raw).Type == gjson.Null {
		return nil
	}
	if !json.Valid(raw) {
		s.fail("businessHours", "Invalid business hours")
	}
	return raw
}

func (s *sanitizer) settings(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	if !json.Valid(raw) || !gjson.ParseBytes(raw).IsObject() {
		s.fail("settings", "Invalid settings payload")
	}
	return raw
}

// blackoutDates accepts YYYY-MM-DD or RFC 3339 values and keeps the UTC
// date.
func (s *sanitizer) blackoutDates(in []string) []time.Time {
	out := make([]time.Time, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			t, rerr := time.Parse(time.RFC3339, v)
			if rerr != nil {
				s.fail("blackoutDates", "Invalid blackout date")
				continue
			}
			d = t.UTC().Truncate(24 * time.Hour)
		}
		out = append(out, d)
	}
	return out
}

func features(in []string) []string {
	out := make([]string, 0, len(in))
	for _, f := range in {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
		if len(out) == maxFeatures {
			break
		}
	}
	return out
}

func skills(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, sk := range in {
		sk = strings.TrimSpace(sk)
		if sk == "" || seen[sk] {
			continue
		}
		seen[sk] = true
		out = append(out, sk)
	}
	return out
}

// newService sanitizes a create form into a row. ID, tenant and timestamps
// are left to the caller.
func newService(f CreateForm) (*models.Service, error) {
	var s sanitizer
	svc := &models.Service{
		Name:               s.name(f.Name),
		Description:        s.description(f.Description),
		Features:           features(f.Features),
		RequiredSkills:     skills(f.RequiredSkills),
		Featured:           f.Featured,
		Active:             true,
		Status:             catcommon.StatusActive,
		BookingEnabled:     true,
		AdvanceBookingDays: 30,
		MinAdvanceHours:    24,
		BusinessHours:      s.businessHours(f.BusinessHours),
		BlackoutDates:      s.blackoutDates(f.BlackoutDates),
		Settings:           s.settings(f.Settings),
	}
	if strings.TrimSpace(f.Slug) != "" {
		svc.Slug = s.slug(f.Slug)
	}
	if f.ShortDescription != nil {
		svc.ShortDescription = s.shortDescription(*f.ShortDescription)
	}
	if f.Category != nil {
		svc.Category = s.category(*f.Category)
	}
	if f.Image != nil {
		svc.Image = s.image(*f.Image)
	}
	if f.Price != nil {
		svc.Price = s.price("price", *f.Price, "Invalid price")
	}
	if f.BasePrice != nil {
		svc.BasePrice = s.price("basePrice", *f.BasePrice, "Invalid base price")
	}
	if f.DurationMinutes != nil {
		svc.DurationMinutes = s.duration(*f.DurationMinutes)
	}
	if f.EstimatedDurationHours != nil {
		svc.EstimatedDurationHours = s.hours(*f.EstimatedDurationHours)
	}
	if f.BookingEnabled != nil {
		svc.BookingEnabled = *f.BookingEnabled
	}
	if f.AdvanceBookingDays != nil {
		svc.AdvanceBookingDays = s.nonNegative("advanceBookingDays", *f.AdvanceBookingDays)
	}
	if f.MinAdvanceHours != nil {
		svc.MinAdvanceHours = s.nonNegative("minAdvanceHours", *f.MinAdvanceHours)
	}
	if f.MaxDailyBookings != nil {
		n := s.nonNegative("maxDailyBookings", *f.MaxDailyBookings)
		svc.MaxDailyBookings = &n
	}
	if f.BufferTimeMinutes != nil {
		svc.BufferTimeMinutes = s.nonNegative("bufferTimeMinutes", *f.BufferTimeMinutes)
	}

	switch {
	case f.Status != "":
		svc.Status = s.status(f.Status)
		svc.Active = svc.Status == catcommon.StatusActive
		if f.Active != nil {
			svc.Active = *f.Active
		}
	case f.Active != nil:
		svc.Active = *f.Active
		svc.Status = mirroredStatus(svc.Active)
	}

	if err := s.err(); err != nil {
		return nil, err
	}
	return svc, nil
}

func mirroredStatus(active bool) string {
	if active {
		return catcommon.StatusActive
	}
	return catcommon.StatusInactive
}

// patchUpdate converts a patch into column assignments. Settings are not
// included because they are merged against the stored document.
func patchUpdate(p Patch) (*models.ServiceUpdate, error) {
	var s sanitizer
	upd := &models.ServiceUpdate{}

	if p.Name.IsSet() {
		upd.Set(models.ColName, s.name(p.Name.OrElse("")))
	}
	if p.Slug.IsSet() {
		if v, ok := p.Slug.Get(); ok {
			upd.Set(models.ColSlug, s.slug(v))
		} else {
			s.fail("slug", "Slug is required")
		}
	}
	if p.Description.IsSet() {
		upd.Set(models.ColDescription, s.description(p.Description.OrElse("")))
	}
	if p.ShortDescription.IsSet() {
		upd.Set(models.ColShortDescription, s.shortDescription(p.ShortDescription.OrElse("")))
	}
	if p.Features.IsSet() {
		upd.Set(models.ColFeatures, features(p.Features.OrElse(nil)))
	}
	if p.Category.IsSet() {
		upd.Set(models.ColCategory, s.category(p.Category.OrElse("")))
	}
	if p.Image.IsSet() {
		upd.Set(models.ColImage, s.image(p.Image.OrElse("")))
	}
	setPrice(&s, upd, models.ColPrice, "price", "Invalid price", p.Price)
	setPrice(&s, upd, models.ColBasePrice, "basePrice", "Invalid base price", p.BasePrice)
	if p.DurationMinutes.IsSet() {
		var d *int
		if v, ok := p.DurationMinutes.Get(); ok {
			d = s.duration(v)
		}
		upd.Set(models.ColDurationMinutes, d)
	}
	if p.EstimatedDurationHours.IsSet() {
		var h *float64
		if v, ok := p.EstimatedDurationHours.Get(); ok {
			h = s.hours(v)
		}
		upd.Set(models.ColEstimatedDurationHours, h)
	}
	if p.Featured.IsSet() {
		upd.Set(models.ColFeatured, required(&s, "featured", p.Featured))
	}
	if p.BookingEnabled.IsSet() {
		upd.Set(models.ColBookingEnabled, required(&s, "bookingEnabled", p.BookingEnabled))
	}
	if p.AdvanceBookingDays.IsSet() {
		upd.Set(models.ColAdvanceBookingDays, s.nonNegative("advanceBookingDays", required(&s, "advanceBookingDays", p.AdvanceBookingDays)))
	}
	if p.MinAdvanceHours.IsSet() {
		upd.Set(models.ColMinAdvanceHours, s.nonNegative("minAdvanceHours", required(&s, "minAdvanceHours", p.MinAdvanceHours)))
	}
	if p.MaxDailyBookings.IsSet() {
		var n *int
		if v, ok := p.MaxDailyBookings.Get(); ok {
			v = s.nonNegative("maxDailyBookings", v)
			n = &v
		}
		upd.Set(models.ColMaxDailyBookings, n)
	}
	if p.BufferTimeMinutes.IsSet() {
		upd.Set(models.ColBufferTimeMinutes, s.nonNegative("bufferTimeMinutes", required(&s, "bufferTimeMinutes", p.BufferTimeMinutes)))
	}
	if p.BusinessHours.IsSet() {
		upd.Set(models.ColBusinessHours, s.businessHours(p.BusinessHours.OrElse(nil)))
	}
	if p.BlackoutDates.IsSet() {
		upd.Set(models.ColBlackoutDates, s.blackoutDates(p.BlackoutDates.OrElse(nil)))
	}
	if p.RequiredSkills.IsSet() {
		upd.Set(models.ColRequiredSkills, skills(p.RequiredSkills.OrElse(nil)))
	}
	if p.Settings.IsSet() && !p.Settings.HasValue() {
		s.fail("settings", "Invalid settings payload")
	}
	if v, ok := p.Settings.Get(); ok {
		s.settings(v)
	}

	active, hasActive := p.Active.Get()
	if p.Active.IsSet() && !hasActive {
		s.fail("active", "active cannot be null")
	}
	status, hasStatus := p.Status.Get()
	if p.Status.IsSet() && !hasStatus {
		s.fail("status", "status cannot be null")
	}
	switch {
	case hasActive && hasStatus:
		upd.Set(models.ColActive, active)
		upd.Set(models.ColStatus, s.status(status))
	case hasActive:
		upd.Set(models.ColActive, active)
		upd.Set(models.ColStatus, mirroredStatus(active))
	case hasStatus:
		status = s.status(status)
		upd.Set(models.ColStatus, status)
		upd.Set(models.ColActive, status == catcommon.StatusActive)
	}

	if err := s.err(); err != nil {
		return nil, err
	}
	return upd, nil
}

func setPrice(s *sanitizer, upd *models.ServiceUpdate, col, field, reason string, v optional.Value[decimal.Decimal]) {
	if !v.IsSet() {
		return
	}
	var d decimal.NullDecimal
	if p, ok := v.Get(); ok {
		d = s.price(field, p, reason)
	}
	upd.Set(col, d)
}

// required returns the value of a non-nullable patch field, failing on an
// explicit null.
func required[T any](s *sanitizer, field string, v optional.Value[T]) T {
	if !v.HasValue() {
		s.fail(field, field+" cannot be null")
	}
	return v.OrElse(*new(T))
}
