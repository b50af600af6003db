package memstore

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/dberror"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/models"
)

// applyUpdate writes every assignment of upd onto svc.
func applyUpdate(svc *models.Service, upd *models.ServiceUpdate) error {
	for _, col := range upd.Columns() {
		v, _ := upd.Value(col)
		var err error
		switch col {
		case models.ColTenantID:
			err = assign(&svc.TenantID, v, col)
		case models.ColSlug:
			err = assign(&svc.Slug, v, col)
		case models.ColName:
			err = assign(&svc.Name, v, col)
		case models.ColDescription:
			err = assign(&svc.Description, v, col)
		case models.ColShortDescription:
			err = assign(&svc.ShortDescription, v, col)
		case models.ColFeatures:
			err = assign(&svc.Features, v, col)
		case models.ColCategory:
			err = assign(&svc.Category, v, col)
		case models.ColImage:
			err = assign(&svc.Image, v, col)
		case models.ColPrice:
			err = assignDecimal(&svc.Price, v, col)
		case models.ColBasePrice:
			err = assignDecimal(&svc.BasePrice, v, col)
		case models.ColDurationMinutes:
			err = assign(&svc.DurationMinutes, v, col)
		case models.ColEstimatedDurationHours:
			err = assign(&svc.EstimatedDurationHours, v, col)
		case models.ColActive:
			err = assign(&svc.Active, v, col)
		case models.ColFeatured:
			err = assign(&svc.Featured, v, col)
		case models.ColStatus:
			err = assign(&svc.Status, v, col)
		case models.ColBookingEnabled:
			err = assign(&svc.BookingEnabled, v, col)
		case models.ColAdvanceBookingDays:
			err = assign(&svc.AdvanceBookingDays, v, col)
		case models.ColMinAdvanceHours:
			err = assign(&svc.MinAdvanceHours, v, col)
		case models.ColMaxDailyBookings:
			err = assign(&svc.MaxDailyBookings, v, col)
		case models.ColBufferTimeMinutes:
			err = assign(&svc.BufferTimeMinutes, v, col)
		case models.ColBusinessHours:
			err = assign(&svc.BusinessHours, v, col)
		case models.ColBlackoutDates:
			err = assign(&svc.BlackoutDates, v, col)
		case models.ColRequiredSkills:
			err = assign(&svc.RequiredSkills, v, col)
		case models.ColSettings:
			err = assign(&svc.Settings, v, col)
		case models.ColCreatedAt:
			err = assign(&svc.CreatedAt, v, col)
		case models.ColUpdatedAt:
			err = assign(&svc.UpdatedAt, v, col)
		default:
			err = dberror.ErrInvalidInput.Msgf("unknown column %s", col)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func assign[T any](dst *T, v any, col string) error {
	if v == nil {
		var zero T
		*dst = zero
		return nil
	}
	t, ok := v.(T)
	if !ok {
		return dberror.ErrInvalidInput.Msgf("invalid value for %s: %T", col, v)
	}
	*dst = clone(t)
	return nil
}

func assignDecimal(dst *decimal.NullDecimal, v any, col string) error {
	switch t := v.(type) {
	case nil:
		*dst = decimal.NullDecimal{}
	case decimal.NullDecimal:
		*dst = t
	case decimal.Decimal:
		*dst = decimal.NewNullDecimal(t)
	default:
		return dberror.ErrInvalidInput.Msgf("invalid value for %s: %T", col, v)
	}
	return nil
}

// clone copies reference values so stored rows never alias caller memory.
func clone[T any](v T) T {
	switch t := any(v).(type) {
	case *string:
		if t != nil {
			c := *t
			return any(&c).(T)
		}
	case *int:
		if t != nil {
			c := *t
			return any(&c).(T)
		}
	case *float64:
		if t != nil {
			c := *t
			return any(&c).(T)
		}
	case []string:
		if t != nil {
			return any(append([]string{}, t...)).(T)
		}
	case []time.Time:
		if t != nil {
			return any(append([]time.Time{}, t...)).(T)
		}
	case json.RawMessage:
		if t != nil {
			return any(append(json.RawMessage{}, t...)).(T)
		}
	}
	return v
}
