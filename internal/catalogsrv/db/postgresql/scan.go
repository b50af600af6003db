package postgresql

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jackc/pgtype"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/models"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// scanService reads one row selected with models.ServiceColumns.
func scanService(row rowScanner) (*models.Service, error) {
	var (
		s              models.Service
		tenant         sql.NullString
		shortDesc      sql.NullString
		category       sql.NullString
		image          sql.NullString
		duration       sql.NullInt64
		maxDaily       sql.NullInt64
		estHours       sql.NullFloat64
		features       pgtype.TextArray
		requiredSkills pgtype.TextArray
		blackoutDates  pgtype.DateArray
		businessHours  pgtype.JSONB
		settings       pgtype.JSONB
	)
	err := row.Scan(
		&s.ID, &tenant, &s.Slug, &s.Name, &s.Description, &shortDesc,
		&features, &category, &image, &s.Price, &s.BasePrice, &duration,
		&estHours, &s.Active, &s.Featured, &s.Status, &s.BookingEnabled,
		&s.AdvanceBookingDays, &s.MinAdvanceHours, &maxDaily, &s.BufferTimeMinutes,
		&businessHours, &blackoutDates, &requiredSkills, &settings,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if tenant.Valid {
		s.TenantID = catcommon.TenantId(tenant.String)
	}
	s.ShortDescription = nullString(shortDesc)
	s.Category = nullString(category)
	s.Image = nullString(image)
	s.DurationMinutes = nullInt(duration)
	s.MaxDailyBookings = nullInt(maxDaily)
	if estHours.Valid {
		v := estHours.Float64
		s.EstimatedDurationHours = &v
	}
	if err := features.AssignTo(&s.Features); err != nil {
		return nil, err
	}
	if err := requiredSkills.AssignTo(&s.RequiredSkills); err != nil {
		return nil, err
	}
	if blackoutDates.Status == pgtype.Present {
		if err := blackoutDates.AssignTo(&s.BlackoutDates); err != nil {
			return nil, err
		}
	}
	s.BusinessHours = jsonbBytes(businessHours)
	s.Settings = jsonbBytes(settings)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func jsonbBytes(v pgtype.JSONB) json.RawMessage {
	if v.Status != pgtype.Present {
		return nil
	}
	return append(json.RawMessage(nil), v.Bytes...)
}

// dbValue converts a Service field value into a query argument.
func dbValue(v any) (any, error) {
	switch t := v.(type) {
	case catcommon.TenantId:
		if t.IsNull() {
			return nil, nil
		}
		return string(t), nil
	case *string:
		if t == nil {
			return nil, nil
		}
		return *t, nil
	case *int:
		if t == nil {
			return nil, nil
		}
		return int64(*t), nil
	case int:
		return int64(t), nil
	case *float64:
		if t == nil {
			return nil, nil
		}
		return *t, nil
	case []string:
		if t == nil {
			t = []string{}
		}
		var a pgtype.TextArray
		if err := a.Set(t); err != nil {
			return nil, err
		}
		return a, nil
	case []time.Time:
		var a pgtype.DateArray
		if t == nil {
			t = []time.Time{}
		}
		if err := a.Set(t); err != nil {
			return nil, err
		}
		return a, nil
	case json.RawMessage:
		if t == nil {
			return pgtype.JSONB{Status: pgtype.Null}, nil
		}
		return pgtype.JSONB{Bytes: t, Status: pgtype.Present}, nil
	default:
		return v, nil
	}
}
