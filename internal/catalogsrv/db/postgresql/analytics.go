package postgresql

import (
	"context"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/models"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/query"
	"github.com/practiceops/servicecatalog/internal/common/uuid"
)

// ListBookings returns the bookings in statuses joined to their service,
// oldest first.
func (s *Store) ListBookings(ctx context.Context, tenantID catcommon.TenantId, statuses []string) ([]models.BookingRecord, error) {
	b := query.From("bookings b JOIN services s ON s.id = b.service_id").
		Select("b.id", "b.service_id", "s.name", "s.price", "b.status", "b.scheduled_at").
		Where(query.In("b.status", statuses)).
		OrderBy("b.scheduled_at", query.Asc)
	if !tenantID.IsNull() {
		b = b.Where(query.Eq("s.tenant_id", string(tenantID)))
	}

	sqlText, args := b.Build()
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, mapError(ctx, err, "bookings")
	}
	defer rows.Close()

	bookings := []models.BookingRecord{}
	for rows.Next() {
		var r models.BookingRecord
		if err := rows.Scan(&r.ID, &r.ServiceID, &r.ServiceName, &r.ServicePrice, &r.Status, &r.ScheduledAt); err != nil {
			return nil, mapError(ctx, err, "bookings")
		}
		r.ScheduledAt = r.ScheduledAt.UTC()
		bookings = append(bookings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(ctx, err, "bookings")
	}
	return bookings, nil
}

// CountViews returns the recorded views of each of serviceIDs. Services
// without views are absent from the map.
func (s *Store) CountViews(ctx context.Context, tenantID catcommon.TenantId, serviceIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(serviceIDs))
	if len(serviceIDs) == 0 {
		return counts, nil
	}
	b := query.From("service_views v JOIN services s ON s.id = v.service_id").
		Select("v.service_id", "COUNT(*)").
		Where(query.In("v.service_id", serviceIDs)).
		GroupBy("v.service_id")
	if !tenantID.IsNull() {
		b = b.Where(query.Eq("s.tenant_id", string(tenantID)))
	}

	sqlText, args := b.Build()
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, mapError(ctx, err, "service views")
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, mapError(ctx, err, "service views")
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(ctx, err, "service views")
	}
	return counts, nil
}
