// Package memstore is an in-memory catalog Store. It follows the filter,
// ordering and uniqueness rules of the PostgreSQL store and backs tests and
// the "memory" db driver.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/dberror"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/models"
	"github.com/practiceops/servicecatalog/internal/common/uuid"
)

type booking struct {
	id          uuid.UUID
	serviceID   uuid.UUID
	status      string
	scheduledAt time.Time
}

// Store is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	services map[uuid.UUID]*models.Service
	bookings []booking
	views    []models.ServiceView
	closed   bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{services: make(map[uuid.UUID]*models.Service)}
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return dberror.ErrUnavailable.Msg("store is closed")
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// AddBooking records a booking of serviceID and returns its id.
func (s *Store) AddBooking(serviceID uuid.UUID, status string, scheduledAt time.Time) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.bookings = append(s.bookings, booking{id: id, serviceID: serviceID, status: status, scheduledAt: scheduledAt.UTC()})
	return id
}

// AddView records n views of serviceID at the given time.
func (s *Store) AddView(serviceID uuid.UUID, at time.Time, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.views = append(s.views, models.ServiceView{ID: uuid.New(), ServiceID: serviceID, CreatedAt: at.UTC()})
	}
}

func (s *Store) ListBookings(ctx context.Context, tenantID catcommon.TenantId, statuses []string) ([]models.BookingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}
	out := []models.BookingRecord{}
	for _, b := range s.bookings {
		svc, ok := s.services[b.serviceID]
		if !ok || !wanted[b.status] || !inTenant(svc, tenantID) {
			continue
		}
		out = append(out, models.BookingRecord{
			ID:           b.id,
			ServiceID:    b.serviceID,
			ServiceName:  svc.Name,
			ServicePrice: svc.Price,
			Status:       b.status,
			ScheduledAt:  b.scheduledAt,
		})
	}
	sortBookings(out)
	return out, nil
}

func (s *Store) CountViews(ctx context.Context, tenantID catcommon.TenantId, serviceIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[uuid.UUID]bool, len(serviceIDs))
	for _, id := range serviceIDs {
		wanted[id] = true
	}
	counts := make(map[uuid.UUID]int, len(serviceIDs))
	for _, v := range s.views {
		svc, ok := s.services[v.ServiceID]
		if !ok || !wanted[v.ServiceID] || !inTenant(svc, tenantID) {
			continue
		}
		counts[v.ServiceID]++
	}
	return counts, nil
}

func inTenant(svc *models.Service, tenantID catcommon.TenantId) bool {
	return tenantID.IsNull() || svc.TenantID == tenantID
}
