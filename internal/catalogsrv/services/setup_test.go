package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/cache"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/memstore"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/models"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/events"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/notify"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/settings"
	"github.com/practiceops/servicecatalog/internal/common/clock"
	"github.com/practiceops/servicecatalog/internal/common/uuid"
)

const (
	tenantA catcommon.TenantId = "tenant-a"
	tenantB catcommon.TenantId = "tenant-b"
)

var testNow = time.Date(2026, time.March, 15, 10, 30, 0, 0, time.UTC)

type fixture struct {
	svc      *CatalogService
	store    *memstore.Store
	faulty   *faultyStore
	cache    *cache.MemoryCache
	recorder *notify.Recorder
	bus      *events.Bus
	clock    *clock.MockClock
}

type fixtureOption func(*Options)

func withSettings(l settings.Lookup) fixtureOption {
	return func(o *Options) { o.Settings = l }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	f := &fixture{
		store:    memstore.New(),
		cache:    cache.NewMemory(),
		recorder: notify.NewRecorder(),
		bus:      events.NewBus(),
		clock:    clock.NewMockClock(testNow),
	}
	f.faulty = &faultyStore{Store: f.store}
	o := Options{
		Store:    f.faulty,
		Cache:    f.cache,
		Notifier: f.recorder,
		Emitter:  events.NewBusEmitter(f.bus, 100*time.Millisecond),
		Clock:    f.clock,
	}
	for _, opt := range opts {
		opt(&o)
	}
	f.svc = New(o)
	t.Cleanup(f.bus.Shutdown)
	return f
}

func (f *fixture) create(t *testing.T, tenant catcommon.TenantId, form CreateForm) *Entry {
	t.Helper()
	if form.Description == "" {
		form.Description = "A bookable service"
	}
	e, err := f.svc.Create(context.Background(), tenant, form, "tester")
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	return e
}

func (f *fixture) createNamed(t *testing.T, tenant catcommon.TenantId, name string) *Entry {
	t.Helper()
	return f.create(t, tenant, CreateForm{Name: name})
}

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

// faultyStore wraps a Store and fails selected calls.
type faultyStore struct {
	db.Store

	mu          sync.Mutex
	onDelete    func(id uuid.UUID) error
	failCreate  func(n int) error
	creates     int
	listErr     error
	listCalls   int
	getErr      error
	bookingsErr error
}

var errStoreDown = errors.New("connection refused")

func (s *faultyStore) CreateService(ctx context.Context, svc *models.Service) error {
	s.mu.Lock()
	s.creates++
	n := s.creates
	fail := s.failCreate
	s.mu.Unlock()
	if fail != nil {
		if err := fail(n); err != nil {
			return err
		}
	}
	return s.Store.CreateService(ctx, svc)
}

func (s *faultyStore) DeleteService(ctx context.Context, tenantID catcommon.TenantId, id uuid.UUID) error {
	s.mu.Lock()
	hook := s.onDelete
	s.mu.Unlock()
	if hook != nil {
		if err := hook(id); err != nil {
			return err
		}
	}
	return s.Store.DeleteService(ctx, tenantID, id)
}

func (s *faultyStore) ListServices(ctx context.Context, f models.ServiceFilter, opts models.ListOptions) ([]models.Service, error) {
	s.mu.Lock()
	s.listCalls++
	err := s.listErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Store.ListServices(ctx, f, opts)
}

func (s *faultyStore) GetService(ctx context.Context, tenantID catcommon.TenantId, id uuid.UUID) (*models.Service, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.Store.GetService(ctx, tenantID, id)
}

func (s *faultyStore) ListBookings(ctx context.Context, tenantID catcommon.TenantId, statuses []string) ([]models.BookingRecord, error) {
	if s.bookingsErr != nil {
		return nil, s.bookingsErr
	}
	return s.Store.ListBookings(ctx, tenantID, statuses)
}

func (s *faultyStore) listCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

// collect drains the events published so far on ch.
func collect(ch <-chan events.Message) []events.Event {
	var out []events.Event
	for {
		select {
		case m, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, m.Data.(events.Event))
		default:
			return out
		}
	}
}
