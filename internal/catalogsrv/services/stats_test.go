package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func TestTrailingMonthKeys(t *testing.T) {
	assert.Equal(t,
		[]string{"2025-10", "2025-11", "2025-12", "2026-01", "2026-02", "2026-03"},
		trailingMonthKeys(time.Date(2026, time.March, 31, 23, 0, 0, 0, time.UTC), 6))
	assert.Equal(t, []string{"2026-01"}, trailingMonthKeys(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), 1))
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 0.0, ratio(5, 0, 4))
	assert.Equal(t, 0.5, ratio(4, 8, 4))
	assert.Equal(t, 0.3333, ratio(1, 3, 4))
	assert.Equal(t, 66.67, ratio(200, 3, 2))
}

func TestGetStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, tenantA, CreateForm{Name: "Deep Tissue", Price: price("100"), Category: strPtr("Massage"), Featured: true})
	b := f.create(t, tenantA, CreateForm{Name: "Facial", Price: price("50"), Category: strPtr("Skin")})
	c := f.create(t, tenantA, CreateForm{Name: "Consultation"})
	f.create(t, tenantA, CreateForm{Name: "Draft Wrap", Price: price("20"), Category: strPtr("Body"), Status: "draft"})
	foreign := f.create(t, tenantB, CreateForm{Name: "Elsewhere", Price: price("999")})

	f.store.AddBooking(a.ID, models.BookingStatusCompleted, date(2026, time.March, 2))
	f.store.AddBooking(a.ID, models.BookingStatusCompleted, date(2026, time.February, 10))
	f.store.AddBooking(a.ID, models.BookingStatusConfirmed, date(2026, time.March, 5))
	f.store.AddBooking(a.ID, models.BookingStatusCancelled, date(2026, time.March, 6))
	f.store.AddBooking(a.ID, models.BookingStatusCompleted, date(2025, time.January, 1))
	f.store.AddBooking(b.ID, models.BookingStatusConfirmed, date(2026, time.January, 20))
	f.store.AddBooking(b.ID, models.BookingStatusConfirmed, date(2026, time.January, 21))
	f.store.AddBooking(c.ID, models.BookingStatusCompleted, date(2026, time.March, 1))
	f.store.AddBooking(foreign.ID, models.BookingStatusCompleted, date(2026, time.March, 1))
	f.store.AddView(a.ID, date(2026, time.March, 1), 8)
	f.store.AddView(c.ID, date(2026, time.March, 1), 3)

	st, err := f.svc.GetStats(ctx, tenantA)
	require.NoError(t, err)

	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 3, st.Active)
	assert.Equal(t, 1, st.Featured)
	assert.Equal(t, 2, st.CategoryCount)
	assert.Equal(t, 75.0, st.AveragePrice)
	assert.Equal(t, 150.0, st.TotalRevenue)

	an := st.Analytics
	assert.Equal(t, []MonthlyBookings{
		{Month: "2025-10"},
		{Month: "2025-11"},
		{Month: "2025-12"},
		{Month: "2026-01", Bookings: 2, Revenue: 100},
		{Month: "2026-02", Bookings: 1, Revenue: 100},
		{Month: "2026-03", Bookings: 3, Revenue: 200},
	}, an.MonthlyBookings)

	assert.Equal(t, []ServiceRevenue{
		{ServiceID: a.ID, Service: "Deep Tissue", Revenue: 400},
		{ServiceID: b.ID, Service: "Facial", Revenue: 100},
		{ServiceID: c.ID, Service: "Consultation", Revenue: 0},
	}, an.RevenueByService)

	assert.Equal(t, []ServiceBookings{
		{ServiceID: a.ID, Service: "Deep Tissue", Bookings: 4},
		{ServiceID: b.ID, Service: "Facial", Bookings: 2},
		{ServiceID: c.ID, Service: "Consultation", Bookings: 1},
	}, an.PopularServices)

	require.Len(t, an.RevenueTimeSeries, 3)
	assert.Equal(t, a.ID, an.RevenueTimeSeries[0].ServiceID)
	assert.Equal(t, []MonthlyRevenue{
		{Month: "2025-10"},
		{Month: "2025-11"},
		{Month: "2025-12"},
		{Month: "2026-01"},
		{Month: "2026-02", Revenue: 100},
		{Month: "2026-03", Revenue: 200},
	}, an.RevenueTimeSeries[0].Monthly)

	assert.Equal(t, []ServiceConversion{
		{ServiceID: a.ID, Service: "Deep Tissue", Bookings: 4, Views: 8, ConversionRate: 0.5},
		{ServiceID: b.ID, Service: "Facial", Bookings: 2, Views: 0, ConversionRate: 0},
		{ServiceID: c.ID, Service: "Consultation", Bookings: 1, Views: 3, ConversionRate: 0.3333},
	}, an.ConversionsByService)

	assert.Equal(t, []MonthlyCompletion{
		{Month: "2026-01", Completed: 0, Total: 2, Rate: 0},
		{Month: "2026-02", Completed: 1, Total: 1, Rate: 100},
		{Month: "2026-03", Completed: 2, Total: 3, Rate: 66.67},
	}, an.CompletionRates)
}

func TestGetStatsEmptyTenant(t *testing.T) {
	f := newFixture(t)
	st, err := f.svc.GetStats(context.Background(), tenantA)
	require.NoError(t, err)

	assert.Zero(t, st.Total)
	assert.Zero(t, st.AveragePrice)
	assert.Len(t, st.Analytics.MonthlyBookings, trailingMonths)
	assert.Len(t, st.Analytics.CompletionRates, completionMonths)
	assert.NotNil(t, st.Analytics.RevenueByService)
	assert.Empty(t, st.Analytics.RevenueByService)
	assert.NotNil(t, st.Analytics.ConversionsByService)
	assert.Empty(t, st.Analytics.ConversionsByService)
}

func TestGetStatsTieOrder(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, tenantA, CreateForm{Name: "Beta", Price: price("10")})
	a := f.create(t, tenantA, CreateForm{Name: "Alpha", Price: price("10")})
	f.store.AddBooking(b.ID, models.BookingStatusCompleted, date(2026, time.March, 1))
	f.store.AddBooking(a.ID, models.BookingStatusCompleted, date(2026, time.March, 1))

	st, err := f.svc.GetStats(context.Background(), tenantA)
	require.NoError(t, err)
	require.Len(t, st.Analytics.RevenueByService, 2)
	assert.Equal(t, "Alpha", st.Analytics.RevenueByService[0].Service)
	assert.Equal(t, "Alpha", st.Analytics.PopularServices[0].Service)
}

func TestGetStatsCaching(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, tenantA, CreateForm{Name: "Reiki", Price: price("40")})

	st, err := f.svc.GetStats(ctx, tenantA)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Total)

	// a cached result does not touch the store
	f.faulty.bookingsErr = errStoreDown
	st, err = f.svc.GetStats(ctx, tenantA)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Total)
	assert.Equal(t, 40.0, st.AveragePrice)

	// a mutation drops the cached result
	f.faulty.bookingsErr = nil
	f.create(t, tenantA, CreateForm{Name: "Shiatsu", Price: price("60")})
	f.faulty.bookingsErr = errStoreDown
	_, err = f.svc.GetStats(ctx, tenantA)
	assert.ErrorIs(t, err, ErrPersistence)

	f.faulty.bookingsErr = nil
	st, err = f.svc.GetStats(ctx, tenantA)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 50.0, st.AveragePrice)
}
