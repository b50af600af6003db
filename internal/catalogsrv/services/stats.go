package services

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/models"
	"github.com/practiceops/servicecatalog/internal/common/uuid"
)

const (
	monthLayout = "2006-01"

	trailingMonths   = 6
	completionMonths = 3
	topServices      = 10
	seriesServices   = 5
)

// GetStats returns counts, price aggregates and booking analytics of the
// tenant.
func (s *CatalogService) GetStats(ctx context.Context, tenantID catcommon.TenantId) (*Stats, error) {
	key := statsKey(tenantID)
	var st Stats
	if s.cached(ctx, key, &st) {
		return &st, nil
	}

	v, err, _ := s.flight.Do(key, func() (any, error) {
		st, err := s.stats(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		s.remember(ctx, key, st, s.statsTTL)
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	st = *v.(*Stats)
	return &st, nil
}

func (s *CatalogService) stats(ctx context.Context, tenantID catcommon.TenantId) (*Stats, error) {
	var (
		st   Stats
		aggr models.ServiceAggregates
	)
	all := models.ServiceFilter{TenantID: tenantID}
	active := models.ServiceFilter{TenantID: tenantID, Status: catcommon.StatusActive}
	featured := active
	featured.Featured = boolPtr(true)
	categorized := active
	categorized.CategoryNotNull = true
	priced := active
	priced.PriceNotNull = true

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.Total, err = s.store.CountServices(gctx, all)
		return
	})
	g.Go(func() (err error) {
		st.Active, err = s.store.CountServices(gctx, active)
		return
	})
	g.Go(func() (err error) {
		st.Featured, err = s.store.CountServices(gctx, featured)
		return
	})
	g.Go(func() (err error) {
		st.CategoryCount, err = s.store.CountCategories(gctx, categorized)
		return
	})
	g.Go(func() (err error) {
		aggr, err = s.store.AggregatePrices(gctx, priced)
		return
	})
	if err := g.Wait(); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to aggregate services")
		return nil, storeError(err)
	}
	if aggr.AveragePrice.Valid {
		st.AveragePrice = aggr.AveragePrice.Decimal.Round(2).InexactFloat64()
	}
	if aggr.TotalPrice.Valid {
		st.TotalRevenue = aggr.TotalPrice.Decimal.Round(2).InexactFloat64()
	}

	a, err := s.analytics(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	st.Analytics = *a
	return &st, nil
}

type serviceTotals struct {
	id       uuid.UUID
	name     string
	bookings int
	revenue  decimal.Decimal
	monthly  map[string]decimal.Decimal
}

type monthTotals struct {
	bookings  int
	completed int
	revenue   decimal.Decimal
}

func (s *CatalogService) analytics(ctx context.Context, tenantID catcommon.TenantId) (*Analytics, error) {
	bookings, err := s.store.ListBookings(ctx, tenantID, []string{models.BookingStatusCompleted, models.BookingStatusConfirmed})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to list bookings")
		return nil, storeError(err)
	}

	months := trailingMonthKeys(s.clock.Now().UTC(), trailingMonths)
	inWindow := make(map[string]*monthTotals, len(months))
	for _, m := range months {
		inWindow[m] = &monthTotals{}
	}

	perService := map[uuid.UUID]*serviceTotals{}
	for _, b := range bookings {
		price := decimal.Zero
		if b.ServicePrice.Valid {
			price = b.ServicePrice.Decimal
		}
		t, ok := perService[b.ServiceID]
		if !ok {
			t = &serviceTotals{id: b.ServiceID, name: b.ServiceName, monthly: map[string]decimal.Decimal{}}
			perService[b.ServiceID] = t
		}
		t.bookings++
		t.revenue = t.revenue.Add(price)

		month := b.ScheduledAt.UTC().Format(monthLayout)
		mt, ok := inWindow[month]
		if !ok {
			continue
		}
		mt.bookings++
		mt.revenue = mt.revenue.Add(price)
		if b.Status == models.BookingStatusCompleted {
			mt.completed++
		}
		t.monthly[month] = t.monthly[month].Add(price)
	}

	byRevenue := sortedTotals(perService, func(a, b *serviceTotals) bool {
		if c := a.revenue.Cmp(b.revenue); c != 0 {
			return c > 0
		}
		return tieBreak(a, b)
	})
	byBookings := sortedTotals(perService, func(a, b *serviceTotals) bool {
		if a.bookings != b.bookings {
			return a.bookings > b.bookings
		}
		return tieBreak(a, b)
	})

	out := &Analytics{
		MonthlyBookings:      make([]MonthlyBookings, 0, len(months)),
		RevenueByService:     []ServiceRevenue{},
		PopularServices:      []ServiceBookings{},
		RevenueTimeSeries:    []ServiceTimeSeries{},
		ConversionsByService: []ServiceConversion{},
		CompletionRates:      []MonthlyCompletion{},
	}
	for _, m := range months {
		mt := inWindow[m]
		out.MonthlyBookings = append(out.MonthlyBookings, MonthlyBookings{
			Month:    m,
			Bookings: mt.bookings,
			Revenue:  amount(mt.revenue),
		})
	}
	for _, m := range months[len(months)-completionMonths:] {
		mt := inWindow[m]
		out.CompletionRates = append(out.CompletionRates, MonthlyCompletion{
			Month:     m,
			Completed: mt.completed,
			Total:     mt.bookings,
			Rate:      ratio(mt.completed*100, mt.bookings, 2),
		})
	}

	top := byRevenue[:min(topServices, len(byRevenue))]
	for _, t := range top {
		out.RevenueByService = append(out.RevenueByService, ServiceRevenue{ServiceID: t.id, Service: t.name, Revenue: amount(t.revenue)})
	}
	for _, t := range byBookings[:min(topServices, len(byBookings))] {
		out.PopularServices = append(out.PopularServices, ServiceBookings{ServiceID: t.id, Service: t.name, Bookings: t.bookings})
	}
	for _, t := range byRevenue[:min(seriesServices, len(byRevenue))] {
		series := ServiceTimeSeries{ServiceID: t.id, Service: t.name, Monthly: make([]MonthlyRevenue, 0, len(months))}
		for _, m := range months {
			series.Monthly = append(series.Monthly, MonthlyRevenue{Month: m, Revenue: amount(t.monthly[m])})
		}
		out.RevenueTimeSeries = append(out.RevenueTimeSeries, series)
	}

	if len(top) > 0 {
		ids := make([]uuid.UUID, 0, len(top))
		for _, t := range top {
			ids = append(ids, t.id)
		}
		views, err := s.store.CountViews(ctx, tenantID, ids)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("unable to count service views")
			return nil, storeError(err)
		}
		for _, t := range top {
			out.ConversionsByService = append(out.ConversionsByService, ServiceConversion{
				ServiceID:      t.id,
				Service:        t.name,
				Bookings:       t.bookings,
				Views:          views[t.id],
				ConversionRate: ratio(t.bookings, views[t.id], 4),
			})
		}
	}
	return out, nil
}

// trailingMonthKeys returns the YYYY-MM keys of the n months ending with
// the month of now, oldest first.
func trailingMonthKeys(now time.Time, n int) []string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		keys[i] = first.AddDate(0, i-n+1, 0).Format(monthLayout)
	}
	return keys
}

func sortedTotals(m map[uuid.UUID]*serviceTotals, less func(a, b *serviceTotals) bool) []*serviceTotals {
	out := make([]*serviceTotals, 0, len(m))
	for _, t := range m {
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func tieBreak(a, b *serviceTotals) bool {
	if a.name != b.name {
		return a.name < b.name
	}
	return a.id.String() < b.id.String()
}

// ratio returns n/d rounded to places, or 0 when d is 0.
func ratio(n, d int, places int32) float64 {
	if d == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(n)).DivRound(decimal.NewFromInt(int64(d)), places).InexactFloat64()
}

func amount(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
