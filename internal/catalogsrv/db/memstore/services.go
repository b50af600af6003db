package memstore

import (
	"context"
	"encoding/json"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/dberror"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/models"
	"github.com/practiceops/servicecatalog/internal/common/uuid"
)

func matches(svc *models.Service, f models.ServiceFilter) bool {
	if !inTenant(svc, f.TenantID) {
		return false
	}
	if f.IDs != nil && !slices.Contains(f.IDs, svc.ID) {
		return false
	}
	if f.Status != "" && svc.Status != f.Status {
		return false
	}
	if f.Active != nil && svc.Active != *f.Active {
		return false
	}
	if f.Featured != nil && svc.Featured != *f.Featured {
		return false
	}
	if f.Category != nil && (svc.Category == nil || *svc.Category != *f.Category) {
		return false
	}
	if f.CategoryNotNull && svc.Category == nil {
		return false
	}
	if f.PriceNotNull && !svc.Price.Valid {
		return false
	}
	// comparisons with a NULL price are never true
	if f.MinPrice != nil && (!svc.Price.Valid || svc.Price.Decimal.LessThan(*f.MinPrice)) {
		return false
	}
	if f.MaxPrice != nil && (!svc.Price.Valid || svc.Price.Decimal.GreaterThan(*f.MaxPrice)) {
		return false
	}
	if f.Search != "" && !matchesSearch(svc, f.Search) {
		return false
	}
	return true
}

func matchesSearch(svc *models.Service, term string) bool {
	term = strings.ToLower(term)
	fields := []*string{&svc.Name, &svc.Slug, &svc.Description, svc.ShortDescription, svc.Category}
	for _, f := range fields {
		if f != nil && strings.Contains(strings.ToLower(*f), term) {
			return true
		}
	}
	return false
}

func (s *Store) filtered(f models.ServiceFilter) []*models.Service {
	var out []*models.Service
	for _, svc := range s.services {
		if matches(svc, f) {
			out = append(out, svc)
		}
	}
	return out
}

// compareColumn orders two services on a sort column. NULLs sort after
// every value, as they do in PostgreSQL.
func compareColumn(a, b *models.Service, col string) int {
	switch col {
	case models.ColName:
		return strings.Compare(a.Name, b.Name)
	case models.ColPrice:
		return compareNullDecimal(a.Price, b.Price)
	case models.ColCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case models.ColUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	return 0
}

func compareNullDecimal(a, b decimal.NullDecimal) int {
	switch {
	case !a.Valid && !b.Valid:
		return 0
	case !a.Valid:
		return 1
	case !b.Valid:
		return -1
	}
	return a.Decimal.Cmp(b.Decimal)
}

func compareID(a, b uuid.UUID) int {
	return strings.Compare(string(a[:]), string(b[:]))
}

func (s *Store) ListServices(ctx context.Context, f models.ServiceFilter, opts models.ListOptions) ([]models.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.filtered(f)
	sort.SliceStable(rows, func(i, j int) bool {
		if opts.SortColumn != "" {
			c := compareColumn(rows[i], rows[j], opts.SortColumn)
			if opts.Desc {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return compareID(rows[i].ID, rows[j].ID) < 0
	})

	start := min(max(opts.Offset, 0), len(rows))
	end := len(rows)
	if opts.Limit > 0 {
		end = min(start+opts.Limit, len(rows))
	}
	out := make([]models.Service, 0, end-start)
	for _, svc := range rows[start:end] {
		out = append(out, *svc.Clone())
	}
	return out, nil
}

func (s *Store) CountServices(ctx context.Context, f models.ServiceFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.filtered(f)), nil
}

func (s *Store) CountCategories(ctx context.Context, f models.ServiceFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{}
	for _, svc := range s.filtered(f) {
		if svc.Category != nil {
			seen[*svc.Category] = true
		}
	}
	return len(seen), nil
}

func (s *Store) AggregatePrices(ctx context.Context, f models.ServiceFilter) (models.ServiceAggregates, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var agg models.ServiceAggregates
	sum := decimal.Zero
	n := 0
	for _, svc := range s.filtered(f) {
		if svc.Price.Valid {
			sum = sum.Add(svc.Price.Decimal)
			n++
		}
	}
	if n > 0 {
		agg.TotalPrice = decimal.NewNullDecimal(sum)
		agg.AveragePrice = decimal.NewNullDecimal(sum.Div(decimal.NewFromInt(int64(n))))
	}
	return agg, nil
}

func (s *Store) GetService(ctx context.Context, tenantID catcommon.TenantId, id uuid.UUID) (*models.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[id]
	if !ok || !inTenant(svc, tenantID) {
		return nil, dberror.ErrNotFound.Msg("service not found")
	}
	return svc.Clone(), nil
}

func (s *Store) SlugExists(ctx context.Context, tenantID catcommon.TenantId, slug string, excludeID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, svc := range s.services {
		if svc.Slug == slug && svc.ID != excludeID && inTenant(svc, tenantID) {
			return true, nil
		}
	}
	return false, nil
}

// slugTaken mirrors the unique index on (COALESCE(tenant_id, ''), slug).
func (s *Store) slugTaken(tenantID catcommon.TenantId, slug string, excludeID uuid.UUID) bool {
	for _, svc := range s.services {
		if svc.ID != excludeID && svc.TenantID == tenantID && svc.Slug == slug {
			return true
		}
	}
	return false
}

func (s *Store) CreateService(ctx context.Context, svc *models.Service) error {
	if svc.ID == uuid.Nil {
		return dberror.ErrInvalidInput.Msg("service id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.services[svc.ID]; ok {
		return dberror.ErrAlreadyExists.Msg("service already exists")
	}
	if s.slugTaken(svc.TenantID, svc.Slug, uuid.Nil) {
		return dberror.ErrAlreadyExists.Msg("service already exists")
	}
	if err := checkRow(svc); err != nil {
		return err
	}
	stored := normalize(svc.Clone())
	s.services[svc.ID] = stored
	return nil
}

func (s *Store) UpdateService(ctx context.Context, tenantID catcommon.TenantId, id uuid.UUID, upd *models.ServiceUpdate) (*models.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok || !inTenant(svc, tenantID) {
		return nil, dberror.ErrNotFound.Msg("service not found")
	}
	next := svc.Clone()
	if err := applyUpdate(next, upd); err != nil {
		return nil, err
	}
	if err := checkRow(next); err != nil {
		return nil, err
	}
	if next.Slug != svc.Slug && s.slugTaken(next.TenantID, next.Slug, id) {
		return nil, dberror.ErrAlreadyExists.Msg("service already exists")
	}
	s.services[id] = normalize(next)
	return next.Clone(), nil
}

func (s *Store) UpdateServices(ctx context.Context, f models.ServiceFilter, upd *models.ServiceUpdate) (int, error) {
	if upd.IsEmpty() {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.filtered(f)
	updated := make(map[uuid.UUID]*models.Service, len(rows))
	for _, svc := range rows {
		next := svc.Clone()
		if err := applyUpdate(next, upd); err != nil {
			return 0, err
		}
		if err := checkRow(next); err != nil {
			return 0, err
		}
		updated[svc.ID] = normalize(next)
	}
	// the unique index is checked against the state after the statement
	seen := make(map[[2]string]bool, len(s.services))
	for id, svc := range s.services {
		if next, ok := updated[id]; ok {
			svc = next
		}
		key := [2]string{string(svc.TenantID), svc.Slug}
		if seen[key] {
			return 0, dberror.ErrAlreadyExists.Msg("service already exists")
		}
		seen[key] = true
	}
	// all or nothing, like a single UPDATE statement
	for id, svc := range updated {
		s.services[id] = svc
	}
	return len(updated), nil
}

func (s *Store) DeleteService(ctx context.Context, tenantID catcommon.TenantId, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok || !inTenant(svc, tenantID) {
		return dberror.ErrNotFound.Msg("service not found")
	}
	delete(s.services, id)
	s.bookings = slices.DeleteFunc(s.bookings, func(b booking) bool { return b.serviceID == id })
	s.views = slices.DeleteFunc(s.views, func(v models.ServiceView) bool { return v.ServiceID == id })
	return nil
}

// checkRow enforces the CHECK constraints of the services table.
func checkRow(svc *models.Service) error {
	if svc.Price.Valid && svc.Price.Decimal.IsNegative() {
		return dberror.ErrInvalidInput.Msg("invalid service: price must not be negative")
	}
	if svc.BasePrice.Valid && svc.BasePrice.Decimal.IsNegative() {
		return dberror.ErrInvalidInput.Msg("invalid service: base price must not be negative")
	}
	switch svc.Status {
	case catcommon.StatusDraft, catcommon.StatusActive, catcommon.StatusInactive:
	default:
		return dberror.ErrInvalidInput.Msgf("invalid service: unknown status %q", svc.Status)
	}
	return nil
}

// normalize applies the column defaults of the services table.
func normalize(svc *models.Service) *models.Service {
	if svc.Features == nil {
		svc.Features = []string{}
	}
	if svc.RequiredSkills == nil {
		svc.RequiredSkills = []string{}
	}
	if svc.BlackoutDates == nil {
		svc.BlackoutDates = []time.Time{}
	}
	if len(svc.Settings) == 0 {
		svc.Settings = json.RawMessage("{}")
	}
	svc.CreatedAt = svc.CreatedAt.UTC()
	svc.UpdatedAt = svc.UpdatedAt.UTC()
	for i, d := range svc.BlackoutDates {
		y, m, day := d.UTC().Date()
		svc.BlackoutDates[i] = time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	}
	return svc
}

func sortBookings(b []models.BookingRecord) {
	sort.SliceStable(b, func(i, j int) bool {
		if c := b[i].ScheduledAt.Compare(b[j].ScheduledAt); c != 0 {
			return c < 0
		}
		return compareID(b[i].ID, b[j].ID) < 0
	})
}
