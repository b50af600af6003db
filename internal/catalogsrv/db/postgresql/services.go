package postgresql

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/dberror"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/models"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/query"
	"github.com/practiceops/servicecatalog/internal/common/uuid"
)

func filterConditions(f models.ServiceFilter) []query.Condition {
	var conds []query.Condition
	if !f.TenantID.IsNull() {
		conds = append(conds, query.Eq(models.ColTenantID, string(f.TenantID)))
	}
	if f.IDs != nil {
		conds = append(conds, query.In(models.ColID, f.IDs))
	}
	if f.Status != "" {
		conds = append(conds, query.Eq(models.ColStatus, f.Status))
	}
	if f.Active != nil {
		conds = append(conds, query.Eq(models.ColActive, *f.Active))
	}
	if f.Featured != nil {
		conds = append(conds, query.Eq(models.ColFeatured, *f.Featured))
	}
	if f.Category != nil {
		conds = append(conds, query.Eq(models.ColCategory, *f.Category))
	}
	if f.CategoryNotNull {
		conds = append(conds, query.IsNotNull(models.ColCategory))
	}
	if f.PriceNotNull {
		conds = append(conds, query.IsNotNull(models.ColPrice))
	}
	if f.MinPrice != nil {
		conds = append(conds, query.Gte(models.ColPrice, *f.MinPrice))
	}
	if f.MaxPrice != nil {
		conds = append(conds, query.Lte(models.ColPrice, *f.MaxPrice))
	}
	if f.Search != "" {
		conds = append(conds, query.AnyILike(f.Search, models.SearchColumns...))
	}
	return conds
}

func servicesQuery(f models.ServiceFilter) *query.Builder {
	b := query.From(servicesTable)
	for _, c := range filterConditions(f) {
		b = b.Where(c)
	}
	return b
}

func tenantScope(b *query.UpdateBuilder, tenantID catcommon.TenantId) *query.UpdateBuilder {
	if tenantID.IsNull() {
		return b
	}
	return b.Where(query.Eq(models.ColTenantID, string(tenantID)))
}

// ListServices returns one page of services. Rows are ordered by the sort
// column and then by id so pages are stable.
func (s *Store) ListServices(ctx context.Context, f models.ServiceFilter, opts models.ListOptions) ([]models.Service, error) {
	b := servicesQuery(f).Select(models.ServiceColumns...)
	dir := query.Asc
	if opts.Desc {
		dir = query.Desc
	}
	if opts.SortColumn != "" {
		b = b.OrderBy(opts.SortColumn, dir)
	}
	b = b.OrderBy(models.ColID, query.Asc)
	if opts.Limit > 0 {
		b = b.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		b = b.Offset(int64(opts.Offset))
	}

	sqlText, args := b.Build()
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, mapError(ctx, err, "services")
	}
	defer rows.Close()

	services := []models.Service{}
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, mapError(ctx, err, "services")
		}
		services = append(services, *svc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(ctx, err, "services")
	}
	return services, nil
}

func (s *Store) scalar(ctx context.Context, b *query.Builder, dest ...any) error {
	sqlText, args := b.Build()
	if err := s.db.QueryRowContext(ctx, sqlText, args...).Scan(dest...); err != nil {
		return mapError(ctx, err, "services")
	}
	return nil
}

// CountServices counts the services matching f.
func (s *Store) CountServices(ctx context.Context, f models.ServiceFilter) (int, error) {
	var n int
	err := s.scalar(ctx, servicesQuery(f).Count(), &n)
	return n, err
}

// CountCategories counts the distinct non-null categories matching f.
func (s *Store) CountCategories(ctx context.Context, f models.ServiceFilter) (int, error) {
	var n int
	err := s.scalar(ctx, servicesQuery(f).Select("COUNT(DISTINCT category)"), &n)
	return n, err
}

// AggregatePrices returns AVG and SUM of the non-null prices matching f.
func (s *Store) AggregatePrices(ctx context.Context, f models.ServiceFilter) (models.ServiceAggregates, error) {
	var agg models.ServiceAggregates
	err := s.scalar(ctx, servicesQuery(f).Select("AVG(price)", "SUM(price)"), &agg.AveragePrice, &agg.TotalPrice)
	return agg, err
}

// GetService returns the service with id in the tenant.
func (s *Store) GetService(ctx context.Context, tenantID catcommon.TenantId, id uuid.UUID) (*models.Service, error) {
	sqlText, args := servicesQuery(models.ServiceFilter{TenantID: tenantID}).
		Select(models.ServiceColumns...).
		Where(query.Eq(models.ColID, id)).
		Build()
	svc, err := scanService(s.db.QueryRowContext(ctx, sqlText, args...))
	if err != nil {
		return nil, mapError(ctx, err, "service")
	}
	return svc, nil
}

// SlugExists reports whether slug is used in the tenant by another row.
func (s *Store) SlugExists(ctx context.Context, tenantID catcommon.TenantId, slug string, excludeID uuid.UUID) (bool, error) {
	b := servicesQuery(models.ServiceFilter{TenantID: tenantID}).Where(query.Eq(models.ColSlug, slug))
	if excludeID != uuid.Nil {
		b = b.Where(query.Ne(models.ColID, excludeID))
	}
	var n int
	if err := s.scalar(ctx, b.Count(), &n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateService inserts svc. A slug collision within the tenant returns
// dberror.ErrAlreadyExists.
func (s *Store) CreateService(ctx context.Context, svc *models.Service) error {
	if svc.ID == uuid.Nil {
		return dberror.ErrInvalidInput.Msg("service id is required")
	}
	values := []any{
		svc.ID, svc.TenantID, svc.Slug, svc.Name, svc.Description, svc.ShortDescription,
		svc.Features, svc.Category, svc.Image, svc.Price, svc.BasePrice, svc.DurationMinutes,
		svc.EstimatedDurationHours, svc.Active, svc.Featured, svc.Status, svc.BookingEnabled,
		svc.AdvanceBookingDays, svc.MinAdvanceHours, svc.MaxDailyBookings, svc.BufferTimeMinutes,
		svc.BusinessHours, svc.BlackoutDates, svc.RequiredSkills, settingsOrEmpty(svc.Settings),
		svc.CreatedAt, svc.UpdatedAt,
	}
	args := &query.Args{}
	cols := make([]string, len(models.ServiceColumns))
	placeholders := make([]string, len(models.ServiceColumns))
	for i, col := range models.ServiceColumns {
		v, err := dbValue(values[i])
		if err != nil {
			return dberror.ErrInvalidInput.MsgErr("invalid value for "+col, err)
		}
		cols[i] = query.Ident(col)
		placeholders[i] = args.Add(v)
	}
	sqlText := "INSERT INTO " + query.Ident(servicesTable) +
		" (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")"

	if _, err := s.db.ExecContext(ctx, sqlText, args.Values()...); err != nil {
		return mapError(ctx, err, "service")
	}
	return nil
}

func settingsOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return raw
}

func (s *Store) buildUpdate(upd *models.ServiceUpdate) (*query.UpdateBuilder, error) {
	b := query.Update(servicesTable)
	for _, col := range upd.Columns() {
		v, _ := upd.Value(col)
		if col == models.ColSettings {
			if raw, ok := v.(json.RawMessage); ok {
				v = settingsOrEmpty(raw)
			}
		}
		dv, err := dbValue(v)
		if err != nil {
			return nil, dberror.ErrInvalidInput.MsgErr("invalid value for "+col, err)
		}
		b = b.Set(col, dv)
	}
	return b, nil
}

// UpdateService applies upd to one service and returns the updated row.
func (s *Store) UpdateService(ctx context.Context, tenantID catcommon.TenantId, id uuid.UUID, upd *models.ServiceUpdate) (*models.Service, error) {
	if upd.IsEmpty() {
		return s.GetService(ctx, tenantID, id)
	}
	b, err := s.buildUpdate(upd)
	if err != nil {
		return nil, err
	}
	b = tenantScope(b.Where(query.Eq(models.ColID, id)), tenantID).Returning(models.ServiceColumns...)

	sqlText, args := b.Build()
	svc, err := scanService(s.db.QueryRowContext(ctx, sqlText, args...))
	if err != nil {
		return nil, mapError(ctx, err, "service")
	}
	return svc, nil
}

// UpdateServices applies upd to every service matching f.
func (s *Store) UpdateServices(ctx context.Context, f models.ServiceFilter, upd *models.ServiceUpdate) (int, error) {
	if upd.IsEmpty() {
		return 0, nil
	}
	b, err := s.buildUpdate(upd)
	if err != nil {
		return 0, err
	}
	for _, c := range filterConditions(f) {
		b = b.Where(c)
	}
	sqlText, args := b.Build()
	res, err := s.db.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return 0, mapError(ctx, err, "services")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(ctx, err, "services")
	}
	return int(n), nil
}

// DeleteService removes the row physically.
func (s *Store) DeleteService(ctx context.Context, tenantID catcommon.TenantId, id uuid.UUID) error {
	args := &query.Args{}
	sqlText := "DELETE FROM " + query.Ident(servicesTable) + " WHERE " + query.Eq(models.ColID, id).SQL(args)
	if !tenantID.IsNull() {
		sqlText += " AND " + query.Eq(models.ColTenantID, string(tenantID)).SQL(args)
	}
	res, err := s.db.ExecContext(ctx, sqlText, args.Values()...)
	if err != nil {
		return mapError(ctx, err, "service")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(ctx, err, "service")
	}
	if n == 0 {
		return dberror.ErrNotFound.Msg("service not found")
	}
	log.Ctx(ctx).Debug().Str("service_id", id.String()).Msg("service removed")
	return nil
}
