package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/cache"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/dberror"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/models"
	"github.com/practiceops/servicecatalog/internal/common/uuid"
)

// List returns one page of the entries matching f. Pages are cached per
// tenant and parameter set; concurrent misses for the same page share one
// query.
func (s *CatalogService) List(ctx context.Context, tenantID catcommon.TenantId, f Filters) (*ListResult, error) {
	f = f.normalize()
	key, err := cache.Key(listCachePrefix, tenantID, f)
	if err != nil {
		return nil, ErrValidation.MsgErr("invalid filters", err)
	}

	var res ListResult
	if s.cached(ctx, key, &res) {
		return &res, nil
	}

	v, err, _ := s.flight.Do(key, func() (any, error) {
		page, err := s.list(ctx, tenantID, f)
		if err != nil {
			return nil, err
		}
		s.remember(ctx, key, page, s.listTTL)
		return page, nil
	})
	if err != nil {
		return nil, err
	}
	res = *v.(*ListResult)
	return &res, nil
}

func (s *CatalogService) list(ctx context.Context, tenantID catcommon.TenantId, f Filters) (*ListResult, error) {
	filter := f.serviceFilter(tenantID)
	opts := models.ListOptions{
		SortColumn: models.SortColumns[f.SortBy],
		Desc:       f.SortOrder == "desc",
		Limit:      f.Limit,
		Offset:     f.Offset,
	}

	var (
		total int
		rows  []models.Service
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.store.CountServices(gctx, filter)
		total = n
		return err
	})
	g.Go(func() error {
		r, err := s.store.ListServices(gctx, filter, opts)
		rows = r
		return err
	})
	if err := g.Wait(); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to list services")
		return nil, storeError(err)
	}

	res := &ListResult{
		Services:   make([]Entry, 0, len(rows)),
		Total:      total,
		Page:       f.Offset/f.Limit + 1,
		Limit:      f.Limit,
		TotalPages: max(1, (total+f.Limit-1)/f.Limit),
	}
	for i := range rows {
		res.Services = append(res.Services, toEntry(&rows[i]))
	}
	return res, nil
}

// GetByID returns the entry, or nil when it does not exist within the
// tenant.
func (s *CatalogService) GetByID(ctx context.Context, tenantID catcommon.TenantId, id uuid.UUID) (*Entry, error) {
	key := entryKey(id, tenantID)
	var e Entry
	if s.cached(ctx, key, &e) {
		return &e, nil
	}

	svc, err := s.store.GetService(ctx, tenantID, id)
	if errors.Is(err, dberror.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(err)
	}
	e = toEntry(svc)
	s.remember(ctx, key, e, s.entryTTL)
	return &e, nil
}
