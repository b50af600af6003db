package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/dberror"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/models"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/events"
	"github.com/practiceops/servicecatalog/internal/common/uuid"
)

// Create validates form and inserts a new entry in the tenant.
func (s *CatalogService) Create(ctx context.Context, tenantID catcommon.TenantId, form CreateForm, actor string) (*Entry, error) {
	if tenantID.IsNull() {
		return nil, ErrTenantRequired
	}
	svc, err := newService(form)
	if err != nil {
		return nil, err
	}
	if svc.Slug == "" {
		svc.Slug = Slugify(svc.Name)
	}
	if svc.Slug == "" {
		svc.Slug = fmt.Sprintf("service-%d", s.clock.Now().UnixMilli())
	}

	taken, err := s.store.SlugExists(ctx, tenantID, svc.Slug, uuid.Nil)
	if err != nil {
		return nil, storeError(err)
	}
	if taken {
		return nil, errSlugTaken
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, ErrPersistence.MsgErr("unable to generate service id", err)
	}
	now := s.now()
	svc.ID = id
	svc.TenantID = tenantID
	svc.CreatedAt = now
	svc.UpdatedAt = now
	if err := s.store.CreateService(ctx, svc); err != nil {
		return nil, storeError(err)
	}

	e := toEntry(svc)
	log.Ctx(ctx).Info().Str("service_id", id.String()).Str("slug", e.Slug).Msg("service created")

	s.invalidate(ctx, tenantID, id)
	bestEffort(ctx, "notify created", func() error {
		return s.notifier.ServiceCreated(ctx, tenantID, serviceInfo(&e), actor)
	})
	s.emit(ctx, events.TopicServiceCreated, tenantID, &e)
	return &e, nil
}

// Update applies the fields present in p. Settings are merged into the
// stored document.
func (s *CatalogService) Update(ctx context.Context, tenantID catcommon.TenantId, id uuid.UUID, p Patch, actor string) (*Entry, error) {
	existing, err := s.store.GetService(ctx, tenantID, id)
	if err != nil {
		return nil, storeError(err)
	}
	upd, err := patchUpdate(p)
	if err != nil {
		return nil, err
	}

	if v, ok := upd.Value(models.ColSlug); ok && v.(string) != existing.Slug {
		taken, err := s.store.SlugExists(ctx, existing.TenantID, v.(string), id)
		if err != nil {
			return nil, storeError(err)
		}
		if taken {
			return nil, errSlugTaken
		}
	}
	if incoming, ok := p.Settings.Get(); ok {
		merged, err := mergeSettings(existing.Settings, incoming)
		if err != nil {
			return nil, err
		}
		upd.Set(models.ColSettings, merged)
	}
	upd.Set(models.ColUpdatedAt, s.touch(existing))

	after, err := s.store.UpdateService(ctx, tenantID, id, upd)
	if err != nil {
		return nil, storeError(err)
	}

	before := toEntry(existing)
	e := toEntry(after)
	changes, err := changedFields(&before, &e)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("unable to diff service")
	}
	log.Ctx(ctx).Info().Str("service_id", id.String()).Strs("changes", changes).Msg("service updated")

	s.invalidate(ctx, after.TenantID, id)
	if len(changes) > 0 {
		bestEffort(ctx, "notify updated", func() error {
			return s.notifier.ServiceUpdated(ctx, after.TenantID, serviceInfo(&e), changes, actor)
		})
	}
	s.emit(ctx, events.TopicServiceUpdated, after.TenantID, &e)
	return &e, nil
}

// Delete deactivates the entry. Rows are never removed, so booking history
// keeps its references. Deleting an inactive entry succeeds.
func (s *CatalogService) Delete(ctx context.Context, tenantID catcommon.TenantId, id uuid.UUID, actor string) error {
	existing, err := s.store.GetService(ctx, tenantID, id)
	if err != nil {
		return storeError(err)
	}
	upd := softDelete().Set(models.ColUpdatedAt, s.touch(existing))
	after, err := s.store.UpdateService(ctx, tenantID, id, upd)
	if err != nil {
		return storeError(err)
	}

	e := toEntry(after)
	log.Ctx(ctx).Info().Str("service_id", id.String()).Msg("service deactivated")

	s.invalidate(ctx, after.TenantID, id)
	bestEffort(ctx, "notify deleted", func() error {
		return s.notifier.ServiceDeleted(ctx, after.TenantID, serviceInfo(&e), actor)
	})
	s.emit(ctx, events.TopicServiceDeleted, after.TenantID, &e)
	return nil
}

func softDelete() *models.ServiceUpdate {
	return (&models.ServiceUpdate{}).
		Set(models.ColActive, false).
		Set(models.ColStatus, catcommon.StatusInactive)
}

// touch returns the next updatedAt of svc, never earlier than the current
// one.
func (s *CatalogService) touch(svc *models.Service) time.Time {
	now := s.now()
	if now.Before(svc.UpdatedAt) {
		return svc.UpdatedAt
	}
	return now
}

var diffJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// changedFields returns the JSON names of the fields that differ between
// before and after, ignoring updatedAt.
func changedFields(before, after *Entry) ([]string, error) {
	b, err := asFields(before)
	if err != nil {
		return nil, err
	}
	a, err := asFields(after)
	if err != nil {
		return nil, err
	}
	var changes []string
	for _, name := range entryFields {
		if name == "updatedAt" {
			continue
		}
		if !reflect.DeepEqual(b[name], a[name]) {
			changes = append(changes, name)
		}
	}
	return changes, nil
}

func asFields(e *Entry) (map[string]any, error) {
	raw, err := diffJSON.Marshal(e)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := diffJSON.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// entryFields lists the JSON names of Entry in declaration order.
var entryFields = func() []string {
	t := reflect.TypeOf(Entry{})
	names := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		names = append(names, name)
	}
	return names
}()

// isNotFound reports whether err means the row is missing.
func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, dberror.ErrNotFound)
}
