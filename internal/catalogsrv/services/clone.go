package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/config"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/dberror"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/events"
	"github.com/practiceops/servicecatalog/internal/common/uuid"
)

// Clone copies the source entry into a new draft named name in the
// tenant of the source. An empty name yields "<source name> (copy)".
func (s *CatalogService) Clone(ctx context.Context, tenantID catcommon.TenantId, name string, sourceID uuid.UUID) (*Entry, error) {
	e, err := s.clone(ctx, tenantID, name, sourceID)
	if err != nil {
		return nil, err
	}
	owner := entryTenant(e)
	actor := catcommon.GetActor(ctx)

	s.invalidate(ctx, owner, e.ID)
	bestEffort(ctx, "notify created", func() error {
		return s.notifier.ServiceCreated(ctx, owner, serviceInfo(e), actor)
	})
	s.emit(ctx, events.TopicServiceCreated, owner, e)
	return e, nil
}

// clone inserts the copy without side effects. When a concurrent insert
// takes the probed slug, probing resumes after it.
func (s *CatalogService) clone(ctx context.Context, tenantID catcommon.TenantId, name string, sourceID uuid.UUID) (*Entry, error) {
	src, err := s.store.GetService(ctx, tenantID, sourceID)
	if errors.Is(err, dberror.ErrNotFound) {
		return nil, errSourceNotFound
	}
	if err != nil {
		return nil, storeError(err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = copyName(src.Name)
	} else {
		var v sanitizer
		name = v.name(name)
		if err := v.err(); err != nil {
			return nil, err
		}
	}
	base := Slugify(name)
	if base == "" {
		base = src.Slug
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, ErrPersistence.MsgErr("unable to generate service id", err)
	}
	now := s.now()
	c := src.Clone()
	c.ID = id
	c.Name = name
	c.Featured = false
	c.Active = false
	c.Status = catcommon.StatusDraft
	c.CreatedAt = now
	c.UpdatedAt = now

	next := 0
	for attempt := 0; attempt < config.MaxCloneSlugAttempts; attempt++ {
		slug, n, err := s.freeSlug(ctx, src.TenantID, base, next)
		if err != nil {
			return nil, err
		}
		c.Slug = slug
		err = s.store.CreateService(ctx, c)
		if err == nil {
			e := toEntry(c)
			log.Ctx(ctx).Info().
				Str("service_id", id.String()).
				Str("source_id", sourceID.String()).
				Str("slug", slug).
				Msg("service cloned")
			return &e, nil
		}
		if !errors.Is(err, dberror.ErrAlreadyExists) {
			return nil, storeError(err)
		}
		next = n + 1
	}
	return nil, ErrConflict.Msgf("no free slug for %q", base)
}

const copySuffix = " (copy)"

// copyName derives the default clone name, shortening the source name so
// the result stays within maxNameLen runes.
func copyName(source string) string {
	keep := maxNameLen - utf8.RuneCountInString(copySuffix)
	runes := []rune(strings.TrimSpace(source))
	if len(runes) > keep {
		runes = runes[:keep]
	}
	return strings.TrimSpace(string(runes)) + copySuffix
}

// freeSlug probes base, base-1, base-2 and so on, starting at suffix from,
// and returns the first slug not taken in the tenant with its suffix.
func (s *CatalogService) freeSlug(ctx context.Context, tenantID catcommon.TenantId, base string, from int) (string, int, error) {
	for n := from; n < from+config.MaxCloneSlugAttempts; n++ {
		slug := base
		if n > 0 {
			slug = base + "-" + strconv.Itoa(n)
		}
		taken, err := s.store.SlugExists(ctx, tenantID, slug, uuid.Nil)
		if err != nil {
			return "", 0, storeError(err)
		}
		if !taken {
			return slug, n, nil
		}
	}
	return "", 0, ErrConflict.Msgf("no free slug for %q", base)
}
