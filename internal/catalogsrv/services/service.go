// Package services implements the catalog of bookable services: tenant
// scoped listing, reads, mutations, bulk actions, statistics and export.
//
// Reads are served from a Cache and every mutation invalidates the entries
// of the tenants it touches. Cache, notification and event failures are
// logged and never reach the caller.
package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/cache"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/events"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/notify"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/settings"
	"github.com/practiceops/servicecatalog/internal/common/clock"
	"github.com/practiceops/servicecatalog/internal/common/uuid"
)

const (
	listCachePrefix  = "services-list"
	entryCachePrefix = "service"
	statsCachePrefix = "service-stats"

	DefaultListTTL  = 60 * time.Second
	DefaultEntryTTL = 300 * time.Second
	DefaultStatsTTL = 300 * time.Second
)

// Options configures a CatalogService. Nil collaborators are replaced with
// no-op implementations.
type Options struct {
	Store    db.Store
	Cache    cache.Cache
	Notifier notify.Notifier
	Emitter  events.Emitter
	Settings settings.Lookup
	Clock    clock.Clock

	ListTTL  time.Duration
	EntryTTL time.Duration
	StatsTTL time.Duration
}

// CatalogService is safe for concurrent use.
type CatalogService struct {
	store    db.Store
	cache    cache.Cache
	notifier notify.Notifier
	emitter  events.Emitter
	settings settings.Lookup
	clock    clock.Clock

	listTTL  time.Duration
	entryTTL time.Duration
	statsTTL time.Duration

	flight singleflight.Group
}

// New returns a CatalogService. opts.Store is required.
func New(opts Options) *CatalogService {
	s := &CatalogService{
		store:    opts.Store,
		cache:    opts.Cache,
		notifier: opts.Notifier,
		emitter:  opts.Emitter,
		settings: opts.Settings,
		clock:    opts.Clock,
		listTTL:  opts.ListTTL,
		entryTTL: opts.EntryTTL,
		statsTTL: opts.StatsTTL,
	}
	if s.cache == nil {
		s.cache = cache.Nop{}
	}
	if s.notifier == nil {
		s.notifier = notify.NewLogNotifier()
	}
	if s.emitter == nil {
		s.emitter = events.Nop{}
	}
	if s.settings == nil {
		s.settings = settings.Static(settings.Defaults())
	}
	if s.clock == nil {
		s.clock = clock.NewRealClock()
	}
	if s.listTTL <= 0 {
		s.listTTL = DefaultListTTL
	}
	if s.entryTTL <= 0 {
		s.entryTTL = DefaultEntryTTL
	}
	if s.statsTTL <= 0 {
		s.statsTTL = DefaultStatsTTL
	}
	return s
}

// Ping checks the store.
func (s *CatalogService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// now returns the current time truncated to microseconds, the precision
// the store keeps.
func (s *CatalogService) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Microsecond)
}

// bestEffort runs fn and logs a failure. The outcome is never returned to
// the caller of the operation that triggered it.
func bestEffort(ctx context.Context, what string, fn func() error) {
	if err := fn(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("side_effect", what).Msg("ignored side effect failure")
	}
}

func entryKey(id uuid.UUID, tenantID catcommon.TenantId) string {
	return entryCachePrefix + ":" + id.String() + ":" + tenantID.CacheLabel()
}

func statsKey(tenantID catcommon.TenantId) string {
	return statsCachePrefix + ":" + tenantID.CacheLabel()
}

// cached returns the payload stored under key decoded into out. A cache
// failure or a payload that does not decode counts as a miss.
func (s *CatalogService) cached(ctx context.Context, key string, out any) bool {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache read failed")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		return false
	}
	return true
}

func (s *CatalogService) remember(ctx context.Context, key string, v any, ttl time.Duration) {
	bestEffort(ctx, "cache set", func() error {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return s.cache.Set(ctx, key, raw, ttl)
	})
}

// invalidate drops the cached listings and statistics of tenantID and the
// entries of ids. Listings of the null tenant span every tenant, so they
// are always dropped too. Invalidating the null tenant drops the cache of
// every tenant.
func (s *CatalogService) invalidate(ctx context.Context, tenantID catcommon.TenantId, ids ...uuid.UUID) {
	labels := []string{"*"}
	if !tenantID.IsNull() {
		labels = []string{tenantID.CacheLabel(), catcommon.NullTenant.CacheLabel()}
	}
	for _, label := range labels {
		for _, pattern := range []string{
			listCachePrefix + ":" + label + ":*",
			statsCachePrefix + ":" + label + "*",
			entryCachePrefix + ":*:" + label,
		} {
			bestEffort(ctx, "cache invalidate", func() error {
				return s.cache.DeletePattern(ctx, pattern)
			})
		}
	}
	if len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids)*2)
	for _, id := range ids {
		keys = append(keys, entryKey(id, tenantID), entryKey(id, catcommon.NullTenant))
	}
	bestEffort(ctx, "cache invalidate", func() error {
		return s.cache.Delete(ctx, keys...)
	})
}

func serviceInfo(e *Entry) notify.ServiceInfo {
	return notify.ServiceInfo{ID: e.ID, Slug: e.Slug, Name: e.Name}
}

func (s *CatalogService) emit(ctx context.Context, topic string, tenantID catcommon.TenantId, e *Entry) {
	bestEffort(ctx, "emit "+topic, func() error {
		ev := events.Event{Type: topic, TenantID: tenantID, OccurredAt: s.clock.Now().UTC()}
		if e != nil {
			ev.Service = &events.ServiceRef{ID: e.ID, Slug: e.Slug, Name: e.Name}
		}
		return s.emitter.Emit(ctx, ev)
	})
}

func (s *CatalogService) emitBulk(ctx context.Context, tenantID catcommon.TenantId, action string, count int) {
	bestEffort(ctx, "emit "+events.TopicServiceBulk, func() error {
		return s.emitter.Emit(ctx, events.Event{
			Type:       events.TopicServiceBulk,
			TenantID:   tenantID,
			Action:     action,
			Count:      count,
			OccurredAt: s.clock.Now().UTC(),
		})
	})
}

// entryTenant returns the tenant an entry belongs to.
func entryTenant(e *Entry) catcommon.TenantId {
	if e.TenantID == nil {
		return catcommon.NullTenant
	}
	return catcommon.TenantId(*e.TenantID)
}
