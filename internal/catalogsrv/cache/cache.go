// Package cache holds the read cache of the catalog: list pages, single
// entries and statistics, stored as opaque byte payloads under string keys.
// Keys can be removed one by one or by glob pattern.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/config"
)

// Cache is implemented by RedisCache, MemoryCache and Nop.
type Cache interface {
	// Get returns the payload stored under key. A miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores val under key. A zero ttl keeps the value until deleted.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePattern removes every key matching a glob pattern in which
	// '*' matches any run of characters.
	DeletePattern(ctx context.Context, pattern string) error
	Close() error
}

// Open returns the cache selected by the cache.driver setting.
func Open(ctx context.Context) (Cache, error) {
	cfg := config.Config().Cache
	switch cfg.Driver {
	case config.CacheDriverRedis:
		return NewRedis(ctx, RedisOptions{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			Compress: config.CompressCacheValues,
		})
	case config.CacheDriverMemory:
		return NewMemory(), nil
	case config.CacheDriverNone:
		log.Ctx(ctx).Info().Msg("read cache disabled")
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", cfg.Driver)
	}
}

// Nop caches nothing. Every Get misses.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Delete(context.Context, ...string) error { return nil }
func (Nop) DeletePattern(context.Context, string) error { return nil }
func (Nop) Close() error { return nil }
