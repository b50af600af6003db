// Package db defines the Store used by the catalog services and opens the
// configured implementation: PostgreSQL through pgx, or the in-memory store.
//
// All methods scope their work to a tenant. The null tenant disables tenant
// scoping. Errors are dberror values: ErrNotFound for missing rows,
// ErrAlreadyExists for slug collisions and ErrDatabase for anything else.
package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/config"
	dbconfig "github.com/practiceops/servicecatalog/internal/catalogsrv/db/config"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/dbmanager"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/memstore"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/models"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/postgresql"
	"github.com/practiceops/servicecatalog/internal/common/uuid"
)

// ServiceReader covers the read side of the services table.
type ServiceReader interface {
	ListServices(ctx context.Context, f models.ServiceFilter, opts models.ListOptions) ([]models.Service, error)
	CountServices(ctx context.Context, f models.ServiceFilter) (int, error)
	CountCategories(ctx context.Context, f models.ServiceFilter) (int, error)
	AggregatePrices(ctx context.Context, f models.ServiceFilter) (models.ServiceAggregates, error)
	GetService(ctx context.Context, tenantID catcommon.TenantId, id uuid.UUID) (*models.Service, error)
	// SlugExists reports whether slug is taken in the tenant by a row other
	// than excludeID. Pass uuid.Nil to exclude nothing.
	SlugExists(ctx context.Context, tenantID catcommon.TenantId, slug string, excludeID uuid.UUID) (bool, error)
}

// ServiceWriter covers the write side of the services table.
type ServiceWriter interface {
	CreateService(ctx context.Context, s *models.Service) error
	UpdateService(ctx context.Context, tenantID catcommon.TenantId, id uuid.UUID, upd *models.ServiceUpdate) (*models.Service, error)
	// UpdateServices applies upd to every row matching f and returns the
	// number of rows changed.
	UpdateServices(ctx context.Context, f models.ServiceFilter, upd *models.ServiceUpdate) (int, error)
	// DeleteService physically removes a row. Only used to discard clones
	// that were never published.
	DeleteService(ctx context.Context, tenantID catcommon.TenantId, id uuid.UUID) error
}

// AnalyticsReader reads booking and view records.
type AnalyticsReader interface {
	// ListBookings returns bookings in the given statuses joined to their
	// service.
	ListBookings(ctx context.Context, tenantID catcommon.TenantId, statuses []string) ([]models.BookingRecord, error)
	// CountViews returns the number of recorded views per service.
	CountViews(ctx context.Context, tenantID catcommon.TenantId, serviceIDs []uuid.UUID) (map[uuid.UUID]int, error)
}

// Store is the persistence layer of the catalog.
type Store interface {
	ServiceReader
	ServiceWriter
	AnalyticsReader
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*postgresql.Store)(nil)
	_ Store = (*memstore.Store)(nil)
)

// Open returns the Store selected by the db.driver setting.
func Open(ctx context.Context) (Store, error) {
	switch driver := dbconfig.Driver(); driver {
	case config.DBDriverMemory:
		log.Ctx(ctx).Warn().Msg("using in-memory store; data is lost on restart")
		return memstore.New(), nil
	case config.DBDriverPostgres:
		sqlDB, err := dbmanager.OpenCatalogDb(ctx)
		if err != nil {
			return nil, err
		}
		return postgresql.New(sqlDB), nil
	default:
		return nil, fmt.Errorf("unsupported db driver: %s", driver)
	}
}
