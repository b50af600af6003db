// Package catcommon holds the request context shared by the catalog server:
// tenant and actor identity and the rules for resolving them.
package catcommon

import (
	"context"

	"github.com/practiceops/servicecatalog/internal/common/optional"
)

type ctxKeyType string

const (
	ctxTenantIdKey ctxKeyType = "CatalogTenantId"
	ctxActorKey    ctxKeyType = "CatalogActor"
)

// WithTenantID sets the tenant ID in the provided context.
func WithTenantID(ctx context.Context, tenantId TenantId) context.Context {
	return context.WithValue(ctx, ctxTenantIdKey, tenantId)
}

// GetTenantID retrieves the tenant ID from the provided context. The null
// tenant is returned when none was set.
func GetTenantID(ctx context.Context) TenantId {
	if ctx == nil {
		return NullTenant
	}
	if tenantId, ok := ctx.Value(ctxTenantIdKey).(TenantId); ok {
		return tenantId
	}
	return NullTenant
}

// ResolveTenantID applies the tenant precedence: an explicit override always
// wins, including an explicit null, then the tenant carried by ctx, then the
// null tenant.
func ResolveTenantID(ctx context.Context, override optional.Value[TenantId]) TenantId {
	if override.IsSet() {
		return override.OrElse(NullTenant)
	}
	return GetTenantID(ctx)
}

// WithActor records who is performing the request.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ctxActorKey, actor)
}

// GetActor returns the actor stored in ctx, or SystemActor.
func GetActor(ctx context.Context) string {
	if ctx == nil {
		return SystemActor
	}
	if actor, ok := ctx.Value(ctxActorKey).(string); ok && actor != "" {
		return actor
	}
	return SystemActor
}
